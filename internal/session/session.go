// Package session keeps the signed-in user's API credential out of global state. Views and the
// API client receive a TokenSource explicitly and read the token on every call, so a rotated
// credential takes effect on the next request.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/robertarktes/hotel-booking-web/internal/domain"
)

// ErrNoSession is returned when a session id has no stored credential.
var ErrNoSession = errors.New("no active session")

type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// Static always yields the same token.
func Static(token string) TokenSource {
	return TokenFunc(func(context.Context) (string, error) { return token, nil })
}

type Store interface {
	Get(ctx context.Context, sid string) (domain.Session, error)
	Put(ctx context.Context, sid string, s domain.Session, ttl time.Duration) error
	Delete(ctx context.Context, sid string) error
}

// Scoped reads the token of one session from the store on each call.
func Scoped(store Store, sid string) TokenSource {
	return TokenFunc(func(ctx context.Context) (string, error) {
		s, err := store.Get(ctx, sid)
		if err != nil {
			return "", err
		}
		return s.Token, nil
	})
}

type memoryEntry struct {
	session   domain.Session
	expiresAt time.Time
}

// MemoryStore is an in-process Store used by tests and single-instance deployments.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, sid string) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[sid]
	if !ok {
		return domain.Session{}, ErrNoSession
	}
	if !e.expiresAt.IsZero() && m.now().After(e.expiresAt) {
		delete(m.entries, sid)
		return domain.Session{}, ErrNoSession
	}
	return e.session, nil
}

func (m *MemoryStore) Put(_ context.Context, sid string, s domain.Session, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memoryEntry{session: s}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.entries[sid] = e
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, sid)
	return nil
}
