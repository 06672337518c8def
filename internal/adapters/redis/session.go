package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"

	"github.com/robertarktes/hotel-booking-web/internal/domain"
	"github.com/robertarktes/hotel-booking-web/internal/session"
)

// SessionStore keeps logged-in sessions as JSON under session:{sid}.
type SessionStore struct {
	client redis.Cmdable
}

func NewSessionStore(client redis.Cmdable) *SessionStore {
	return &SessionStore{client: client}
}

var _ session.Store = (*SessionStore)(nil)

func sessionKey(sid string) string { return "session:" + sid }

func (s *SessionStore) Get(ctx context.Context, sid string) (domain.Session, error) {
	val, err := s.client.Get(ctx, sessionKey(sid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Session{}, session.ErrNoSession
	}
	if err != nil {
		return domain.Session{}, errors.Wrap(err, "reading session")
	}
	var out domain.Session
	if err := json.Unmarshal(val, &out); err != nil {
		return domain.Session{}, errors.Wrap(err, "decoding session")
	}
	return out, nil
}

func (s *SessionStore) Put(ctx context.Context, sid string, sess domain.Session, ttl time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return errors.Wrap(s.client.Set(ctx, sessionKey(sid), data, ttl).Err(), "writing session")
}

func (s *SessionStore) Delete(ctx context.Context, sid string) error {
	return errors.Wrap(s.client.Del(ctx, sessionKey(sid)).Err(), "deleting session")
}
