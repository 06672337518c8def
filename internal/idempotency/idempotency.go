// Package idempotency replays the stored outcome of a repeated room submission instead of sending
// it to the API twice.
package idempotency

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrInFlight is returned when the same key is already being processed.
var ErrInFlight = errors.New("request with this idempotency key is in progress")

type Response struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Result      []byte `json:"result"`
}

type Store interface {
	Get(ctx context.Context, key string) (*Response, error)
	Set(ctx context.Context, key string, resp Response, ttl time.Duration) error
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type Idempotency struct {
	store Store
	ttl   time.Duration
	// lockTTL bounds how long an abandoned reservation blocks retries.
	lockTTL time.Duration
}

func NewIdempotency(store Store, ttl time.Duration) *Idempotency {
	return &Idempotency{store: store, ttl: ttl, lockTTL: 30 * time.Second}
}

// Do returns the response stored under key or runs fn and stores what it produced. Only
// responses below 500 are stored, so a failed submission can be retried with the same key.
func (i *Idempotency) Do(ctx context.Context, key string, fn func() Response) (Response, bool, error) {
	if existing, err := i.store.Get(ctx, key); err != nil {
		return Response{}, false, err
	} else if existing != nil {
		return *existing, true, nil
	}

	ok, err := i.store.Reserve(ctx, key, i.lockTTL)
	if err != nil {
		return Response{}, false, err
	}
	if !ok {
		return Response{}, false, ErrInFlight
	}
	defer func() { _ = i.store.Release(context.WithoutCancel(ctx), key) }()

	// A competing request may have stored its response between the first read and the reservation.
	if existing, err := i.store.Get(ctx, key); err != nil {
		return Response{}, false, err
	} else if existing != nil {
		return *existing, true, nil
	}

	resp := fn()
	if resp.Status < 500 {
		if err := i.store.Set(ctx, key, resp, i.ttl); err != nil {
			return resp, false, errors.Wrap(err, "storing response")
		}
	}
	return resp, false, nil
}
