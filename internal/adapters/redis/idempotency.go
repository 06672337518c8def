package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"

	"github.com/robertarktes/hotel-booking-web/internal/idempotency"
)

type Idempotency struct {
	client redis.Cmdable
}

func NewIdempotency(client redis.Cmdable) *Idempotency {
	return &Idempotency{client: client}
}

func idempKey(key string) string { return "idemp:" + key }

// Get returns the stored response for key, or nil when there is none.
func (i *Idempotency) Get(ctx context.Context, key string) (*idempotency.Response, error) {
	val, err := i.client.Get(ctx, idempKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading idempotency record")
	}
	var resp idempotency.Response
	if err := json.Unmarshal(val, &resp); err != nil {
		return nil, errors.Wrap(err, "decoding idempotency record")
	}
	return &resp, nil
}

func (i *Idempotency) Set(ctx context.Context, key string, resp idempotency.Response, ttl time.Duration) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return errors.Wrap(i.client.Set(ctx, idempKey(key), data, ttl).Err(), "writing idempotency record")
}

// Reserve claims key for a request in flight. It reports false when another request already holds it.
func (i *Idempotency) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := i.client.SetNX(ctx, idempKey(key)+":lock", 1, ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, "reserving idempotency key")
	}
	return ok, nil
}

func (i *Idempotency) Release(ctx context.Context, key string) error {
	return i.client.Del(ctx, idempKey(key)+":lock").Err()
}
