package redis

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// Cache wraps the shared redis client for the small counters and lookups the front-end keeps.
type Cache struct {
	client redis.Cmdable
}

func NewCache(client redis.Cmdable) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Client() redis.Cmdable {
	return c.client
}

// Incr bumps the counter under key and (re)arms its expiry, returning the new count.
func (c *Cache) Incr(ctx context.Context, key string, period time.Duration) (int64, error) {
	pipe := c.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, period)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, errors.Wrapf(err, "incrementing %s", key)
	}
	return incr.Val(), nil
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
