package rateLimit

import (
	"context"
	"time"
)

// Counter counts hits per key over a fixed window.
type Counter interface {
	Incr(ctx context.Context, key string, period time.Duration) (int64, error)
}

type RateLimiter struct {
	counter Counter
	rate    int
	period  time.Duration
}

func NewRateLimiter(counter Counter, rate int, period time.Duration) *RateLimiter {
	return &RateLimiter{counter: counter, rate: rate, period: period}
}

// Allow reports whether key is still within its budget for the current window.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	n, err := rl.counter.Incr(ctx, "rl:"+key, rl.period)
	if err != nil {
		return false, err
	}
	return n <= int64(rl.rate), nil
}
