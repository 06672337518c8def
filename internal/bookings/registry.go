package bookings

import (
	"context"
	"sync"
	"time"
)

// Registry hands out one value per key, typically a session id. Values never share state.
// With an idle TTL, entries untouched for longer than the TTL are dropped on a later Get.
type Registry[T any] struct {
	mu      sync.Mutex
	entries map[string]*registryEntry[T]
	build   func(ctx context.Context, key string) (T, error)
	idle    time.Duration
	now     func() time.Time
	swept   time.Time
}

type registryEntry[T any] struct {
	value T
	used  time.Time
}

type RegistryOption func(*registryConfig)

type registryConfig struct {
	idle time.Duration
	now  func() time.Time
}

// WithIdleTTL drops entries that have not been requested for d.
func WithIdleTTL(d time.Duration) RegistryOption {
	return func(c *registryConfig) { c.idle = d }
}

func WithClock(now func() time.Time) RegistryOption {
	return func(c *registryConfig) { c.now = now }
}

func NewRegistry[T any](build func(ctx context.Context, key string) (T, error), opts ...RegistryOption) *Registry[T] {
	cfg := registryConfig{now: time.Now}
	for _, o := range opts {
		o(&cfg)
	}
	return &Registry[T]{
		entries: make(map[string]*registryEntry[T]),
		build:   build,
		idle:    cfg.idle,
		now:     cfg.now,
		swept:   cfg.now(),
	}
}

// Get returns the value for key, building it on first use.
func (r *Registry[T]) Get(ctx context.Context, key string) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	r.sweepLocked(now)
	if e, ok := r.entries[key]; ok {
		e.used = now
		return e.value, nil
	}
	v, err := r.build(ctx, key)
	if err != nil {
		var zero T
		return zero, err
	}
	r.entries[key] = &registryEntry[T]{value: v, used: now}
	return v, nil
}

func (r *Registry[T]) Drop(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
}

func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// sweepLocked runs at most once per idle period.
func (r *Registry[T]) sweepLocked(now time.Time) {
	if r.idle <= 0 || now.Sub(r.swept) < r.idle {
		return
	}
	r.swept = now
	for k, e := range r.entries {
		if now.Sub(e.used) >= r.idle {
			delete(r.entries, k)
		}
	}
}
