package bookings

import (
	"context"
	"time"
)

// latest tracks the newest request a view has issued so that only its result is applied.
// Callers hold the owning view's mutex around every method.
type latest struct {
	gen  uint64
	stop context.CancelFunc
}

// begin cancels the request in flight, if any, and starts a new one.
func (l *latest) begin(parent context.Context, timeout time.Duration) (context.Context, uint64, context.CancelFunc) {
	if l.stop != nil {
		l.stop()
	}
	l.gen++
	ctx, cancel := context.WithTimeout(parent, timeout)
	l.stop = cancel
	return ctx, l.gen, cancel
}

// finish reports whether gen is still the newest request and, if so, forgets its cancel func.
func (l *latest) finish(gen uint64) bool {
	if gen != l.gen {
		return false
	}
	l.stop = nil
	return true
}
