// Package notify carries the transient success/failure messages views emit after a user action.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/robertarktes/hotel-booking-web/internal/observability"
)

type Kind string

const (
	KindSuccess Kind = "success"
	KindFailure Kind = "failure"
)

type Notification struct {
	ID        uuid.UUID `json:"id"`
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	UserID    string    `json:"user_id,omitempty"`
	BookingID int64     `json:"booking_id,omitempty"`
	At        time.Time `json:"at"`
}

func Success(message string) Notification {
	return Notification{ID: uuid.New(), Kind: KindSuccess, Message: message, At: time.Now().UTC()}
}

func Failure(message string) Notification {
	return Notification{ID: uuid.New(), Kind: KindFailure, Message: message, At: time.Now().UTC()}
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Notify(context.Context, Notification) error { return nil }

type LogNotifier struct {
	logger observability.Logger
}

func NewLogNotifier(logger observability.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	entry := l.logger.WithField("notification_id", n.ID).WithField("kind", n.Kind)
	if n.BookingID != 0 {
		entry = entry.WithField("booking_id", n.BookingID)
	}
	if n.Kind == KindFailure {
		entry.Warn(n.Message)
	} else {
		entry.Info(n.Message)
	}
	return nil
}

// Multi delivers to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs error
	for _, target := range m {
		if err := target.Notify(ctx, n); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	observability.NotificationsTotal.WithLabelValues(string(n.Kind)).Inc()
	return errs
}

// Recorder keeps notifications in memory.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *Recorder) Notify(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.sent))
	copy(out, r.sent)
	return out
}
