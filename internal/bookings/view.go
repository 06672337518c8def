// Package bookings holds the booking list views: the pure projection of a fetched list, its
// tabular rendering, and the per-user view state that loads, filters and cancels bookings.
package bookings

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/robertarktes/hotel-booking-web/internal/api"
	"github.com/robertarktes/hotel-booking-web/internal/domain"
	"github.com/robertarktes/hotel-booking-web/internal/notify"
	"github.com/robertarktes/hotel-booking-web/internal/observability"
)

type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateLoaded  State = "loaded"
	StateErrored State = "errored"
)

var (
	// ErrSuperseded is returned by a load whose result was discarded for a newer one.
	ErrSuperseded = errors.New("load superseded by a newer request")
	ErrNotLoaded  = errors.New("bookings are not loaded")
)

const (
	loadFailedMessage   = "Failed to load booking history."
	loadFailedNotice    = "Could not load booking data."
	cancelSuccessNotice = "Booking canceled successfully!"
	cancelFailedNotice  = "Could not cancel booking."
)

// Source fetches the authoritative booking list for a view.
type Source func(ctx context.Context) ([]domain.Booking, error)

type Canceler interface {
	CancelBooking(ctx context.Context, id int64) error
}

type View struct {
	source   Source
	canceler Canceler
	notifier notify.Notifier
	logger   observability.Logger
	table    TableConfig
	timeout  time.Duration
	owner    string

	mu       sync.Mutex
	state    State
	bookings []domain.Booking
	errMsg   string
	filter   Filter
	req      latest
}

type ViewOption func(*View)

func WithTable(cfg TableConfig) ViewOption {
	return func(v *View) { v.table = cfg }
}

func WithTimeout(d time.Duration) ViewOption {
	return func(v *View) {
		if d > 0 {
			v.timeout = d
		}
	}
}

func WithNotifier(n notify.Notifier) ViewOption {
	return func(v *View) { v.notifier = n }
}

func WithLogger(l observability.Logger) ViewOption {
	return func(v *View) { v.logger = l }
}

// WithOwner tags notifications with the user the view belongs to.
func WithOwner(userID string) ViewOption {
	return func(v *View) { v.owner = userID }
}

func NewView(source Source, canceler Canceler, opts ...ViewOption) *View {
	v := &View{
		source:   source,
		canceler: canceler,
		notifier: notify.Nop{},
		logger:   observability.NewNopLogger(),
		table:    HistoryTable(),
		timeout:  10 * time.Second,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Load fetches the list again. When a newer Load starts before this one completes, this one's
// request is canceled and its outcome, success or failure, is discarded with ErrSuperseded.
func (v *View) Load(ctx context.Context) error {
	v.mu.Lock()
	reqCtx, gen, cancel := v.req.begin(ctx, v.timeout)
	v.state = StateLoading
	v.mu.Unlock()
	defer cancel()

	list, err := v.source(reqCtx)

	v.mu.Lock()
	if !v.req.finish(gen) {
		v.mu.Unlock()
		observability.SupersededLoads.Inc()
		return ErrSuperseded
	}
	if err != nil {
		v.state = StateErrored
		v.errMsg = loadFailedMessage
		v.mu.Unlock()
		v.logger.WithError(err).Warn("loading bookings failed")
		v.emit(ctx, notify.Failure(loadFailedNotice), 0)
		return err
	}
	v.state = StateLoaded
	v.errMsg = ""
	v.bookings = append(make([]domain.Booking, 0, len(list)), list...)
	v.mu.Unlock()
	return nil
}

func (v *View) SetFilter(f Filter) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.filter = f
}

func (v *View) Filter() Filter {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.filter
}

func (v *View) Table() TableConfig {
	return v.table
}

// Snapshot is a consistent copy of the view's state.
type Snapshot struct {
	State   State            `json:"state"`
	Error   string           `json:"error,omitempty"`
	Visible []domain.Booking `json:"-"`
}

func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Snapshot{State: v.state, Error: v.errMsg, Visible: Project(v.bookings, v.filter)}
}

// SnapshotFor is Snapshot with f applied instead of the view's current filter, so a caller
// rendering its own filter is unaffected by a concurrent SetFilter.
func (v *View) SnapshotFor(f Filter) Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Snapshot{State: v.state, Error: v.errMsg, Visible: Project(v.bookings, f)}
}

// Page renders one page of the visible bookings.
func (v *View) Page(page int) Page {
	return Render(v.Snapshot().Visible, v.table, page)
}

// Cancel cancels booking id through the API. On success, or when the API reports the booking as
// already canceled, the row is moved to its terminal status in place; on failure the list is left
// untouched. Either way a notification is emitted and returned.
func (v *View) Cancel(ctx context.Context, id int64) (notify.Notification, error) {
	v.mu.Lock()
	if v.state != StateLoaded {
		v.mu.Unlock()
		return notify.Notification{}, ErrNotLoaded
	}
	current, ok := find(v.bookings, id)
	v.mu.Unlock()
	if !ok {
		return notify.Notification{}, errors.Mark(errors.Wrapf(domain.ErrNotFound, "booking %d is not listed", id), api.ErrCancel)
	}
	if _, err := domain.ApplyCancellation(current); err != nil {
		return v.emit(ctx, notify.Failure(cancelFailedNotice), id), err
	}

	reqCtx, cancel := context.WithTimeout(ctx, v.timeout)
	err := v.canceler.CancelBooking(reqCtx, id)
	cancel()
	if err != nil && !errors.Is(err, domain.ErrAlreadyCanceled) {
		v.logger.WithField("booking_id", id).WithError(err).Warn("cancel failed")
		return v.emit(ctx, notify.Failure(cancelFailedNotice), id), err
	}

	v.mu.Lock()
	for i := range v.bookings {
		if v.bookings[i].ID != id {
			continue
		}
		if updated, err := domain.ApplyCancellation(v.bookings[i]); err == nil {
			v.bookings[i] = updated
		}
	}
	v.mu.Unlock()
	return v.emit(ctx, notify.Success(cancelSuccessNotice), id), nil
}

func (v *View) emit(ctx context.Context, n notify.Notification, bookingID int64) notify.Notification {
	n.UserID = v.owner
	n.BookingID = bookingID
	if err := v.notifier.Notify(ctx, n); err != nil {
		v.logger.WithError(err).Warn("notification not delivered")
	}
	return n
}

func find(list []domain.Booking, id int64) (domain.Booking, bool) {
	for _, b := range list {
		if b.ID == id {
			return b, true
		}
	}
	return domain.Booking{}, false
}
