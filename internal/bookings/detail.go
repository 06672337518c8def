package bookings

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/robertarktes/hotel-booking-web/internal/domain"
	"github.com/robertarktes/hotel-booking-web/internal/notify"
	"github.com/robertarktes/hotel-booking-web/internal/observability"
)

const detailFailedMessage = "Could not load booking details."

type Finder interface {
	Booking(ctx context.Context, ref string) (domain.Booking, error)
}

// Detail shows a single booking looked up by id or confirmation code.
type Detail struct {
	finder   Finder
	canceler Canceler
	notifier notify.Notifier
	logger   observability.Logger
	timeout  time.Duration

	mu      sync.Mutex
	state   State
	booking *domain.Booking
	errMsg  string
	req     latest
}

func NewDetail(finder Finder, canceler Canceler, notifier notify.Notifier, logger observability.Logger, timeout time.Duration) *Detail {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Detail{finder: finder, canceler: canceler, notifier: notifier, logger: logger, timeout: timeout, state: StateIdle}
}

// DetailModel is the rendered booking detail.
type DetailModel struct {
	State       State           `json:"state"`
	Error       string          `json:"error,omitempty"`
	Booking     *domain.Booking `json:"booking,omitempty"`
	RoomType    string          `json:"roomType,omitempty"`
	CheckIn     string          `json:"checkIn,omitempty"`
	CheckOut    string          `json:"checkOut,omitempty"`
	StatusColor string          `json:"statusColor,omitempty"`
	Cancelable  bool            `json:"cancelable"`
}

// Load fetches ref. Like View.Load, only the newest call's result is kept.
func (d *Detail) Load(ctx context.Context, ref string) error {
	d.mu.Lock()
	reqCtx, gen, cancel := d.req.begin(ctx, d.timeout)
	d.state = StateLoading
	d.mu.Unlock()
	defer cancel()

	b, err := d.finder.Booking(reqCtx, ref)

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.req.finish(gen) {
		observability.SupersededLoads.Inc()
		return ErrSuperseded
	}
	if err != nil {
		d.state = StateErrored
		d.errMsg = detailFailedMessage
		d.booking = nil
		return err
	}
	d.state = StateLoaded
	d.errMsg = ""
	d.booking = &b
	return nil
}

func (d *Detail) Model() DetailModel {
	d.mu.Lock()
	defer d.mu.Unlock()
	m := DetailModel{State: d.state, Error: d.errMsg}
	if d.booking == nil {
		return m
	}
	b := *d.booking
	m.Booking = &b
	m.RoomType = b.RoomType()
	m.CheckIn = b.CheckIn.String()
	m.CheckOut = b.CheckOut.String()
	m.StatusColor = b.Status.Color()
	m.Cancelable = b.Status.Cancelable()
	return m
}

// Cancel cancels the loaded booking and, once the API acknowledges, moves it to its terminal status.
// ref must name the loaded booking by id or confirmation code; otherwise ErrNotLoaded is returned
// and nothing is sent.
func (d *Detail) Cancel(ctx context.Context, ref string) (notify.Notification, error) {
	d.mu.Lock()
	if d.booking == nil || !matches(*d.booking, ref) {
		d.mu.Unlock()
		return notify.Notification{}, errors.Wrapf(ErrNotLoaded, "booking %q is not the one shown", ref)
	}
	current := *d.booking
	d.mu.Unlock()

	if _, err := domain.ApplyCancellation(current); err != nil {
		return d.emit(ctx, notify.Failure(cancelFailedNotice), current.ID), err
	}

	reqCtx, cancel := context.WithTimeout(ctx, d.timeout)
	err := d.canceler.CancelBooking(reqCtx, current.ID)
	cancel()
	if err != nil && !errors.Is(err, domain.ErrAlreadyCanceled) {
		d.logger.WithField("booking_id", current.ID).WithError(err).Warn("cancel failed")
		return d.emit(ctx, notify.Failure(cancelFailedNotice), current.ID), err
	}

	d.mu.Lock()
	if d.booking != nil && d.booking.ID == current.ID {
		if updated, err := domain.ApplyCancellation(*d.booking); err == nil {
			d.booking = &updated
		}
	}
	d.mu.Unlock()
	return d.emit(ctx, notify.Success(cancelSuccessNotice), current.ID), nil
}

func (d *Detail) emit(ctx context.Context, n notify.Notification, bookingID int64) notify.Notification {
	n.BookingID = bookingID
	if err := d.notifier.Notify(ctx, n); err != nil {
		d.logger.WithError(err).Warn("notification not delivered")
	}
	return n
}

func matches(b domain.Booking, ref string) bool {
	return ref != "" && (ref == b.BookingCode || ref == strconv.FormatInt(b.ID, 10))
}
