package bookings

import (
	"sort"

	"github.com/robertarktes/hotel-booking-web/internal/domain"
)

// Filter selects the visible part of a booking list.
type Filter struct {
	Start *domain.Date
	End   *domain.Date
	// Chronological orders the result by creation time, most recent first.
	Chronological bool
}

func (f Filter) bounded() bool {
	return f.Start != nil && f.End != nil
}

// Project returns the bookings visible under f. The date window applies only when both bounds are
// set: a booking is kept when it starts on or after Start, ends on or before End and ends after
// Start. Ties in chronological order keep their fetch order. list is never modified.
func Project(list []domain.Booking, f Filter) []domain.Booking {
	out := make([]domain.Booking, 0, len(list))
	for _, b := range list {
		if f.bounded() && !within(b, *f.Start, *f.End) {
			continue
		}
		out = append(out, b)
	}
	if f.Chronological {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt.Time)
		})
	}
	return out
}

func within(b domain.Booking, start, end domain.Date) bool {
	return !b.CheckIn.Before(start.Time) &&
		!b.CheckOut.After(end.Time) &&
		b.CheckOut.After(start.Time)
}
