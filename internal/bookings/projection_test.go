package bookings_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/robertarktes/hotel-booking-web/internal/bookings"
	"github.com/robertarktes/hotel-booking-web/internal/domain"
)

func date(s string) domain.Date {
	d, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func datePtr(s string) *domain.Date {
	d := date(s)
	return &d
}

func booking(id int64, checkIn, checkOut string) domain.Booking {
	return domain.Booking{ID: id, CheckIn: date(checkIn), CheckOut: date(checkOut), Status: domain.StatusConfirmed}
}

func created(b domain.Booking, ts time.Time) domain.Booking {
	b.CreatedAt = domain.Timestamp{Time: ts}
	return b
}

func ids(list []domain.Booking) []int64 {
	out := make([]int64, 0, len(list))
	for _, b := range list {
		out = append(out, b.ID)
	}
	return out
}

func sample() []domain.Booking {
	return []domain.Booking{
		booking(1, "2024-01-10", "2024-01-15"),
		booking(2, "2024-02-01", "2024-02-05"),
		booking(3, "2023-12-28", "2024-01-03"),
		booking(4, "2024-01-01", "2024-01-31"),
		booking(5, "2024-01-20", "2024-02-02"),
	}
}

func TestProject_DateWindow(t *testing.T) {
	list := []domain.Booking{
		booking(1, "2024-01-10", "2024-01-15"),
		booking(2, "2024-02-01", "2024-02-05"),
	}

	got := bookings.Project(list, bookings.Filter{Start: datePtr("2024-01-01"), End: datePtr("2024-01-31")})

	assert.Equal(t, []int64{1}, ids(got))
}

func TestProject_WindowIsInclusive(t *testing.T) {
	got := bookings.Project(sample(), bookings.Filter{Start: datePtr("2024-01-01"), End: datePtr("2024-01-31")})

	// 3 starts before the window, 2 and 5 end after it.
	assert.Equal(t, []int64{1, 4}, ids(got))
}

func TestProject_ZeroLengthWindowKeepsNothing(t *testing.T) {
	list := []domain.Booking{booking(1, "2024-01-10", "2024-01-10")}

	got := bookings.Project(list, bookings.Filter{Start: datePtr("2024-01-10"), End: datePtr("2024-01-10")})

	assert.Empty(t, got)
}

func TestProject_Idempotent(t *testing.T) {
	f := bookings.Filter{Start: datePtr("2024-01-01"), End: datePtr("2024-02-10")}

	once := bookings.Project(sample(), f)
	twice := bookings.Project(once, f)

	assert.Equal(t, once, twice)
}

func TestProject_NoBoundsKeepsEverything(t *testing.T) {
	list := sample()

	assert.Equal(t, list, bookings.Project(list, bookings.Filter{}))
	// A single bound does not filter.
	assert.Equal(t, list, bookings.Project(list, bookings.Filter{Start: datePtr("2024-01-01")}))
	assert.Equal(t, list, bookings.Project(list, bookings.Filter{End: datePtr("2024-01-01")}))
}

func TestProject_ChronologicalIsStable(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	list := []domain.Booking{
		created(booking(1, "2024-01-10", "2024-01-15"), t0),
		created(booking(2, "2024-02-01", "2024-02-05"), t0.Add(time.Hour)),
		created(booking(3, "2024-03-01", "2024-03-05"), t0),
		created(booking(4, "2024-04-01", "2024-04-05"), t0.Add(time.Hour)),
		created(booking(5, "2024-05-01", "2024-05-05"), t0.Add(-time.Hour)),
	}

	got := bookings.Project(list, bookings.Filter{Chronological: true})

	assert.Equal(t, []int64{2, 4, 1, 3, 5}, ids(got))
}

func TestProject_PureAndRepeatable(t *testing.T) {
	list := sample()
	before := append([]domain.Booking(nil), list...)
	f := bookings.Filter{Start: datePtr("2023-12-01"), End: datePtr("2024-03-01"), Chronological: true}

	first := bookings.Project(list, f)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, bookings.Project(list, f))
	}
	assert.Equal(t, before, list)
}
