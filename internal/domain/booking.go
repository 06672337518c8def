// Package domain holds the records exchanged with the hotel API and the few rules the front-end
// applies to them locally.
package domain

import (
	"strings"

	"github.com/cockroachdb/errors"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusFailed    Status = "FAILED"
	StatusCanceled  Status = "CANCELED"
)

// Color is the tag colour a status is rendered with.
func (s Status) Color() string {
	switch s {
	case StatusConfirmed:
		return "green"
	case StatusPending:
		return "orange"
	case StatusFailed:
		return "red"
	default:
		return "gray"
	}
}

func (s Status) Cancelable() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s Status) Terminal() bool {
	return s == StatusFailed || s == StatusCanceled
}

// RoomRef is the part of a room embedded in a booking.
type RoomRef struct {
	ID        int64   `json:"id"`
	RoomType  string  `json:"roomType"`
	RoomPrice float64 `json:"roomPrice,omitempty"`
}

// Booking is created by the hotel API; the front-end only reads it and requests cancellation.
type Booking struct {
	ID              int64     `json:"id"`
	Room            *RoomRef  `json:"room,omitempty"`
	CheckIn         Date      `json:"checkIn"`
	CheckOut        Date      `json:"checkOut"`
	CreatedAt       Timestamp `json:"createdAt"`
	GuestFullName   string    `json:"guestFullName"`
	GuestEmail      string    `json:"guestEmail"`
	NumOfAdults     int       `json:"numOfAdults"`
	NumOfChildren   int       `json:"numOfChildren"`
	TotalNumOfGuest int       `json:"totalNumOfGuest"`
	BookingCode     string    `json:"bookingCode"`
	Status          Status    `json:"status"`
}

func (b Booking) RoomType() string {
	if b.Room == nil || b.Room.RoomType == "" {
		return "N/A"
	}
	return b.Room.RoomType
}

func (b Booking) Validate() error {
	if !b.CheckIn.Before(b.CheckOut.Time) {
		return errors.Wrapf(ErrValidation, "booking %d: check-in %s is not before check-out %s", b.ID, b.CheckIn, b.CheckOut)
	}
	return nil
}

// ApplyCancellation returns b moved to its terminal state. Cancellation is recorded as FAILED.
func ApplyCancellation(b Booking) (Booking, error) {
	switch {
	case b.Status.Cancelable():
		b.Status = StatusFailed
		return b, nil
	case b.Status.Terminal():
		return b, errors.Wrapf(ErrAlreadyCanceled, "booking %d is %s", b.ID, b.Status)
	default:
		return b, errors.Wrapf(ErrInvalidTransition, "booking %d has unknown status %q", b.ID, b.Status)
	}
}

// BookingRequest is the body of a new reservation.
type BookingRequest struct {
	CheckIn         Date    `json:"checkIn"`
	CheckOut        Date    `json:"checkOut"`
	GuestFullName   string  `json:"guestFullName"`
	GuestEmail      string  `json:"guestEmail"`
	NumOfAdults     int     `json:"numOfAdults"`
	NumOfChildren   int     `json:"numOfChildren"`
	ExtraServiceIDs []int64 `json:"extraServiceIds,omitempty"`
}

func (r BookingRequest) Validate() error {
	switch {
	case r.CheckIn.IsZero() || r.CheckOut.IsZero():
		return errors.Wrap(ErrValidation, "check-in and check-out dates are required")
	case !r.CheckIn.Before(r.CheckOut.Time):
		return errors.Wrap(ErrValidation, "check-in date must be before check-out date")
	case strings.TrimSpace(r.GuestFullName) == "":
		return errors.Wrap(ErrValidation, "guest name is required")
	case !strings.Contains(r.GuestEmail, "@"):
		return errors.Wrap(ErrValidation, "guest email is invalid")
	case r.NumOfAdults < 1:
		return errors.Wrap(ErrValidation, "at least one adult is required")
	case r.NumOfChildren < 0:
		return errors.Wrap(ErrValidation, "number of children cannot be negative")
	}
	return nil
}
