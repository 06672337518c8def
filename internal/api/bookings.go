package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/cockroachdb/errors"

	"github.com/robertarktes/hotel-booking-web/internal/domain"
)

// BookingsForUser lists the bookings of one user. Either the whole list or an error is returned.
func (c *Client) BookingsForUser(ctx context.Context, userID domain.UserID) ([]domain.Booking, error) {
	var out []domain.Booking
	path := "/api/bookings/user/" + url.PathEscape(userID.String()) + "/bookings"
	if err := c.getJSON(ctx, "BookingsForUser", path, nil, true, &out); err != nil {
		return nil, fail(err, ErrFetch, "fetching bookings for user %s", userID)
	}
	return nonNil(out), nil
}

func (c *Client) AllBookings(ctx context.Context) ([]domain.Booking, error) {
	var out []domain.Booking
	if err := c.getJSON(ctx, "AllBookings", "/api/bookings/all-bookings", nil, false, &out); err != nil {
		return nil, fail(err, ErrFetch, "fetching bookings")
	}
	return nonNil(out), nil
}

// Booking looks a booking up by id or confirmation code.
func (c *Client) Booking(ctx context.Context, ref string) (domain.Booking, error) {
	var out domain.Booking
	err := c.getJSON(ctx, "Booking", "/api/bookings/"+url.PathEscape(ref), nil, false, &out)
	if err == nil {
		return out, nil
	}
	if code, ok := StatusCode(err); ok && code == http.StatusNotFound {
		return domain.Booking{}, fail(err, domain.ErrNotFound, "finding booking %s", ref)
	}
	return domain.Booking{}, fail(err, ErrFetch, "finding booking %s", ref)
}

// CancelBooking asks the API to cancel a booking. It is not retried. A booking the API reports as
// already gone or canceled yields domain.ErrAlreadyCanceled; an unknown id yields ErrCancel
// together with domain.ErrNotFound.
func (c *Client) CancelBooking(ctx context.Context, id int64) error {
	resp, err := c.do(ctx, call{op: "CancelBooking", method: http.MethodDelete, path: "/api/bookings/" + pathID(id) + "/delete"})
	if err != nil {
		return fail(err, ErrCancel, "canceling booking %d", id)
	}
	if resp.OK() {
		return nil
	}
	err = statusError("CancelBooking", resp)
	switch resp.StatusCode {
	case http.StatusNotFound:
		return fail(errors.Mark(err, domain.ErrNotFound), ErrCancel, "canceling booking %d", id)
	case http.StatusConflict, http.StatusGone:
		return errors.Wrapf(errors.Mark(err, domain.ErrAlreadyCanceled), "canceling booking %d", id)
	}
	return fail(err, ErrCancel, "canceling booking %d", id)
}

// BookRoom reserves a room. Invalid requests are rejected before any network call.
func (c *Client) BookRoom(ctx context.Context, roomID int64, req domain.BookingRequest) (domain.Booking, error) {
	if err := req.Validate(); err != nil {
		return domain.Booking{}, err
	}
	resp, err := c.sendJSON(ctx, "BookRoom", http.MethodPost, "/api/bookings/room/"+pathID(roomID)+"/booking", false, req)
	if err != nil {
		return domain.Booking{}, fail(err, ErrFetch, "booking room %d", roomID)
	}
	if !resp.OK() {
		return domain.Booking{}, fail(statusError("BookRoom", resp), ErrFetch, "booking room %d", roomID)
	}
	var out domain.Booking
	if err := decode("BookRoom", resp, &out); err != nil {
		return domain.Booking{}, err
	}
	return out, nil
}

func nonNil(list []domain.Booking) []domain.Booking {
	if list == nil {
		return []domain.Booking{}
	}
	return list
}
