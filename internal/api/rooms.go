package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/cockroachdb/errors"

	"github.com/robertarktes/hotel-booking-web/internal/domain"
)

func (c *Client) RoomTypes(ctx context.Context) ([]string, error) {
	var out []string
	if err := c.getJSON(ctx, "RoomTypes", "/api/rooms/roomTypes", nil, false, &out); err != nil {
		return nil, fail(err, ErrFetch, "fetching room types")
	}
	return out, nil
}

func (c *Client) ExtraServices(ctx context.Context) ([]domain.ExtraService, error) {
	var out []domain.ExtraService
	if err := c.getJSON(ctx, "ExtraServices", "/api/extras", nil, false, &out); err != nil {
		return nil, fail(err, ErrFetch, "fetching extra services")
	}
	return out, nil
}

func (c *Client) AllRooms(ctx context.Context) ([]domain.Room, error) {
	var out []domain.Room
	if err := c.getJSON(ctx, "AllRooms", "/api/rooms/allRooms", nil, false, &out); err != nil {
		return nil, fail(err, ErrFetch, "fetching rooms")
	}
	return out, nil
}

func (c *Client) AvailableRooms(ctx context.Context, checkIn, checkOut domain.Date, roomType string) ([]domain.Room, error) {
	if !checkIn.Before(checkOut.Time) {
		return nil, errors.Wrap(domain.ErrValidation, "check-in date must be before check-out date")
	}
	q := url.Values{}
	q.Set("checkIn", checkIn.String())
	q.Set("checkOut", checkOut.String())
	q.Set("roomType", roomType)
	var out []domain.Room
	if err := c.getJSON(ctx, "AvailableRooms", "/api/rooms/available-rooms", q, false, &out); err != nil {
		return nil, fail(err, ErrFetch, "fetching available rooms")
	}
	return out, nil
}

func (c *Client) Room(ctx context.Context, id int64) (domain.Room, error) {
	var out domain.Room
	err := c.getJSON(ctx, "Room", "/api/rooms/room/"+pathID(id), nil, false, &out)
	if err == nil {
		return out, nil
	}
	if code, ok := StatusCode(err); ok && code == http.StatusNotFound {
		return domain.Room{}, fail(err, domain.ErrNotFound, "fetching room %d", id)
	}
	return domain.Room{}, fail(err, ErrFetch, "fetching room %d", id)
}

// CreateRoom uploads a new room. It reports false without an error when the API answers with
// anything but 200 or 201, leaving presentation of the rejection to the caller.
func (c *Client) CreateRoom(ctx context.Context, img Image, meta domain.RoomRequest) (bool, error) {
	body, ct, err := roomForm(&img, meta)
	if err != nil {
		return false, err
	}
	resp, err := c.do(ctx, call{op: "CreateRoom", method: http.MethodPost, path: "/api/rooms/addNewRoom", auth: true, body: body, contentType: ct})
	if err != nil {
		return false, fail(err, ErrRoom, "adding room")
	}
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		return true, nil
	}
	c.logger.WithField("status", resp.StatusCode).WithField("message", serverMessage(resp.Body)).Warn("room rejected")
	return false, nil
}

// UpdateRoom sends a partial room update. img may be nil to keep the current photo; nil fields of
// meta are left out of the payload. The raw response is returned for the caller to inspect.
func (c *Client) UpdateRoom(ctx context.Context, id int64, img *Image, meta domain.RoomUpdate) (*Response, error) {
	body, ct, err := roomForm(img, meta)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, call{op: "UpdateRoom", method: http.MethodPut, path: "/api/rooms/update/" + pathID(id), auth: true, body: body, contentType: ct})
	if err != nil {
		return nil, fail(err, ErrRoom, "updating room %d", id)
	}
	return resp, nil
}

func (c *Client) DeleteRoom(ctx context.Context, id int64) (json.RawMessage, error) {
	resp, err := c.do(ctx, call{op: "DeleteRoom", method: http.MethodDelete, path: "/api/rooms/delete/room/" + pathID(id), auth: true})
	if err != nil {
		return nil, fail(err, ErrRoom, "deleting room %d", id)
	}
	if !resp.OK() {
		return nil, fail(statusError("DeleteRoom", resp), ErrRoom, "deleting room %d", id)
	}
	return json.RawMessage(resp.Body), nil
}
