// Package rooms drives the staff room editor: adding, editing and removing rooms through the API.
package rooms

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/robertarktes/hotel-booking-web/internal/api"
	"github.com/robertarktes/hotel-booking-web/internal/domain"
	"github.com/robertarktes/hotel-booking-web/internal/notify"
	"github.com/robertarktes/hotel-booking-web/internal/observability"
)

const (
	addedNotice         = "A new room was added successfully!"
	addRejectedNotice   = "Error adding room. Please try again."
	updatedNotice       = "Room updated successfully!"
	updateFailedMessage = "Failed to update room."
	updateFailedNotice  = "Error updating room"
	deletedNotice       = "Room deleted successfully!"
	deleteFailedNotice  = "Error deleting room"
)

// ErrRejected is returned when the API refused a room submission without a transport failure.
var ErrRejected = errors.New("room submission rejected")

type API interface {
	Room(ctx context.Context, id int64) (domain.Room, error)
	RoomTypes(ctx context.Context) ([]string, error)
	CreateRoom(ctx context.Context, img api.Image, meta domain.RoomRequest) (bool, error)
	UpdateRoom(ctx context.Context, id int64, img *api.Image, meta domain.RoomUpdate) (*api.Response, error)
	DeleteRoom(ctx context.Context, id int64) (json.RawMessage, error)
}

// Auditor records room changes made through the editor.
type Auditor interface {
	RoomChanged(ctx context.Context, action string, roomID int64, actor string) error
}

type nopAuditor struct{}

func (nopAuditor) RoomChanged(context.Context, string, int64, string) error { return nil }

type Editor struct {
	api      API
	notifier notify.Notifier
	audit    Auditor
	logger   observability.Logger
}

func NewEditor(client API, notifier notify.Notifier, audit Auditor, logger observability.Logger) *Editor {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if audit == nil {
		audit = nopAuditor{}
	}
	return &Editor{api: client, notifier: notifier, audit: audit, logger: logger}
}

// Form is what the edit page is filled with.
type Form struct {
	Room      domain.Room `json:"room"`
	RoomTypes []string    `json:"roomTypes"`
}

// Load fetches the room and the selectable room types at the same time.
func (e *Editor) Load(ctx context.Context, id int64) (Form, error) {
	var f Form
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		room, err := e.api.Room(gctx, id)
		f.Room = room
		return err
	})
	g.Go(func() error {
		types, err := e.api.RoomTypes(gctx)
		f.RoomTypes = types
		return err
	})
	if err := g.Wait(); err != nil {
		return Form{}, errors.Wrapf(err, "loading room %d", id)
	}
	if f.RoomTypes == nil {
		f.RoomTypes = []string{}
	}
	return f, nil
}

// Add submits a new room. img is required.
func (e *Editor) Add(ctx context.Context, img *api.Image, meta domain.RoomRequest, actor string) (notify.Notification, error) {
	if img == nil || img.Data == nil {
		return notify.Notification{}, errors.Wrap(domain.ErrValidation, "please select an image")
	}
	if err := validateRequest(meta); err != nil {
		return notify.Notification{}, err
	}

	ok, err := e.api.CreateRoom(ctx, *img, meta)
	if err != nil {
		return e.emit(ctx, notify.Failure("Failed to add room: "+api.Message(err, "unexpected error"))), err
	}
	if !ok {
		return e.emit(ctx, notify.Failure(addRejectedNotice)), ErrRejected
	}
	e.record(ctx, "room.added", 0, actor)
	return e.emit(ctx, notify.Success(addedNotice)), nil
}

// Update applies a partial change and, when the API answers 200, returns the room as it now stands.
func (e *Editor) Update(ctx context.Context, id int64, img *api.Image, meta domain.RoomUpdate, actor string) (domain.Room, notify.Notification, error) {
	if meta.RoomPrice != nil && *meta.RoomPrice < 0 {
		return domain.Room{}, notify.Notification{}, errors.Wrap(domain.ErrValidation, "room price must not be negative")
	}

	resp, err := e.api.UpdateRoom(ctx, id, img, meta)
	if err != nil {
		return domain.Room{}, e.emit(ctx, notify.Failure(updateFailedNotice)), err
	}
	if resp.StatusCode != http.StatusOK {
		e.logger.WithField("room_id", id).WithField("status", resp.StatusCode).Warn("room update rejected")
		return domain.Room{}, e.emit(ctx, notify.Failure(updateFailedNotice)), errors.Mark(errors.Newf("%s (status %d)", updateFailedMessage, resp.StatusCode), ErrRejected)
	}

	room, err := e.api.Room(ctx, id)
	if err != nil {
		return domain.Room{}, e.emit(ctx, notify.Failure(updateFailedNotice)), errors.Wrapf(err, "reloading room %d", id)
	}
	e.record(ctx, "room.updated", id, actor)
	return room, e.emit(ctx, notify.Success(updatedNotice)), nil
}

func (e *Editor) Delete(ctx context.Context, id int64, actor string) (notify.Notification, error) {
	if _, err := e.api.DeleteRoom(ctx, id); err != nil {
		return e.emit(ctx, notify.Failure(deleteFailedNotice)), err
	}
	e.record(ctx, "room.deleted", id, actor)
	return e.emit(ctx, notify.Success(deletedNotice)), nil
}

func validateRequest(meta domain.RoomRequest) error {
	if meta.RoomType == "" {
		return errors.Wrap(domain.ErrValidation, "please select a room type")
	}
	if meta.RoomPrice < 0 {
		return errors.Wrap(domain.ErrValidation, "room price must not be negative")
	}
	return nil
}

func (e *Editor) record(ctx context.Context, action string, id int64, actor string) {
	if err := e.audit.RoomChanged(ctx, action, id, actor); err != nil {
		e.logger.WithField("action", action).WithError(err).Warn("audit write failed")
	}
}

func (e *Editor) emit(ctx context.Context, n notify.Notification) notify.Notification {
	if err := e.notifier.Notify(ctx, n); err != nil {
		e.logger.WithError(err).Warn("notification not delivered")
	}
	return n
}
