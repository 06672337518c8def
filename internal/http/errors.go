package http

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"

	"github.com/robertarktes/hotel-booking-web/internal/api"
	"github.com/robertarktes/hotel-booking-web/internal/bookings"
	"github.com/robertarktes/hotel-booking-web/internal/domain"
	"github.com/robertarktes/hotel-booking-web/internal/notify"
	"github.com/robertarktes/hotel-booking-web/internal/observability"
	"github.com/robertarktes/hotel-booking-web/internal/rooms"
	"github.com/robertarktes/hotel-booking-web/internal/session"
)

type errorBody struct {
	Error        string               `json:"error"`
	Notification *notify.Notification `json:"notification,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps the error taxonomy onto the status the page sees.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNoSession):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyCanceled), errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, bookings.ErrNotLoaded):
		return http.StatusConflict
	case errors.Is(err, rooms.ErrRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, api.ErrTransport):
		return http.StatusGatewayTimeout
	case errors.Is(err, api.ErrStatus), errors.Is(err, api.ErrFetch), errors.Is(err, api.ErrCancel),
		errors.Is(err, api.ErrRoom), errors.Is(err, api.ErrAuth):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	writeFailure(w, r, err, nil)
}

// writeFailure reports err, attaching the notification the failed action emitted, if any.
func writeFailure(w http.ResponseWriter, r *http.Request, err error, n *notify.Notification) {
	status := statusFor(err)
	msg := api.Message(err, http.StatusText(status))
	if status < 500 {
		msg = userMessage(err, msg)
	} else {
		loggerFrom(r.Context(), observability.NewNopLogger()).WithError(err).Error("request failed")
	}
	writeJSON(w, status, errorBody{Error: msg, Notification: n})
}

// userMessage keeps the server's message when there is one and otherwise shows the local reason.
func userMessage(err error, fallback string) string {
	var se *api.StatusError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrAlreadyCanceled) || errors.Is(err, rooms.ErrRejected) {
		return err.Error()
	}
	return fallback
}
