package api

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	// ErrTransport marks network failures and timeouts.
	ErrTransport = errors.New("transport error")
	// ErrStatus marks non-2xx responses; the cause is a *StatusError.
	ErrStatus = errors.New("unexpected http status")

	ErrFetch  = errors.New("fetch failed")
	ErrCancel = errors.New("cancel failed")
	ErrRoom   = errors.New("room request failed")
	ErrAuth   = errors.New("auth request failed")
)

// StatusError is a non-2xx response, with the server's own message when it sent one.
type StatusError struct {
	Op      string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.Code)
}

func statusError(op string, resp *Response) error {
	return errors.Mark(&StatusError{Op: op, Code: resp.StatusCode, Message: serverMessage(resp.Body)}, ErrStatus)
}

func transportError(op string, err error) error {
	return errors.Mark(errors.Wrapf(err, "%s", op), ErrTransport)
}

// fail marks err with the operation's failure class and prefixes a readable description.
func fail(err, class error, format string, args ...interface{}) error {
	return errors.Wrapf(errors.Mark(err, class), format, args...)
}

// StatusCode reports the HTTP status behind err, if any.
func StatusCode(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return 0, false
}

// Message returns the server-supplied message behind err, or fallback.
func Message(err error, fallback string) string {
	var se *StatusError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return fallback
}

const maxMessageLen = 300

// serverMessage extracts a human readable message from an error body: a JSON object's
// message/error/detail field, a JSON string, or short plain text.
func serverMessage(body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return ""
	}
	switch text[0] {
	case '{':
		var obj map[string]interface{}
		if err := json.Unmarshal(body, &obj); err != nil {
			return ""
		}
		for _, key := range []string{"message", "error", "detail"} {
			if s, ok := obj[key].(string); ok && s != "" {
				return truncate(s)
			}
		}
		return ""
	case '"':
		var s string
		if err := json.Unmarshal(body, &s); err == nil {
			return truncate(s)
		}
		return ""
	case '<', '[':
		return ""
	}
	return truncate(text)
}

func truncate(s string) string {
	if len(s) > maxMessageLen {
		return s[:maxMessageLen]
	}
	return s
}
