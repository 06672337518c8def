package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
)

const dateLayout = "2006-01-02"

// DecodeTimestampParts decodes the array form the hotel API uses for dates and timestamps.
// Field order is [year, month, day, hour, minute, second, nanosecond]; the first three are
// required and the rest default to zero. The result is in UTC.
func DecodeTimestampParts(parts []int) (time.Time, error) {
	if len(parts) < 3 || len(parts) > 7 {
		return time.Time{}, errors.Wrapf(ErrValidation, "timestamp array must have 3 to 7 fields, got %d", len(parts))
	}
	var p [7]int
	copy(p[:], parts)
	year, month, day, hour, minute, second, nanos := p[0], p[1], p[2], p[3], p[4], p[5], p[6]

	if month < 1 || month > 12 {
		return time.Time{}, errors.Wrapf(ErrValidation, "month %d out of range", month)
	}
	if day < 1 || day > daysIn(year, time.Month(month)) {
		return time.Time{}, errors.Wrapf(ErrValidation, "day %d out of range for %04d-%02d", day, year, month)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return time.Time{}, errors.Wrapf(ErrValidation, "time %02d:%02d:%02d out of range", hour, minute, second)
	}
	if nanos < 0 || nanos > 999999999 {
		return time.Time{}, errors.Wrapf(ErrValidation, "nanosecond %d out of range", nanos)
	}
	return time.Date(year, time.Month(month), day, hour, minute, second, nanos, time.UTC), nil
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Date is a calendar day at midnight UTC.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts "2006-01-02" or a full RFC 3339 timestamp, keeping only the calendar day.
func ParseDate(s string) (Date, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, errors.Wrapf(ErrValidation, "invalid date %q", s)
	}
	return NewDate(t.Year(), t.Month(), t.Day()), nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*d = Date{}
		return nil
	case len(b) > 0 && b[0] == '[':
		var parts []int
		if err := json.Unmarshal(b, &parts); err != nil {
			return errors.Wrap(err, "decoding date array")
		}
		t, err := DecodeTimestampParts(parts)
		if err != nil {
			return err
		}
		*d = NewDate(t.Year(), t.Month(), t.Day())
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.Wrap(err, "decoding date")
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Timestamp is an instant decoded from any of the encodings the hotel API emits.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	dateLayout,
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*t = Timestamp{}
		return nil
	case len(b) > 0 && b[0] == '[':
		var parts []int
		if err := json.Unmarshal(b, &parts); err != nil {
			return errors.Wrap(err, "decoding timestamp array")
		}
		decoded, err := DecodeTimestampParts(parts)
		if err != nil {
			return err
		}
		*t = Timestamp{decoded}
		return nil
	case len(b) > 0 && b[0] != '"':
		// epoch milliseconds
		ms, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil {
			return errors.Wrapf(ErrValidation, "invalid timestamp %s", b)
		}
		*t = Timestamp{time.UnixMilli(ms).UTC()}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.Wrap(err, "decoding timestamp")
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = Timestamp{parsed.UTC()}
			return nil
		}
	}
	return errors.Wrapf(ErrValidation, "invalid timestamp %q", s)
}
