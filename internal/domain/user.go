package domain

import (
	"bytes"
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// UserID accepts both numeric and string identifiers from the API.
type UserID string

func (id *UserID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return errors.Wrap(err, "decoding user id")
		}
		*id = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.Wrap(err, "decoding user id")
	}
	*id = UserID(n.String())
	return nil
}

func (id UserID) String() string { return string(id) }

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Registration struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// Session is what a successful login yields.
type Session struct {
	UserID UserID   `json:"id"`
	Email  string   `json:"email"`
	Token  string   `json:"token"`
	Type   string   `json:"type,omitempty"`
	Roles  []string `json:"roles,omitempty"`
}

func (s Session) HasRole(role string) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type Role struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type UserProfile struct {
	ID        UserID `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Roles     []Role `json:"roles,omitempty"`
}
