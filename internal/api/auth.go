package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/robertarktes/hotel-booking-web/internal/domain"
)

// Register creates an account. A rejected registration carries the server's message.
func (c *Client) Register(ctx context.Context, reg domain.Registration) (domain.UserProfile, error) {
	resp, err := c.sendJSON(ctx, "Register", http.MethodPost, "/api/auth/register", false, reg)
	if err != nil {
		return domain.UserProfile{}, fail(err, ErrAuth, "registering %s", reg.Email)
	}
	if !resp.OK() {
		return domain.UserProfile{}, fail(statusError("Register", resp), ErrAuth, "registering %s", reg.Email)
	}
	var out domain.UserProfile
	if len(resp.Body) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		// Some deployments answer with a plain confirmation string.
		return domain.UserProfile{Email: reg.Email}, nil
	}
	return out, nil
}

// Login exchanges credentials for a session. Rejected credentials (any 4xx) return a nil session
// and no error; transport failures and server errors are returned as errors.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	resp, err := c.sendJSON(ctx, "Login", http.MethodPost, "/api/auth/login", false, creds)
	if err != nil {
		return nil, fail(err, ErrAuth, "logging in")
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		c.logger.WithField("status", resp.StatusCode).Info("login rejected")
		return nil, nil
	}
	if !resp.OK() {
		return nil, fail(statusError("Login", resp), ErrAuth, "logging in")
	}
	var out domain.Session
	if err := decode("Login", resp, &out); err != nil {
		return nil, fail(err, ErrAuth, "logging in")
	}
	if out.Email == "" {
		out.Email = creds.Email
	}
	return &out, nil
}

func (c *Client) UserProfile(ctx context.Context, userID domain.UserID) (domain.UserProfile, error) {
	var out domain.UserProfile
	err := c.getJSON(ctx, "UserProfile", "/api/users/profile/"+url.PathEscape(userID.String()), nil, true, &out)
	if err == nil {
		return out, nil
	}
	if code, ok := StatusCode(err); ok && code == http.StatusNotFound {
		return domain.UserProfile{}, fail(err, domain.ErrNotFound, "fetching profile of %s", userID)
	}
	return domain.UserProfile{}, fail(err, ErrFetch, "fetching profile of %s", userID)
}

func (c *Client) DeleteUser(ctx context.Context, userID domain.UserID) (json.RawMessage, error) {
	resp, err := c.do(ctx, call{op: "DeleteUser", method: http.MethodDelete, path: "/api/user/delete/" + url.PathEscape(userID.String()), auth: true})
	if err != nil {
		return nil, fail(err, ErrAuth, "deleting user %s", userID)
	}
	if !resp.OK() {
		return nil, fail(statusError("DeleteUser", resp), ErrAuth, "deleting user %s", userID)
	}
	return json.RawMessage(resp.Body), nil
}
