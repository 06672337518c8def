package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertarktes/hotel-booking-web/internal/api"
	"github.com/robertarktes/hotel-booking-web/internal/config"
	httphandler "github.com/robertarktes/hotel-booking-web/internal/http"
	"github.com/robertarktes/hotel-booking-web/internal/idempotency"
	"github.com/robertarktes/hotel-booking-web/internal/notify"
	"github.com/robertarktes/hotel-booking-web/internal/observability"
	"github.com/robertarktes/hotel-booking-web/internal/rateLimit"
	"github.com/robertarktes/hotel-booking-web/internal/session"
)

// hotelAPI is a fake of the remote hotel REST API.
type hotelAPI struct {
	mu       sync.Mutex
	bookings string
	canceled []string
	created  int
	fetches  int
}

func (f *hotelAPI) handler() http.Handler {
	r := chi.NewRouter()
	r.Post("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds struct{ Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&creds)
		switch {
		case creds.Password != "secret":
			w.WriteHeader(http.StatusUnauthorized)
		case strings.HasPrefix(creds.Email, "admin"):
			io.WriteString(w, `{"id":1,"email":"admin@hotel.test","token":"jwt-admin","roles":["ROLE_ADMIN"]}`)
		default:
			io.WriteString(w, `{"id":7,"email":"guest@hotel.test","token":"jwt-guest","roles":["ROLE_USER"]}`)
		}
	})
	r.Get("/api/bookings/user/{id}/bookings", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.fetches++
		io.WriteString(w, f.bookings)
	})
	r.Get("/api/bookings/all-bookings", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		io.WriteString(w, f.bookings)
	})
	r.Get("/api/bookings/{ref}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "ref") != "A1" {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"message":"No booking found with booking code"}`)
			return
		}
		io.WriteString(w, `{"id":1,"room":{"id":3,"roomType":"SUITE"},"checkIn":"2024-01-10","checkOut":"2024-01-15","bookingCode":"A1","status":"CONFIRMED"}`)
	})
	r.Delete("/api/bookings/{id}/delete", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.canceled = append(f.canceled, chi.URLParam(r, "id"))
		w.WriteHeader(http.StatusOK)
	})
	r.Post("/api/rooms/addNewRoom", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.created++
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":99}`)
	})
	r.Get("/api/rooms/room/{id}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") != "3" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		io.WriteString(w, `{"id":3,"roomType":"SUITE","roomPrice":120.5,"isBooked":false}`)
	})
	r.Get("/api/rooms/roomTypes", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `["SINGLE","SUITE"]`)
	})
	return r
}

const guestBookings = `[
	{"id":1,"room":{"id":3,"roomType":"SUITE"},"checkIn":"2024-01-10","checkOut":"2024-01-15","createdAt":"2024-01-01T10:00:00","bookingCode":"A1","status":"CONFIRMED"},
	{"id":2,"room":{"id":4,"roomType":"SINGLE"},"checkIn":[2024,2,1],"checkOut":[2024,2,5],"createdAt":[2024,1,5,9,0],"bookingCode":"B2","status":"PENDING"}
]`

type env struct {
	t        *testing.T
	router   http.Handler
	api      *hotelAPI
	sessions *session.MemoryStore
}

type options struct {
	rl     *rateLimit.RateLimiter
	idemp  *idempotency.Idempotency
	checks map[string]func(context.Context) error
	notify notify.Notifier
}

func newEnv(t *testing.T, o options) *env {
	t.Helper()
	fake := &hotelAPI{bookings: guestBookings}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	cfg := &config.Config{RequestTimeout: 2 * time.Second, SessionTTL: time.Hour, HistoryPageSize: 5}
	sessions := session.NewMemoryStore()
	h := httphandler.NewHandlers(httphandler.Deps{
		Config:   cfg,
		API:      api.New(srv.URL, nil),
		Sessions: sessions,
		Notifier: o.notify,
		Checks:   o.checks,
		Logger:   observability.NewNopLogger(),
	})
	return &env{t: t, router: httphandler.SetupRouter(h, observability.NewNopLogger(), o.rl, o.idemp), api: fake, sessions: sessions}
}

func (e *env) do(method, path string, body io.Reader, sid string, header ...string) *httptest.ResponseRecorder {
	e.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *env) login(email string) string {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/v1/auth/login", strings.NewReader(`{"email":"`+email+`","password":"secret"}`), "")
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())
	for _, c := range rec.Result().Cookies() {
		if c.Name == "sid" {
			return c.Value
		}
	}
	e.t.Fatal("login did not set a session cookie")
	return ""
}

type listBody struct {
	State string `json:"state"`
	Page  struct {
		Rows []struct {
			Index  int    `json:"index"`
			ID     int64  `json:"id"`
			Status string `json:"status"`
			Action string `json:"action"`
		} `json:"rows"`
		Total int `json:"total"`
	} `json:"page"`
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) listBody {
	t.Helper()
	var out listBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestLogin(t *testing.T) {
	e := newEnv(t, options{})

	sid := e.login("guest@hotel.test")
	assert.NotEmpty(t, sid)

	rec := e.do(http.MethodPost, "/v1/auth/login", strings.NewReader(`{"email":"guest@hotel.test","password":"wrong"}`), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestHistory_RequiresSession(t *testing.T) {
	e := newEnv(t, options{})

	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/v1/history", nil, "").Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/v1/history", nil, "forged").Code)
}

func TestHistory_FilterAndOrder(t *testing.T) {
	e := newEnv(t, options{})
	sid := e.login("guest@hotel.test")

	all := decodeList(t, e.do(http.MethodGet, "/v1/history", nil, sid))
	assert.Equal(t, "loaded", all.State)
	assert.Equal(t, 2, all.Page.Total)
	assert.Equal(t, int64(1), all.Page.Rows[0].ID)

	january := decodeList(t, e.do(http.MethodGet, "/v1/history?start=2024-01-01&end=2024-01-31", nil, sid))
	require.Len(t, january.Page.Rows, 1)
	assert.Equal(t, int64(1), january.Page.Rows[0].ID)
	assert.Equal(t, 1, january.Page.Rows[0].Index)

	recent := decodeList(t, e.do(http.MethodGet, "/v1/history?order=recent", nil, sid))
	require.Len(t, recent.Page.Rows, 2)
	assert.Equal(t, int64(2), recent.Page.Rows[0].ID)

	// Filtering and sorting reuse the fetched list.
	assert.Equal(t, 1, e.api.fetches)

	e.do(http.MethodGet, "/v1/history?refresh=true", nil, sid)
	assert.Equal(t, 2, e.api.fetches)
}

func TestHistory_PageFarPastTheEnd(t *testing.T) {
	e := newEnv(t, options{})
	sid := e.login("guest@hotel.test")

	rec := e.do(http.MethodGet, "/v1/history?page=3689348814741910324", nil, sid)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list := decodeList(t, rec)
	assert.Empty(t, list.Page.Rows)
	assert.Equal(t, 2, list.Page.Total)
}

func TestHistory_ExpiredSessionDropsView(t *testing.T) {
	e := newEnv(t, options{})
	sid := e.login("guest@hotel.test")
	ctx := context.Background()
	e.do(http.MethodGet, "/v1/history", nil, sid)
	require.Equal(t, 1, e.api.fetches)

	sess, err := e.sessions.Get(ctx, sid)
	require.NoError(t, err)
	require.NoError(t, e.sessions.Delete(ctx, sid))
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/v1/history", nil, sid).Code)

	// the same sid coming back gets a fresh view instead of the stale one
	require.NoError(t, e.sessions.Put(ctx, sid, sess, time.Hour))
	e.do(http.MethodGet, "/v1/history", nil, sid)
	assert.Equal(t, 2, e.api.fetches)
}

func TestHistory_InvalidDate(t *testing.T) {
	e := newEnv(t, options{})
	sid := e.login("guest@hotel.test")

	rec := e.do(http.MethodGet, "/v1/history?start=yesterday&end=2024-01-31", nil, sid)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelFromHistory(t *testing.T) {
	rec := &notify.Recorder{}
	e := newEnv(t, options{notify: rec})
	sid := e.login("guest@hotel.test")
	e.do(http.MethodGet, "/v1/history", nil, sid)

	resp := e.do(http.MethodPost, "/v1/history/2/cancel", nil, sid)

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var n notify.Notification
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &n))
	assert.Equal(t, "Booking canceled successfully!", n.Message)
	assert.Equal(t, []string{"2"}, e.api.canceled)
	assert.Equal(t, "7", rec.All()[0].UserID)

	list := decodeList(t, e.do(http.MethodGet, "/v1/history", nil, sid))
	assert.Equal(t, "FAILED", list.Page.Rows[1].Status)
	assert.Equal(t, 1, e.api.fetches)

	again := e.do(http.MethodPost, "/v1/history/2/cancel", nil, sid)
	assert.Equal(t, http.StatusConflict, again.Code)
	assert.Len(t, e.api.canceled, 1)
}

func TestCancelFromHistory_NotLoaded(t *testing.T) {
	e := newEnv(t, options{})
	sid := e.login("guest@hotel.test")

	rec := e.do(http.MethodPost, "/v1/history/2/cancel", nil, sid)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, e.api.canceled)
}

func TestAdminRoutes_RequireRole(t *testing.T) {
	e := newEnv(t, options{})
	guest := e.login("guest@hotel.test")
	admin := e.login("admin@hotel.test")

	assert.Equal(t, http.StatusForbidden, e.do(http.MethodGet, "/v1/admin/bookings", nil, guest).Code)

	list := decodeList(t, e.do(http.MethodGet, "/v1/admin/bookings", nil, admin))
	require.Len(t, list.Page.Rows, 2)
	assert.Zero(t, list.Page.Rows[0].Index)
	assert.Equal(t, "cancel", list.Page.Rows[0].Action)
}

func TestFindBooking(t *testing.T) {
	e := newEnv(t, options{})
	sid := e.login("guest@hotel.test")

	rec := e.do(http.MethodGet, "/v1/bookings/A1", nil, sid)
	require.Equal(t, http.StatusOK, rec.Code)
	var m struct {
		RoomType    string `json:"roomType"`
		StatusColor string `json:"statusColor"`
		Cancelable  bool   `json:"cancelable"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, "SUITE", m.RoomType)
	assert.Equal(t, "green", m.StatusColor)
	assert.True(t, m.Cancelable)

	missing := e.do(http.MethodGet, "/v1/bookings/ZZ", nil, sid)
	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.Contains(t, missing.Body.String(), "No booking found")
}

func TestCancelDetail(t *testing.T) {
	e := newEnv(t, options{})
	sid := e.login("guest@hotel.test")

	rec := e.do(http.MethodPost, "/v1/bookings/A1/cancel", nil, sid)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"FAILED"`)
	assert.Equal(t, []string{"1"}, e.api.canceled)
}

func TestCancelDetail_OtherRefNeverCancelsShownBooking(t *testing.T) {
	e := newEnv(t, options{})
	sid := e.login("guest@hotel.test")
	require.Equal(t, http.StatusOK, e.do(http.MethodGet, "/v1/bookings/A1", nil, sid).Code)

	rec := e.do(http.MethodPost, "/v1/bookings/ZZ/cancel", nil, sid)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, e.api.canceled)
}

func TestBookRoom_ValidatesBeforeCallingAPI(t *testing.T) {
	e := newEnv(t, options{})
	sid := e.login("guest@hotel.test")

	rec := e.do(http.MethodPost, "/v1/rooms/3/bookings", strings.NewReader(`{"checkIn":"2024-03-05","checkOut":"2024-03-01","guestFullName":"A","guestEmail":"a@b.c","numOfAdults":1}`), sid)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type memIdempotency struct {
	mu    sync.Mutex
	resp  map[string]idempotency.Response
	locks map[string]bool
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{resp: map[string]idempotency.Response{}, locks: map[string]bool{}}
}

func (m *memIdempotency) Get(_ context.Context, key string) (*idempotency.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resp[key]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *memIdempotency) Set(_ context.Context, key string, r idempotency.Response, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resp[key] = r
	return nil
}

func (m *memIdempotency) Reserve(_ context.Context, key string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[key] {
		return false, nil
	}
	m.locks[key] = true
	return true, nil
}

func (m *memIdempotency) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, key)
	return nil
}

func roomForm(t *testing.T, withImage bool) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("roomType", "SUITE"))
	require.NoError(t, w.WriteField("roomPrice", "120.5"))
	if withImage {
		part, err := w.CreateFormFile("image", "suite.png")
		require.NoError(t, err)
		_, err = part.Write([]byte("png-bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestAddRoom_Idempotent(t *testing.T) {
	e := newEnv(t, options{idemp: idempotency.NewIdempotency(newMemIdempotency(), time.Hour)})
	admin := e.login("admin@hotel.test")
	key := "3f1c2b9e-room-submit-0001"

	body, ct := roomForm(t, true)
	first := e.do(http.MethodPost, "/v1/admin/rooms", body, admin, "Content-Type", ct, "Idempotency-Key", key)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	assert.Contains(t, first.Body.String(), "A new room was added successfully!")

	body, ct = roomForm(t, true)
	second := e.do(http.MethodPost, "/v1/admin/rooms", body, admin, "Content-Type", ct, "Idempotency-Key", key)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, first.Body.String(), second.Body.String())

	assert.Equal(t, 1, e.api.created)
}

func TestAddRoom_RequiresKeyAndImage(t *testing.T) {
	e := newEnv(t, options{idemp: idempotency.NewIdempotency(newMemIdempotency(), time.Hour)})
	admin := e.login("admin@hotel.test")

	body, ct := roomForm(t, true)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPost, "/v1/admin/rooms", body, admin, "Content-Type", ct).Code)

	body, ct = roomForm(t, false)
	rec := e.do(http.MethodPost, "/v1/admin/rooms", body, admin, "Content-Type", ct, "Idempotency-Key", "no-image-submit-0002")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "please select an image")
	assert.Zero(t, e.api.created)
}

func TestEditRoomForm(t *testing.T) {
	e := newEnv(t, options{})
	admin := e.login("admin@hotel.test")

	rec := e.do(http.MethodGet, "/v1/admin/rooms/3/edit", nil, admin)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var form struct {
		Room struct {
			RoomType string `json:"roomType"`
		} `json:"room"`
		RoomTypes []string `json:"roomTypes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &form))
	assert.Equal(t, "SUITE", form.Room.RoomType)
	assert.Equal(t, []string{"SINGLE", "SUITE"}, form.RoomTypes)

	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/v1/admin/rooms/8/edit", nil, admin).Code)
}

type countingStore map[string]int64

func (c countingStore) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	c[key]++
	return c[key], nil
}

func TestRateLimit(t *testing.T) {
	e := newEnv(t, options{rl: rateLimit.NewRateLimiter(countingStore{}, 2, time.Minute)})

	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/v1/healthz", nil, "").Code)
	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/v1/healthz", nil, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, e.do(http.MethodGet, "/v1/healthz", nil, "").Code)
	// A session gets its own budget.
	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/v1/healthz", nil, "some-session").Code)
}

func TestReadyz(t *testing.T) {
	ok := newEnv(t, options{checks: map[string]func(context.Context) error{
		"redis": func(context.Context) error { return nil },
	}})
	assert.Equal(t, http.StatusOK, ok.do(http.MethodGet, "/v1/readyz", nil, "").Code)

	down := newEnv(t, options{checks: map[string]func(context.Context) error{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	}})
	rec := down.do(http.MethodGet, "/v1/readyz", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestLogout(t *testing.T) {
	e := newEnv(t, options{})
	sid := e.login("guest@hotel.test")

	rec := e.do(http.MethodPost, "/v1/auth/logout", nil, sid)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "You have been logged out!")
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/v1/history", nil, sid).Code)
}
