package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mongoadapter "github.com/robertarktes/hotel-booking-web/internal/adapters/mongo"
	"github.com/robertarktes/hotel-booking-web/internal/api"
	"github.com/robertarktes/hotel-booking-web/internal/bookings"
	"github.com/robertarktes/hotel-booking-web/internal/config"
	"github.com/robertarktes/hotel-booking-web/internal/domain"
	"github.com/robertarktes/hotel-booking-web/internal/notify"
	"github.com/robertarktes/hotel-booking-web/internal/observability"
	"github.com/robertarktes/hotel-booking-web/internal/rooms"
	"github.com/robertarktes/hotel-booking-web/internal/session"
)

const maxUploadBytes = 10 << 20

// AuditReader lists recent audit entries for the admin pages.
type AuditReader interface {
	Recent(ctx context.Context, limit int64) ([]mongoadapter.AuditLog, error)
}

// Deps are the collaborators the handlers are built from. Notifier, RoomAudit, Audit and Checks
// are optional.
type Deps struct {
	Config    *config.Config
	API       *api.Client
	Sessions  session.Store
	Notifier  notify.Notifier
	RoomAudit rooms.Auditor
	Audit     AuditReader
	Checks    map[string]func(context.Context) error
	Logger    observability.Logger
}

type Handlers struct {
	cfg       *config.Config
	api       *api.Client
	sessions  session.Store
	notifier  notify.Notifier
	roomAudit rooms.Auditor
	audit     AuditReader
	checks    map[string]func(context.Context) error
	logger    observability.Logger

	history *bookings.Registry[*bookings.View]
	manage  *bookings.Registry[*bookings.View]
	details *bookings.Registry[*bookings.Detail]
}

func NewHandlers(d Deps) *Handlers {
	h := &Handlers{
		cfg:       d.Config,
		api:       d.API,
		sessions:  d.Sessions,
		notifier:  d.Notifier,
		roomAudit: d.RoomAudit,
		audit:     d.Audit,
		checks:    d.Checks,
		logger:    d.Logger,
	}
	if h.notifier == nil {
		h.notifier = notify.Nop{}
	}
	if h.logger == nil {
		h.logger = observability.NewNopLogger()
	}
	var opts []bookings.RegistryOption
	if h.cfg != nil && h.cfg.SessionTTL > 0 {
		opts = append(opts, bookings.WithIdleTTL(h.cfg.SessionTTL))
	}
	h.history = bookings.NewRegistry(h.buildHistory, opts...)
	h.manage = bookings.NewRegistry(h.buildManage, opts...)
	h.details = bookings.NewRegistry(h.buildDetail, opts...)
	return h
}

// client returns the API client authenticated as session sid.
func (h *Handlers) client(sid string) *api.Client {
	return h.api.WithTokens(session.Scoped(h.sessions, sid))
}

func (h *Handlers) historyTable() bookings.TableConfig {
	t := bookings.HistoryTable()
	if h.cfg != nil && h.cfg.HistoryPageSize > 0 {
		t.PageSize = h.cfg.HistoryPageSize
	}
	return t
}

func (h *Handlers) viewOptions(owner string, table bookings.TableConfig) []bookings.ViewOption {
	opts := []bookings.ViewOption{
		bookings.WithTable(table),
		bookings.WithNotifier(h.notifier),
		bookings.WithLogger(h.logger.WithField("user_id", owner)),
		bookings.WithOwner(owner),
	}
	if h.cfg != nil {
		opts = append(opts, bookings.WithTimeout(h.cfg.RequestTimeout))
	}
	return opts
}

func (h *Handlers) buildHistory(ctx context.Context, sid string) (*bookings.View, error) {
	sess, err := h.sessions.Get(ctx, sid)
	if err != nil {
		return nil, err
	}
	client := h.client(sid)
	source := func(ctx context.Context) ([]domain.Booking, error) {
		return client.BookingsForUser(ctx, sess.UserID)
	}
	return bookings.NewView(source, client, h.viewOptions(sess.UserID.String(), h.historyTable())...), nil
}

func (h *Handlers) buildManage(ctx context.Context, sid string) (*bookings.View, error) {
	sess, err := h.sessions.Get(ctx, sid)
	if err != nil {
		return nil, err
	}
	client := h.client(sid)
	return bookings.NewView(client.AllBookings, client, h.viewOptions(sess.UserID.String(), bookings.ManageTable())...), nil
}

func (h *Handlers) buildDetail(_ context.Context, sid string) (*bookings.Detail, error) {
	client := h.client(sid)
	var timeout time.Duration
	if h.cfg != nil {
		timeout = h.cfg.RequestTimeout
	}
	return bookings.NewDetail(client, client, h.notifier, h.logger, timeout), nil
}

// forget drops every view held for sid.
func (h *Handlers) forget(sid string) {
	h.history.Drop(sid)
	h.manage.Drop(sid)
	h.details.Drop(sid)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return false
	}
	return true
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id < 1 {
		return 0, errors.Wrapf(domain.ErrValidation, "invalid %s %q", name, chi.URLParam(r, name))
	}
	return id, nil
}

func mustSession(r *http.Request) currentSession {
	s, _ := sessionFrom(r.Context())
	return s
}

type sessionView struct {
	UserID domain.UserID `json:"id"`
	Email  string        `json:"email"`
	Roles  []string      `json:"roles"`
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if !decodeBody(w, r, &creds) {
		return
	}
	sess, err := h.api.Login(r.Context(), creds)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if sess == nil {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Invalid email or password."})
		return
	}

	sid := uuid.NewString()
	ttl := 24 * time.Hour
	if h.cfg != nil {
		ttl = h.cfg.SessionTTL
	}
	if err := h.sessions.Put(r.Context(), sid, *sess, ttl); err != nil {
		writeError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sid,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, sessionView{UserID: sess.UserID, Email: sess.Email, Roles: sess.Roles})
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var reg domain.Registration
	if !decodeBody(w, r, &reg) {
		return
	}
	profile, err := h.api.Register(r.Context(), reg)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: api.Message(err, "Registration failed.")})
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		if err := h.sessions.Delete(r.Context(), c.Value); err != nil {
			writeError(w, r, err)
			return
		}
		h.forget(c.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]string{"message": "You have been logged out!"})
}

func (h *Handlers) Profile(w http.ResponseWriter, r *http.Request) {
	s := mustSession(r)
	profile, err := h.client(s.ID).UserProfile(r.Context(), s.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handlers) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	s := mustSession(r)
	if _, err := h.client(s.ID).DeleteUser(r.Context(), s.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	_ = h.sessions.Delete(r.Context(), s.ID)
	h.forget(s.ID)
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	w.WriteHeader(http.StatusNoContent)
}

type listResponse struct {
	State  bookings.State `json:"state"`
	Error  string         `json:"error,omitempty"`
	Filter filterView     `json:"filter"`
	Page   bookings.Page  `json:"page"`
}

type filterView struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
	Order string `json:"order"`
}

// parseFilter reads start, end and order=recent. A bound that does not parse is a client error.
func parseFilter(r *http.Request) (bookings.Filter, error) {
	q := r.URL.Query()
	var f bookings.Filter
	for _, b := range []struct {
		key string
		dst **domain.Date
	}{{"start", &f.Start}, {"end", &f.End}} {
		v := q.Get(b.key)
		if v == "" {
			continue
		}
		d, err := domain.ParseDate(v)
		if err != nil {
			return bookings.Filter{}, errors.Wrapf(domain.ErrValidation, "invalid %s date %q", b.key, v)
		}
		*b.dst = &d
	}
	f.Chronological = q.Get("order") == "recent"
	return f, nil
}

func viewFilter(f bookings.Filter) filterView {
	out := filterView{Order: "fetched"}
	if f.Start != nil {
		out.Start = f.Start.String()
	}
	if f.End != nil {
		out.End = f.End.String()
	}
	if f.Chronological {
		out.Order = "recent"
	}
	return out
}

func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	h.serveList(w, r, h.history)
}

func (h *Handlers) AllBookings(w http.ResponseWriter, r *http.Request) {
	h.serveList(w, r, h.manage)
}

// serveList loads the view on first use or when refresh=true, applies the requested filter and
// renders one page. A load superseded by a newer one still answers with the view's current state.
func (h *Handlers) serveList(w http.ResponseWriter, r *http.Request, reg *bookings.Registry[*bookings.View]) {
	s := mustSession(r)
	view, err := reg.Get(r.Context(), s.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	if view.Snapshot().State == bookings.StateIdle || r.URL.Query().Get("refresh") == "true" {
		if err := view.Load(r.Context()); err != nil && !errors.Is(err, bookings.ErrSuperseded) {
			loggerFrom(r.Context(), h.logger).WithError(err).Warn("booking list load failed")
		}
	}
	view.SetFilter(f)

	snap := view.SnapshotFor(f)
	resp := listResponse{
		State:  snap.State,
		Error:  snap.Error,
		Filter: viewFilter(f),
		Page:   bookings.Render(snap.Visible, view.Table(), page),
	}
	status := http.StatusOK
	if snap.State == bookings.StateErrored {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, resp)
}

func (h *Handlers) CancelFromHistory(w http.ResponseWriter, r *http.Request) {
	h.cancelInList(w, r, h.history)
}

func (h *Handlers) CancelFromManage(w http.ResponseWriter, r *http.Request) {
	h.cancelInList(w, r, h.manage)
}

func (h *Handlers) cancelInList(w http.ResponseWriter, r *http.Request, reg *bookings.Registry[*bookings.View]) {
	s := mustSession(r)
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := reg.Get(r.Context(), s.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := view.Cancel(r.Context(), id)
	if err != nil {
		writeFailure(w, r, err, notificationOrNil(n))
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func notificationOrNil(n notify.Notification) *notify.Notification {
	if n.Message == "" {
		return nil
	}
	return &n
}

// FindBooking looks a booking up by id or confirmation code.
func (h *Handlers) FindBooking(w http.ResponseWriter, r *http.Request) {
	s := mustSession(r)
	d, err := h.details.Get(r.Context(), s.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := d.Load(r.Context(), chi.URLParam(r, "ref")); err != nil {
		if errors.Is(err, bookings.ErrSuperseded) {
			writeJSON(w, http.StatusOK, d.Model())
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d.Model())
}

func (h *Handlers) CancelDetail(w http.ResponseWriter, r *http.Request) {
	s := mustSession(r)
	d, err := h.details.Get(r.Context(), s.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ref := chi.URLParam(r, "ref")
	n, err := d.Cancel(r.Context(), ref)
	if errors.Is(err, bookings.ErrNotLoaded) {
		if err := d.Load(r.Context(), ref); err != nil {
			writeError(w, r, err)
			return
		}
		n, err = d.Cancel(r.Context(), ref)
	}
	if err != nil {
		writeFailure(w, r, err, notificationOrNil(n))
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Notification notify.Notification  `json:"notification"`
		Detail       bookings.DetailModel `json:"detail"`
	}{n, d.Model()})
}

func (h *Handlers) BookRoom(w http.ResponseWriter, r *http.Request) {
	s := mustSession(r)
	roomID, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req domain.BookingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	b, err := h.client(s.ID).BookRoom(r.Context(), roomID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *Handlers) Rooms(w http.ResponseWriter, r *http.Request) {
	list, err := h.api.AllRooms(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handlers) RoomTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.api.RoomTypes(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types)
}

func (h *Handlers) AvailableRooms(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	checkIn, err := domain.ParseDate(q.Get("checkIn"))
	if err != nil {
		writeError(w, r, errors.Wrap(domain.ErrValidation, "checkIn is required"))
		return
	}
	checkOut, err := domain.ParseDate(q.Get("checkOut"))
	if err != nil {
		writeError(w, r, errors.Wrap(domain.ErrValidation, "checkOut is required"))
		return
	}
	list, err := h.api.AvailableRooms(r.Context(), checkIn, checkOut, q.Get("roomType"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handlers) Room(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	room, err := h.api.Room(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (h *Handlers) ExtraServices(w http.ResponseWriter, r *http.Request) {
	list, err := h.api.ExtraServices(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handlers) editor(sid string) *rooms.Editor {
	return rooms.NewEditor(h.client(sid), h.notifier, h.roomAudit, h.logger)
}

func (h *Handlers) EditRoomForm(w http.ResponseWriter, r *http.Request) {
	s := mustSession(r)
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	form, err := h.editor(s.ID).Load(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// readImage returns the "image" file part, or nil when the form has none.
func readImage(r *http.Request) (*api.Image, func(), error) {
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, errors.Wrap(domain.ErrValidation, "unreadable image upload")
	}
	img := &api.Image{Filename: header.Filename, ContentType: header.Header.Get("Content-Type"), Data: file}
	return img, func() { _ = file.Close() }, nil
}

func parsePrice(v string) (*float64, error) {
	if strings.TrimSpace(v) == "" {
		return nil, nil
	}
	p, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrValidation, "invalid room price %q", v)
	}
	return &p, nil
}

func (h *Handlers) AddRoom(w http.ResponseWriter, r *http.Request) {
	s := mustSession(r)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, r, errors.Wrap(domain.ErrValidation, "expected a multipart form"))
		return
	}
	img, done, err := readImage(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer done()
	price, err := parsePrice(r.FormValue("roomPrice"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	meta := domain.RoomRequest{RoomType: r.FormValue("roomType")}
	if price != nil {
		meta.RoomPrice = *price
	}

	n, err := h.editor(s.ID).Add(r.Context(), img, meta, s.UserID.String())
	if err != nil {
		writeFailure(w, r, err, notificationOrNil(n))
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (h *Handlers) UpdateRoom(w http.ResponseWriter, r *http.Request) {
	s := mustSession(r)
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, r, errors.Wrap(domain.ErrValidation, "expected a multipart form"))
		return
	}
	img, done, err := readImage(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer done()
	var meta domain.RoomUpdate
	if rt := r.FormValue("roomType"); rt != "" {
		meta.RoomType = &rt
	}
	if meta.RoomPrice, err = parsePrice(r.FormValue("roomPrice")); err != nil {
		writeError(w, r, err)
		return
	}

	room, n, err := h.editor(s.ID).Update(r.Context(), id, img, meta, s.UserID.String())
	if err != nil {
		writeFailure(w, r, err, notificationOrNil(n))
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Room         domain.Room         `json:"room"`
		Notification notify.Notification `json:"notification"`
	}{room, n})
}

func (h *Handlers) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	s := mustSession(r)
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := h.editor(s.ID).Delete(r.Context(), id, s.UserID.String())
	if err != nil {
		writeFailure(w, r, err, notificationOrNil(n))
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *Handlers) AuditLog(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: "audit log is not configured"})
		return
	}
	limit, err := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
	if err != nil || limit < 1 || limit > 500 {
		limit = 50
	}
	entries, err := h.audit.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Readyz runs every dependency check and fails if any does.
func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	failed := map[string]string{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "unavailable", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
