package http

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/robertarktes/hotel-booking-web/internal/domain"
	"github.com/robertarktes/hotel-booking-web/internal/idempotency"
	"github.com/robertarktes/hotel-booking-web/internal/observability"
	"github.com/robertarktes/hotel-booking-web/internal/rateLimit"
	"github.com/robertarktes/hotel-booking-web/internal/session"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	sessionKey
)

const (
	sessionCookie     = "sid"
	idempotencyHeader = "Idempotency-Key"
	roleAdmin         = "ROLE_ADMIN"
)

func RequestIDMiddleware(next http.Handler) http.Handler {
	return middleware.RequestID(next)
}

func LoggerMiddleware(logger observability.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			entry := logger.WithField("request_id", middleware.GetReqID(r.Context()))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), loggerKey, entry)))
			entry.WithField("method", r.Method).
				WithField("path", r.URL.Path).
				WithField("status", ww.Status()).
				WithField("duration_ms", time.Since(start).Milliseconds()).
				Debug("request served")
		})
	}
}

func loggerFrom(ctx context.Context, fallback observability.Logger) observability.Logger {
	if l, ok := ctx.Value(loggerKey).(observability.Logger); ok {
		return l
	}
	return fallback
}

// MetricsMiddleware counts requests by route pattern so ids in paths do not explode the label set.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		observability.RequestsTotal.WithLabelValues(route, strconv.Itoa(ww.Status()), r.Method).Inc()
	})
}

func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := otel.Tracer("http").Start(ctx, r.Method+" "+r.URL.Path, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.url", r.URL.String()),
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		span.SetAttributes(attribute.Int("http.status_code", ww.Status()))
		if ww.Status() >= 500 {
			span.SetStatus(codes.Error, http.StatusText(ww.Status()))
		}
	})
}

// RateLimitMiddleware budgets requests per session, or per client address for anonymous callers.
// When the counter store is unavailable requests are let through.
func RateLimitMiddleware(rl *rateLimit.RateLimiter, logger observability.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + clientIP(r)
			if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
				key = "sid:" + c.Value
			}
			ok, err := rl.Allow(r.Context(), key)
			if err != nil {
				loggerFrom(r.Context(), logger).WithError(err).Warn("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				observability.RateLimitExceeded.Inc()
				writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SessionMiddleware resolves the sid cookie and rejects the request when there is no live session.
// onExpired, when set, is called with a sid whose session has expired from the store.
func SessionMiddleware(store session.Store, onExpired func(sid string)) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(sessionCookie)
			if err != nil || c.Value == "" {
				writeError(w, r, session.ErrNoSession)
				return
			}
			sess, err := store.Get(r.Context(), c.Value)
			if err != nil {
				if onExpired != nil && errors.Is(err, session.ErrNoSession) {
					onExpired(c.Value)
				}
				writeError(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), sessionKey, currentSession{ID: c.Value, Session: sess})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type currentSession struct {
	ID string
	domain.Session
}

func sessionFrom(ctx context.Context) (currentSession, bool) {
	s, ok := ctx.Value(sessionKey).(currentSession)
	return s, ok
}

func RequireRole(role string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := sessionFrom(r.Context())
			if !ok || !s.HasRole(role) {
				writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IdempotencyMiddleware replays the stored response of a POST carrying an Idempotency-Key it has
// already seen for the same session.
func IdempotencyMiddleware(idemp *idempotency.Idempotency) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			key := r.Header.Get(idempotencyHeader)
			if key == "" {
				writeJSON(w, http.StatusBadRequest, errorBody{Error: "missing Idempotency-Key"})
				return
			}
			if len(key) < 16 {
				writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid Idempotency-Key"})
				return
			}
			if s, ok := sessionFrom(r.Context()); ok {
				key = s.ID + ":" + key
			}

			resp, replayed, err := idemp.Do(r.Context(), key, func() idempotency.Response {
				rec := &capture{header: http.Header{}, status: http.StatusOK}
				next.ServeHTTP(rec, r)
				return idempotency.Response{Status: rec.status, ContentType: rec.header.Get("Content-Type"), Result: rec.body.Bytes()}
			})
			if errors.Is(err, idempotency.ErrInFlight) {
				writeJSON(w, http.StatusConflict, errorBody{Error: "request already in progress"})
				return
			}
			if err != nil && resp.Status == 0 {
				writeError(w, r, err)
				return
			}
			if replayed {
				w.Header().Set("Idempotent-Replayed", "true")
			}
			if resp.ContentType != "" {
				w.Header().Set("Content-Type", resp.ContentType)
			}
			w.WriteHeader(resp.Status)
			_, _ = w.Write(resp.Result)
		})
	}
}

// capture buffers a handler's response so it can be stored before being sent.
type capture struct {
	header http.Header
	status int
	body   bytes.Buffer
	wrote  bool
}

func (c *capture) Header() http.Header { return c.header }

func (c *capture) WriteHeader(status int) {
	if !c.wrote {
		c.status = status
		c.wrote = true
	}
}

func (c *capture) Write(b []byte) (int, error) {
	c.wrote = true
	return c.body.Write(b)
}
