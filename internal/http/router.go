package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robertarktes/hotel-booking-web/internal/idempotency"
	"github.com/robertarktes/hotel-booking-web/internal/observability"
	"github.com/robertarktes/hotel-booking-web/internal/rateLimit"
)

// SetupRouter wires the routes. rl and idemp may be nil, which disables rate limiting and
// idempotent room submissions respectively.
func SetupRouter(h *Handlers, logger observability.Logger, rl *rateLimit.RateLimiter, idemp *idempotency.Idempotency) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)
	if rl != nil {
		r.Use(RateLimitMiddleware(rl, logger))
	}

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", h.Healthz)
		r.Get("/readyz", h.Readyz)

		r.Post("/auth/login", h.Login)
		r.Post("/auth/register", h.Register)
		r.Post("/auth/logout", h.Logout)

		r.Get("/rooms", h.Rooms)
		r.Get("/rooms/types", h.RoomTypes)
		r.Get("/rooms/available", h.AvailableRooms)
		r.Get("/rooms/{id}", h.Room)
		r.Get("/extras", h.ExtraServices)

		r.Group(func(r chi.Router) {
			r.Use(SessionMiddleware(h.sessions, h.forget))

			r.Get("/me", h.Profile)
			r.Delete("/me", h.DeleteAccount)

			r.Get("/history", h.History)
			r.Post("/history/{id}/cancel", h.CancelFromHistory)

			r.Get("/bookings/{ref}", h.FindBooking)
			r.Post("/bookings/{ref}/cancel", h.CancelDetail)
			r.Post("/rooms/{id}/bookings", h.BookRoom)

			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireRole(roleAdmin))

				r.Get("/bookings", h.AllBookings)
				r.Post("/bookings/{id}/cancel", h.CancelFromManage)

				r.Get("/rooms/{id}/edit", h.EditRoomForm)
				r.Put("/rooms/{id}", h.UpdateRoom)
				r.Delete("/rooms/{id}", h.DeleteRoom)
				r.Group(func(r chi.Router) {
					if idemp != nil {
						r.Use(IdempotencyMiddleware(idemp))
					}
					r.Post("/rooms", h.AddRoom)
				})

				r.Get("/audit", h.AuditLog)
			})
		})
	})

	return r
}
