package http

import (
	"github.com/flightapp/booking-service/internal/observability"
	"github.com/flightapp/booking-service/internal/rateLimit"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl *rateLimit.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)

	r.Route("/api/flight", func(r chi.Router) {
		r.Use(AuthMiddleware)
		r.Use(RateLimitMiddleware(rl))
		r.Use(IdempotencyKeyMiddleware)

		r.Post("/booking/{departureFlightId}", h.BookTicket)
		r.Get("/ticket/{pnr}", h.GetTicket)
		r.Get("/booking/history", h.History)
		r.Delete("/booking/cancel/{pnr}", h.CancelBooking)
	})

	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
