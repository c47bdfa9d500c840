/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the back office frontend

SECURITY NOTE:
  Authentication and authorization are handled upstream by the platform
  gateway; all endpoints here trust their caller.
*/
package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// timeNow is swapped in tests that need a fixed "today".
var timeNow = time.Now

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.CreateOrder)
			r.Get("/{id}", h.GetOrder)
			r.Get("/{id}/schedule", h.GetSchedule)
			r.Get("/{id}/events", h.GetEvents)
			r.Post("/{id}/submit", h.SubmitOrder)
			r.Post("/{id}/cancel", h.CancelOrder)
			r.Post("/{id}/withdraw", h.WithdrawOrder)
			r.Post("/{id}/refund", h.BeginRefund)
			r.Post("/{id}/installments/{installmentID}/refund", h.RefundInstallment)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/notifications", h.HandlePaymentNotification)
		})

		r.Route("/config", func(r chi.Router) {
			r.Get("/schedule-limits", h.GetScheduleLimits)
		})
	})

	return r
}
