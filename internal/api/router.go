/**
 * @description
 * This file sets up the HTTP router for the sharepod service. It defines the
 * API endpoints, associates them with their corresponding handlers, and
 * applies middleware for logging, panic recovery, timeouts and authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oyosokoto/sharepod-backend/internal/metrics"
)

// Routes creates and returns the router for the sharepod service.
func Routes(h *PodHandlers, wh *WebhookHandlers, jwtSecret string, jwtIssuer string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// The processor signs webhook deliveries itself, so they bypass
		// bearer auth.
		r.Post("/payment/webhook", wh.PaymentWebhookHandler)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(jwtSecret, jwtIssuer))

			r.Post("/pods", h.CreatePodHandler)
			r.Get("/pods", h.ListPodsHandler)
			r.Post("/pods/join", h.JoinPodHandler)
			r.Get("/pods/{id}", h.GetPodHandler)
			r.Post("/pods/{id}/custom-amount", h.SetCustomAmountHandler)
			r.Post("/pods/{id}/close", h.ClosePodHandler)
			r.Post("/pods/{id}/reopen", h.ReopenPodHandler)
			r.Get("/pods/{id}/eligibility", h.EligibilityHandler)

			r.Post("/payment/create-session", h.CreateSessionHandler)
			r.Get("/transactions", h.ListTransactionsHandler)
		})
	})

	return r
}
