package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/ses-gateway/internal/tracking"
)

// SetupRoutes configures the full route tree.
func SetupRoutes(h *Handlers, wh *WebhookHandler, th *tracking.Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", h.HealthCheck)

	// SNS push endpoint. Authenticated by signature, not by session.
	r.Post("/webhooks/ses", wh.HandleSES)

	r.Route("/api", func(r chi.Router) {
		// Outbound sending and message reads
		r.Post("/messages", h.SendMessage)
		r.Get("/messages", h.ListMessages)
		r.Get("/messages/{messageID}", h.GetMessage)

		// Dashboard
		r.Get("/dashboard/stats", h.GetDashboardStats)

		// Suppression management
		r.Route("/suppressions", func(r chi.Router) {
			r.Get("/", h.ListSuppressions)
			r.Post("/", h.AddSuppression)
			r.Get("/{email}", h.GetSuppression)
			r.Delete("/{email}", h.DeleteSuppression)
		})

		// One-click unsubscribe (opened from email clients, no auth)
		r.Get("/unsubscribe", h.HandleUnsubscribe)

		// Open and click tracking (loaded from email clients, no auth)
		r.Mount("/track", th.Routes())
	})

	return r
}
