package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ignite/ses-gateway/internal/config"
	"github.com/ignite/ses-gateway/internal/tracking"
)

// Server represents the API server
type Server struct {
	config  config.ServerConfig
	handler http.Handler
	server  *http.Server
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, h *Handlers, wh *WebhookHandler, th *tracking.Handler) *Server {
	return &Server{
		config:  cfg,
		handler: SetupRoutes(h, wh, th),
	}
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.handler,
		// Webhook bodies are small; keep the timeouts tight.
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.handler
}
