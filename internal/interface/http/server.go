// Package http implements the REST surface of the achievement service:
// event ingestion for platform collaborators, per-user progress listings,
// catalog administration, and health checks.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Config contains HTTP server configuration.
type Config struct {
	// Host - address to bind (default: "0.0.0.0").
	Host string

	// Port - port to listen on (default: 8080).
	Port int

	// ReadTimeout - maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout - maximum duration for writing the response.
	WriteTimeout time.Duration

	// IdleTimeout - maximum duration for idle connections.
	IdleTimeout time.Duration

	// AdminKeyHash is the bcrypt hash of the admin API key. Empty disables
	// the administration endpoints.
	AdminKeyHash string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Server is the HTTP server for the achievement service.
type Server struct {
	config  Config
	httpSrv *http.Server
	logger  *slog.Logger
}

// NewServer creates a Server routing requests to the given handler set.
func NewServer(config Config, h *Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http_server")

	return &Server{
		config: config,
		httpSrv: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
			Handler:      newRouter(config, h, logger),
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
		logger: logger,
	}
}

// newRouter builds the route table wrapped in the middleware chain.
func newRouter(config Config, h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("POST /api/v1/events", h.IngestEvent)
	mux.HandleFunc("GET /api/v1/users/{id}/achievements", h.ListUserAchievements)
	mux.HandleFunc("GET /api/v1/achievements", h.ListAchievements)

	admin := adminAuth(config.AdminKeyHash, logger)
	mux.Handle("POST /api/v1/admin/achievements", admin(http.HandlerFunc(h.CreateAchievement)))

	var root http.Handler = mux
	root = recoverPanics(root, logger)
	root = logRequests(root, logger)
	return root
}

// Start begins serving. It blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpSrv.Shutdown(ctx)
}
