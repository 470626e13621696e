// Package web provides the HTTP server and handlers for spreadsheet ingestion.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/salesingest/internal/config"
	"github.com/JonMunkholm/salesingest/internal/core"
	"github.com/JonMunkholm/salesingest/internal/metrics"
	"github.com/JonMunkholm/salesingest/internal/web/middleware"
)

// Backend is the part of the record store the HTTP layer reads directly.
type Backend interface {
	Ping(ctx context.Context) error
	RecentLogEntries(ctx context.Context, limit int) ([]core.LogEntry, error)
}

// Server is the HTTP server for the ingestion service.
type Server struct {
	service *core.Service
	backend Backend
	metrics *metrics.Metrics
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
	started time.Time
}

// NewServer creates a Server. m may be nil when metrics are disabled.
func NewServer(service *core.Service, backend Backend, m *metrics.Metrics, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		backend: backend,
		metrics: m,
		cfg:     cfg,
		router:  chi.NewRouter(),
		started: time.Now(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(s.metrics.Middleware)
	s.router.Use(middleware.CORS(s.cfg.CORS.AllowedOrigins))
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))

		r.Get("/", s.handleBanner)
		r.Get("/health", s.handleHealth)
		r.Get("/api/ingestions", s.handleListIngestions)
	})

	// Uploads get their own, longer deadline.
	s.router.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(s.cfg.Upload.Timeout))

		r.Post("/api/uploads", s.handleUploadSingle)
		r.Post("/api/uploads/all-sheets", s.handleUploadAllSheets)
	})

	if s.cfg.Metrics.Enabled && s.metrics != nil {
		s.router.Method(http.MethodGet, s.cfg.Metrics.Path, s.metrics.Handler())
	}
}

// Start begins listening for HTTP requests on the configured address.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
// Encoding errors are only logged since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
