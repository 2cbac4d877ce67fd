// Package server exposes the HTTP API over the session registry, the task
// orchestrator, and the notification hub.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/redclaw-sec/redclaw/internal/agent"
	"github.com/redclaw-sec/redclaw/internal/config"
	"github.com/redclaw-sec/redclaw/internal/notify"
	"github.com/redclaw-sec/redclaw/internal/session"
	"github.com/redclaw-sec/redclaw/internal/task"
	"github.com/redclaw-sec/redclaw/internal/telemetry"
)

// Server wires the HTTP surface to the core services.
type Server struct {
	mu     sync.RWMutex
	config config.Config

	registry *session.Registry
	orch     *task.Orchestrator
	hub      *notify.Hub
	factory  *agent.Factory
	metrics  *telemetry.Metrics
	logger   *slog.Logger

	mux       *http.ServeMux
	server    *http.Server
	startTime time.Time
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics enables the /metrics endpoint.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates the HTTP server over the core services.
func New(cfg config.Config, registry *session.Registry, orch *task.Orchestrator, hub *notify.Hub, factory *agent.Factory, opts ...Option) *Server {
	s := &Server{
		config:    cfg,
		registry:  registry,
		orch:      orch,
		hub:       hub,
		factory:   factory,
		logger:    slog.Default(),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /sessions", s.handleCreateSession)
	mux.HandleFunc("GET /sessions", s.handleListSessions)
	mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /sessions/{id}/messages", s.handleSendMessage)
	mux.HandleFunc("GET /sessions/{id}/messages", s.handleListMessages)
	mux.HandleFunc("GET /sessions/{id}/tasks", s.handleListSessionTasks)
	mux.HandleFunc("GET /sessions/{id}/events", s.handleEvents)
	mux.HandleFunc("GET /tasks/{id}", s.handleGetTask)
	mux.HandleFunc("POST /tasks/{id}/cancel", s.handleCancelTask)
	mux.HandleFunc("GET /agents", s.handleListAgents)
	mux.HandleFunc("GET /models", s.handleListModels)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	s.mux = mux

	return s
}

// Handler returns the HTTP handler for use with httptest or custom servers.
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(s.mux)
}

// ListenAndServe starts the HTTP server on the configured address.
func (s *Server) ListenAndServe() error {
	cfg := s.currentConfig()
	s.server = &http.Server{
		Addr:    cfg.Addr,
		Handler: s.Handler(),
	}
	s.logger.Info("server starting", "addr", cfg.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// SetConfig swaps the active configuration; used by the config watcher.
func (s *Server) SetConfig(cfg config.Config) {
	s.mu.Lock()
	s.config = cfg
	s.mu.Unlock()
}

func (s *Server) currentConfig() config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cfg := s.currentConfig()
		origin := "*"
		if len(cfg.CORSOrigins) > 0 {
			origin = cfg.CORSOrigins[0]
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error":   code,
		"message": message,
	})
}
