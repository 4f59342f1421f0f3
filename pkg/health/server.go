// Package health serves liveness, readiness and Prometheus metrics.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const (
	readHeaderTimeout = 5 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
)

// Server exposes the health endpoints.
type Server struct {
	cfg       Config
	server    *http.Server
	mux       *http.ServeMux
	readiness *ReadinessManager
	health    *Manager
	registry  *PrometheusRegistry
	logger    *slog.Logger
}

// NewServer creates a health server from cfg.
func NewServer(cfg Config) (*Server, error) {
	if err := cfg.Parse(); err != nil {
		return nil, fmt.Errorf("invalid health config: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		mux:       http.NewServeMux(),
		readiness: NewReadinessManager(),
		health:    NewHealthManager(),
		registry:  NewPrometheusRegistry(cfg.MetricsNamespace),
		logger:    slog.Default().With("component", "health.server"),
	}

	middleware, err := NewHTTPMiddleware(s.registry)
	if err != nil {
		return nil, err
	}
	s.mux.HandleFunc("GET "+cfg.LivezPath, s.livezHandler)
	s.mux.HandleFunc("GET "+cfg.ReadyzPath, s.readyzHandler)
	s.mux.Handle("GET "+cfg.MetricsPath, s.registry.HTTPHandler())

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           middleware.Wrap(s.mux),
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
	return s, nil
}

// Handler returns the instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Registry returns the metrics registry.
func (s *Server) Registry() *PrometheusRegistry {
	return s.registry
}

// ListenAndServe serves until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info("starting health server", "addr", s.cfg.Addr,
		"livez", s.cfg.LivezPath, "readyz", s.cfg.ReadyzPath, "metrics", s.cfg.MetricsPath)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}

// Shutdown marks the server not ready, stops checkers and closes listeners.
func (s *Server) Shutdown(ctx context.Context) error {
	s.readiness.SetReady(false)
	var errs []error
	if err := s.health.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	return errors.Join(errs...)
}

// SetReady sets the readiness state.
func (s *Server) SetReady(ready bool) {
	s.readiness.SetReady(ready)
}

// IsReady returns the readiness state.
func (s *Server) IsReady() bool {
	return s.readiness.IsReady()
}

// RegisterChecker adds a periodic health check that gates readiness.
func (s *Server) RegisterChecker(name string, interval time.Duration, fn CheckFunc) error {
	return s.health.RegisterChecker(name, interval, fn)
}

type statusResponse struct {
	Status    string            `json:"status"`
	Uptime    string            `json:"uptime,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func (s *Server) livezHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Status:    healthStatusOK,
		Uptime:    s.readiness.Uptime().Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
	})
}

func (s *Server) readyzHandler(w http.ResponseWriter, _ *http.Request) {
	checks, anyFail := s.health.Status()
	resp := statusResponse{Status: healthStatusOK, Checks: checks, Timestamp: time.Now().UTC()}
	code := http.StatusOK
	switch {
	case !s.readiness.IsReady():
		resp.Status = "not ready"
		code = http.StatusServiceUnavailable
	case anyFail:
		resp.Status = healthStatusFail
		resp.Errors = s.health.Errors()
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("failed to encode health response", "error", err)
	}
}
