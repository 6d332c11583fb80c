package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rov-control/rovd/internal/auth"
	"github.com/rov-control/rovd/internal/config"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Deps are the components the server routes to. Companion and Streams may
// be nil; their endpoints then answer UNAVAILABLE.
type Deps struct {
	Orchestrator OrchestratorPort
	Telemetry    TelemetryPort
	Companion    CompanionPort
	Streams      StreamPort
	Auth         *auth.Middleware
	Logger       *slog.Logger
}

// Timeouts bound the HTTP server.
type Timeouts struct {
	Read     time.Duration
	Write    time.Duration
	Idle     time.Duration
	Shutdown time.Duration
}

// TimeoutsFromConfig maps the API section of cfg onto Timeouts.
func TimeoutsFromConfig(cfg *config.Config) Timeouts {
	return Timeouts{
		Read:     cfg.ReadTimeout,
		Write:    cfg.WriteTimeout,
		Idle:     cfg.IdleTimeout,
		Shutdown: cfg.ShutdownTimeout,
	}
}

// Server represents the HTTP API server.
type Server struct {
	httpServer     *http.Server
	orchestrator   OrchestratorPort
	telemetry      TelemetryPort
	companion      CompanionPort
	streams        StreamPort
	authMiddleware *auth.Middleware
	logger         *slog.Logger
	timeouts       Timeouts
	startTime      time.Time
}

// NewServer creates a new API server. A nil Auth admits every request.
func NewServer(deps Deps, timeouts Timeouts) *Server {
	authMiddleware := deps.Auth
	if authMiddleware == nil {
		authMiddleware = auth.NewMiddleware(nil)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if timeouts.Shutdown <= 0 {
		timeouts.Shutdown = 30 * time.Second
	}
	return &Server{
		orchestrator:   deps.Orchestrator,
		telemetry:      deps.Telemetry,
		companion:      deps.Companion,
		streams:        deps.Streams,
		authMiddleware: authMiddleware,
		logger:         logger.With("component", "api"),
		timeouts:       timeouts,
		startTime:      time.Now(),
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

// Start serves on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.timeouts.Read,
		WriteTimeout: s.timeouts.Write,
		IdleTimeout:  s.timeouts.Idle,
	}

	s.logger.Info("http server listening", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.timeouts.Shutdown)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}
