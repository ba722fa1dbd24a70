// Package server exposes the assistant's HTTP + WebSocket API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/domain"
	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/server/handler"
	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/server/middleware"
	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string

	// Limiter, when set, applies a per-client request limit across the API.
	Limiter    domain.RateLimiter
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health  *handler.HealthHandler
	State   *handler.StateHandler
	Trades  *handler.TradesHandler
	Control *handler.ControlHandler
}

// Server is the headless HTTP + WebSocket API server for the assistant.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS) and attaches the WebSocket hub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// State projection endpoints.
	mux.HandleFunc("GET /api/state", handlers.State.GetProjection)
	mux.HandleFunc("GET /api/state/metrics", handlers.State.GetMetrics)
	mux.HandleFunc("GET /api/state/learning", handlers.State.GetLearning)

	// Settled-trade history.
	mux.HandleFunc("GET /api/trades/recent", handlers.Trades.ListRecent)

	// Control operations.
	mux.HandleFunc("POST /api/control/reset", handlers.Control.Reset)
	mux.HandleFunc("POST /api/control/martingale", handlers.Control.SetMartingale)
	mux.HandleFunc("POST /api/control/risk-config", handlers.Control.UpdateRiskConfig)
	mux.HandleFunc("POST /api/control/confirm-session", handlers.Control.ConfirmSession)
	mux.HandleFunc("POST /api/control/kill-switch", handlers.Control.KillSwitch)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux
	if cfg.Limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(cfg.Limiter, cfg.RateLimit, cfg.RateWindow)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
