package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/hallplan/hallplan/internal/job"
	"github.com/hallplan/hallplan/internal/run"
	"github.com/hallplan/hallplan/internal/score"
)

// Server is the hallplan HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
// MCPServer is optional (nil = disabled).
type ServerConfig struct {
	// Required dependencies.
	Executor *job.Executor
	Registry *run.Registry
	Logger   *slog.Logger

	// Optional dependencies.
	MCPServer *mcpserver.MCPServer

	// HTTP server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Version      string

	// Request handling settings.
	Scoring             score.Config
	DefaultMaxCompanies int
	MaxUploadBytes      int64

	// Embedding extension points. ExtraRoutes registrars run against the mux
	// before the middleware chain is applied; Middlewares wrap the whole
	// chain, first registered outermost.
	ExtraRoutes []func(mux *http.ServeMux)
	Middlewares []func(http.Handler) http.Handler
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(cfg.Executor, cfg.Registry, cfg.Logger, cfg.Scoring,
		cfg.Version, cfg.DefaultMaxCompanies, cfg.MaxUploadBytes)

	mux := http.NewServeMux()

	// Optimization job submission.
	mux.HandleFunc("POST /v1/optimize", h.HandleOptimize)

	// Run queries and derived views.
	mux.HandleFunc("GET /v1/runs", h.HandleListRuns)
	mux.HandleFunc("GET /v1/runs/{run_id}", h.HandleGetRun)
	mux.HandleFunc("GET /v1/comparison", h.HandleComparison)
	mux.HandleFunc("GET /v1/remaining", h.HandleRemaining)

	// Session lifecycle.
	mux.HandleFunc("POST /v1/reset", h.HandleReset)

	// MCP StreamableHTTP transport.
	if cfg.MCPServer != nil {
		mcpHTTP := mcpserver.NewStreamableHTTPServer(cfg.MCPServer)
		mux.Handle("/mcp", mcpHTTP)
	}

	// Health (no middleware exemptions needed, the chain is cheap).
	mux.HandleFunc("GET /health", h.HandleHealth)

	// Embedder-supplied routes.
	for _, register := range cfg.ExtraRoutes {
		register(mux)
	}

	// Middleware chain (outermost executes first):
	// request ID → security headers → tracing → logging → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	// Embedder middlewares wrap everything, first registered outermost.
	for i := len(cfg.Middlewares) - 1; i >= 0; i-- {
		handler = cfg.Middlewares[i](handler)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
