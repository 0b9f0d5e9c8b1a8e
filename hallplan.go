// Package hallplan is the public API for embedding the hallplan booth
// placement server.
//
// Consumers import this package to construct and extend the server without
// forking it:
//
//	app, err := hallplan.New(
//	    hallplan.WithVersion(version),
//	    hallplan.WithLogger(logger),
//	    hallplan.WithExtraRoutes(myRoutes),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The import graph enforces a strict no-cycle rule: hallplan (root) imports
// internal/*, but internal/* never imports hallplan (root). Public types
// (Run, Assignment) are standalone structs with no internal imports; the
// conversion helper toPublicRun lives here because this is the only file
// that sees both sides of the boundary.
package hallplan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/hallplan/hallplan/internal/config"
	"github.com/hallplan/hallplan/internal/job"
	"github.com/hallplan/hallplan/internal/mcp"
	"github.com/hallplan/hallplan/internal/model"
	"github.com/hallplan/hallplan/internal/run"
	"github.com/hallplan/hallplan/internal/score"
	"github.com/hallplan/hallplan/internal/server"
	"github.com/hallplan/hallplan/internal/telemetry"
)

// App is the hallplan server lifecycle. Construct with New(), run with Run().
// App has no public fields; use New() options to configure it.
type App struct {
	cfg          config.Config
	srv          *server.Server
	registry     *run.Registry
	otelShutdown func(context.Context) error
	logger       *slog.Logger
	version      string
}

// New initialises the hallplan server. It loads configuration, wires the job
// executor, run registry, and HTTP server, and returns a ready-to-run App.
// It does NOT start any goroutines or accept HTTP connections; call Run().
func New(opts ...Option) (*App, error) {
	// Apply options.
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	// Load configuration (env vars), then apply option overrides.
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if len(o.spreadsheetCmd) > 0 {
		cfg.SpreadsheetJobCmd = o.spreadsheetCmd
	}
	if len(o.imageCmd) > 0 {
		cfg.ImageJobCmd = o.imageCmd
	}
	if o.jobWorkDir != "" {
		cfg.JobWorkDir = o.jobWorkDir
	}
	if o.jobTimeout > 0 {
		cfg.JobTimeout = o.jobTimeout
	}
	if o.mcpSet {
		cfg.EnableMCP = o.enableMCP
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("hallplan starting", "version", version, "port", cfg.Port)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	// Executor for the external optimizer processes.
	executor, err := job.NewExecutor(job.ExecutorConfig{
		SpreadsheetCmd: cfg.SpreadsheetJobCmd,
		ImageCmd:       cfg.ImageJobCmd,
		WorkDir:        cfg.JobWorkDir,
		Timeout:        cfg.JobTimeout,
		Logger:         logger,
	})
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("executor: %w", err)
	}

	// Scoring calibration shared by HTTP and MCP handlers.
	scoring := score.Config{
		SpacingMultiplier: cfg.ScoreSpacingMultiplier,
		FallbackBaseline:  cfg.ScoreFallbackBaseline,
	}

	// In-memory run registry. State lives for the process lifetime only.
	registry := run.NewRegistry()

	// MCP server, mounted at /mcp when enabled.
	var mcpSrv *mcpserver.MCPServer
	if cfg.EnableMCP {
		mcpSrv = mcp.New(registry, scoring, version, logger).MCPServer()
		logger.Info("mcp: enabled")
	}

	srv := server.New(server.ServerConfig{
		Executor:            executor,
		Registry:            registry,
		Logger:              logger,
		MCPServer:           mcpSrv,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		Scoring:             scoring,
		DefaultMaxCompanies: cfg.DefaultMaxCompanies,
		MaxUploadBytes:      cfg.MaxUploadBytes,
		ExtraRoutes:         o.routeRegistrars,
		Middlewares:         o.middlewares,
	})

	return &App{
		cfg:          cfg,
		srv:          srv,
		registry:     registry,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled or a fatal
// server error occurs. On return, Shutdown is called automatically; callers
// should not call Shutdown separately.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	return a.Shutdown(context.Background())
}

// Shutdown drains in-flight HTTP requests, then closes the OTEL provider.
// In-flight optimization jobs get the same drain window as ordinary requests.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("hallplan shutting down")

	httpCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := a.srv.Shutdown(httpCtx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}

	_ = a.otelShutdown(context.Background())

	a.logger.Info("hallplan stopped")
	return nil
}

// Handler returns the root HTTP handler, for embedding the App into an
// existing server or for tests.
func (a *App) Handler() http.Handler {
	return a.srv.Handler()
}

// Runs returns all recorded runs in submission order.
func (a *App) Runs() []Run {
	internal := a.registry.Runs()
	out := make([]Run, 0, len(internal))
	for _, r := range internal {
		out = append(out, toPublicRun(r))
	}
	return out
}

// Remaining returns the companies from the requested pool that no recorded
// run has placed yet, in requested order.
func (a *App) Remaining() []string {
	return a.registry.Remaining()
}

// Reset discards all recorded runs and the requested pool.
func (a *App) Reset() {
	a.registry.Reset()
}

// toPublicRun converts an internal run record to the public representation.
func toPublicRun(r model.Run) Run {
	assignments := make([]Assignment, 0, len(r.Assignments))
	for _, asn := range r.Assignments {
		assignments = append(assignments, Assignment{
			Company: asn.Company,
			Booth:   asn.Booth,
			X:       asn.X,
			Y:       asn.Y,
		})
	}
	return Run{
		ID:           r.ID,
		Mode:         RunMode(r.Mode),
		LayoutName:   r.LayoutName,
		RoomLabel:    r.RoomLabel,
		BoothCount:   r.BoothCount,
		PlacedCount:  r.PlacedCount,
		Score:        r.Score,
		Assignments:  assignments,
		Unplaced:     r.Unplaced,
		BigCompanies: r.BigCompanies,
		CreatedAt:    r.CreatedAt,
	}
}
