package hallplan

import (
	"log/slog"
	"net/http"
	"time"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported; callers use the With* functions.
type resolvedOptions struct {
	port            int
	logger          *slog.Logger
	version         string
	spreadsheetCmd  []string
	imageCmd        []string
	jobWorkDir      string
	jobTimeout      time.Duration
	enableMCP       bool
	mcpSet          bool
	routeRegistrars []func(mux *http.ServeMux)
	middlewares     []func(http.Handler) http.Handler
}

// WithPort overrides the TCP port from config (HALLPLAN_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithJobCommands overrides the argv prefixes for the two optimizer variants
// (HALLPLAN_SPREADSHEET_JOB and HALLPLAN_IMAGE_JOB env vars).
func WithJobCommands(spreadsheet, image []string) Option {
	return func(o *resolvedOptions) {
		o.spreadsheetCmd = spreadsheet
		o.imageCmd = image
	}
}

// WithJobWorkDir overrides the directory the optimizer tooling runs in
// (HALLPLAN_JOB_WORKDIR env var).
func WithJobWorkDir(dir string) Option {
	return func(o *resolvedOptions) { o.jobWorkDir = dir }
}

// WithJobTimeout overrides the per-job deadline (HALLPLAN_JOB_TIMEOUT env var).
// Zero means wait indefinitely.
func WithJobTimeout(d time.Duration) Option {
	return func(o *resolvedOptions) { o.jobTimeout = d }
}

// WithMCP enables or disables the MCP endpoint at /mcp (HALLPLAN_MCP env var).
func WithMCP(enabled bool) Option {
	return func(o *resolvedOptions) {
		o.enableMCP = enabled
		o.mcpSet = true
	}
}

// WithExtraRoutes registers additional routes on the shared HTTP mux.
// Multiple registrars may be registered; all are called in registration order.
func WithExtraRoutes(fn func(mux *http.ServeMux)) Option {
	return func(o *resolvedOptions) { o.routeRegistrars = append(o.routeRegistrars, fn) }
}

// WithMiddleware registers an outermost HTTP middleware.
// Multiple middlewares may be registered. Applied in registration order:
// the first-registered middleware is outermost (called first by every request).
func WithMiddleware(mw func(http.Handler) http.Handler) Option {
	return func(o *resolvedOptions) { o.middlewares = append(o.middlewares, mw) }
}
