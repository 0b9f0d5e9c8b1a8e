package job

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("hallplan/job")

// ExecutorConfig holds the external job commands and execution policy.
type ExecutorConfig struct {
	// SpreadsheetCmd and ImageCmd are the leading argv words for the two job
	// variants (e.g. ["python3", "main.py"]). The executor appends the
	// per-execution flags.
	SpreadsheetCmd []string
	ImageCmd       []string
	// WorkDir is the directory the job command runs in (where the optimizer
	// tooling lives). Empty means the process's own working directory.
	WorkDir string
	// Timeout bounds one execution. Zero means wait indefinitely, matching
	// the optimizer's original contract.
	Timeout time.Duration

	Logger *slog.Logger
}

// Executor runs placement jobs, one isolated working directory per call.
// Concurrent calls are independent: nothing is shared between executions.
type Executor struct {
	cfg ExecutorConfig
}

// NewExecutor creates an executor. Both variant commands must be non-empty.
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if len(cfg.SpreadsheetCmd) == 0 || len(cfg.ImageCmd) == 0 {
		return nil, fmt.Errorf("job: both spreadsheet and image commands are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Executor{cfg: cfg}, nil
}

// Execute runs one optimization job to completion and parses its result.
// The returned error is one of *ExecError (non-zero exit), *ResultError
// (zero exit, unusable result document), *ResourceError (working storage),
// or a validation error. The working directory is removed on every path.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	kind := KindForLayout(req.LayoutName)
	ctx, span := tracer.Start(ctx, "job.execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("job.kind", string(kind)),
		attribute.Int("job.companies", len(req.Companies)),
	)

	dir, err := os.MkdirTemp("", "hallplan-job-")
	if err != nil {
		return nil, &ResourceError{Op: "provision", Err: err}
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			e.cfg.Logger.Error("job workspace cleanup failed", "dir", dir, "error", rmErr)
		}
	}()

	layoutPath := filepath.Join(dir, filepath.Base(req.LayoutName))
	if err := os.WriteFile(layoutPath, req.Layout, 0o600); err != nil {
		return nil, &ResourceError{Op: "materialize layout", Err: err}
	}
	companiesJSON, err := json.Marshal(req.Companies)
	if err != nil {
		return nil, &ResourceError{Op: "encode companies", Err: err}
	}
	companiesPath := filepath.Join(dir, "companies.json")
	if err := os.WriteFile(companiesPath, companiesJSON, 0o600); err != nil {
		return nil, &ResourceError{Op: "materialize companies", Err: err}
	}

	plotPath := filepath.Join(dir, "plot.png")
	resultPath := filepath.Join(dir, "result.json")
	argv := e.buildArgv(kind, req, layoutPath, companiesPath, plotPath, resultPath)

	runCtx := ctx
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = e.cfg.WorkDir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// The optimizer spawns subprocesses that inherit the output pipes.
	// Killing only the direct child would leave Run blocked until every
	// inheritor exits, so the job gets its own process group and cancellation
	// kills the whole group. WaitDelay covers descendants that escaped the
	// group and still hold a pipe open.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
	cmd.WaitDelay = 3 * time.Second

	start := time.Now()
	e.cfg.Logger.Info("optimizer starting", "kind", kind, "layout", req.LayoutName, "companies", len(req.Companies))
	runErr := cmd.Run()
	e.cfg.Logger.Info("optimizer finished", "kind", kind, "duration_ms", time.Since(start).Milliseconds(), "error", runErr)

	if runErr != nil {
		execErr := &ExecError{ExitCode: -1, Stdout: stdout.String(), Stderr: stderr.String()}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			execErr.ExitCode = exitErr.ExitCode()
		}
		if execErr.Diagnostic() == "" {
			// Start failures (missing binary, cancelled context) produce no
			// streams; carry the Go error text instead.
			execErr.Stderr = runErr.Error()
		}
		return nil, execErr
	}

	res, err := parseResult(resultPath)
	if err != nil {
		return nil, err
	}
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	// The plot is optional; its absence is not an error.
	if plot, err := os.ReadFile(plotPath); err == nil {
		res.Plot = plot
	}

	span.SetAttributes(
		attribute.Int("job.booths", res.BoothCount),
		attribute.Int("job.placed", res.PlacedCount),
	)
	return res, nil
}

func (e *Executor) buildArgv(kind LayoutKind, req Request, layoutPath, companiesPath, plotPath, resultPath string) []string {
	var argv []string
	switch kind {
	case LayoutSpreadsheet:
		argv = append(argv, e.cfg.SpreadsheetCmd...)
		argv = append(argv, "--layout-file", layoutPath)
	default:
		argv = append(argv, e.cfg.ImageCmd...)
		argv = append(argv,
			"--image", layoutPath,
			"--min-area", strconv.FormatFloat(req.MinArea, 'f', -1, 64),
			"--max-area", strconv.FormatFloat(req.MaxArea, 'f', -1, 64),
		)
	}
	argv = append(argv,
		"--companies-json", companiesPath,
		"--max-companies", strconv.Itoa(req.MaxCompanies),
		"--plot-file", plotPath,
		"--json-out", resultPath,
	)
	if kind == LayoutImage && req.Invert {
		argv = append(argv, "--invert")
	}
	return argv
}

// resultDocument is the machine-readable document the job writes on success.
type resultDocument struct {
	Booths         int                `json:"booths"`
	Placed         int                `json:"placed"`
	MinDistance    float64            `json:"min_distance"`
	TypicalSpacing *float64           `json:"typical_spacing,omitempty"`
	Assignments    []ResultAssignment `json:"assignments"`
	Unplaced       []string           `json:"unplaced"`
	BigCompanies   []string           `json:"big_companies,omitempty"`
}

func parseResult(path string) (*Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ResultError{Reason: "result document missing", Err: err}
	}
	var doc resultDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &ResultError{Reason: "result document malformed", Err: err}
	}
	if doc.Booths < 0 || doc.Placed < 0 || doc.Placed > doc.Booths {
		return nil, &ResultError{Reason: fmt.Sprintf("inconsistent counts: placed %d of %d booths", doc.Placed, doc.Booths)}
	}
	if doc.MinDistance < 0 {
		return nil, &ResultError{Reason: "negative min distance"}
	}
	return &Result{
		BoothCount:     doc.Booths,
		PlacedCount:    doc.Placed,
		MinDistance:    doc.MinDistance,
		TypicalSpacing: doc.TypicalSpacing,
		Assignments:    doc.Assignments,
		Unplaced:       doc.Unplaced,
		BigCompanies:   doc.BigCompanies,
	}, nil
}
