// Package job invokes the external placement optimizer as a single
// synchronous unit of work.
//
// Each execution gets a fresh working directory holding the layout artifact
// and the serialized company list; the job writes its structured result and
// an optional plot into the same directory, and the directory is removed on
// every exit path. The optimizer's algorithm is opaque to this package;
// only the process contract (argv, exit status, result document) is known.
package job

import (
	"fmt"
	"path/filepath"
	"strings"
)

// LayoutKind selects the job variant for a layout artifact.
type LayoutKind string

const (
	// LayoutSpreadsheet runs the parse-then-place job (booth coordinates
	// already tabulated).
	LayoutSpreadsheet LayoutKind = "spreadsheet"
	// LayoutImage runs the extract-then-place job (booths detected from an
	// image or PDF first).
	LayoutImage LayoutKind = "image"
)

// KindForLayout resolves the job variant from the artifact's file extension.
// Kind selection is by extension, not content sniffing; anything that is not
// a spreadsheet is handed to the image pipeline.
func KindForLayout(filename string) LayoutKind {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xls", ".csv":
		return LayoutSpreadsheet
	default:
		return LayoutImage
	}
}

// Request describes one optimization job.
type Request struct {
	// LayoutName is the uploaded artifact's filename; its extension picks
	// the job variant.
	LayoutName string
	// Layout is the raw artifact content.
	Layout []byte
	// Companies is the ordered pool of companies to place.
	Companies []string
	// MaxCompanies caps how many companies the job may place.
	MaxCompanies int

	// Image-variant tuning. Ignored by the spreadsheet variant.
	MinArea float64
	MaxArea float64
	Invert  bool
}

// Validate checks the request before any resources are provisioned.
func (r Request) Validate() error {
	if r.LayoutName == "" || len(r.Layout) == 0 {
		return fmt.Errorf("layout artifact is required")
	}
	if len(r.Companies) == 0 {
		return fmt.Errorf("company list is empty")
	}
	if r.MaxCompanies <= 0 {
		return fmt.Errorf("max companies must be positive")
	}
	return nil
}

// Result is the parsed output of a successful job execution.
type Result struct {
	BoothCount     int
	PlacedCount    int
	MinDistance    float64
	TypicalSpacing *float64
	Assignments    []ResultAssignment
	Unplaced       []string
	BigCompanies   []string

	// Plot is the rendered visualization, nil when the job produced none.
	Plot []byte
	// Stdout and Stderr are the job's complete diagnostic streams.
	Stdout string
	Stderr string
}

// ResultAssignment is one company-to-booth placement in the result document.
type ResultAssignment struct {
	Company string   `json:"company"`
	Booth   int      `json:"booth"`
	X       *float64 `json:"x,omitempty"`
	Y       *float64 `json:"y,omitempty"`
}

// ExecError reports a job that exited non-zero (or could not run at all).
// No result document is parsed when this is returned.
type ExecError struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("optimizer exited with status %d: %s", e.ExitCode, firstLine(e.Diagnostic()))
}

// Diagnostic returns the error stream, falling back to the output stream
// when stderr is empty.
func (e *ExecError) Diagnostic() string {
	if strings.TrimSpace(e.Stderr) != "" {
		return e.Stderr
	}
	return e.Stdout
}

// ResultError reports a job that exited zero but produced a missing or
// unusable result document. This is a job/orchestrator contract mismatch,
// not a user input problem.
type ResultError struct {
	Reason string
	Err    error
}

func (e *ResultError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("optimizer result unusable: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("optimizer result unusable: %s", e.Reason)
}

func (e *ResultError) Unwrap() error { return e.Err }

// ResourceError reports a failure to provision or tear down working storage.
// Not user-actionable; surfaced to callers as a generic failure.
type ResourceError struct {
	Op  string
	Err error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("job workspace %s: %v", e.Op, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
