package job_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hallplan/hallplan/internal/job"
)

// stubJob writes a shell script standing in for the external optimizer and
// returns the argv words to invoke it.
func stubJob(t *testing.T, dir, body string) []string {
	t.Helper()
	script := "#!/bin/sh\n" + `
json_out=""
plot_file=""
printf '%s\n' "$@" > args.txt
while [ "$#" -gt 0 ]; do
	case "$1" in
	--json-out) json_out="$2"; shift 2 ;;
	--plot-file) plot_file="$2"; shift 2 ;;
	*) shift ;;
	esac
done
` + body
	path := filepath.Join(dir, "optimizer.sh")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return []string{"/bin/sh", path}
}

const goodResult = `cat > "$json_out" <<'EOF'
{
  "booths": 5,
  "placed": 3,
  "min_distance": 8.0,
  "typical_spacing": 4.0,
  "assignments": [
    {"company": "Acme", "booth": 1, "x": 0.5, "y": 1.0},
    {"company": "Globex", "booth": 3},
    {"company": "Initech", "booth": 4}
  ],
  "unplaced": []
}
EOF
`

func newExecutor(t *testing.T, workDir string, cmd []string, timeout time.Duration) *job.Executor {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	e, err := job.NewExecutor(job.ExecutorConfig{
		SpreadsheetCmd: cmd,
		ImageCmd:       cmd,
		WorkDir:        workDir,
		Timeout:        timeout,
		Logger:         logger,
	})
	require.NoError(t, err)
	return e
}

func baseRequest() job.Request {
	return job.Request{
		LayoutName:   "layout.xlsx",
		Layout:       []byte("fake spreadsheet"),
		Companies:    []string{"Acme", "Globex", "Initech"},
		MaxCompanies: 200,
		MinArea:      400,
		MaxArea:      100000,
	}
}

func TestKindForLayout(t *testing.T) {
	assert.Equal(t, job.LayoutSpreadsheet, job.KindForLayout("floor.xlsx"))
	assert.Equal(t, job.LayoutSpreadsheet, job.KindForLayout("floor.XLS"))
	assert.Equal(t, job.LayoutSpreadsheet, job.KindForLayout("floor.csv"))
	assert.Equal(t, job.LayoutImage, job.KindForLayout("floor.png"))
	assert.Equal(t, job.LayoutImage, job.KindForLayout("floor.pdf"))
	assert.Equal(t, job.LayoutImage, job.KindForLayout("floor"))
}

func TestExecute_Success(t *testing.T) {
	work := t.TempDir()
	exec := newExecutor(t, work, stubJob(t, work, goodResult+`printf 'solved\n'`), 0)

	res, err := exec.Execute(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.Equal(t, 5, res.BoothCount)
	assert.Equal(t, 3, res.PlacedCount)
	assert.Equal(t, 8.0, res.MinDistance)
	require.NotNil(t, res.TypicalSpacing)
	assert.Equal(t, 4.0, *res.TypicalSpacing)
	assert.Len(t, res.Assignments, 3)
	assert.Empty(t, res.Unplaced)
	assert.Nil(t, res.Plot, "no plot file written")
	assert.Contains(t, res.Stdout, "solved")
}

func TestExecute_PicksUpPlot(t *testing.T) {
	work := t.TempDir()
	body := goodResult + `printf 'not-really-a-png' > "$plot_file"` + "\n"
	exec := newExecutor(t, work, stubJob(t, work, body), 0)

	res, err := exec.Execute(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.Equal(t, []byte("not-really-a-png"), res.Plot)
}

func TestExecute_NonZeroExit(t *testing.T) {
	work := t.TempDir()
	exec := newExecutor(t, work, stubJob(t, work, `echo "solver infeasible" >&2; exit 3`), 0)

	_, err := exec.Execute(context.Background(), baseRequest())
	var execErr *job.ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, 3, execErr.ExitCode)
	assert.Contains(t, execErr.Diagnostic(), "solver infeasible")
}

func TestExecute_DiagnosticFallsBackToStdout(t *testing.T) {
	work := t.TempDir()
	exec := newExecutor(t, work, stubJob(t, work, `echo "wrote nothing to stderr"; exit 1`), 0)

	_, err := exec.Execute(context.Background(), baseRequest())
	var execErr *job.ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, execErr.Diagnostic(), "wrote nothing to stderr")
}

func TestExecute_MissingResultDocument(t *testing.T) {
	work := t.TempDir()
	exec := newExecutor(t, work, stubJob(t, work, `exit 0`), 0)

	_, err := exec.Execute(context.Background(), baseRequest())
	var resErr *job.ResultError
	require.ErrorAs(t, err, &resErr)
	assert.Contains(t, resErr.Error(), "missing")
}

func TestExecute_MalformedResultDocument(t *testing.T) {
	work := t.TempDir()
	exec := newExecutor(t, work, stubJob(t, work, `printf 'not json' > "$json_out"`), 0)

	_, err := exec.Execute(context.Background(), baseRequest())
	var resErr *job.ResultError
	require.ErrorAs(t, err, &resErr)
}

func TestExecute_InconsistentCounts(t *testing.T) {
	work := t.TempDir()
	body := `cat > "$json_out" <<'EOF'
{"booths": 2, "placed": 5, "min_distance": 1.0, "assignments": [], "unplaced": []}
EOF
`
	exec := newExecutor(t, work, stubJob(t, work, body), 0)

	_, err := exec.Execute(context.Background(), baseRequest())
	var resErr *job.ResultError
	require.ErrorAs(t, err, &resErr)
	assert.Contains(t, resErr.Error(), "inconsistent counts")
}

func TestExecute_CleansUpWorkspace(t *testing.T) {
	work := t.TempDir()
	// The stub records the per-execution workspace so the test can verify it
	// is gone afterwards. args.txt lands in WorkDir; the workspace path is
	// the directory of --json-out.
	body := `echo "$(dirname "$json_out")" > workspace.txt
` + goodResult
	exec := newExecutor(t, work, stubJob(t, work, body), 0)

	_, err := exec.Execute(context.Background(), baseRequest())
	require.NoError(t, err)

	recorded, err := os.ReadFile(filepath.Join(work, "workspace.txt"))
	require.NoError(t, err)
	workspace := strings.TrimSpace(string(recorded))
	require.NotEmpty(t, workspace)
	_, statErr := os.Stat(workspace)
	assert.True(t, os.IsNotExist(statErr), "workspace %s should be removed", workspace)
}

func TestExecute_CleansUpOnFailure(t *testing.T) {
	work := t.TempDir()
	body := `echo "$(dirname "$json_out")" > workspace.txt
exit 2`
	exec := newExecutor(t, work, stubJob(t, work, body), 0)

	_, err := exec.Execute(context.Background(), baseRequest())
	require.Error(t, err)

	recorded, err := os.ReadFile(filepath.Join(work, "workspace.txt"))
	require.NoError(t, err)
	workspace := strings.TrimSpace(string(recorded))
	_, statErr := os.Stat(workspace)
	assert.True(t, os.IsNotExist(statErr), "workspace should be removed on job failure too")
}

func TestExecute_VariantFlags(t *testing.T) {
	work := t.TempDir()
	exec := newExecutor(t, work, stubJob(t, work, goodResult), 0)

	req := baseRequest()
	req.LayoutName = "layout.png"
	req.Invert = true
	_, err := exec.Execute(context.Background(), req)
	require.NoError(t, err)

	args, err := os.ReadFile(filepath.Join(work, "args.txt"))
	require.NoError(t, err)
	got := string(args)
	assert.Contains(t, got, "--image")
	assert.Contains(t, got, "--min-area")
	assert.Contains(t, got, "--invert")
	assert.Contains(t, got, "--max-companies")
	assert.NotContains(t, got, "--layout-file")
}

func TestExecute_SpreadsheetFlags(t *testing.T) {
	work := t.TempDir()
	exec := newExecutor(t, work, stubJob(t, work, goodResult), 0)

	_, err := exec.Execute(context.Background(), baseRequest())
	require.NoError(t, err)

	args, err := os.ReadFile(filepath.Join(work, "args.txt"))
	require.NoError(t, err)
	got := string(args)
	assert.Contains(t, got, "--layout-file")
	assert.NotContains(t, got, "--image")
	assert.NotContains(t, got, "--invert")
}

func TestExecute_Timeout(t *testing.T) {
	work := t.TempDir()
	exec := newExecutor(t, work, stubJob(t, work, `sleep 10`), 100*time.Millisecond)

	start := time.Now()
	_, err := exec.Execute(context.Background(), baseRequest())
	var execErr *job.ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExecute_TimeoutKillsSpawnedChildren(t *testing.T) {
	work := t.TempDir()
	// The shell backgrounds a long-lived child that inherits the output
	// pipes. Execute must still return promptly at the deadline instead of
	// waiting for the child to release them.
	exec := newExecutor(t, work, stubJob(t, work, "sleep 10 &\nsleep 10"), 100*time.Millisecond)

	start := time.Now()
	_, err := exec.Execute(context.Background(), baseRequest())
	var execErr *job.ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExecute_RejectsInvalidRequest(t *testing.T) {
	work := t.TempDir()
	exec := newExecutor(t, work, stubJob(t, work, goodResult), 0)

	for name, mutate := range map[string]func(*job.Request){
		"no layout":      func(r *job.Request) { r.Layout = nil },
		"no layout name": func(r *job.Request) { r.LayoutName = "" },
		"no companies":   func(r *job.Request) { r.Companies = nil },
		"zero max":       func(r *job.Request) { r.MaxCompanies = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			req := baseRequest()
			mutate(&req)
			_, err := exec.Execute(context.Background(), req)
			assert.Error(t, err)
		})
	}
}
