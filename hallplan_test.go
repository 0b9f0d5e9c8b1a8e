package hallplan_test

import (
	"bytes"
	"context"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hallplan/hallplan"
)

// stubOptimizer writes a shell script that emits a fixed result document.
func stubOptimizer(t *testing.T, dir string) []string {
	t.Helper()
	script := `#!/bin/sh
json_out=""
while [ "$#" -gt 0 ]; do
	case "$1" in
	--json-out) json_out="$2"; shift 2 ;;
	*) shift ;;
	esac
done
cat > "$json_out" <<'EOF'
{
  "booths": 4,
  "placed": 2,
  "min_distance": 5.0,
  "typical_spacing": 4.0,
  "assignments": [
    {"company": "Acme", "booth": 1},
    {"company": "Globex", "booth": 2}
  ],
  "unplaced": ["Initech"]
}
EOF
`
	path := filepath.Join(dir, "optimizer.sh")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return []string{"/bin/sh", path}
}

func newApp(t *testing.T, opts ...hallplan.Option) *hallplan.App {
	t.Helper()
	work := t.TempDir()
	cmd := stubOptimizer(t, work)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	base := []hallplan.Option{
		hallplan.WithLogger(logger),
		hallplan.WithVersion("test"),
		hallplan.WithJobCommands(cmd, cmd),
		hallplan.WithJobWorkDir(work),
	}
	app, err := hallplan.New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })
	return app
}

func submitRun(t *testing.T, app *hallplan.App) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("layout", "floor.xlsx")
	require.NoError(t, err)
	_, err = fw.Write([]byte("layout-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("companies", `["Acme", "Globex", "Initech"]`))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/v1/optimize", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)
	return rec
}

func TestApp_PublicViews(t *testing.T) {
	app := newApp(t)

	rec := submitRun(t, app)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	runs := app.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, hallplan.RunModePrimary, runs[0].Mode)
	assert.Equal(t, "Room A", runs[0].RoomLabel)
	assert.Len(t, runs[0].Assignments, 2)
	// min_distance 5 against baseline 4*2.5 = 10.
	assert.Equal(t, 0.5, runs[0].Score)

	assert.Equal(t, []string{"Initech"}, app.Remaining())

	app.Reset()
	assert.Empty(t, app.Runs())
	assert.Empty(t, app.Remaining())
}

func TestApp_ExtraRoutesAndMiddleware(t *testing.T) {
	var sawMiddleware bool
	app := newApp(t,
		hallplan.WithExtraRoutes(func(mux *http.ServeMux) {
			mux.HandleFunc("GET /custom", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTeapot)
			})
		}),
		hallplan.WithMiddleware(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				sawMiddleware = true
				next.ServeHTTP(w, r)
			})
		}),
	)

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/custom", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.True(t, sawMiddleware)
}
