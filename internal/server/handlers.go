package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/hallplan/hallplan/internal/companies"
	"github.com/hallplan/hallplan/internal/job"
	"github.com/hallplan/hallplan/internal/model"
	"github.com/hallplan/hallplan/internal/run"
	"github.com/hallplan/hallplan/internal/score"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	executor *job.Executor
	registry *run.Registry
	logger   *slog.Logger
	scoring  score.Config
	version  string
	started  time.Time

	defaultMaxCompanies int
	maxUploadBytes      int64

	// gate admits a single optimization job at a time. inFlight mirrors
	// the gate for the health endpoint without touching the semaphore.
	gate     *semaphore.Weighted
	inFlight atomic.Bool
}

// NewHandlers creates handlers with their dependencies.
func NewHandlers(executor *job.Executor, registry *run.Registry, logger *slog.Logger, scoring score.Config, version string, defaultMaxCompanies int, maxUploadBytes int64) *Handlers {
	return &Handlers{
		executor:            executor,
		registry:            registry,
		logger:              logger,
		scoring:             scoring,
		version:             version,
		started:             time.Now(),
		defaultMaxCompanies: defaultMaxCompanies,
		maxUploadBytes:      maxUploadBytes,
		gate:                semaphore.NewWeighted(1),
	}
}

// HandleOptimize runs one placement job and records the resulting run.
// POST /v1/optimize (multipart form)
func (h *Handlers) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid multipart form: "+err.Error())
		return
	}

	mode := model.RunMode(r.FormValue("mode"))
	if mode == "" {
		mode = model.RunModePrimary
	}
	if !model.ValidMode(mode) {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "unknown mode "+strconv.Quote(string(mode)))
		return
	}

	layoutName, layout, err := h.readLayout(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	pool, explicit, err := h.readCompanies(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	if !explicit {
		switch mode {
		case model.RunModeOverflow:
			// Overflow runs default to the companies not yet placed.
			pool = h.registry.Remaining()
			if len(pool) == 0 {
				writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "no companies remaining to place")
				return
			}
		case model.RunModeComparison:
			// Comparison runs default to the full requested pool.
			pool = h.registry.Requested()
			if len(pool) == 0 {
				writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "no requested companies recorded; submit a primary run first or provide a company list")
				return
			}
		default:
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "company list is required")
			return
		}
	}
	if err := model.ValidateCompanies(pool); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	maxCompanies := h.defaultMaxCompanies
	if v := r.FormValue("max_companies"); v != "" {
		maxCompanies, err = strconv.Atoi(v)
		if err != nil || maxCompanies <= 0 {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "max_companies must be a positive integer")
			return
		}
	}

	req := job.Request{
		LayoutName:   layoutName,
		Layout:       layout,
		Companies:    pool,
		MaxCompanies: maxCompanies,
		MinArea:      400,
		MaxArea:      100000,
	}
	if v := r.FormValue("min_area"); v != "" {
		if req.MinArea, err = strconv.ParseFloat(v, 64); err != nil {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "min_area must be a number")
			return
		}
	}
	if v := r.FormValue("max_area"); v != "" {
		if req.MaxArea, err = strconv.ParseFloat(v, 64); err != nil {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "max_area must be a number")
			return
		}
	}
	if v := r.FormValue("invert"); v != "" {
		if req.Invert, err = strconv.ParseBool(v); err != nil {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invert must be a boolean")
			return
		}
	}

	if !h.gate.TryAcquire(1) {
		writeError(w, r, http.StatusConflict, model.ErrCodeBusy, "an optimization job is already running")
		return
	}
	h.inFlight.Store(true)
	defer func() {
		h.inFlight.Store(false)
		h.gate.Release(1)
	}()

	res, err := h.executor.Execute(r.Context(), req)
	if err != nil {
		h.writeJobError(w, r, err)
		return
	}

	roomLabel := r.FormValue("room_label")
	if roomLabel == "" && mode != model.RunModeComparison {
		roomLabel = h.registry.NextRoomLabel()
	}

	built := run.Build(res, run.BuildMeta{
		Mode:       mode,
		LayoutName: layoutName,
		RoomLabel:  roomLabel,
		Scoring:    h.scoring,
	})
	h.registry.Append(built, pool)

	h.logger.Info("run recorded",
		"run_id", built.ID,
		"mode", built.Mode,
		"score", built.Score,
		"placed", built.PlacedCount,
		"booths", built.BoothCount,
	)

	writeJSON(w, r, http.StatusOK, model.OptimizeResponse{
		Run:    built,
		Stdout: res.Stdout,
		Stderr: res.Stderr,
	})
}

// readLayout extracts the required layout artifact from the multipart form.
func (h *Handlers) readLayout(r *http.Request) (string, []byte, error) {
	file, header, err := r.FormFile("layout")
	if err != nil {
		return "", nil, errors.New("layout file is required")
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, errors.New("could not read layout file")
	}
	if len(data) == 0 {
		return "", nil, errors.New("layout file is empty")
	}
	return header.Filename, data, nil
}

// readCompanies extracts the company pool from either an inline JSON list
// or an uploaded spreadsheet. explicit is false when the caller sent neither.
func (h *Handlers) readCompanies(r *http.Request) (pool []string, explicit bool, err error) {
	if raw := r.FormValue("companies"); raw != "" {
		pool, err = companies.ParseJSON(raw)
		if err != nil {
			return nil, true, err
		}
		return pool, true, nil
	}
	file, header, ferr := r.FormFile("companies_file")
	if ferr != nil {
		return nil, false, nil
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, true, errors.New("could not read companies file")
	}
	pool, err = companies.FromSpreadsheet(header.Filename, data)
	if err != nil {
		return nil, true, err
	}
	return pool, true, nil
}

// writeJobError maps executor failures onto the API error taxonomy. A failed
// job never mutates the registry, so callers can retry freely.
func (h *Handlers) writeJobError(w http.ResponseWriter, r *http.Request, err error) {
	var execErr *job.ExecError
	var resultErr *job.ResultError
	var resourceErr *job.ResourceError
	switch {
	case errors.As(err, &execErr):
		h.logger.Error("job execution failed",
			"exit_code", execErr.ExitCode,
			"diagnostic", execErr.Diagnostic(),
		)
		writeErrorDetails(w, r, http.StatusInternalServerError, model.ErrCodeJobFailed,
			"optimization job failed: "+execErr.Diagnostic(),
			map[string]any{
				"exit_code": execErr.ExitCode,
				"stdout":    execErr.Stdout,
				"stderr":    execErr.Stderr,
			})
	case errors.As(err, &resultErr):
		h.logger.Error("job produced an invalid result", "reason", resultErr.Reason, "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeJobResultInvalid,
			"optimization job produced an invalid result: "+resultErr.Reason)
	case errors.As(err, &resourceErr):
		// Resource details stay in the log; the client gets a generic error.
		h.logger.Error("job resource failure", "op", resourceErr.Op, "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal error")
	default:
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
	}
}

// HandleListRuns returns all recorded runs with derived views.
// GET /v1/runs
func (h *Handlers) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, model.RunsResponse{
		Runs:              h.registry.Runs(),
		Remaining:         h.registry.Remaining(),
		HasComparisonData: len(h.registry.ComparisonRuns()) > 0,
	})
}

// HandleGetRun returns a single run by ID.
// GET /v1/runs/{run_id}
func (h *Handlers) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("run_id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid run ID")
		return
	}
	rec, ok := h.registry.Get(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "run not found")
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

// HandleComparison returns the two best runs by score.
// GET /v1/comparison
func (h *Handlers) HandleComparison(w http.ResponseWriter, r *http.Request) {
	pair, ok := h.registry.ComparisonPair()
	writeJSON(w, r, http.StatusOK, model.ComparisonResponse{
		Insufficient: !ok,
		Pair:         pair,
	})
}

// HandleRemaining returns the companies not yet placed by any run.
// GET /v1/remaining
func (h *Handlers) HandleRemaining(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, model.RemainingResponse{
		Remaining: h.registry.Remaining(),
	})
}

// HandleReset clears all recorded runs and the requested baseline.
// POST /v1/reset
func (h *Handlers) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.registry.Reset()
	h.logger.Info("registry reset", "request_id", RequestIDFromContext(r.Context()))
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "reset"})
}

// HandleHealth returns service health.
// GET /health
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, model.HealthResponse{
		Status:      "ok",
		Version:     h.version,
		JobInFlight: h.inFlight.Load(),
		RunCount:    h.registry.Len(),
		Uptime:      int64(time.Since(h.started).Seconds()),
	})
}
