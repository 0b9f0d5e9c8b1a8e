package run

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/hallplan/hallplan/internal/model"
)

// fixedRoomLabels are handed out to placement runs in order; later runs get
// a numbered fallback.
var fixedRoomLabels = []string{"Room A", "Room B", "Room C", "Room D"}

// Registry is the session-scoped run history. Append-only: runs are never
// mutated or removed except by a full Reset. Derived views are recomputed
// from the current state on every call, never cached.
//
// A Registry is owned by one session and constructed explicitly; it is
// passed to whichever layer needs views, never kept as package state.
type Registry struct {
	mu        sync.Mutex
	runs      []model.Run
	requested []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Append records a completed run. pool is the company pool the submission
// was made with; the first primary run's pool becomes the session's
// requested baseline for the remaining-companies view. Failed submissions
// never reach Append.
func (g *Registry) Append(r model.Run, pool []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if r.Mode == model.RunModePrimary && g.requested == nil {
		g.requested = append([]string(nil), pool...)
	}
	g.runs = append(g.runs, r)
}

// Reset discards all runs and the requested baseline, returning the session
// to empty. Partial resets are deliberately not offered.
func (g *Registry) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.runs = nil
	g.requested = nil
}

// Len returns the number of recorded runs.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.runs)
}

// Runs returns all runs in submission order.
func (g *Registry) Runs() []model.Run {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]model.Run(nil), g.runs...)
}

// Get returns the run with the given id.
func (g *Registry) Get(id uuid.UUID) (model.Run, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range g.runs {
		if r.ID == id {
			return r, true
		}
	}
	return model.Run{}, false
}

// Requested returns the session's requested company baseline (set by the
// first primary run), in submission order.
func (g *Registry) Requested() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.requested...)
}

// PlacementRuns returns the primary and overflow runs in submission order.
func (g *Registry) PlacementRuns() []model.Run {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.placementRunsLocked()
}

func (g *Registry) placementRunsLocked() []model.Run {
	out := make([]model.Run, 0, len(g.runs))
	for _, r := range g.runs {
		if r.Mode != model.RunModeComparison {
			out = append(out, r)
		}
	}
	return out
}

// ComparisonRuns returns the comparison runs in submission order.
func (g *Registry) ComparisonRuns() []model.Run {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]model.Run, 0, len(g.runs))
	for _, r := range g.runs {
		if r.Mode == model.RunModeComparison {
			out = append(out, r)
		}
	}
	return out
}

// Remaining returns the requested companies not yet placed by any placement
// run, preserving the requested order. Comparison runs do not count as
// placements.
func (g *Registry) Remaining() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	placed := make(map[string]struct{})
	for _, r := range g.placementRunsLocked() {
		for _, a := range r.Assignments {
			placed[a.Company] = struct{}{}
		}
	}
	out := make([]string, 0, len(g.requested))
	for _, c := range g.requested {
		if _, ok := placed[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}

// ComparisonPair returns the top two runs of any mode by score, descending,
// ties broken by submission order. ok is false when fewer than two runs
// exist: insufficient data, not an error.
func (g *Registry) ComparisonPair() (pair []model.Run, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.runs) < 2 {
		return nil, false
	}
	ranked := append([]model.Run(nil), g.runs...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked[:2], true
}

// NextRoomLabel computes the label the next placement run would receive:
// the fixed sequence Rooms A through D, then "Room {n}". Caller-supplied
// labels always override this; comparison runs never get a computed label.
func (g *Registry) NextRoomLabel() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := len(g.placementRunsLocked())
	if n < len(fixedRoomLabels) {
		return fixedRoomLabels[n]
	}
	return fmt.Sprintf("Room %d", n+1)
}
