// Package model defines the core domain types for hallplan.
//
// A Run is one completed optimization attempt for one layout and one company
// list, normalized into a comparable record. Runs are immutable once built.
package model

import (
	"time"

	"github.com/google/uuid"
)

// RunMode classifies the role of a run in the session, not its algorithm.
type RunMode string

const (
	// RunModePrimary is the first placement of the full company list.
	RunModePrimary RunMode = "primary"
	// RunModeOverflow places leftover companies in another layout.
	RunModeOverflow RunMode = "overflow"
	// RunModeComparison benchmarks a second layout against the full list.
	RunModeComparison RunMode = "comparison"
)

// ValidMode reports whether m is one of the three submission modes.
func ValidMode(m RunMode) bool {
	switch m {
	case RunModePrimary, RunModeOverflow, RunModeComparison:
		return true
	}
	return false
}

// Assignment places one company at one booth. Booth numbers are unique
// within a run's assignment list but may repeat across runs.
type Assignment struct {
	Company string   `json:"company"`
	Booth   int      `json:"booth"`
	X       *float64 `json:"x,omitempty"`
	Y       *float64 `json:"y,omitempty"`
}

// Run is a normalized optimization result. Immutable once created; the
// registry never mutates appended runs.
type Run struct {
	ID             uuid.UUID    `json:"id"`
	Mode           RunMode      `json:"mode"`
	LayoutName     string       `json:"layout_name"`
	RoomLabel      string       `json:"room_label,omitempty"`
	BoothCount     int          `json:"booth_count"`
	PlacedCount    int          `json:"placed_count"`
	MinDistance    float64      `json:"min_distance"`
	TypicalSpacing *float64     `json:"typical_spacing,omitempty"`
	Score          float64      `json:"score"`
	Assignments    []Assignment `json:"assignments"`
	Unplaced       []string     `json:"unplaced"`
	BigCompanies   []string     `json:"big_companies,omitempty"`
	PlotB64        string       `json:"plot_b64,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// PlacedCompanies returns the companies in the run's assignment list,
// in assignment order.
func (r Run) PlacedCompanies() []string {
	out := make([]string, 0, len(r.Assignments))
	for _, a := range r.Assignments {
		out = append(out, a.Company)
	}
	return out
}
