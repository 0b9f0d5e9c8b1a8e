package hallplan

import (
	"time"

	"github.com/google/uuid"
)

// RunMode distinguishes how a run's placements count toward hall progress.
type RunMode string

const (
	// RunModePrimary is the main placement pass over the full company pool.
	RunModePrimary RunMode = "primary"
	// RunModeOverflow places companies an earlier run could not fit.
	RunModeOverflow RunMode = "overflow"
	// RunModeComparison is a what-if pass that never consumes the pool.
	RunModeComparison RunMode = "comparison"
)

// Run is the public representation of one recorded optimization run.
// It is a curated view of the internal run record for use by embedders.
// No internal package imports, so it is safe to use from outside the module.
type Run struct {
	ID          uuid.UUID
	Mode        RunMode
	LayoutName  string
	RoomLabel   string
	BoothCount  int
	PlacedCount int
	// Score is the placement quality in [0.0, 1.0]. Higher is better.
	Score        float64
	Assignments  []Assignment
	Unplaced     []string
	BigCompanies []string
	CreatedAt    time.Time
}

// Assignment is one company-to-booth placement.
type Assignment struct {
	Company string
	Booth   int
	X       *float64
	Y       *float64
}
