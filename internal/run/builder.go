// Package run builds normalized Run records from job output and keeps the
// session's append-only run registry with its derived views.
package run

import (
	"encoding/base64"
	"time"

	"github.com/google/uuid"

	"github.com/hallplan/hallplan/internal/job"
	"github.com/hallplan/hallplan/internal/model"
	"github.com/hallplan/hallplan/internal/score"
)

// BuildMeta carries the submission metadata a job result does not know about.
type BuildMeta struct {
	Mode       model.RunMode
	LayoutName string
	RoomLabel  string
	// Scoring overrides the calibration; the zero value means defaults.
	Scoring score.Config
}

// Build converts a successful job result into an immutable Run. Pure given
// its inputs: identity and timestamp aside, the same result and meta always
// produce the same record.
func Build(res *job.Result, meta BuildMeta) model.Run {
	scoring := meta.Scoring
	if scoring == (score.Config{}) {
		scoring = score.DefaultConfig()
	}

	assignments := make([]model.Assignment, 0, len(res.Assignments))
	for _, a := range res.Assignments {
		assignments = append(assignments, model.Assignment{
			Company: a.Company,
			Booth:   a.Booth,
			X:       a.X,
			Y:       a.Y,
		})
	}
	unplaced := res.Unplaced
	if unplaced == nil {
		unplaced = []string{}
	}

	r := model.Run{
		ID:             uuid.New(),
		Mode:           meta.Mode,
		LayoutName:     meta.LayoutName,
		RoomLabel:      meta.RoomLabel,
		BoothCount:     res.BoothCount,
		PlacedCount:    res.PlacedCount,
		MinDistance:    res.MinDistance,
		TypicalSpacing: res.TypicalSpacing,
		Score:          scoring.Score(res.MinDistance, res.TypicalSpacing),
		Assignments:    assignments,
		Unplaced:       unplaced,
		BigCompanies:   res.BigCompanies,
		CreatedAt:      time.Now().UTC(),
	}
	if len(res.Plot) > 0 {
		r.PlotB64 = "data:image/png;base64," + base64.StdEncoding.EncodeToString(res.Plot)
	}
	return r
}
