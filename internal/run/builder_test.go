package run_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hallplan/hallplan/internal/job"
	"github.com/hallplan/hallplan/internal/model"
	"github.com/hallplan/hallplan/internal/run"
	"github.com/hallplan/hallplan/internal/score"
)

func ptr[T any](v T) *T { return &v }

func sampleResult() *job.Result {
	return &job.Result{
		BoothCount:     5,
		PlacedCount:    3,
		MinDistance:    8.0,
		TypicalSpacing: ptr(4.0),
		Assignments: []job.ResultAssignment{
			{Company: "Acme", Booth: 1, X: ptr(0.5), Y: ptr(1.0)},
			{Company: "Globex", Booth: 3},
			{Company: "Initech", Booth: 4},
		},
		Unplaced: []string{},
	}
}

func TestBuild_EndToEndScenario(t *testing.T) {
	r := run.Build(sampleResult(), run.BuildMeta{
		Mode:       model.RunModePrimary,
		LayoutName: "hall.xlsx",
		RoomLabel:  "Room A",
	})

	// score = clamp(8.0 / (4.0 * 2.5), 0, 1) = 0.8
	assert.Equal(t, 0.8, r.Score)
	assert.Equal(t, model.RunModePrimary, r.Mode)
	assert.Equal(t, "hall.xlsx", r.LayoutName)
	assert.Equal(t, "Room A", r.RoomLabel)
	assert.Equal(t, 5, r.BoothCount)
	assert.Equal(t, 3, r.PlacedCount)
	assert.Empty(t, r.Unplaced)
	assert.Equal(t, []string{"Acme", "Globex", "Initech"}, r.PlacedCompanies())
	assert.NotEqual(t, r.ID.String(), "00000000-0000-0000-0000-000000000000")
}

func TestBuild_SetInvariant(t *testing.T) {
	res := sampleResult()
	res.Assignments = res.Assignments[:2] // Acme, Globex
	res.PlacedCount = 2
	res.Unplaced = []string{"Initech"}

	r := run.Build(res, run.BuildMeta{Mode: model.RunModeOverflow, LayoutName: "annex.png"})

	request := map[string]struct{}{"Acme": {}, "Globex": {}, "Initech": {}}
	got := map[string]struct{}{}
	for _, c := range r.PlacedCompanies() {
		_, dup := got[c]
		require.False(t, dup, "company %s assigned twice", c)
		got[c] = struct{}{}
	}
	for _, c := range r.Unplaced {
		got[c] = struct{}{}
	}
	assert.Equal(t, request, got, "assignments ∪ unplaced must equal the request set")
}

func TestBuild_FreshIdentityPerRun(t *testing.T) {
	a := run.Build(sampleResult(), run.BuildMeta{Mode: model.RunModePrimary})
	b := run.Build(sampleResult(), run.BuildMeta{Mode: model.RunModePrimary})
	assert.NotEqual(t, a.ID, b.ID)
}

func TestBuild_EmbedsPlot(t *testing.T) {
	res := sampleResult()
	res.Plot = []byte{0x89, 'P', 'N', 'G'}
	r := run.Build(res, run.BuildMeta{Mode: model.RunModePrimary})
	assert.True(t, strings.HasPrefix(r.PlotB64, "data:image/png;base64,"))

	res.Plot = nil
	r = run.Build(res, run.BuildMeta{Mode: model.RunModePrimary})
	assert.Empty(t, r.PlotB64)
}

func TestBuild_NilUnplacedBecomesEmpty(t *testing.T) {
	res := sampleResult()
	res.Unplaced = nil
	r := run.Build(res, run.BuildMeta{Mode: model.RunModePrimary})
	assert.NotNil(t, r.Unplaced)
	assert.Empty(t, r.Unplaced)
}

func TestBuild_CustomScoring(t *testing.T) {
	res := sampleResult()
	res.TypicalSpacing = nil
	r := run.Build(res, run.BuildMeta{
		Mode:    model.RunModeComparison,
		Scoring: score.Config{SpacingMultiplier: 2.5, FallbackBaseline: 16},
	})
	assert.Equal(t, 0.5, r.Score)
}
