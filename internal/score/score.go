// Package score normalizes a job's raw spacing metric into a comparable
// score in [0,1].
//
// The score is dimensionless: higher means more evenly spaced relative to
// the layout's typical spacing. The multiplier and fallback baseline are
// calibration values carried over from the optimizer's tuning; they have no
// derived physical meaning.
package score

import "math"

// Config holds the scoring calibration constants.
type Config struct {
	// SpacingMultiplier scales the typical-spacing hint into the baseline
	// that would earn a perfect score.
	SpacingMultiplier float64
	// FallbackBaseline is used when the job supplies no usable
	// typical-spacing hint.
	FallbackBaseline float64
}

// DefaultConfig returns the calibration used by the optimizer's own tuning.
func DefaultConfig() Config {
	return Config{SpacingMultiplier: 2.5, FallbackBaseline: 10}
}

// Score maps the minimum achieved pairwise distance to [0,1], rounded to
// three decimal places. typicalSpacing may be nil or non-positive, in which
// case the fallback baseline applies. Negative minDistance is a caller
// contract violation and is not defended against.
func (c Config) Score(minDistance float64, typicalSpacing *float64) float64 {
	baseline := c.FallbackBaseline
	if typicalSpacing != nil && *typicalSpacing > 0 {
		baseline = *typicalSpacing * c.SpacingMultiplier
	}
	raw := minDistance / baseline
	if raw > 1 {
		raw = 1
	}
	if raw < 0 {
		raw = 0
	}
	return math.Round(raw*1000) / 1000
}

// Score applies the default calibration.
func Score(minDistance float64, typicalSpacing *float64) float64 {
	return DefaultConfig().Score(minDistance, typicalSpacing)
}
