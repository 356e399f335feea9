package analysis

import (
	"fmt"
	"math"

	"github.com/sells-group/roadcheck/internal/geo"
	"github.com/sells-group/roadcheck/internal/model"
)

const (
	// DefaultSlopeThresholdPercent is the grade above which a warning fires.
	DefaultSlopeThresholdPercent = 10.0
	// DefaultMinSlopeDistanceMeters filters GPS jitter between close fixes.
	DefaultMinSlopeDistanceMeters = 2.0
)

// SlopeEvaluator computes the grade between two sampled points.
type SlopeEvaluator struct {
	ThresholdPercent  float64
	MinDistanceMeters float64
}

// NewSlopeEvaluator returns an evaluator; a non-positive minimum distance
// falls back to the default noise floor.
func NewSlopeEvaluator(thresholdPercent, minDistanceMeters float64) SlopeEvaluator {
	if minDistanceMeters <= 0 {
		minDistanceMeters = DefaultMinSlopeDistanceMeters
	}
	return SlopeEvaluator{
		ThresholdPercent:  thresholdPercent,
		MinDistanceMeters: minDistanceMeters,
	}
}

// Evaluate returns the grade in percent from prev to cur and a warning when
// its magnitude exceeds the threshold. ok is false when either point lacks
// elevation or the points are closer than the noise floor.
func (e SlopeEvaluator) Evaluate(prev, cur model.Point) (slope float64, warning *model.Warning, ok bool) {
	if !prev.HasElevation() || !cur.HasElevation() {
		return 0, nil, false
	}

	distance := geo.PointDistance(prev, cur)
	if distance < e.MinDistanceMeters {
		return 0, nil, false
	}

	slope = (*cur.Elevation - *prev.Elevation) / distance * 100
	if math.Abs(slope) > e.ThresholdPercent {
		w := model.NewWarning(model.CategoryExcessiveSlope, fmt.Sprintf("%.1f%%", slope))
		warning = &w
	}
	return slope, warning, true
}
