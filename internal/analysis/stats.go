package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/roadcheck/internal/model"
)

// summarizeSlopes reduces the measured grades to the report's slope summary.
// Values are rounded to one decimal place.
func summarizeSlopes(grades []float64) model.SlopeSummary {
	if len(grades) == 0 {
		return model.SlopeSummary{}
	}
	abs := make([]float64, len(grades))
	for i, g := range grades {
		abs[i] = math.Abs(g)
	}
	return model.SlopeSummary{
		Samples:        len(grades),
		MaxPercent:     round1(floats.Max(abs)),
		MeanAbsPercent: round1(stat.Mean(abs, nil)),
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
