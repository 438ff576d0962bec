package stats

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/noface-00/prims/internal/model"
)

const (
	StabilityHigh         = "high stability"
	StabilityModerate     = "moderate variability"
	StabilityLow          = "high variability"
	StabilityInsufficient = "insufficient data"
)

// Compute derives market statistics from an already filtered sample.
// Population variance is used (divide by n).
func Compute(sample []float64) model.PriceStatistics {
	if len(sample) == 0 {
		return model.PriceStatistics{
			Stability:  StabilityInsufficient,
			Confidence: ConfidenceInsufficient,
		}
	}

	mean, variance := stat.PopMeanVariance(sample, nil)
	std := math.Sqrt(variance)

	var cv float64
	if mean > 0 {
		cv = std / mean * 100
	}

	s := model.PriceStatistics{
		Mean:       mean,
		Min:        floats.Min(sample),
		Max:        floats.Max(sample),
		StdDev:     std,
		CoefVar:    cv,
		SampleSize: len(sample),
		Stability:  StabilityLabel(cv),
	}
	s.Confidence = ClassifyConfidence(s.SampleSize, s.StdDev, s.Mean)
	return s
}

// Market filters outliers from a raw sample and computes its statistics.
func Market(raw []float64) model.PriceStatistics {
	return Compute(FilterOutliers(raw))
}

func StabilityLabel(coefVar float64) string {
	switch {
	case coefVar < 20:
		return StabilityHigh
	case coefVar < 40:
		return StabilityModerate
	default:
		return StabilityLow
	}
}
