package stats

const (
	ConfidenceInsufficient    = "insufficient data"
	ConfidenceVeryLow         = "very low"
	ConfidenceLow             = "low"
	ConfidenceHighVariability = "medium-high-variability"
	ConfidenceHigh            = "high"
	ConfidenceGood            = "good"
	ConfidenceMedium          = "medium"
)

// ClassifyConfidence labels how far the market statistics can be trusted.
// Branches are evaluated in order, first match wins.
func ClassifyConfidence(sampleSize int, stdDev, mean float64) string {
	if mean == 0 {
		return ConfidenceInsufficient
	}

	cv := stdDev / mean * 100

	switch {
	case sampleSize < 5:
		return ConfidenceVeryLow
	case sampleSize < 15:
		return ConfidenceLow
	case cv > 50:
		return ConfidenceHighVariability
	case sampleSize >= 30 && cv < 30:
		return ConfidenceHigh
	case sampleSize >= 20 && cv < 40:
		return ConfidenceGood
	default:
		return ConfidenceMedium
	}
}
