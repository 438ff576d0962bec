package trust

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noface-00/prims/internal/model"
)

// Component ceilings. They sum to 100.
const (
	MaxPriceScore    = 35.0
	MaxFeedbackScore = 30.0
	MaxVolumeScore   = 20.0
	MaxAgeScore      = 15.0

	maxMonthsScore = 6.0
)

// Breakdown is a trust score with its per-component contributions.
type Breakdown struct {
	Price    float64 `json:"price"`
	Feedback float64 `json:"feedback"`
	Volume   float64 `json:"volume"`
	Age      float64 `json:"age"`
	Total    float64 `json:"total"`
}

// Score returns the composite 0-100 trust score for in.
func Score(in model.TrustInputs) float64 {
	return Compute(in).Total
}

// Compute scores price competitiveness, feedback ratio, feedback volume and
// account age. Total is rounded to one decimal and clamped to [0,100].
func Compute(in model.TrustInputs) Breakdown {
	b := Breakdown{
		Price:    priceScore(in.CurrentPrice, in.MarketMean, in.MarketStdDev),
		Feedback: feedbackScore(in.FeedbackPercent),
		Volume:   volumeScore(in.FeedbackScore),
		Age:      AgeScore(in.AccountAge),
	}

	sum := decimal.NewFromFloat(b.Price + b.Feedback + b.Volume + b.Age).Round(1)
	total := sum.InexactFloat64()
	b.Total = math.Max(0, math.Min(100, total))
	return b
}

func priceScore(price, mean, stdDev float64) float64 {
	if stdDev <= 0 || mean <= 0 {
		return 0
	}

	z := math.Abs(price-mean) / stdDev
	switch {
	case z <= 1:
		return MaxPriceScore
	case z <= 2:
		return 25
	case z <= 3:
		return 10
	default:
		return 0
	}
}

func feedbackScore(pct float64) float64 {
	switch {
	case pct >= 99:
		return MaxFeedbackScore
	case pct >= 98:
		return 27
	case pct >= 95:
		return 22
	case pct >= 90:
		return 15
	case pct >= 80:
		return 5
	default:
		return 0
	}
}

func volumeScore(count int) float64 {
	switch {
	case count >= 10000:
		return MaxVolumeScore
	case count >= 5000:
		return 18
	case count >= 1000:
		return 15
	case count >= 500:
		return 12
	case count >= 100:
		return 8
	case count >= 50:
		return 5
	case count >= 10:
		return 2
	default:
		return 0
	}
}

// AgeScore parses descriptors such as "3 años 4 meses" or "7 meses".
// A descriptor with years uses only the leading year count. Anything it
// cannot parse scores 0.
func AgeScore(descriptor string) float64 {
	lower := strings.ToLower(descriptor)
	parts := strings.Fields(lower)
	if len(parts) == 0 {
		return 0
	}

	if strings.Contains(lower, "año") {
		years, err := strconv.Atoi(parts[0])
		if err != nil || years < 0 {
			return 0
		}
		return math.Min(float64(years)*2.5, MaxAgeScore)
	}

	for i := 1; i < len(parts); i++ {
		if !strings.Contains(parts[i], "mes") {
			continue
		}
		months, err := strconv.Atoi(parts[i-1])
		if err != nil || months < 0 {
			return 0
		}
		return math.Min(float64(months)*0.5, maxMonthsScore)
	}

	return 0
}
