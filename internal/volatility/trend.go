package volatility

import (
	"math"
	"sort"

	"github.com/noface-00/prims/internal/model"
)

const (
	TrendStrongUp     = "strong uptrend"
	TrendUp           = "uptrend"
	TrendStrongDown   = "strong downtrend"
	TrendDown         = "downtrend"
	TrendStable       = "stable"
	TrendInsufficient = "insufficient data"

	VolatilityLow      = "low"
	VolatilityModerate = "moderate"
	VolatilityHigh     = "high"
)

// AnalyzeTrend orders history by timestamp and reports the percent change
// between the first and last observation along with period-over-period
// volatility. The input slice is not modified.
func AnalyzeTrend(history []model.PricePoint) model.TrendInfo {
	if len(history) < 2 {
		return model.TrendInfo{
			Trend:           TrendInsufficient,
			VolatilityLabel: TrendInsufficient,
		}
	}

	points := make([]model.PricePoint, len(history))
	copy(points, history)
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})

	prices := make([]float64, len(points))
	for i, p := range points {
		prices[i] = p.Price
	}

	first, last := prices[0], prices[len(prices)-1]
	var change float64
	if first != 0 {
		change = (last - first) * 100 / first
	}

	vol := Volatility(prices)

	return model.TrendInfo{
		PercentChange:   change,
		Volatility:      vol,
		Trend:           TrendLabel(change),
		VolatilityLabel: VolatilityLabel(vol),
	}
}

// Volatility is the root mean square of the relative period-over-period
// changes, as a percentage. A zero previous price contributes no change.
func Volatility(prices []float64) float64 {
	if len(prices) < 2 {
		return 0
	}

	var sum float64
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			continue
		}
		change := (prices[i] - prices[i-1]) / prices[i-1]
		sum += change * change
	}

	return math.Sqrt(sum/float64(len(prices)-1)) * 100
}

func TrendLabel(percentChange float64) string {
	switch {
	case percentChange > 10:
		return TrendStrongUp
	case percentChange > 5:
		return TrendUp
	case percentChange < -10:
		return TrendStrongDown
	case percentChange < -5:
		return TrendDown
	default:
		return TrendStable
	}
}

func VolatilityLabel(volatility float64) string {
	switch {
	case volatility < 5:
		return VolatilityLow
	case volatility < 15:
		return VolatilityModerate
	default:
		return VolatilityHigh
	}
}
