package monitoring

import (
	"fmt"
	"math"

	"github.com/noface-00/prims/internal/model"
)

// Thresholds for ClassifyPrice. z is measured as (mean-price)/stdDev, so it
// is positive when the price sits below the market.
const (
	suspiciousZ      = 3.0
	belowMarketZ     = 2.0
	opportunityRatio = 0.7
	aboveMarketRatio = 1.3
	fairBandStdDevs  = 0.5
)

// ClassifyPrice labels price against the market mean and standard deviation.
// Branches are evaluated in order and the first match wins.
func ClassifyPrice(price, mean, stdDev float64) model.AlertResult {
	if mean == 0 || stdDev == 0 {
		return model.AlertResult{
			Alert:   model.AlertInsufficientData,
			Message: "Not enough market data",
		}
	}

	z := (mean - price) / stdDev

	switch {
	case z > suspiciousZ:
		discount := (mean - price) / mean * 100
		return model.AlertResult{
			Alert:       model.AlertSuspiciouslyLow,
			DiscountPct: discount,
			Message:     fmt.Sprintf("Suspiciously low price (-%.0f%%)", discount),
		}
	case z > belowMarketZ:
		return model.AlertResult{
			Alert:   model.AlertBelowMarketWarning,
			Message: "Price far below market",
		}
	case price < mean*opportunityRatio:
		return model.AlertResult{
			Alert:   model.AlertOpportunity,
			Message: "Price 30% below the market average",
		}
	case price > mean*aboveMarketRatio:
		return model.AlertResult{
			Alert:   model.AlertAboveMarket,
			Message: "Price 30% above the market average",
		}
	case math.Abs(price-mean) < stdDev*fairBandStdDevs:
		return model.AlertResult{
			Alert:   model.AlertFair,
			Message: "Fair price within the normal range",
		}
	}

	return model.AlertResult{
		Alert:   model.AlertAcceptable,
		Message: "Acceptable price",
	}
}

// Severity ranks an alert for sorting and filtering reports.
func Severity(a model.PriceAlert) string {
	switch a {
	case model.AlertSuspiciouslyLow:
		return "HIGH"
	case model.AlertBelowMarketWarning, model.AlertAboveMarket:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

func severityRank(severity string) int {
	switch severity {
	case "HIGH":
		return 3
	case "MEDIUM":
		return 2
	case "LOW":
		return 1
	default:
		return 0
	}
}
