package monitoring

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/noface-00/prims/internal/model"
)

// LoadSnapshot loads a snapshot from a JSON file
func LoadSnapshot(path string) (*model.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var snapshot model.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}

	return &snapshot, nil
}

// SaveSnapshot saves a snapshot to a JSON file
func SaveSnapshot(path string, snapshot *model.Snapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}

	return nil
}

// Change is a notable difference between two analyses of the same product.
type Change struct {
	ProductID string
	Field     string
	OldValue  float64
	NewValue  float64
	DeltaUSD  float64
	DeltaPct  float64
	OldAlert  model.PriceAlert
	NewAlert  model.PriceAlert
	Severity  string
	Since     time.Time
}

// CompareSnapshots returns the price movements above either threshold and
// any change of price alert between old and new.
func CompareSnapshots(old, new *model.Snapshot, thresholdPct, thresholdUSD float64) []Change {
	if old == nil || new == nil || old.ProductID != new.ProductID {
		return nil
	}

	var changes []Change
	checkPriceChange(&changes, old, new, "price_actual", old.PriceActual, new.PriceActual, thresholdPct, thresholdUSD)
	checkPriceChange(&changes, old, new, "market_mean", old.Stats.Mean, new.Stats.Mean, thresholdPct, thresholdUSD)

	if old.Alert.Alert != "" && old.Alert.Alert != new.Alert.Alert {
		changes = append(changes, Change{
			ProductID: new.ProductID,
			Field:     "alert",
			OldAlert:  old.Alert.Alert,
			NewAlert:  new.Alert.Alert,
			Severity:  Severity(new.Alert.Alert),
			Since:     old.Timestamp,
		})
	}

	sort.SliceStable(changes, func(i, j int) bool {
		return severityRank(changes[i].Severity) > severityRank(changes[j].Severity)
	})
	return changes
}

func checkPriceChange(changes *[]Change, old, new *model.Snapshot, field string,
	oldPrice, newPrice, thresholdPct, thresholdUSD float64) {

	if oldPrice <= 0 || newPrice <= 0 {
		return
	}

	deltaUSD := newPrice - oldPrice
	deltaPct := (deltaUSD / oldPrice) * 100

	if abs(deltaPct) >= thresholdPct || abs(deltaUSD) >= thresholdUSD {
		*changes = append(*changes, Change{
			ProductID: new.ProductID,
			Field:     field,
			OldValue:  oldPrice,
			NewValue:  newPrice,
			DeltaUSD:  deltaUSD,
			DeltaPct:  deltaPct,
			OldAlert:  old.Alert.Alert,
			NewAlert:  new.Alert.Alert,
			Severity:  deltaSeverity(deltaPct),
			Since:     old.Timestamp,
		})
	}
}

func deltaSeverity(deltaPct float64) string {
	switch d := abs(deltaPct); {
	case d >= 30:
		return "HIGH"
	case d >= 15:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
