package monitoring

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/noface-00/prims/internal/model"
)

func snapshotFixture(price, mean float64, alert model.PriceAlert) *model.Snapshot {
	return &model.Snapshot{
		ProductID:   "v1|123|0",
		Timestamp:   time.Now(),
		PriceActual: price,
		Stats:       model.PriceStatistics{Mean: mean},
		Alert:       model.AlertResult{Alert: alert},
	}
}

func TestSaveAndLoadSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	orig := snapshotFixture(99.5, 110, model.AlertFair)
	orig.Failures = []string{"coupon"}

	if err := SaveSnapshot(path, orig); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if loaded.ProductID != orig.ProductID || loaded.PriceActual != orig.PriceActual {
		t.Errorf("Expected %+v, got %+v", orig, loaded)
	}
	if len(loaded.Failures) != 1 || loaded.Failures[0] != "coupon" {
		t.Errorf("Expected failures to survive round trip, got %v", loaded.Failures)
	}
}

func TestLoadSnapshot_Missing(t *testing.T) {
	if _, err := LoadSnapshot(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestCompareSnapshots(t *testing.T) {
	old := snapshotFixture(100, 100, model.AlertFair)
	new := snapshotFixture(60, 102, model.AlertSuspiciouslyLow)

	changes := CompareSnapshots(old, new, 10, 5)
	if len(changes) != 2 {
		t.Fatalf("Expected 2 changes (price and alert), got %d: %+v", len(changes), changes)
	}

	// both are HIGH; stable sort keeps price first
	if changes[0].Field != "price_actual" || changes[0].Severity != "HIGH" {
		t.Errorf("Expected HIGH price change first, got %+v", changes[0])
	}
	if changes[0].DeltaPct != -40 {
		t.Errorf("Expected -40%% delta, got %f", changes[0].DeltaPct)
	}
	if changes[1].Field != "alert" || changes[1].NewAlert != model.AlertSuspiciouslyLow {
		t.Errorf("Expected alert change, got %+v", changes[1])
	}
}

func TestCompareSnapshots_NoChange(t *testing.T) {
	old := snapshotFixture(100, 100, model.AlertFair)
	new := snapshotFixture(101, 100, model.AlertFair)

	if changes := CompareSnapshots(old, new, 10, 5); len(changes) != 0 {
		t.Errorf("Expected no changes, got %+v", changes)
	}
	if changes := CompareSnapshots(nil, new, 10, 5); changes != nil {
		t.Errorf("Expected nil for missing previous snapshot, got %+v", changes)
	}
}
