package volatility

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestTracker_AppendAndList(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.json")
	tracker := NewTracker(path, 0)

	now := time.Now()
	// appended out of order on purpose
	if _, err := tracker.AppendIfChanged(ctx, "item-1", 110, now); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if _, err := tracker.AppendIfChanged(ctx, "item-1", 100, now.Add(-time.Hour)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	points, err := tracker.ListAll(ctx, "item-1")
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("Expected 2 points, got %d", len(points))
	}
	if points[0].Price != 100 || points[1].Price != 110 {
		t.Errorf("Expected chronological order, got %+v", points)
	}
	if points[0].Currency != "USD" {
		t.Errorf("Expected USD currency, got %q", points[0].Currency)
	}
}

func TestTracker_UnknownProduct(t *testing.T) {
	tracker := NewTracker(filepath.Join(t.TempDir(), "history.json"), 0)

	points, err := tracker.ListAll(context.Background(), "missing")
	if err != nil || len(points) != 0 {
		t.Errorf("Expected empty history, got %v (err %v)", points, err)
	}
}

func TestTracker_Persistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "history.json")

	tracker1 := NewTracker(path, 0)
	tracker1.AppendIfChanged(ctx, "item-1", 100, time.Now().Add(-time.Minute))
	tracker1.AppendIfChanged(ctx, "item-1", 105, time.Now())

	tracker2 := NewTracker(path, 0)
	points, _ := tracker2.ListAll(ctx, "item-1")
	if len(points) != 2 {
		t.Errorf("Expected 2 persisted points, got %d", len(points))
	}

	stats := tracker2.GetHistoryStats()
	if stats["total_products"] != 1 || stats["total_price_points"] != 2 {
		t.Errorf("Unexpected stats %v", stats)
	}
}

func TestTracker_PrunesOldPoints(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(filepath.Join(t.TempDir(), "history.json"), 24*time.Hour)

	tracker.AppendIfChanged(ctx, "item-1", 90, time.Now().Add(-48*time.Hour))
	tracker.AppendIfChanged(ctx, "item-1", 100, time.Now())

	points, _ := tracker.ListAll(ctx, "item-1")
	if len(points) != 1 || points[0].Price != 100 {
		t.Errorf("Expected only the recent point, got %+v", points)
	}
}

func TestTracker_ConcurrentAppend(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(filepath.Join(t.TempDir(), "history.json"), 0)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tracker.AppendIfChanged(ctx, "item-1", float64(100+i), time.Now())
		}(i)
	}
	wg.Wait()

	points, _ := tracker.ListAll(ctx, "item-1")
	if len(points) != 20 {
		t.Errorf("Expected 20 points, got %d", len(points))
	}
}

func TestTracker_AppendIfChanged(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(filepath.Join(t.TempDir(), "history.json"), 0)
	now := time.Now()

	tests := []struct {
		price float64
		at    time.Time
		want  bool
	}{
		{100, now.Add(-2 * time.Hour), true},
		{100, now.Add(-time.Hour), false},
		{105, now, true},
		// compared against the newest point, not the last appended
		{100, now.Add(-3 * time.Hour), true},
		{105, now.Add(time.Minute), false},
	}
	for i, tt := range tests {
		got, err := tracker.AppendIfChanged(ctx, "item-1", tt.price, tt.at)
		if err != nil {
			t.Fatalf("step %d: AppendIfChanged failed: %v", i, err)
		}
		if got != tt.want {
			t.Errorf("step %d: AppendIfChanged(%v) = %v, want %v", i, tt.price, got, tt.want)
		}
	}

	points, _ := tracker.ListAll(ctx, "item-1")
	if len(points) != 3 {
		t.Errorf("Expected 3 points, got %d", len(points))
	}
}

func TestTracker_AppendIfChangedConcurrent(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(filepath.Join(t.TempDir(), "history.json"), 0)
	tracker.AppendIfChanged(ctx, "item-1", 90, time.Now().Add(-time.Hour))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.AppendIfChanged(ctx, "item-1", 100, time.Now())
		}()
	}
	wg.Wait()

	points, _ := tracker.ListAll(ctx, "item-1")
	if len(points) != 2 {
		t.Errorf("Expected 2 points, got %d", len(points))
	}
}
