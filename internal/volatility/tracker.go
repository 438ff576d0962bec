package volatility

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/noface-00/prims/internal/model"
)

const defaultCurrency = "USD"

// ProductHistory holds the recorded prices for one product.
type ProductHistory struct {
	ProductID string             `json:"product_id"`
	History   []model.PricePoint `json:"history"`
}

// Tracker is a JSON file backed price history store. It is used when no
// database is configured.
type Tracker struct {
	filePath string
	maxAge   time.Duration
	mu       sync.RWMutex
	saveMu   sync.Mutex
	data     map[string]*ProductHistory
}

// NewTracker loads filePath if it exists. Points older than maxAge are
// pruned on append; zero keeps everything.
func NewTracker(filePath string, maxAge time.Duration) *Tracker {
	tracker := &Tracker{
		filePath: filePath,
		maxAge:   maxAge,
		data:     make(map[string]*ProductHistory),
	}

	tracker.loadFromFile()

	return tracker
}

// ListAll returns a copy of the product's history ordered by time.
func (t *Tracker) ListAll(_ context.Context, productID string) ([]model.PricePoint, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	history, ok := t.data[productID]
	if !ok {
		return nil, nil
	}

	points := make([]model.PricePoint, len(history.History))
	copy(points, history.History)
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points, nil
}

// AppendIfChanged records price unless the most recent point already has
// it. The check runs under the same lock as the write.
func (t *Tracker) AppendIfChanged(_ context.Context, productID string, price float64, at time.Time) (bool, error) {
	t.mu.Lock()
	history, exists := t.data[productID]
	if !exists {
		history = &ProductHistory{ProductID: productID}
		t.data[productID] = history
	}

	var latest *model.PricePoint
	for i := range history.History {
		if latest == nil || !history.History[i].Timestamp.Before(latest.Timestamp) {
			latest = &history.History[i]
		}
	}
	if latest != nil && latest.Price == price {
		t.mu.Unlock()
		return false, nil
	}

	history.History = append(history.History, model.PricePoint{
		Price:     price,
		Currency:  defaultCurrency,
		Timestamp: at,
	})
	if t.maxAge > 0 {
		pruneOld(history, time.Now().Add(-t.maxAge))
	}
	t.mu.Unlock()

	return true, t.saveToFile()
}

func pruneOld(history *ProductHistory, cutoff time.Time) {
	var filtered []model.PricePoint
	for _, point := range history.History {
		if point.Timestamp.After(cutoff) {
			filtered = append(filtered, point)
		}
	}
	history.History = filtered
}

// loadFromFile loads historical data from JSON file
func (t *Tracker) loadFromFile() {
	data, err := os.ReadFile(t.filePath)
	if err != nil {
		return // missing or unreadable, start fresh
	}

	var histories []ProductHistory
	if err := json.Unmarshal(data, &histories); err != nil {
		return
	}

	for i := range histories {
		history := &histories[i]
		t.data[history.ProductID] = history
	}
}

func (t *Tracker) saveToFile() error {
	t.saveMu.Lock()
	defer t.saveMu.Unlock()

	if dir := filepath.Dir(t.filePath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create history dir: %w", err)
		}
	}

	t.mu.RLock()
	histories := make([]ProductHistory, 0, len(t.data))
	for _, history := range t.data {
		histories = append(histories, *history)
	}
	data, err := json.MarshalIndent(histories, "", "  ")
	t.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	return os.WriteFile(t.filePath, data, 0644)
}

// GetHistoryStats returns statistics about the tracked data
func (t *Tracker) GetHistoryStats() map[string]int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := make(map[string]int)
	stats["total_products"] = len(t.data)

	var totalPoints int
	for _, history := range t.data {
		totalPoints += len(history.History)
	}
	stats["total_price_points"] = totalPoints

	return stats
}
