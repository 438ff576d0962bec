package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noface-00/prims/internal/model"
)

// MemoryStore keeps everything in process. Upserts for one product are
// serialized by a per-product lock so concurrent analyses never create a
// second row.
type MemoryStore struct {
	keyLocks sync.Map // product ID -> *sync.Mutex

	mu       sync.RWMutex
	nextID   uint
	analyses map[string]*model.Snapshot
	history  map[string][]model.PricePoint
	products map[string]model.Product
	sellers  map[string]model.Seller
	coupons  map[string]model.Coupon
	images   map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		analyses: make(map[string]*model.Snapshot),
		history:  make(map[string][]model.PricePoint),
		products: make(map[string]model.Product),
		sellers:  make(map[string]model.Seller),
		coupons:  make(map[string]model.Coupon),
		images:   make(map[string]string),
	}
}

func (m *MemoryStore) lockKey(key string) func() {
	v, _ := m.keyLocks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (m *MemoryStore) FindCurrent(_ context.Context, productID string) (*model.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.analyses[productID]
	if !ok {
		return nil, fmt.Errorf("analysis for %s: %w", productID, model.ErrNotFound)
	}
	return cloneSnapshot(s), nil
}

func (m *MemoryStore) Upsert(_ context.Context, snap *model.Snapshot) error {
	if snap == nil || snap.ProductID == "" {
		return &model.ValidationError{Field: "product_id", Message: "must not be empty"}
	}
	unlock := m.lockKey(snap.ProductID)
	defer unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := cloneSnapshot(snap)
	if existing, ok := m.analyses[snap.ProductID]; ok {
		stored.ID = existing.ID
	} else {
		m.nextID++
		stored.ID = m.nextID
	}
	m.analyses[snap.ProductID] = stored
	snap.ID = stored.ID
	return nil
}

// Count reports how many current analyses are stored.
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.analyses)
}

func (m *MemoryStore) Recent(_ context.Context, limit int) ([]*model.Snapshot, error) {
	m.mu.RLock()
	out := make([]*model.Snapshot, 0, len(m.analyses))
	for _, s := range m.analyses {
		out = append(out, cloneSnapshot(s))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) ListAll(_ context.Context, productID string) ([]model.PricePoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	points := append([]model.PricePoint(nil), m.history[productID]...)
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points, nil
}

func (m *MemoryStore) AppendIfChanged(_ context.Context, productID string, price float64, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	points := m.history[productID]
	if latest, ok := latestPoint(points); ok && latest.Price == price {
		return false, nil
	}
	m.history[productID] = append(points, model.PricePoint{
		Price:     price,
		Currency:  defaultCurrency,
		Timestamp: at,
	})
	return true, nil
}

// latestPoint returns the point with the newest timestamp. Points may have
// been appended out of order.
func latestPoint(points []model.PricePoint) (model.PricePoint, bool) {
	if len(points) == 0 {
		return model.PricePoint{}, false
	}
	latest := points[0]
	for _, p := range points[1:] {
		if !p.Timestamp.Before(latest.Timestamp) {
			latest = p
		}
	}
	return latest, true
}

func (m *MemoryStore) Product(_ context.Context, productID string) (*model.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[productID]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", productID, model.ErrNotFound)
	}
	return &p, nil
}

func (m *MemoryStore) SaveProduct(_ context.Context, p *model.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ItemID] = *p
	return nil
}

func (m *MemoryStore) Lookup(_ context.Context, sellerRef string) (*model.Seller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sellers[sellerRef]
	if !ok {
		return nil, fmt.Errorf("seller %s: %w", sellerRef, model.ErrNotFound)
	}
	return &s, nil
}

func (m *MemoryStore) SaveSeller(_ context.Context, s *model.Seller) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sellers[s.Ref] = *s
	return nil
}

func (m *MemoryStore) ForProduct(_ context.Context, productID string) (*model.Coupon, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.coupons[productID]
	if !ok {
		return nil, fmt.Errorf("coupon for %s: %w", productID, model.ErrNotFound)
	}
	return &c, nil
}

func (m *MemoryStore) SaveCoupon(_ context.Context, productID string, c *model.Coupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.coupons[productID] = *c
	return nil
}

func (m *MemoryStore) MainImage(_ context.Context, productID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.images[productID]
	if !ok {
		return "", fmt.Errorf("image for %s: %w", productID, model.ErrNotFound)
	}
	return u, nil
}

// SaveImage records url for the product. Only the main image is kept.
func (m *MemoryStore) SaveImage(_ context.Context, productID, url string, main bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.images[productID]; !ok || main {
		m.images[productID] = url
	}
	return nil
}

func (m *MemoryStore) GeneralStats(_ context.Context) (model.GeneralStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out model.GeneralStats
	daily := make(map[string]int64)
	var sum float64
	for _, s := range m.analyses {
		out.TotalAnalyzed++
		sum += s.PriceDifference
		daily[s.Timestamp.Format("2006-01-02")]++
	}
	if out.TotalAnalyzed > 0 {
		out.AvgPriceDifference = sum / float64(out.TotalAnalyzed)
	}

	out.Daily = make([]model.DailyCount, 0, len(daily))
	for date, n := range daily {
		out.Daily = append(out.Daily, model.DailyCount{Date: date, Count: n})
	}
	sort.Slice(out.Daily, func(i, j int) bool { return out.Daily[i].Date < out.Daily[j].Date })
	return out, nil
}

func cloneSnapshot(s *model.Snapshot) *model.Snapshot {
	c := *s
	c.Failures = append([]string(nil), s.Failures...)
	return &c
}
