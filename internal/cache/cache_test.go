package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/noface-00/prims/internal/model"
)

// fakeClock is a manually advanced clock for TTL tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestTTLCache_PutGet(t *testing.T) {
	ctx := context.Background()
	c := NewTTLCache[model.MarketSample](time.Hour)

	sample := model.MarketSample{Query: "iphone 13", Prices: []float64{500, 520}}
	if err := c.Put(ctx, MarketPriceKey("iPhone 13"), sample); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok := c.Get(ctx, "market_price:iphone 13")
	if !ok {
		t.Fatal("Expected to find market sample")
	}
	if got.Query != sample.Query || len(got.Prices) != 2 {
		t.Errorf("Expected %+v, got %+v", sample, got)
	}

	if _, ok := c.Get(ctx, "missing"); ok {
		t.Error("Expected miss for absent key")
	}
}

func TestTTLCache_ExpiryEvictsOnRead(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}
	c := NewTTLCache[string](5*time.Minute, WithClock(clock.Now))

	c.Put(ctx, "k", "v")
	clock.Advance(4 * time.Minute)
	if v, ok := c.Get(ctx, "k"); !ok || v != "v" {
		t.Fatalf("Expected hit within TTL, got %q %v", v, ok)
	}

	clock.Advance(2 * time.Minute)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("Expected miss after TTL")
	}
	if entryCount(c) != 0 {
		t.Errorf("Expected stale entry to be evicted, %d entries left", entryCount(c))
	}
}

func TestTTLCache_RealClockExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewTTLCache[int](20 * time.Millisecond)

	c.Put(ctx, "k", 42)
	time.Sleep(40 * time.Millisecond)

	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("Expected entry to expire")
	}
}

func TestTTLCache_PutRefreshesTimestamp(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}
	c := NewTTLCache[int](time.Minute, WithClock(clock.Now))

	c.Put(ctx, "k", 1)
	clock.Advance(50 * time.Second)
	c.Put(ctx, "k", 2)
	clock.Advance(50 * time.Second)

	if v, ok := c.Get(ctx, "k"); !ok || v != 2 {
		t.Errorf("Expected refreshed value 2, got %d %v", v, ok)
	}
}

func TestTTLCache_Sweep(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}
	c := NewTTLCache[int](time.Minute, WithClock(clock.Now))

	c.Put(ctx, "old1", 1)
	c.Put(ctx, "old2", 2)
	clock.Advance(2 * time.Minute)
	c.Put(ctx, "fresh", 3)

	if removed := c.Sweep(); removed != 2 {
		t.Errorf("Expected 2 removed, got %d", removed)
	}
	if entryCount(c) != 1 {
		t.Errorf("Expected 1 entry left, got %d", entryCount(c))
	}
}

func TestTTLCache_Observer(t *testing.T) {
	ctx := context.Background()
	var hits, misses int
	c := NewTTLCache[int](time.Minute, WithName("market"), WithObserver(func(name string, hit bool) {
		if name != "market" {
			t.Errorf("Expected observer name market, got %s", name)
		}
		if hit {
			hits++
		} else {
			misses++
		}
	}))

	c.Get(ctx, "k")
	c.Put(ctx, "k", 1)
	c.Get(ctx, "k")

	if hits != 1 || misses != 1 {
		t.Errorf("Expected 1 hit and 1 miss, got %d/%d", hits, misses)
	}
}

func TestTTLCache_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := NewTTLCache[int](time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("key%d", i%10)
			c.Put(ctx, key, i)
			c.Get(ctx, key)
			c.Sweep()
		}(i)
	}
	wg.Wait()

	if entryCount(c) != 10 {
		t.Errorf("Expected 10 keys, got %d", entryCount(c))
	}
}

func TestKeys(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{MarketPriceKey("  Apple iPhone 13 "), "market_price:apple iphone 13"},
		{ImageKey("v1|1|0"), "image:v1|1|0"},
		{SellerAgeKey("bestseller"), "seller_age:bestseller"},
		{AnalysisKey("v1|1|0"), "analysis:v1|1|0"},
		{BuildKey("a", "b", "c"), "a:b:c"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("Expected %q, got %q", tt.want, tt.got)
		}
	}
}

func entryCount[V any](c *TTLCache[V]) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
