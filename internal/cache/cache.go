package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is how long analysis inputs stay fresh.
const DefaultTTL = 5 * time.Minute

// Cache is the contract the analysis service needs from a cache backend.
// A stale entry is reported as a miss.
type Cache[V any] interface {
	Get(ctx context.Context, key string) (V, bool)
	Put(ctx context.Context, key string, value V) error
}

type Entry[V any] struct {
	Value     V
	Timestamp time.Time
}

// Option customises a cache at construction.
type Option func(*options)

type options struct {
	name     string
	now      func() time.Time
	observer func(name string, hit bool)
}

// WithName labels the cache for observers.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithObserver is called after every lookup.
func WithObserver(fn func(name string, hit bool)) Option {
	return func(o *options) { o.observer = fn }
}

func buildOptions(opts []Option) options {
	o := options{name: "default", now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// TTLCache is an in-memory cache whose entries expire a fixed time after
// they were written. Expiry is checked on read; Sweep is optional.
type TTLCache[V any] struct {
	ttl     time.Duration
	opts    options
	mu      sync.RWMutex
	entries map[string]Entry[V]
}

var _ Cache[int] = (*TTLCache[int])(nil)

func NewTTLCache[V any](ttl time.Duration, opts ...Option) *TTLCache[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TTLCache[V]{
		ttl:     ttl,
		opts:    buildOptions(opts),
		entries: make(map[string]Entry[V]),
	}
}

func (c *TTLCache[V]) Get(_ context.Context, key string) (V, bool) {
	var zero V

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.record(false)
		return zero, false
	}

	if !c.expired(entry) {
		c.record(true)
		return entry.Value, true
	}

	// Stale: take the write lock and re-check before evicting, a concurrent
	// Put may have refreshed the key.
	c.mu.Lock()
	if e, exists := c.entries[key]; exists && c.expired(e) {
		delete(c.entries, key)
	}
	c.mu.Unlock()

	c.record(false)
	return zero, false
}

func (c *TTLCache[V]) Put(_ context.Context, key string, value V) error {
	c.mu.Lock()
	c.entries[key] = Entry[V]{
		Value:     value,
		Timestamp: c.opts.now(),
	}
	c.mu.Unlock()
	return nil
}

// Sweep evicts every expired entry and returns how many were removed.
func (c *TTLCache[V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if c.expired(entry) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *TTLCache[V]) expired(e Entry[V]) bool {
	return c.opts.now().Sub(e.Timestamp) > c.ttl
}

func (c *TTLCache[V]) record(hit bool) {
	if c.opts.observer != nil {
		c.opts.observer(c.opts.name, hit)
	}
}
