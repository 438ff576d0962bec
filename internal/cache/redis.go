package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisOpTimeout = 500 * time.Millisecond

// RedisCache shares entries between processes. Redis expires keys itself,
// so a stale entry is simply absent.
type RedisCache[V any] struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
	opts   options
}

var _ Cache[int] = (*RedisCache[int])(nil)

// NewRedisCache stores JSON encoded values under prefix+key.
func NewRedisCache[V any](client redis.Cmdable, prefix string, ttl time.Duration, opts ...Option) *RedisCache[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache[V]{
		client: client,
		ttl:    ttl,
		prefix: prefix,
		opts:   buildOptions(opts),
	}
}

func (r *RedisCache[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V

	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		r.observe(false)
		return zero, false
	}

	var value V
	if err := json.Unmarshal(data, &value); err != nil {
		r.observe(false)
		return zero, false
	}

	r.observe(true)
	return value, true
}

func (r *RedisCache[V]) Put(ctx context.Context, key string, value V) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	if err := r.client.Set(ctx, r.prefix+key, string(data), r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Ping reports whether the backing server is reachable.
func (r *RedisCache[V]) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache[V]) observe(hit bool) {
	if r.opts.observer != nil {
		r.opts.observer(r.opts.name, hit)
	}
}
