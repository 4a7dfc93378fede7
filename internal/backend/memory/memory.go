// Package memory implements the in-process cache tier.
package memory

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/thinktank/tieredcache/internal/backend"
	"github.com/thinktank/tieredcache/internal/backend/memory/cachestrategy"
	"github.com/thinktank/tieredcache/internal/backend/memory/cachestrategy/lru"
	"github.com/thinktank/tieredcache/internal/stats"
)

// DefaultMaxSize is the default entry capacity.
const DefaultMaxSize = 1000

// Compile-time check that Backend implements backend.Backend.
var _ backend.Backend[[]byte] = (*Backend[[]byte])(nil)

// Stats contains cache statistics.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int // Current number of entries
	MaxSize   int
}

// HitRate returns the cache hit rate as a percentage.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Entry is a stored value with its absolute expiry.
// A zero Expires means the entry never expires.
type Entry[V any] struct {
	Value   V
	Expires time.Time
}

// Backend is a bounded in-process cache tier.
// A single mutex guards every operation.
type Backend[V any] struct {
	namespace string
	maxSize   int
	strategy  cachestrategy.Strategy[Entry[V]]
	collector stats.Collector
	logger    *zap.Logger
	now       func() time.Time

	mu        sync.Mutex
	hits      int64
	misses    int64
	evictions int64
}

// New creates a memory backend for namespace using an LRU-list strategy
// sized to the configured capacity.
func New[V any](namespace string, opts ...Option) (*Backend[V], error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	strategy, err := lru.New[Entry[V]](cfg.maxSize, cfg.policy)
	if err != nil {
		return nil, err
	}
	return newBackend[V](namespace, strategy, cfg), nil
}

// NewWithStrategy creates a memory backend with an injected eviction
// strategy. The backend enforces the configured capacity itself.
func NewWithStrategy[V any](namespace string, strategy cachestrategy.Strategy[Entry[V]], opts ...Option) *Backend[V] {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	return newBackend[V](namespace, strategy, cfg)
}

func newBackend[V any](namespace string, strategy cachestrategy.Strategy[Entry[V]], cfg options) *Backend[V] {
	b := &Backend[V]{
		namespace: namespace,
		maxSize:   cfg.maxSize,
		strategy:  strategy,
		collector: cfg.collector,
		logger:    cfg.logger.Named("memory").With(zap.String("namespace", namespace)),
		now:       cfg.now,
	}
	b.logger.Debug("memory backend initialized",
		zap.Int("maxSize", cfg.maxSize),
		zap.Stringer("policy", cfg.policy),
	)
	return b
}

// Name returns "memory".
func (b *Backend[V]) Name() string {
	return "memory"
}

// Namespace returns the namespace applied to every key.
func (b *Backend[V]) Namespace() string {
	return b.namespace
}

// Get retrieves a value, dropping it if it has expired.
func (b *Backend[V]) Get(_ context.Context, key string) (V, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.get(key)
}

// Set stores a value. Inserting a new key at capacity evicts one entry.
func (b *Backend[V]) Set(_ context.Context, key string, value V, ttl time.Duration) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.set(key, value, ttl)
	b.collector.SetGauge(stats.MetricMemorySize, int64(b.strategy.Len()))
	return true
}

// Delete removes a value.
func (b *Backend[V]) Delete(_ context.Context, key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	removed := b.strategy.Remove(backend.Key(b.namespace, key))
	b.collector.SetGauge(stats.MetricMemorySize, int64(b.strategy.Len()))
	return removed
}

// Clear removes every entry and resets the counters.
func (b *Backend[V]) Clear(_ context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.strategy.Purge()
	b.hits, b.misses, b.evictions = 0, 0, 0
	b.collector.SetGauge(stats.MetricMemorySize, 0)
	return true
}

// GetMany retrieves several values under one lock acquisition.
func (b *Backend[V]) GetMany(_ context.Context, keys []string) map[string]V {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]V, len(keys))
	for _, key := range keys {
		if v, ok := b.get(key); ok {
			out[key] = v
		}
	}
	return out
}

// SetMany stores several values under one lock acquisition.
func (b *Backend[V]) SetMany(_ context.Context, items map[string]V, ttl time.Duration) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, v := range items {
		b.set(key, v, ttl)
	}
	b.collector.SetGauge(stats.MetricMemorySize, int64(b.strategy.Len()))
	return true
}

// Close is a no-op.
func (b *Backend[V]) Close() error {
	return nil
}

// Stats returns current cache statistics.
func (b *Backend[V]) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Hits:      b.hits,
		Misses:    b.misses,
		Evictions: b.evictions,
		Size:      b.strategy.Len(),
		MaxSize:   b.maxSize,
	}
}

// Len returns the number of entries, including expired ones not yet purged.
func (b *Backend[V]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.strategy.Len()
}

// get must be called with b.mu held.
func (b *Backend[V]) get(key string) (V, bool) {
	k := backend.Key(b.namespace, key)
	e, ok := b.strategy.Get(k)
	if ok && backend.Expired(e.Expires, b.now()) {
		b.strategy.Remove(k)
		b.collector.SetGauge(stats.MetricMemorySize, int64(b.strategy.Len()))
		ok = false
	}
	if !ok {
		b.misses++
		b.collector.IncCounter(stats.MetricMemoryMisses, 1)
		var zero V
		return zero, false
	}
	b.hits++
	b.collector.IncCounter(stats.MetricMemoryHits, 1)
	return e.Value, true
}

// set must be called with b.mu held.
func (b *Backend[V]) set(key string, value V, ttl time.Duration) {
	k := backend.Key(b.namespace, key)
	if !b.strategy.Contains(k) && b.strategy.Len() >= b.maxSize {
		if evicted, ok := b.strategy.RemoveOldest(); ok {
			b.evictions++
			b.collector.IncCounter(stats.MetricMemoryEvictions, 1)
			b.logger.Debug("evicted entry", zap.String("key", evicted))
		}
	}
	b.strategy.Add(k, Entry[V]{Value: value, Expires: backend.Expiry(b.now(), ttl)})
}
