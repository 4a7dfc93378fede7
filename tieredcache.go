// Package tieredcache provides a namespaced key/value cache that reads
// through an ordered chain of tiers, fastest first.
//
// The default chain is an in-process tier, a Redis tier and a filesystem
// tier. A hit in a slower tier is copied into every faster tier so the
// next read is served locally. Writes go to every tier and succeed when
// any tier accepts them; tier failures are logged, never returned.
//
// Example usage:
//
//	cache, err := tieredcache.New[Report](ctx, "reports",
//	    tieredcache.WithDirectory("/var/cache/reports"),
//	    tieredcache.WithRedisURL("redis://localhost:6379/0"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cache.Close()
//
//	cache.Set(ctx, "q3", report, 0)
//	if r, ok := cache.Get(ctx, "q3"); ok {
//	    fmt.Println(r.Title)
//	}
package tieredcache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/thinktank/tieredcache/internal/backend"
	"github.com/thinktank/tieredcache/internal/backend/memory"
	"github.com/thinktank/tieredcache/internal/stats"
)

// Sentinel errors for well-defined error conditions.
var (
	// ErrNoBackends indicates an empty tier chain was provided.
	ErrNoBackends = errors.New("tieredcache: no backends provided")

	// ErrClosed indicates the cache has been closed.
	ErrClosed = errors.New("tieredcache: cache closed")

	// ErrNamespaceRequired indicates an empty namespace.
	ErrNamespaceRequired = errors.New("tieredcache: namespace required")
)

// NoExpiration passed as a ttl stores an entry without expiry.
// A zero ttl means the cache's default TTL.
const NoExpiration time.Duration = -1

// Backend is a single cache tier. See package internal/backend for the
// failure contract every tier follows.
type Backend[V any] = backend.Backend[V]

// Cache reads through and writes to an ordered chain of tiers.
// A Cache is safe for concurrent use by multiple goroutines.
type Cache[V any] struct {
	namespace  string
	backends   []Backend[V]
	defaultTTL time.Duration
	stats      stats.Collector
	logger     *zap.Logger
	closed     atomic.Bool
}

// New creates a cache for namespace with the default tier chain.
// An unreachable Redis tier is dropped with a warning; any other tier
// construction failure is returned.
func New[V any](ctx context.Context, namespace string, opts ...Option) (*Cache[V], error) {
	if namespace == "" {
		return nil, ErrNamespaceRequired
	}
	cfg := defaultOptions()
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	chain, err := buildChain[V](ctx, namespace, cfg)
	if err != nil {
		return nil, err
	}
	return newCache(namespace, chain, cfg), nil
}

// NewWithBackends creates a cache over an explicit chain, fastest first.
// Chain construction options are ignored.
func NewWithBackends[V any](namespace string, backends []Backend[V], opts ...Option) (*Cache[V], error) {
	if namespace == "" {
		return nil, ErrNamespaceRequired
	}
	if len(backends) == 0 {
		return nil, ErrNoBackends
	}
	cfg := defaultOptions()
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	chain := make([]Backend[V], len(backends))
	copy(chain, backends)
	return newCache(namespace, chain, cfg), nil
}

func newCache[V any](namespace string, chain []Backend[V], cfg options) *Cache[V] {
	c := &Cache[V]{
		namespace:  namespace,
		backends:   chain,
		defaultTTL: cfg.defaultTTL,
		stats:      cfg.stats,
		logger:     cfg.logger.Named("tieredcache").With(zap.String("namespace", namespace)),
	}

	names := make([]string, len(chain))
	for i, b := range chain {
		names[i] = b.Name()
	}
	c.logger.Debug("cache initialized",
		zap.Strings("tiers", names),
		zap.Duration("defaultTTL", c.defaultTTL),
	)
	return c
}

// Get returns the value stored under key from the fastest tier holding it.
// Every faster tier is then populated with the default TTL.
func (c *Cache[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	if c.closed.Load() {
		return zero, false
	}

	start := time.Now()
	defer func() {
		c.stats.ObserveHistogram(stats.MetricGetSeconds, time.Since(start).Seconds())
	}()
	c.stats.IncCounter(stats.MetricGets, 1)

	for i, b := range c.backends {
		v, ok := b.Get(ctx, key)
		if !ok {
			continue
		}
		c.stats.IncCounter(stats.MetricHits, 1)
		c.stats.IncCounter(stats.TierHits(b.Name()), 1)
		c.populate(ctx, i, map[string]V{key: v})
		return v, true
	}

	c.stats.IncCounter(stats.MetricMisses, 1)
	return zero, false
}

// Set stores value in every tier. A zero ttl uses the default TTL and
// NoExpiration stores without expiry. Reports whether any tier stored it.
func (c *Cache[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) bool {
	if c.closed.Load() {
		return false
	}
	ttl = c.resolveTTL(ttl)
	c.stats.IncCounter(stats.MetricSets, 1)

	ok := false
	for _, b := range c.backends {
		if b.Set(ctx, key, value, ttl) {
			ok = true
		}
	}
	if !ok {
		c.stats.IncCounter(stats.MetricSetFailures, 1)
		c.logger.Warn("no tier accepted write", zap.String("key", key))
	}
	return ok
}

// Delete removes key from every tier. Reports whether any tier acted.
func (c *Cache[V]) Delete(ctx context.Context, key string) bool {
	if c.closed.Load() {
		return false
	}
	ok := false
	for _, b := range c.backends {
		if b.Delete(ctx, key) {
			ok = true
		}
	}
	return ok
}

// Clear removes every entry of the namespace from every tier.
// Reports whether any tier was cleared.
func (c *Cache[V]) Clear(ctx context.Context) bool {
	if c.closed.Load() {
		return false
	}
	ok := false
	for _, b := range c.backends {
		if b.Clear(ctx) {
			ok = true
		}
	}
	c.logger.Debug("cache cleared", zap.Bool("ok", ok))
	return ok
}

// GetMany returns the entries found for keys. Each tier is asked only for
// the keys still missing, and keys found in a slower tier are copied into
// the faster ones. Missing keys are omitted from the result.
func (c *Cache[V]) GetMany(ctx context.Context, keys []string) map[string]V {
	out := make(map[string]V, len(keys))
	if c.closed.Load() || len(keys) == 0 {
		return out
	}

	missing := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		missing = append(missing, k)
	}
	c.stats.IncCounter(stats.MetricGets, int64(len(missing)))

	for i, b := range c.backends {
		if len(missing) == 0 {
			break
		}
		found := b.GetMany(ctx, missing)
		if len(found) == 0 {
			continue
		}
		for k, v := range found {
			out[k] = v
		}
		c.stats.IncCounter(stats.MetricHits, int64(len(found)))
		c.stats.IncCounter(stats.TierHits(b.Name()), int64(len(found)))
		c.populate(ctx, i, found)

		remaining := missing[:0]
		for _, k := range missing {
			if _, ok := found[k]; !ok {
				remaining = append(remaining, k)
			}
		}
		missing = remaining
	}

	if len(missing) > 0 {
		c.stats.IncCounter(stats.MetricMisses, int64(len(missing)))
	}
	return out
}

// SetMany stores every item in every tier with the same ttl, resolved as
// in Set. Reports whether any tier stored the batch.
func (c *Cache[V]) SetMany(ctx context.Context, items map[string]V, ttl time.Duration) bool {
	if c.closed.Load() {
		return false
	}
	if len(items) == 0 {
		return true
	}
	ttl = c.resolveTTL(ttl)
	c.stats.IncCounter(stats.MetricSets, int64(len(items)))

	ok := false
	for _, b := range c.backends {
		if b.SetMany(ctx, items, ttl) {
			ok = true
		}
	}
	if !ok {
		c.stats.IncCounter(stats.MetricSetFailures, int64(len(items)))
		c.logger.Warn("no tier accepted batch write", zap.Int("items", len(items)))
	}
	return ok
}

// Namespace returns the namespace the cache is scoped to.
func (c *Cache[V]) Namespace() string {
	return c.namespace
}

// DefaultTTL returns the TTL used for a zero ttl and for population.
func (c *Cache[V]) DefaultTTL() time.Duration {
	return c.defaultTTL
}

// Backends returns a copy of the tier chain, fastest first.
func (c *Cache[V]) Backends() []Backend[V] {
	out := make([]Backend[V], len(c.backends))
	copy(out, c.backends)
	return out
}

// MemoryStats returns the statistics of the first in-process tier.
func (c *Cache[V]) MemoryStats() (memory.Stats, bool) {
	for _, b := range c.backends {
		if m, ok := b.(*memory.Backend[V]); ok {
			return m.Stats(), true
		}
	}
	return memory.Stats{}, false
}

// Close closes every tier. After Close, reads miss and writes report false.
func (c *Cache[V]) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	var errs []error
	for _, b := range c.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s tier: %w", b.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// populate writes items into every tier faster than hit.
func (c *Cache[V]) populate(ctx context.Context, hit int, items map[string]V) {
	for _, b := range c.backends[:hit] {
		var ok bool
		if len(items) == 1 {
			for k, v := range items {
				ok = b.Set(ctx, k, v, c.defaultTTL)
			}
		} else {
			ok = b.SetMany(ctx, items, c.defaultTTL)
		}
		if ok {
			c.stats.IncCounter(stats.MetricPopulates, int64(len(items)))
		}
	}
}

func (c *Cache[V]) resolveTTL(ttl time.Duration) time.Duration {
	switch {
	case ttl == 0:
		return c.defaultTTL
	case ttl < 0:
		return 0
	default:
		return ttl
	}
}
