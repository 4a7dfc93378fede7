package tieredcache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/thinktank/tieredcache/internal/config"
	"github.com/thinktank/tieredcache/internal/stats"
)

// Registry hands out one Cache per namespace, built from shared settings.
// A Registry is safe for concurrent use by multiple goroutines.
type Registry[V any] struct {
	settings config.Settings
	opts     []Option
	stats    stats.Collector
	logger   *zap.Logger

	mu     sync.Mutex
	caches map[string]*Cache[V]
	closed bool
}

// NewRegistry creates a registry from settings. opts are applied after the
// settings, so they can override individual values or add a logger and
// stats collector.
func NewRegistry[V any](settings config.Settings, opts ...Option) (*Registry[V], error) {
	base, err := WithSettings(settings)
	if err != nil {
		return nil, err
	}
	all := append([]Option{base}, opts...)
	cfg := defaultOptions()
	for _, opt := range all {
		opt.apply(&cfg)
	}
	return &Registry[V]{
		settings: settings,
		opts:     all,
		stats:    cfg.stats,
		logger:   cfg.logger.Named("tieredcache"),
		caches:   make(map[string]*Cache[V]),
	}, nil
}

// Cache returns the cache for namespace, building it on first use.
// Later calls for the same namespace return the same instance.
func (r *Registry[V]) Cache(ctx context.Context, namespace string) (*Cache[V], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if c, ok := r.caches[namespace]; ok {
		return c, nil
	}

	c, err := New[V](ctx, namespace, r.opts...)
	if err != nil {
		return nil, fmt.Errorf("building cache %q: %w", namespace, err)
	}
	r.caches[namespace] = c
	return c, nil
}

// Enabled reports whether memoization should use the cache.
func (r *Registry[V]) Enabled() bool {
	return r.settings.Enabled
}

// Settings returns the settings the registry was built from.
func (r *Registry[V]) Settings() config.Settings {
	return r.settings
}

// Namespaces returns the namespaces built so far, sorted.
func (r *Registry[V]) Namespaces() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.caches))
	for ns := range r.caches {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// Reset closes every cache built so far. The next Cache call for a
// namespace builds a fresh instance. Stored entries are not cleared.
func (r *Registry[V]) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeAll()
}

// Close closes every cache. Later Cache calls return ErrClosed.
func (r *Registry[V]) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	r.closed = true
	return r.closeAll()
}

func (r *Registry[V]) closeAll() error {
	var errs []error
	for ns, c := range r.caches {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing cache %q: %w", ns, err))
		}
		delete(r.caches, ns)
	}
	return errors.Join(errs...)
}
