package tieredcache

import (
	"context"
	"reflect"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/thinktank/tieredcache/internal/stats"
)

// Func is a function whose results can be memoized.
type Func[V any] func(ctx context.Context, args ...any) (V, error)

// MemoOption configures Memoize.
type MemoOption func(*memoOptions)

type memoOptions struct {
	namespace string
	keyFunc   func(args ...any) string
	ttl       time.Duration
}

// WithMemoNamespace overrides the namespace, which defaults to the
// function's fully qualified name.
func WithMemoNamespace(namespace string) MemoOption {
	return func(o *memoOptions) {
		o.namespace = namespace
	}
}

// WithKeyFunc overrides key derivation. The default is CacheKey over the
// function's short name followed by the call arguments.
func WithKeyFunc(fn func(args ...any) string) MemoOption {
	return func(o *memoOptions) {
		o.keyFunc = fn
	}
}

// WithMemoTTL sets the TTL of memoized results. Zero uses the cache default.
func WithMemoTTL(ttl time.Duration) MemoOption {
	return func(o *memoOptions) {
		o.ttl = ttl
	}
}

// Memoize wraps fn so results are served from the registry's cache for
// fn's namespace. Errors from fn are returned and never cached. When the
// registry is disabled, or the cache cannot be built, fn is called
// directly. Concurrent misses for the same arguments share one call; it runs
// with the first caller's context values but not its cancellation, and each
// caller stops waiting when its own context ends.
func Memoize[V any](reg *Registry[V], fn Func[V], opts ...MemoOption) Func[V] {
	m := newMemo(fn, reg.stats, opts)
	return func(ctx context.Context, args ...any) (V, error) {
		if !reg.Enabled() {
			return m.invoke(ctx, args)
		}
		c, err := reg.Cache(ctx, m.namespace)
		if err != nil {
			reg.logger.Warn("memoization cache unavailable, calling through",
				zap.String("namespace", m.namespace),
				zap.Error(err),
			)
			return m.invoke(ctx, args)
		}
		return m.call(ctx, c, args)
	}
}

// MemoizeWith wraps fn like Memoize but stores results in c.
// WithMemoNamespace is ignored.
func MemoizeWith[V any](c *Cache[V], fn Func[V], opts ...MemoOption) Func[V] {
	m := newMemo(fn, c.stats, opts)
	return func(ctx context.Context, args ...any) (V, error) {
		return m.call(ctx, c, args)
	}
}

type memo[V any] struct {
	fn        Func[V]
	name      string
	namespace string
	keyFunc   func(args ...any) string
	ttl       time.Duration
	stats     stats.Collector
	group     singleflight.Group
}

func newMemo[V any](fn Func[V], collector stats.Collector, opts []MemoOption) *memo[V] {
	var cfg memoOptions
	for _, opt := range opts {
		opt(&cfg)
	}

	full := funcName(fn)
	m := &memo[V]{
		fn:        fn,
		name:      shortName(full),
		namespace: cfg.namespace,
		keyFunc:   cfg.keyFunc,
		ttl:       cfg.ttl,
		stats:     collector,
	}
	if m.namespace == "" {
		m.namespace = full
	}
	return m
}

func (m *memo[V]) key(args []any) string {
	if m.keyFunc != nil {
		return m.keyFunc(args...)
	}
	return CacheKey(append([]any{m.name}, args...)...)
}

func (m *memo[V]) call(ctx context.Context, c *Cache[V], args []any) (V, error) {
	key := m.key(args)
	if v, ok := c.Get(ctx, key); ok {
		return v, nil
	}

	// The shared call outlives any one caller: cancelling the caller that
	// started it must not fail the others waiting on the same key.
	shared := context.WithoutCancel(ctx)
	ch := m.group.DoChan(key, func() (any, error) {
		v, err := m.invoke(shared, args)
		if err != nil {
			return nil, err
		}
		c.Set(shared, key, v, m.ttl)
		return v, nil
	})

	var zero V
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(V)
		return v, nil
	}
}

func (m *memo[V]) invoke(ctx context.Context, args []any) (V, error) {
	m.stats.IncCounter(stats.MetricMemoCalls, 1)
	return m.fn(ctx, args...)
}

// funcName returns the fully qualified name of fn,
// e.g. "github.com/acme/app/reports.Build".
func funcName(fn any) string {
	f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if f == nil {
		return "anonymous"
	}
	return f.Name()
}

// shortName strips the package path from a qualified function name.
func shortName(full string) string {
	if i := strings.LastIndex(full, "/"); i >= 0 {
		full = full[i+1:]
	}
	if i := strings.Index(full, "."); i >= 0 {
		full = full[i+1:]
	}
	return full
}
