package memory

import (
	"time"

	"go.uber.org/zap"

	"github.com/thinktank/tieredcache/internal/backend/memory/cachestrategy/lru"
	"github.com/thinktank/tieredcache/internal/stats"
)

// Option configures a memory Backend.
type Option func(*options)

type options struct {
	maxSize   int
	policy    lru.Policy
	collector stats.Collector
	logger    *zap.Logger
	now       func() time.Time
}

func defaultOptions() options {
	return options{
		maxSize:   DefaultMaxSize,
		policy:    lru.PolicyInsertion,
		collector: stats.NewNoop(),
		logger:    zap.NewNop(),
		now:       time.Now,
	}
}

// WithMaxSize sets the entry capacity. Values below 1 are ignored.
func WithMaxSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxSize = n
		}
	}
}

// WithPolicy sets the eviction policy used by New.
func WithPolicy(p lru.Policy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithStats sets the stats collector. Nil keeps the no-op collector.
func WithStats(c stats.Collector) Option {
	return func(o *options) {
		if c != nil {
			o.collector = c
		}
	}
}

// WithLogger sets the logger. Nil keeps the no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}
