package redis

import (
	"time"

	"go.uber.org/zap"

	"github.com/thinktank/tieredcache/internal/stats"
)

// Option configures a redis Backend.
type Option func(*options)

type options struct {
	timeout   time.Duration
	scanCount int64
	logger    *zap.Logger
	collector stats.Collector
}

func defaultOptions() options {
	return options{
		timeout:   DefaultTimeout,
		scanCount: 100,
		logger:    zap.NewNop(),
		collector: stats.NewNoop(),
	}
}

// WithTimeout sets the dial timeout and the per-command deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithScanCount sets the COUNT hint used while clearing a namespace.
func WithScanCount(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.scanCount = n
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

// WithStats sets the stats collector. Nil keeps the no-op collector.
func WithStats(c stats.Collector) Option {
	return func(o *options) {
		if c != nil {
			o.collector = c
		}
	}
}
