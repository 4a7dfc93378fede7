package disk

import (
	"time"

	"go.uber.org/zap"

	"github.com/thinktank/tieredcache/internal/stats"
)

// Option configures a disk Backend.
type Option func(*options)

type options struct {
	logger    *zap.Logger
	collector stats.Collector
	now       func() time.Time
}

func defaultOptions() options {
	return options{
		logger:    zap.NewNop(),
		collector: stats.NewNoop(),
		now:       time.Now,
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

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}
