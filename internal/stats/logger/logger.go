// Package logger provides a zap-based stats collector that logs metrics and
// keeps running totals for later inspection.
package logger

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/thinktank/tieredcache/internal/stats"
)

// Collector implements stats.Collector by logging metrics via zap.
type Collector struct {
	logger *zap.Logger

	mu       sync.Mutex
	counters map[string]int64
	gauges   map[string]int64
}

// Compile-time check that Collector implements stats.Collector.
var _ stats.Collector = (*Collector)(nil)

// New creates a new logger-based collector.
// If logger is nil, a no-op logger is used.
func New(logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		logger:   logger,
		counters: make(map[string]int64),
		gauges:   make(map[string]int64),
	}
}

// IncCounter logs a counter increment.
func (c *Collector) IncCounter(name string, delta int64) {
	c.mu.Lock()
	c.counters[name] += delta
	c.mu.Unlock()

	c.logger.Debug("counter",
		zap.String("metric", name),
		zap.Int64("delta", delta),
	)
}

// SetGauge logs a gauge value.
func (c *Collector) SetGauge(name string, value int64) {
	c.mu.Lock()
	c.gauges[name] = value
	c.mu.Unlock()

	c.logger.Debug("gauge",
		zap.String("metric", name),
		zap.Int64("value", value),
	)
}

// ObserveHistogram logs a histogram observation.
func (c *Collector) ObserveHistogram(name string, value float64) {
	c.logger.Debug("histogram",
		zap.String("metric", name),
		zap.Float64("value", value),
	)
}

// Snapshot returns the current counter totals and gauge values keyed by
// metric name.
func (c *Collector) Snapshot() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]int64, len(c.counters)+len(c.gauges))
	for k, v := range c.counters {
		out[k] = v
	}
	for k, v := range c.gauges {
		out[k] = v
	}
	return out
}

// Flush writes the snapshot to the logger at info level in name order.
func (c *Collector) Flush() {
	snap := c.Snapshot()
	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]zap.Field, 0, len(names))
	for _, name := range names {
		fields = append(fields, zap.Int64(name, snap[name]))
	}
	c.logger.Info("cache metrics", fields...)
}
