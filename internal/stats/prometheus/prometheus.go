// Package prometheus provides a Prometheus-based stats collector.
package prometheus

import (
	"errors"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/thinktank/tieredcache/internal/stats"
)

// latencyBuckets covers sub-millisecond memory hits up to multi-second
// remote timeouts.
var latencyBuckets = prometheus.ExponentialBuckets(0.00005, 4, 10)

// help describes the metrics emitted by the cache. Unknown names fall back
// to the metric name itself.
var help = map[string]string{
	stats.MetricGets:            "Cache lookups across the tier chain.",
	stats.MetricHits:            "Lookups answered by any tier.",
	stats.MetricMisses:          "Lookups no tier could answer.",
	stats.MetricSets:            "Writes fanned out to the tier chain.",
	stats.MetricSetFailures:     "Writes no tier accepted.",
	stats.MetricPopulates:       "Faster tiers populated after a slower tier hit.",
	stats.MetricGetSeconds:      "Latency of cache lookups in seconds.",
	stats.MetricMemoryHits:      "In-process tier hits.",
	stats.MetricMemoryMisses:    "In-process tier misses, including expired entries.",
	stats.MetricMemoryEvictions: "Entries evicted from the in-process tier.",
	stats.MetricMemorySize:      "Entries currently held by the in-process tier.",
	stats.MetricBackendErrors:   "Backend failures converted to misses.",
	stats.MetricMemoCalls:       "Memoized function invocations on a cache miss.",
}

// Collector implements stats.Collector using Prometheus metrics.
type Collector struct {
	registry    prometheus.Registerer
	constLabels prometheus.Labels

	mu         sync.RWMutex
	counters   map[string]prometheus.Counter
	gauges     map[string]prometheus.Gauge
	histograms map[string]prometheus.Histogram
}

// Compile-time check that Collector implements stats.Collector.
var _ stats.Collector = (*Collector)(nil)

// Option configures a Collector.
type Option func(*Collector)

// WithConstLabels attaches labels to every metric the collector creates,
// e.g. to tell apart caches sharing one registry.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Collector) {
		c.constLabels = labels
	}
}

// New creates a new Prometheus collector.
// If registry is nil, prometheus.DefaultRegisterer is used.
func New(registry prometheus.Registerer, opts ...Option) *Collector {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	c := &Collector{
		registry:   registry,
		counters:   make(map[string]prometheus.Counter),
		gauges:     make(map[string]prometheus.Gauge),
		histograms: make(map[string]prometheus.Histogram),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IncCounter increments a counter metric.
func (c *Collector) IncCounter(name string, delta int64) {
	counter := getOrCreate(c, c.counters, name, func() prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Name:        name,
			Help:        helpFor(name),
			ConstLabels: c.constLabels,
		})
	})
	counter.Add(float64(delta))
}

// SetGauge sets a gauge metric.
func (c *Collector) SetGauge(name string, value int64) {
	gauge := getOrCreate(c, c.gauges, name, func() prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        name,
			Help:        helpFor(name),
			ConstLabels: c.constLabels,
		})
	})
	gauge.Set(float64(value))
}

// ObserveHistogram records a value in a histogram.
func (c *Collector) ObserveHistogram(name string, value float64) {
	histogram := getOrCreate(c, c.histograms, name, func() prometheus.Histogram {
		buckets := prometheus.DefBuckets
		if strings.HasSuffix(name, "_seconds") {
			buckets = latencyBuckets
		}
		return prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        name,
			Help:        helpFor(name),
			ConstLabels: c.constLabels,
			Buckets:     buckets,
		})
	})
	histogram.Observe(value)
}

// getOrCreate returns the metric cached under name, registering a new one
// built by create on first use. A metric already present in the registry is
// reused so several collectors can share one registry.
func getOrCreate[M prometheus.Collector](c *Collector, metrics map[string]M, name string, create func() M) M {
	c.mu.RLock()
	m, ok := metrics[name]
	c.mu.RUnlock()
	if ok {
		return m
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock.
	if m, ok = metrics[name]; ok {
		return m
	}

	m = create()
	if err := c.registry.Register(m); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(M); ok {
				metrics[name] = existing
				return existing
			}
		}
		// Registration failed but the unregistered metric still works.
	}
	metrics[name] = m
	return m
}

func helpFor(name string) string {
	if h, ok := help[name]; ok {
		return h
	}
	return name
}
