// Package stats provides a unified interface for collecting metrics.
package stats

// Metric names used throughout the library.
const (
	// Orchestrator metrics.
	MetricGets        = "tieredcache_gets_total"
	MetricHits        = "tieredcache_hits_total"
	MetricMisses      = "tieredcache_misses_total"
	MetricSets        = "tieredcache_sets_total"
	MetricSetFailures = "tieredcache_set_failures_total"
	MetricPopulates   = "tieredcache_populates_total"
	MetricGetSeconds  = "tieredcache_get_duration_seconds"

	// Memory tier metrics.
	MetricMemoryHits      = "tieredcache_memory_hits_total"
	MetricMemoryMisses    = "tieredcache_memory_misses_total"
	MetricMemoryEvictions = "tieredcache_memory_evictions_total"
	MetricMemorySize      = "tieredcache_memory_size"

	// Backend failures, caught and converted to misses.
	MetricBackendErrors = "tieredcache_backend_errors_total"

	// Memoization metrics.
	MetricMemoCalls = "tieredcache_memo_calls_total"
)

// TierHits returns the per-tier hit counter name for the named backend.
func TierHits(tier string) string {
	return "tieredcache_tier_" + tier + "_hits_total"
}

// Collector defines the interface for collecting metrics.
type Collector interface {
	// IncCounter increments a counter metric by delta.
	IncCounter(name string, delta int64)

	// SetGauge sets a gauge metric to value.
	SetGauge(name string, value int64)

	// ObserveHistogram records a value in a histogram metric.
	ObserveHistogram(name string, value float64)
}
