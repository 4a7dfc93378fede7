package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/thinktank/tieredcache/internal/stats"
)

func TestCollector_Snapshot(t *testing.T) {
	c := New(nil)

	c.IncCounter(stats.MetricHits, 2)
	c.IncCounter(stats.MetricHits, 3)
	c.SetGauge(stats.MetricMemorySize, 7)
	c.SetGauge(stats.MetricMemorySize, 4)
	c.ObserveHistogram(stats.MetricGetSeconds, 0.1)

	snap := c.Snapshot()
	if snap[stats.MetricHits] != 5 {
		t.Errorf("Snapshot()[hits] = %d, want 5", snap[stats.MetricHits])
	}
	if snap[stats.MetricMemorySize] != 4 {
		t.Errorf("Snapshot()[size] = %d, want 4", snap[stats.MetricMemorySize])
	}
	if _, ok := snap[stats.MetricGetSeconds]; ok {
		t.Error("histograms should not appear in the snapshot")
	}
}

func TestCollector_Logs(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	c := New(zap.New(core))

	c.IncCounter(stats.MetricMisses, 1)
	c.Flush()

	if got := logs.FilterMessage("counter").Len(); got != 1 {
		t.Errorf("counter log entries = %d, want 1", got)
	}
	flushed := logs.FilterMessage("cache metrics").All()
	if len(flushed) != 1 {
		t.Fatalf("flush log entries = %d, want 1", len(flushed))
	}
	if v, ok := flushed[0].ContextMap()[stats.MetricMisses]; !ok || v != int64(1) {
		t.Errorf("flushed %s = %v, want 1", stats.MetricMisses, v)
	}
}
