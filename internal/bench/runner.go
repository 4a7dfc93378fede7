package bench

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// Target is the cache surface exercised by a run.
type Target interface {
	Get(ctx context.Context, key string) (any, bool)
	Set(ctx context.Context, key string, value any, ttl time.Duration) bool
}

// Workload describes a benchmark run.
type Workload struct {
	Ops       int     // Total operations.
	Keys      int     // Distinct keys drawn from.
	ReadRatio float64 // Fraction of operations that are reads.
	Seed      uint64  // Key and operation sequence seed.
}

// DefaultWorkload returns a read-heavy workload.
func DefaultWorkload() Workload {
	return Workload{Ops: 10000, Keys: 1000, ReadRatio: 0.9, Seed: 1}
}

// Result holds the latencies of one run, in seconds.
type Result struct {
	Name    string
	Gets    []float64
	Sets    []float64
	Hits    int
	Misses  int
	Elapsed time.Duration
}

// HitRate returns the read hit rate as a percentage.
func (r *Result) HitRate() float64 {
	total := r.Hits + r.Misses
	if total == 0 {
		return 0
	}
	return float64(r.Hits) / float64(total) * 100
}

// OpsPerSecond returns the overall throughput.
func (r *Result) OpsPerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(len(r.Gets)+len(r.Sets)) / r.Elapsed.Seconds()
}

// Run executes w against t. Keys are named "bench:<n>" and values are
// the key index. The sequence is deterministic for a given seed.
func Run(ctx context.Context, name string, t Target, w Workload) (*Result, error) {
	if w.Ops <= 0 || w.Keys <= 0 {
		return nil, fmt.Errorf("bench: ops and keys must be positive")
	}
	if w.ReadRatio < 0 || w.ReadRatio > 1 {
		return nil, fmt.Errorf("bench: read ratio must be within [0, 1]")
	}

	rng := rand.New(rand.NewPCG(w.Seed, w.Seed^0x9e3779b97f4a7c15))
	res := &Result{
		Name: name,
		Gets: make([]float64, 0, int(float64(w.Ops)*w.ReadRatio)+1),
		Sets: make([]float64, 0, int(float64(w.Ops)*(1-w.ReadRatio))+1),
	}

	start := time.Now()
	for i := 0; i < w.Ops; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := rng.IntN(w.Keys)
		key := fmt.Sprintf("bench:%d", n)

		opStart := time.Now()
		if rng.Float64() < w.ReadRatio {
			_, ok := t.Get(ctx, key)
			res.Gets = append(res.Gets, time.Since(opStart).Seconds())
			if ok {
				res.Hits++
			} else {
				res.Misses++
			}
			continue
		}
		t.Set(ctx, key, float64(n), 0)
		res.Sets = append(res.Sets, time.Since(opStart).Seconds())
	}
	res.Elapsed = time.Since(start)
	return res, nil
}

// Comparison is a statistical comparison of read latency between runs.
type Comparison struct {
	Baseline    string
	Candidate   string
	Stats1      *DescriptiveStats
	Stats2      *DescriptiveStats
	MannWhitney *MannWhitneyResult
	EffectSize  *EffectSize
	Faster      string // Name of the run with the lower mean, or "tie".
	Confident   bool   // True if the difference is significant.
}

// Compare compares the read latencies of two runs.
func Compare(baseline, candidate *Result) *Comparison {
	s1 := Describe(baseline.Gets)
	s2 := Describe(candidate.Gets)
	mw := MannWhitneyU(baseline.Gets, candidate.Gets)

	c := &Comparison{
		Baseline:    baseline.Name,
		Candidate:   candidate.Name,
		Stats1:      s1,
		Stats2:      s2,
		MannWhitney: mw,
		EffectSize:  ComputeEffectSize(baseline.Gets, candidate.Gets),
		Faster:      "tie",
	}
	switch {
	case s1.Mean < s2.Mean:
		c.Faster, c.Confident = baseline.Name, mw.Significant
	case s2.Mean < s1.Mean:
		c.Faster, c.Confident = candidate.Name, mw.Significant
	}
	return c
}
