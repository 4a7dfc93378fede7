// Package bench measures operation latency of a cache chain and compares
// chains statistically.
package bench

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// MannWhitneyResult contains the result of a Mann-Whitney U test.
type MannWhitneyResult struct {
	U           float64 // U statistic.
	Z           float64 // Z score (normal approximation).
	PValue      float64 // Two-tailed p-value.
	Significant bool    // True if p < 0.05.
}

// MannWhitneyU tests whether two latency samples come from different
// distributions without assuming normality. The p-value uses the normal
// approximation, which is sound for the sample sizes bench runs produce.
func MannWhitneyU(sample1, sample2 []float64) *MannWhitneyResult {
	n1 := float64(len(sample1))
	n2 := float64(len(sample2))
	if n1 == 0 || n2 == 0 {
		return &MannWhitneyResult{}
	}

	u1 := rankSum(sample1, sample2) - n1*(n1+1)/2
	u := math.Min(u1, n1*n2-u1)

	var z float64
	if sigma := math.Sqrt(n1 * n2 * (n1 + n2 + 1) / 12); sigma > 0 {
		z = (u - n1*n2/2) / sigma
	}
	p := 2 * distuv.UnitNormal.CDF(-math.Abs(z))

	return &MannWhitneyResult{
		U:           u,
		Z:           z,
		PValue:      p,
		Significant: p < 0.05,
	}
}

// rankSum returns the sum of ranks held by xs in the pooled ordering of xs
// and ys. Ties share their average rank.
func rankSum(xs, ys []float64) float64 {
	pooled := make([]float64, 0, len(xs)+len(ys))
	pooled = append(pooled, xs...)
	pooled = append(pooled, ys...)
	fromX := make([]bool, len(pooled))
	for i := range xs {
		fromX[i] = true
	}
	// Sort values and their origin together.
	stat.SortWeightedLabeled(pooled, fromX, nil)

	var sum float64
	for i := 0; i < len(pooled); {
		j := i + 1
		for j < len(pooled) && pooled[j] == pooled[i] {
			j++
		}
		rank := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			if fromX[k] {
				sum += rank
			}
		}
		i = j
	}
	return sum
}

// EffectSize contains effect size metrics.
type EffectSize struct {
	CohensD        float64 // (mean1 - mean2) / pooled std.
	Interpretation string  // "negligible", "small", "medium", "large".
}

// ComputeEffectSize computes Cohen's d.
func ComputeEffectSize(sample1, sample2 []float64) *EffectSize {
	if len(sample1) < 2 || len(sample2) < 2 {
		return &EffectSize{Interpretation: "undefined"}
	}

	mean1, var1 := stat.MeanVariance(sample1, nil)
	mean2, var2 := stat.MeanVariance(sample2, nil)

	n1 := float64(len(sample1))
	n2 := float64(len(sample2))
	pooled := math.Sqrt(((n1-1)*var1 + (n2-1)*var2) / (n1 + n2 - 2))

	var d float64
	if pooled > 0 {
		d = (mean1 - mean2) / pooled
	}
	return &EffectSize{
		CohensD:        d,
		Interpretation: interpretCohensD(math.Abs(d)),
	}
}

func interpretCohensD(d float64) string {
	switch {
	case d < 0.2:
		return "negligible"
	case d < 0.5:
		return "small"
	case d < 0.8:
		return "medium"
	default:
		return "large"
	}
}

// DescriptiveStats summarizes a latency sample in seconds.
type DescriptiveStats struct {
	N      int
	Mean   float64
	Median float64
	StdDev float64
	Min    float64
	Max    float64
	P90    float64
	P99    float64
}

// Describe computes descriptive statistics for a sample.
func Describe(sample []float64) *DescriptiveStats {
	if len(sample) == 0 {
		return &DescriptiveStats{}
	}

	sorted := make([]float64, len(sample))
	copy(sorted, sample)
	sort.Float64s(sorted)

	return &DescriptiveStats{
		N:      len(sorted),
		Mean:   stat.Mean(sorted, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		StdDev: stat.StdDev(sorted, nil),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		P90:    stat.Quantile(0.9, stat.Empirical, sorted, nil),
		P99:    stat.Quantile(0.99, stat.Empirical, sorted, nil),
	}
}
