package bench

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// MarkdownReport writes benchmark results in Markdown format.
type MarkdownReport struct {
	w   io.Writer
	now func() time.Time
}

// NewMarkdownReport creates a new Markdown report writer.
func NewMarkdownReport(w io.Writer) *MarkdownReport {
	return &MarkdownReport{w: w, now: time.Now}
}

// WriteHeader writes the report header.
func (r *MarkdownReport) WriteHeader(title string) {
	fmt.Fprintf(r.w, "# %s\n\n", title)
	fmt.Fprintf(r.w, "Generated: %s\n\n", r.now().Format(time.RFC3339))
}

// WriteWorkload writes the methodology section.
func (r *MarkdownReport) WriteWorkload(w Workload, tiers []string) {
	fmt.Fprintln(r.w, "## Workload")
	fmt.Fprintln(r.w)
	fmt.Fprintf(r.w, "- **Tiers:** %s\n", strings.Join(tiers, " → "))
	fmt.Fprintf(r.w, "- **Operations:** %d\n", w.Ops)
	fmt.Fprintf(r.w, "- **Distinct keys:** %d\n", w.Keys)
	fmt.Fprintf(r.w, "- **Read ratio:** %.0f%%\n", w.ReadRatio*100)
	fmt.Fprintln(r.w)
}

// WriteSummaryTable writes one row per run.
func (r *MarkdownReport) WriteSummaryTable(results []*Result) {
	fmt.Fprintln(r.w, "## Summary")
	fmt.Fprintln(r.w)
	fmt.Fprintln(r.w, "| Run | Ops/s | Hit Rate | Get p50 | Get p99 | Set p50 | Set p99 |")
	fmt.Fprintln(r.w, "|-----|-------|----------|---------|---------|---------|---------|")
	for _, res := range results {
		gets := Describe(res.Gets)
		sets := Describe(res.Sets)
		fmt.Fprintf(r.w, "| %s | %.0f | %.1f%% | %s | %s | %s | %s |\n",
			res.Name, res.OpsPerSecond(), res.HitRate(),
			FormatSeconds(gets.Median), FormatSeconds(gets.P99),
			FormatSeconds(sets.Median), FormatSeconds(sets.P99))
	}
	fmt.Fprintln(r.w)
}

// WriteComparison writes a detailed comparison section.
func (r *MarkdownReport) WriteComparison(c *Comparison) {
	fmt.Fprintf(r.w, "## %s vs %s\n\n", c.Baseline, c.Candidate)

	fmt.Fprintln(r.w, "### Read Latency")
	fmt.Fprintln(r.w)
	fmt.Fprintln(r.w, "| Metric | "+c.Baseline+" | "+c.Candidate+" |")
	fmt.Fprintln(r.w, "|--------|"+strings.Repeat("-", len(c.Baseline)+2)+"|"+strings.Repeat("-", len(c.Candidate)+2)+"|")
	rows := []struct {
		name string
		a, b float64
	}{
		{"Mean", c.Stats1.Mean, c.Stats2.Mean},
		{"Median", c.Stats1.Median, c.Stats2.Median},
		{"Std Dev", c.Stats1.StdDev, c.Stats2.StdDev},
		{"P90", c.Stats1.P90, c.Stats2.P90},
		{"P99", c.Stats1.P99, c.Stats2.P99},
		{"Max", c.Stats1.Max, c.Stats2.Max},
	}
	for _, row := range rows {
		fmt.Fprintf(r.w, "| %s | %s | %s |\n", row.name, FormatSeconds(row.a), FormatSeconds(row.b))
	}
	fmt.Fprintln(r.w)

	fmt.Fprintln(r.w, "### Statistical Analysis")
	fmt.Fprintln(r.w)
	fmt.Fprintf(r.w, "- **Mann-Whitney U:** %.2f (z=%.2f, p=%.4f)\n",
		c.MannWhitney.U, c.MannWhitney.Z, c.MannWhitney.PValue)
	fmt.Fprintf(r.w, "- **Effect size (Cohen's d):** %.2f (%s)\n",
		c.EffectSize.CohensD, c.EffectSize.Interpretation)
	fmt.Fprintln(r.w)

	if c.Confident {
		fmt.Fprintf(r.w, "**%s** reads are significantly faster (p < 0.05, effect size: %s).\n",
			c.Faster, c.EffectSize.Interpretation)
	} else {
		fmt.Fprintln(r.w, "No statistically significant difference in read latency (p >= 0.05).")
	}
	fmt.Fprintln(r.w)
}

// WriteDistributionChart writes an ASCII histogram of a latency sample.
func (r *MarkdownReport) WriteDistributionChart(name string, sample []float64) {
	fmt.Fprintf(r.w, "### %s Distribution\n\n", name)
	fmt.Fprintln(r.w, "```")

	edges, hist := makeHistogram(sample, 10)
	maxCount := 0
	for _, count := range hist {
		maxCount = max(maxCount, count)
	}

	const width = 40
	for i, count := range hist {
		barLen := 0
		if maxCount > 0 {
			barLen = count * width / maxCount
		}
		fmt.Fprintf(r.w, "%9s │ %s %d\n", FormatSeconds(edges[i]), strings.Repeat("█", barLen), count)
	}

	fmt.Fprintln(r.w, "```")
	fmt.Fprintln(r.w)
}

// makeHistogram buckets sample into equal-width bins and returns each
// bin's lower edge with its count.
func makeHistogram(sample []float64, buckets int) ([]float64, []int) {
	edges := make([]float64, buckets)
	hist := make([]int, buckets)
	if len(sample) == 0 {
		return edges, hist
	}

	lo, hi := sample[0], sample[0]
	for _, v := range sample {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	size := (hi - lo) / float64(buckets)
	if size == 0 {
		size = 1e-9
	}

	for i := range edges {
		edges[i] = lo + float64(i)*size
	}
	for _, v := range sample {
		b := int((v - lo) / size)
		if b >= buckets {
			b = buckets - 1
		}
		hist[b]++
	}
	return edges, hist
}

// WriteFooter writes the report footer.
func (r *MarkdownReport) WriteFooter() {
	fmt.Fprintln(r.w, "---")
	fmt.Fprintln(r.w)
	fmt.Fprintln(r.w, "*Report generated by tiercache bench*")
}

// WriteText writes a plain-text summary of results.
func WriteText(w io.Writer, results []*Result) {
	for _, res := range results {
		gets := Describe(res.Gets)
		sets := Describe(res.Sets)
		fmt.Fprintf(w, "%s: %d ops in %s (%.0f ops/s), hit rate %.1f%%\n",
			res.Name, len(res.Gets)+len(res.Sets), res.Elapsed.Round(time.Millisecond),
			res.OpsPerSecond(), res.HitRate())
		fmt.Fprintf(w, "  get: n=%d mean=%s p50=%s p90=%s p99=%s max=%s\n",
			gets.N, FormatSeconds(gets.Mean), FormatSeconds(gets.Median),
			FormatSeconds(gets.P90), FormatSeconds(gets.P99), FormatSeconds(gets.Max))
		fmt.Fprintf(w, "  set: n=%d mean=%s p50=%s p90=%s p99=%s max=%s\n",
			sets.N, FormatSeconds(sets.Mean), FormatSeconds(sets.Median),
			FormatSeconds(sets.P90), FormatSeconds(sets.P99), FormatSeconds(sets.Max))
	}
}

// FormatSeconds renders a latency in seconds with a readable unit.
func FormatSeconds(s float64) string {
	return time.Duration(s * float64(time.Second)).Round(100 * time.Nanosecond).String()
}
