package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thinktank/tieredcache"
	"github.com/thinktank/tieredcache/internal/bench"
	"github.com/thinktank/tieredcache/internal/config"
)

func newBenchCmd(c *cli) *cobra.Command {
	w := bench.DefaultWorkload()
	var format string
	var compare bool

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure operation latency of the configured chain",
		Long: `Run a mixed read/write workload against the configured tier chain
and print latency statistics.

The workload runs in a separate "<namespace>.bench" namespace that is
cleared before and after the run. With --compare, the same workload is
also run against an in-process tier alone and the read latencies are
compared with a Mann-Whitney U test.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "text" && format != "markdown" {
				return fmt.Errorf("unknown format %q (want text or markdown)", format)
			}
			ctx := cmd.Context()
			namespace := c.namespace + ".bench"

			cache, err := c.openCache(ctx, namespace)
			if err != nil {
				return err
			}
			defer cache.Close()

			tiers := make([]string, 0, len(cache.Backends()))
			for _, b := range cache.Backends() {
				tiers = append(tiers, b.Name())
			}

			cache.Clear(ctx)
			chain, err := bench.Run(ctx, "chain", cache, w)
			cache.Clear(ctx)
			if err != nil {
				return err
			}
			results := []*bench.Result{chain}

			if compare {
				local, err := tieredcache.New[any](ctx, namespace,
					tieredcache.WithStrategy(config.StrategySingle),
					tieredcache.WithMemorySize(c.settings.MemoryMaxSize),
					tieredcache.WithDefaultTTL(c.settings.TTL),
				)
				if err != nil {
					return err
				}
				defer local.Close()
				mem, err := bench.Run(ctx, "memory", local, w)
				if err != nil {
					return err
				}
				results = append(results, mem)
			}

			out := cmd.OutOrStdout()
			if format == "text" {
				bench.WriteText(out, results)
				if compare {
					cmp := bench.Compare(results[0], results[1])
					fmt.Fprintf(out, "faster reads: %s (p=%.4f, effect %s)\n",
						cmp.Faster, cmp.MannWhitney.PValue, cmp.EffectSize.Interpretation)
				}
				return nil
			}

			r := bench.NewMarkdownReport(out)
			r.WriteHeader("Tiered Cache Benchmark")
			r.WriteWorkload(w, tiers)
			r.WriteSummaryTable(results)
			if compare {
				r.WriteComparison(bench.Compare(results[0], results[1]))
			}
			r.WriteDistributionChart("Get Latency", chain.Gets)
			r.WriteFooter()
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&w.Ops, "ops", w.Ops, "number of operations")
	f.IntVar(&w.Keys, "keys", w.Keys, "number of distinct keys")
	f.Float64Var(&w.ReadRatio, "read-ratio", w.ReadRatio, "fraction of operations that are reads")
	f.Uint64Var(&w.Seed, "seed", w.Seed, "workload seed")
	f.StringVar(&format, "format", "text", "output format: text or markdown")
	f.BoolVar(&compare, "compare", false, "also run against an in-process tier alone and compare")
	return cmd
}

