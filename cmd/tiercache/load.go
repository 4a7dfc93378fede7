package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/thinktank/tieredcache/internal/loader"
)

func newLoadCmd(c *cli) *cobra.Command {
	var batchSize int
	var quiet bool
	cmd := &cobra.Command{
		Use:   "load FILE",
		Short: "Warm a namespace from a JSON Lines file",
		Long: `Store every record of a JSON Lines file in every tier.

Each line is {"key": ..., "value": ..., "ttl": seconds}; ttl is optional
and defaults to --ttl. Files ending in .zst are decompressed on the fly.
Malformed lines are skipped and counted.

Examples:
  tiercache -n reports load warm.jsonl
  tiercache -n reports load --batch-size 1000 warm.jsonl.zst`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cache, err := c.openCache(ctx, c.namespace)
			if err != nil {
				return err
			}
			defer cache.Close()

			var progress io.Writer = cmd.ErrOrStderr()
			if quiet {
				progress = io.Discard
			}
			l := loader.New(
				loader.WithBatchSize(batchSize),
				loader.WithProgress(loader.WriterProgress(progress)),
				loader.WithLogger(c.logger),
			)
			p, err := l.LoadFile(ctx, args[0], cache)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d records into %s (%d skipped)\n",
				p.RecordsWritten, c.namespace, p.Skipped)
			return nil
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", loader.DefaultBatchSize, "records per batch write")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output")
	return cmd
}
