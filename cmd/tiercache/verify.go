package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/thinktank/tieredcache/internal/backend/disk"
)

var errCorrupt = errors.New("corrupt entries found")

func newVerifyCmd(c *cli) *cobra.Command {
	var prune bool
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check every entry of the filesystem tier",
		Long: `Verify that every entry in the namespace directory is readable.

This command checks:
- Each data file decodes with the configured serializer
- Each sidecar parses
- Which entries have expired

With --prune, expired entries, orphaned sidecars and stale temporary
files are removed afterwards. Corrupt entries are reported, not removed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			d, err := c.openDisk()
			if err != nil {
				return err
			}
			defer d.Close()

			out := cmd.OutOrStdout()
			now := time.Now()
			var checked, corrupt, expired int
			err = d.Scan(ctx, func(f disk.File) error {
				checked++
				name := filepath.Base(f.Path)
				if c.verbose {
					fmt.Fprintf(out, "  [%d] %s\n", checked, name)
				}
				if f.MetaErr != nil {
					fmt.Fprintf(out, "  ERROR: %s: %v\n", name, f.MetaErr)
					corrupt++
					return nil
				}
				if _, err := d.Load(f.Path); err != nil {
					fmt.Fprintf(out, "  ERROR: %s: %v\n", name, err)
					corrupt++
					return nil
				}
				if f.Expired(now) {
					expired++
				}
				return nil
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Verified %d entries: %d expired, %d corrupt\n", checked, expired, corrupt)

			if prune {
				removed, err := d.Prune(ctx)
				if err != nil {
					return fmt.Errorf("pruning: %w", err)
				}
				fmt.Fprintf(out, "Pruned %d files\n", removed)
			}

			if corrupt > 0 {
				return fmt.Errorf("%d of %d: %w", corrupt, checked, errCorrupt)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&prune, "prune", false, "remove expired entries and leftover files")
	return cmd
}
