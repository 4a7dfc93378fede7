package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/thinktank/tieredcache/internal/backend/disk"
	"github.com/thinktank/tieredcache/internal/loader"
)

func newStatsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the filesystem tier of a namespace",
		Long: `Display statistics about the namespace directory of the filesystem
tier, including:
- Number of entries and how many have expired
- Entries stored without expiry
- Total size on disk, sidecars included`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := c.openDisk()
			if err != nil {
				return err
			}
			defer d.Close()

			now := time.Now()
			var entries, expired, permanent int
			var total int64
			err = d.Scan(cmd.Context(), func(f disk.File) error {
				entries++
				total += f.Size + f.MetaSize
				switch {
				case f.Expired(now):
					expired++
				case f.Meta == nil || f.Meta.ExpiresAt().IsZero():
					permanent++
				}
				return nil
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Directory:    %s\n", d.Dir())
			fmt.Fprintf(out, "Entries:      %d\n", entries)
			fmt.Fprintf(out, "Expired:      %d\n", expired)
			fmt.Fprintf(out, "No expiry:    %d\n", permanent)
			fmt.Fprintf(out, "Total size:   %s\n", loader.FormatBytes(total))
			return nil
		},
	}
}
