package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thinktank/tieredcache"
)

func newSetCmd(c *cli) *cobra.Command {
	var noExpire bool
	cmd := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Store a value in every tier",
		Long: `Store VALUE under KEY in every tier of the chain.

VALUE is parsed as JSON; anything that is not valid JSON is stored as a
plain string. Entries expire after --ttl unless --no-expire is given.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cache, err := c.openCache(ctx, c.namespace)
			if err != nil {
				return err
			}
			defer cache.Close()

			ttl := c.settings.TTL
			if noExpire {
				ttl = tieredcache.NoExpiration
			}
			if !cache.Set(ctx, args[0], parseValue(args[1]), ttl) {
				return fmt.Errorf("no tier stored %q", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s in %d tiers\n", args[0], len(cache.Backends()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&noExpire, "no-expire", false, "store without expiry")
	return cmd
}

// parseValue decodes raw as JSON, falling back to the raw string.
func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}
