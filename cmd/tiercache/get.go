package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var errMiss = errors.New("key not found")

func newGetCmd(c *cli) *cobra.Command {
	var showTiming bool
	cmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Print the value stored under a key as JSON",
		Long: `Read a key through the tier chain and print its value as JSON.

A hit in a slower tier is copied into the faster tiers. The command
exits non-zero when no tier holds the key.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cache, err := c.openCache(ctx, c.namespace)
			if err != nil {
				return err
			}
			defer cache.Close()

			start := time.Now()
			v, ok := cache.Get(ctx, args[0])
			elapsed := time.Since(start)
			if !ok {
				return fmt.Errorf("%s: %w", args[0], errMiss)
			}

			out, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding value: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			if showTiming {
				fmt.Fprintf(cmd.ErrOrStderr(), "lookup took %s\n", elapsed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showTiming, "timing", false, "show lookup timing")
	return cmd
}
