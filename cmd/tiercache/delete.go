package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete KEY",
		Short: "Remove a key from every tier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cache, err := c.openCache(ctx, c.namespace)
			if err != nil {
				return err
			}
			defer cache.Close()

			if !cache.Delete(ctx, args[0]) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s not present\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func newClearCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every entry of the namespace from every tier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cache, err := c.openCache(ctx, c.namespace)
			if err != nil {
				return err
			}
			defer cache.Close()

			if !cache.Clear(ctx) {
				return fmt.Errorf("no tier cleared namespace %q", c.namespace)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", c.namespace)
			return nil
		},
	}
}
