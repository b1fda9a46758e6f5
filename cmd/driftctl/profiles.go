package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newProfilesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List object profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.connect()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			out, err := client.ListProfiles(ctx)
			if err != nil {
				return fmt.Errorf("list profiles: %w", err)
			}

			if opts.output == "json" {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			return writeProfilesTable(cmd.OutOrStdout(), out)
		},
	}
}
