package main

import (
	"github.com/myrjola/sagaboard/internal/errors"
	"github.com/spf13/cobra"
)

func newKeyCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "key",
		GroupID: groupTools,
		Short:   "Inspect the API key",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check the configured API key against the provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if _, err := cc.open(ctx, cmd.ErrOrStderr()); err != nil {
				return err
			}
			if err := cc.aiClient.ValidateAPIKey(ctx); err != nil {
				return errors.Wrap(err, "validate API key")
			}
			printDone(cmd.OutOrStdout(), "The API key is valid.")
			return nil
		},
	})
	return cmd
}
