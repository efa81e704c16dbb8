package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/okian/battpredict/internal/adapters/artifact"
	"github.com/okian/battpredict/pkg/logger"
)

func newInspectCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Load the model artifact and print its metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := setup(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			loaded, err := artifact.Load(ctx, cfg.ModelPath)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(loaded.Info)
		},
	}
}
