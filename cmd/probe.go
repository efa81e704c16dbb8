package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/okian/battpredict/internal/probe"
	"github.com/okian/battpredict/pkg/logger"
)

func newProbeCmd() *cobra.Command {
	cfg := probe.Config{}

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Smoke test a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(logger.WithFormat(logger.FormatConsole), logger.WithOutput(cmd.ErrOrStderr())); err != nil {
				return err
			}

			report, runErr := probe.Run(cmd.Context(), cfg)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&cfg.BaseURL, "url", "http://127.0.0.1:5000", "base URL of the server")
	cmd.Flags().DurationVar(&cfg.Timeout, "timeout", probe.DefaultTimeout, "per-request timeout")
	cmd.Flags().Float64Var(&cfg.Distance, "distance", probe.DefaultDistance, "CALC_DISTANCE for the valid request")
	cmd.Flags().Float64Var(&cfg.Duration, "duration", probe.DefaultDuration, "DURATION_MIN for the valid request")
	cmd.Flags().IntVar(&cfg.Burst, "burst", 0, "number of concurrent identical predictions (0 disables)")
	cmd.Flags().IntVar(&cfg.Workers, "workers", probe.DefaultWorkers, "workers used for the burst")

	return cmd
}
