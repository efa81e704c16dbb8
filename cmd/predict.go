package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	service "github.com/okian/battpredict/internal/app"
	"github.com/okian/battpredict/internal/domain/model"
	"github.com/okian/battpredict/pkg/logger"
)

func newPredictCmd(opts *rootOptions) *cobra.Command {
	var distance, duration string

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict battery usage for one trip and print the JSON result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := setup(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			// Flags go through the same validation as HTTP bodies.
			body, err := json.Marshal(map[string]string{
				model.FieldCalcDistance: distance,
				model.FieldDurationMin:  duration,
			})
			if err != nil {
				return err
			}
			req, err := model.ParseRequest(body)
			if err != nil {
				return err
			}

			svc := service.New(
				service.WithLogger(logger.Named("service")),
				service.WithModelPath(cfg.ModelPath),
			)
			if err := svc.Start(ctx); err != nil {
				return err
			}
			defer svc.Stop()

			pred, err := svc.Predict(ctx, req)
			if err != nil {
				return fmt.Errorf("predict: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			return enc.Encode(pred)
		},
	}

	cmd.Flags().StringVar(&distance, "distance", "", "CALC_DISTANCE value")
	cmd.Flags().StringVar(&duration, "duration", "", "DURATION_MIN value")
	_ = cmd.MarkFlagRequired("distance")
	_ = cmd.MarkFlagRequired("duration")

	return cmd
}
