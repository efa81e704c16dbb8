package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/okian/battpredict/internal/config"
	"github.com/okian/battpredict/pkg/logger"
)

// rootOptions holds flags shared by every command.
type rootOptions struct {
	configPath string
	modelPath  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "battpredict",
		Short:         "Battery usage prediction service",
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file (overrides "+config.EnvConfigFile+")")
	root.PersistentFlags().StringVarP(&opts.modelPath, "model", "m", "", "model artifact path (overrides model_path)")

	root.AddCommand(
		newServeCmd(opts),
		newPredictCmd(opts),
		newInspectCmd(opts),
		newProbeCmd(),
	)

	return root
}

// setup loads configuration and initializes logging. Log lines go to logOut
// so commands that print results on stdout keep it clean.
func setup(ctx context.Context, opts *rootOptions, logOut io.Writer) (*config.Config, error) {
	cfg, err := config.Load(ctx, opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if strings.TrimSpace(opts.modelPath) != "" {
		cfg.ModelPath = opts.modelPath
	}

	logOpts := []logger.Option{logger.WithFormat(cfg.LogFormat), logger.WithOutput(logOut)}
	if cfg.LogFile != "" {
		logOpts = append(logOpts, logger.WithFile(cfg.LogFile))
	}
	if err := logger.Init(logOpts...); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	return cfg, nil
}
