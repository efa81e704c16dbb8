package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/battpredict/internal/adapters/http/api"
	"github.com/okian/battpredict/internal/adapters/http/swagger"
	service "github.com/okian/battpredict/internal/app"
	"github.com/okian/battpredict/internal/config"
	"github.com/okian/battpredict/pkg/logger"
	"github.com/okian/battpredict/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Load the model and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := setup(ctx, opts, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	m := metrics.Default()
	svc := service.New(
		service.WithLogger(logger.Named("service")),
		service.WithModelPath(cfg.ModelPath),
		service.WithMetrics(m),
	)
	// The listener is only opened once the model is usable.
	if err := svc.Start(ctx); err != nil {
		logger.Get().Error(ctx, "failed to start service", logger.Error(err))
		return err
	}
	defer svc.Stop()

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}

	return serve(ctx, cfg, svc, m, ln)
}

// newHandler registers the API and docs routes.
func newHandler(ctx context.Context, cfg *config.Config, svc api.Dependencies, m *metrics.Manager) http.Handler {
	mux := http.NewServeMux()

	swagger.Register(ctx, mux)

	apiServer := api.NewServer(svc,
		api.WithMaxBodyBytes(cfg.MaxBodyBytes),
		api.WithLogger(logger.Named("api")),
		api.WithMetrics(m),
	)
	apiServer.Register(ctx, mux)

	return mux
}

// serve runs the HTTP server on ln until ctx is cancelled, then shuts it
// down gracefully within the configured timeout. m receives both API and
// system metrics.
func serve(ctx context.Context, cfg *config.Config, svc api.Dependencies, m *metrics.Manager, ln net.Listener) error {
	log := logger.Get()

	go startSystemMetricsUpdater(ctx, m)

	srv := &http.Server{
		Handler:           newHandler(ctx, cfg, svc, m),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info(ctx, "server stopped")
	return nil
}

// startSystemMetricsUpdater updates system metrics until ctx is cancelled.
func startSystemMetricsUpdater(ctx context.Context, mgr *metrics.Manager) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	updateSystemMetrics(mgr)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics(mgr)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics(mgr *metrics.Manager) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	var avgPauseMs float64
	if m.NumGC > 0 {
		avgPauseMs = float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
	}

	mgr.UpdateSystemMetrics(m.Alloc, runtime.NumGoroutine(), avgPauseMs)
}
