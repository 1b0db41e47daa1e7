package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/polisai/polis-flow/pkg/config"
	"github.com/polisai/polis-flow/pkg/engine/runtime"
	"github.com/polisai/polis-flow/pkg/telemetry"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch FILE",
		Short: "Re-run the pipeline whenever its file changes",
		Long: `watch runs the pipeline once, then again after every change to FILE.
An invalid edit is logged and the previous pipeline stays in effect. Run
metrics are served in Prometheus format on --metrics-addr.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			metricsAddr, err := cmd.Flags().GetString("metrics-addr")
			if err != nil {
				return fmt.Errorf("failed to get metrics-addr flag: %w", err)
			}

			ctx, stop := signal.NotifyContext(contextOf(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return watch(ctx, cmd, args[0], metricsAddr)
		},
	}
	cmd.Flags().String("metrics-addr", "", "Address for the Prometheus listener (overrides metrics.address)")
	return cmd
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// openWatch starts the file provider and derives logging from the config it
// loaded, so logging, telemetry and the first run share one file version.
func openWatch(cmd *cobra.Command, path string) (*config.FileProvider, *config.Config, *slog.Logger, error) {
	bootLogger, err := setupLogger(cmd, config.LoggingConfig{})
	if err != nil {
		return nil, nil, nil, err
	}
	provider, err := config.NewFileProvider(path, bootLogger)
	if err != nil {
		return nil, nil, nil, err
	}
	cfg := provider.Current()
	logger, err := setupLogger(cmd, cfg.Logging)
	if err != nil {
		_ = provider.Close()
		return nil, nil, nil, err
	}
	return provider, cfg, logger, nil
}

func watch(ctx context.Context, cmd *cobra.Command, path, metricsAddr string) error {
	provider, cfg, logger, err := openWatch(cmd, path)
	if err != nil {
		return err
	}
	defer func() {
		if err := provider.Close(); err != nil {
			logger.Error("Failed to close config provider", "error", err)
		}
	}()

	shutdownTelemetry, err := telemetry.SetupProvider(ctx, telemetryConfig(cfg))
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logger.Error("Failed to flush telemetry", "error", err)
		}
	}()

	if metricsAddr == "" {
		metricsAddr = cfg.Metrics.Address
	}
	metrics := telemetry.NewMetrics()
	status := &runStatus{}
	server, err := startMetricsServer(metricsAddr, metrics, status, logger)
	if err != nil {
		return err
	}
	defer stopServer(server, logger)

	observer := runtime.Observers{metrics, status}
	updates := provider.Subscribe()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutting down", "reason", context.Cause(ctx))
			return nil
		case next, ok := <-updates:
			if !ok {
				return nil
			}
			runWatched(ctx, next, cmd.OutOrStdout(), logger, observer)
		}
	}
}

// runWatched builds and runs one configuration generation. Failures are logged;
// the watch loop keeps waiting for the next edit.
func runWatched(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger, observer runtime.Observer) {
	runner, err := buildRunner(cfg, out, logger, observer)
	if err != nil {
		logger.Error("Failed to build pipeline", "pipeline_id", cfg.Pipeline.ID, "error", err)
		return
	}

	outputs, err := runner.Run(ctx)
	if err != nil {
		logger.Error("Pipeline run failed", "pipeline_id", runner.PipelineID(), "error", err)
		return
	}
	if err := writeOutputs(out, outputs, "text"); err != nil {
		logger.Error("Failed to write outputs", "pipeline_id", runner.PipelineID(), "error", err)
	}
}

func startMetricsServer(addr string, metrics *telemetry.Metrics, status *runStatus, logger *slog.Logger) (*http.Server, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", otelhttp.NewHandler(metrics.Handler(), "flow.metrics"))
	mux.Handle("/status", status)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("bind metrics listener %s: %w", addr, err)
	}

	// Log the actual resolved address (useful when addr is :0)
	logger.Info("Metrics listening", "addr", listener.Addr().String())

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "error", err)
		}
	}()

	return server, nil
}

func stopServer(server *http.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
}
