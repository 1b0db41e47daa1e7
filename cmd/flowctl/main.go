// Package main is the entry point for the flowctl binary.
// It loads a pipeline declaration, builds it and runs it once or on every change.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/polisai/polis-flow/internal/format"
	"github.com/polisai/polis-flow/pkg/config"
	"github.com/polisai/polis-flow/pkg/engine"
	"github.com/polisai/polis-flow/pkg/engine/runtime"
	"github.com/polisai/polis-flow/pkg/logging"
	"github.com/polisai/polis-flow/pkg/nodes"
	"github.com/polisai/polis-flow/pkg/render"
	"github.com/polisai/polis-flow/pkg/telemetry"
	"github.com/spf13/cobra"
)

const (
	defaultLogLevel  = "info"
	defaultLogFormat = "json"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root command for flowctl
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "flowctl",
		Short: "Build and run typed dataflow pipelines",
		Long: `flowctl executes pipelines declared in YAML: typed nodes connected by
edges, run depth-first from every head.

Example:
  flowctl run examples/portfolio.yaml
  flowctl graph examples/portfolio.yaml --format dot | dot -Tpng -o graph.png`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("log-level", defaultLogLevel, "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", defaultLogFormat, "Log format (json, text)")

	rootCmd.AddCommand(newRunCmd(), newValidateCmd(), newGraphCmd(), newWatchCmd())
	return rootCmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Run a pipeline once and print its outputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, err := cmd.Flags().GetString("format")
			if err != nil {
				return fmt.Errorf("failed to get format flag: %w", err)
			}
			return runOnce(cmd, args[0], outputFormat)
		},
	}
	cmd.Flags().StringP("format", "f", "text", "Output format (text, markdown, json, none)")
	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Load and build a pipeline without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, args[0])
			if err != nil {
				return err
			}
			runner, err := buildRunner(cfg, cmd.OutOrStdout(), logger, nil)
			if err != nil {
				return err
			}
			g := runner.Graph()
			fmt.Fprintf(cmd.OutOrStdout(), "pipeline %s is valid: %d nodes, %d edges, %d heads\n",
				runner.PipelineID(), g.Len(), g.EdgeCount(), len(g.Heads()))
			return nil
		},
	}
}

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph FILE",
		Short: "Render the pipeline topology",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			graphFormat, err := cmd.Flags().GetString("format")
			if err != nil {
				return fmt.Errorf("failed to get format flag: %w", err)
			}
			cfg, logger, err := loadConfig(cmd, args[0])
			if err != nil {
				return err
			}
			runner, err := buildRunner(cfg, io.Discard, logger, nil)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch strings.ToLower(graphFormat) {
			case "dot":
				_, err = io.WriteString(out, render.DOT(runner.Graph(), runner.PipelineID()))
				return err
			default:
				mode, err := format.ParseMode(graphFormat)
				if err != nil {
					return fmt.Errorf("unknown graph format %q (want dot, table or markdown)", graphFormat)
				}
				_, err = fmt.Fprintln(out, render.Table(runner.Graph(), mode))
				return err
			}
		},
	}
	cmd.Flags().StringP("format", "f", "dot", "Graph format (dot, table, markdown)")
	return cmd
}

// loadConfig reads the pipeline file and sets up logging. Flags given on the
// command line take precedence over the file's logging section.
func loadConfig(cmd *cobra.Command, path string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	logger, err := setupLogger(cmd, cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func setupLogger(cmd *cobra.Command, fileCfg config.LoggingConfig) (*slog.Logger, error) {
	flags := cmd.Flags()
	level, logFormat := fileCfg.Level, fileCfg.Format
	if flags.Changed("log-level") || level == "" {
		v, err := flags.GetString("log-level")
		if err != nil {
			return nil, fmt.Errorf("failed to get log-level flag: %w", err)
		}
		level = v
	}
	if flags.Changed("log-format") || logFormat == "" {
		v, err := flags.GetString("log-format")
		if err != nil {
			return nil, fmt.Errorf("failed to get log-format flag: %w", err)
		}
		logFormat = v
	}
	return logging.Setup(logging.Config{Level: level, Format: logFormat, Output: cmd.ErrOrStderr()}), nil
}

func buildRunner(cfg *config.Config, out io.Writer, logger *slog.Logger, observer runtime.Observer) (*engine.PipelineRunner, error) {
	kinds := nodes.NewRegistry(nodes.Options{Output: out, Logger: logger})
	return engine.Build(cfg.PipelineSpec(), kinds, engine.RunnerConfig{
		Parallel: cfg.Runner.Parallel,
		Logger:   logger,
		Observer: observer,
	})
}

// telemetryConfig maps the telemetry section onto the exporter settings and
// tags the resource with the pipeline being run.
func telemetryConfig(cfg *config.Config) telemetry.Config {
	return telemetry.Config{
		ServiceName:  cfg.Telemetry.ServiceName,
		Endpoint:     cfg.Telemetry.OTLPEndpoint,
		Environment:  cfg.Telemetry.Environment,
		Insecure:     cfg.Telemetry.Insecure,
		Headers:      cfg.Telemetry.Headers,
		PipelineID:   cfg.Pipeline.ID,
		ResourceTags: cfg.Telemetry.ResourceAttributes,
	}
}

func runOnce(cmd *cobra.Command, path, outputFormat string) error {
	outputFormat = strings.ToLower(outputFormat)
	switch outputFormat {
	case "text", "markdown", "json", "none":
	default:
		return fmt.Errorf("unknown output format %q (want text, markdown, json or none)", outputFormat)
	}

	cfg, logger, err := loadConfig(cmd, path)
	if err != nil {
		return err
	}

	ctx := contextOf(cmd)
	shutdown, err := telemetry.SetupProvider(ctx, telemetryConfig(cfg))
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("Failed to flush telemetry", "error", err)
		}
	}()

	out := cmd.OutOrStdout()
	runner, err := buildRunner(cfg, out, logger, nil)
	if err != nil {
		return err
	}

	outputs, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	return writeOutputs(out, outputs, outputFormat)
}

func writeOutputs(out io.Writer, outputs engine.Outputs, outputFormat string) error {
	switch outputFormat {
	case "none":
		return nil
	case "json":
		data, err := render.JSON(outputs)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	default:
		mode, err := format.ParseMode(outputFormat)
		if err != nil {
			return err
		}
		text := render.Outputs(outputs, mode)
		if text == "" {
			return nil
		}
		_, err = fmt.Fprintln(out, text)
		return err
	}
}
