package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"recordstore/service/pkg/cli"
	"recordstore/service/pkg/config"
	"recordstore/service/pkg/server"
	"recordstore/service/pkg/store"
	"recordstore/service/pkg/tasks"
	"recordstore/service/pkg/telemetry"
	"recordstore/service/pkg/telemetry/logging"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
	watch         bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the record store server",
	Long: `Start the record store server with the specified configuration.

The server opens the product and order store, starts the background task
workers and the stale order sweeper, and serves the HTTP API until it
receives SIGINT or SIGTERM.

Examples:
  # Start with default config
  recordstore run

  # Start with custom config
  recordstore run --config /etc/recordstore/config.yaml

  # Override listen address
  recordstore run --listen 0.0.0.0:8080

  # Reload the log level when the config file changes
  recordstore run --watch

  # Validate config without starting server
  recordstore run --dry-run`,
	Args: cobra.NoArgs,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
	runCmd.Flags().BoolVar(&runFlags.watch, "watch", false, "reload the log level when the config file changes")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, source, err := loadConfig()
	if err != nil {
		return err
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError(cfgFile, err)
	}

	out := cmd.OutOrStdout()
	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	tel, err := telemetry.New(cmd.Context(), &cfg.Telemetry, Version)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	logger := tel.Logger

	ctx, stop := cli.SetupSignalHandler(cmd.Context(), logger.Slog())
	defer stop()

	printBanner(out, cfg, source, tel)

	st, err := store.Open(ctx, &cfg.Database)
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return cli.NewCommandError("run", fmt.Errorf("failed to open store: %w", err))
	}

	queue := tasks.NewQueue(&cfg.Tasks,
		tasks.WithTracer(tel.Tracer()),
		tasks.WithMetrics(tel.Metrics),
		tasks.WithLogger(logger),
	)
	tasks.NewOrderProcessor(st, tel.Metrics, logger, cfg.Tasks.ProcessingDelay).Register(queue)

	sweeper := tasks.NewSweeper(st, queue, cfg.Tasks.Sweep(), cfg.Tasks.StaleAfter, logger)
	if err := sweeper.Start(ctx); err != nil {
		logger.Warn("failed to start order sweeper", "error", err)
	}

	srv := server.New(cfg, server.Deps{
		Store:     st,
		Queue:     queue,
		Sweeper:   sweeper,
		Telemetry: tel,
		Build: server.BuildInfo{
			Version:   Version,
			Commit:    GitCommit,
			BuildTime: BuildDate,
		},
	})

	if runFlags.watch {
		if err := watchConfig(ctx, logger); err != nil {
			logger.Warn("config watcher not started", "error", err)
		}
	}

	if err := srv.Start(ctx); err != nil {
		_ = srv.Shutdown(context.Background())
		return cli.NewCommandError("run", err)
	}

	fmt.Fprintln(out, "✓ Server stopped")
	return nil
}

// watchConfig applies the log level of every reloaded configuration.
// Other settings need a restart.
func watchConfig(ctx context.Context, logger *logging.Logger) error {
	w, err := config.NewWatcher(cfgFile, logger.Slog())
	if err != nil {
		return err
	}

	go func() {
		err := w.Watch(ctx, func(cfg *config.Config) {
			level := cfg.Telemetry.Logging.Level
			if err := logger.SetLevel(level); err != nil {
				logger.Error("failed to apply reloaded log level", "level", level, "error", err)
				return
			}
			logger.Info("log level updated", "level", level)
		})
		if err != nil {
			logger.Error("config watcher stopped", "error", err)
		}
	}()
	return nil
}

func printBanner(w io.Writer, cfg *config.Config, source string, tel *telemetry.Telemetry) {
	fmt.Fprintf(w, "Recordstore v%s\n", Version)
	fmt.Fprintf(w, "✓ Configuration loaded (%s)\n", source)
	fmt.Fprintf(w, "✓ Tracing: %s\n", tel.TracingResult)
	fmt.Fprintf(w, "✓ Store: %s\n", cfg.Database.Driver)
	fmt.Fprintf(w, "✓ Listening on %s\n", cfg.Server.ListenAddress)
	fmt.Fprintf(w, "✓ Health endpoint: %s\n", cfg.Telemetry.Health.LivenessPath)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Fprintf(w, "✓ Metrics endpoint: %s\n", cfg.Telemetry.Metrics.Path)
	}
}
