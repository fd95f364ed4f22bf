package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"recordstore/service/pkg/cli"
	"recordstore/service/pkg/config"
)

var (
	// Global flags
	cfgFile      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "recordstore",
	Short: "Record store order service",
	Long: `Recordstore serves a small record shop: a product catalog, orders and a
checkout that processes orders in the background.

Every request is traced with OpenTelemetry, counted in Prometheus metrics
and logged as structured JSON carrying the trace and span IDs.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return cli.ExitCode(err)
	}
	return cli.ExitOK
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format: text, json, yaml")
}

// loadConfig loads the configuration file with environment overrides and
// reports where it came from. A missing file falls back to the defaults.
func loadConfig() (*config.Config, string, error) {
	source := cfgFile
	if _, err := os.Stat(cfgFile); errors.Is(err, fs.ErrNotExist) {
		source = "defaults"
	}

	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, source, cli.NewConfigError(cfgFile, err)
	}
	return cfg, source, nil
}

func writeResult(cmd *cobra.Command, data any) error {
	formatter, err := cli.NewFormatter(cli.OutputFormat(outputFormat))
	if err != nil {
		return err
	}
	return formatter.FormatTo(cmd.OutOrStdout(), data)
}
