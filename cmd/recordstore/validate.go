package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type validateResult struct {
	Source          string `json:"source" yaml:"source"`
	ListenAddress   string `json:"listen_address" yaml:"listen_address"`
	DatabaseDriver  string `json:"database_driver" yaml:"database_driver"`
	DatabasePath    string `json:"database_path,omitempty" yaml:"database_path,omitempty"`
	Workers         int    `json:"workers" yaml:"workers"`
	SweepSchedule   string `json:"sweep_schedule" yaml:"sweep_schedule"`
	TracingExporter string `json:"tracing_exporter" yaml:"tracing_exporter"`
	MetricsPath     string `json:"metrics_path,omitempty" yaml:"metrics_path,omitempty"`
}

func (r validateResult) Lines() []string {
	return []string{
		"✓ Configuration valid (" + r.Source + ")",
		"  Listen address:   " + r.ListenAddress,
		"  Database:         " + r.DatabaseDriver + " " + r.DatabasePath,
		fmt.Sprintf("  Task workers:     %d", r.Workers),
		"  Sweep schedule:   " + orNone(r.SweepSchedule),
		"  Tracing exporter: " + r.TracingExporter,
		"  Metrics path:     " + orNone(r.MetricsPath),
	}
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration file, apply environment overrides and validate
the result. Every validation error is reported; the command exits with
status 2 when the configuration is invalid.

Examples:
  # Validate the default config file
  recordstore validate

  # Validate a specific file and print the effective settings as JSON
  recordstore validate --config /etc/recordstore/config.yaml --output json`,
	Args: cobra.NoArgs,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, source, err := loadConfig()
	if err != nil {
		return err
	}

	result := validateResult{
		Source:          source,
		ListenAddress:   cfg.Server.ListenAddress,
		DatabaseDriver:  cfg.Database.Driver,
		Workers:         cfg.Tasks.Workers,
		SweepSchedule:   cfg.Tasks.Sweep(),
		TracingExporter: cfg.Telemetry.Tracing.Exporter,
	}
	if cfg.Database.Driver != "memory" {
		result.DatabasePath = cfg.Database.Path
	}
	if !cfg.Telemetry.Tracing.Enabled {
		result.TracingExporter = "disabled"
	}
	if cfg.Telemetry.Metrics.Enabled {
		result.MetricsPath = cfg.Telemetry.Metrics.Path
	}

	return writeResult(cmd, result)
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
