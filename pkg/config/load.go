package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvServiceName is the standard OpenTelemetry variable that overrides the
// service identity reported in exported spans.
const EnvServiceName = "OTEL_SERVICE_NAME"

// LoadConfig loads configuration from a YAML file at the specified path.
// The file is decoded on top of Default(), so unset fields keep their default
// values. The configuration is validated before it is returned.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention RECORDSTORE_SECTION_FIELD (e.g., RECORDSTORE_SERVER_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// A missing file is not an error: the defaults plus environment overrides
// are used instead.
//
// The loading sequence is:
// 1. Load YAML from file (or defaults)
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format RECORDSTORE_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := os.Getenv("RECORDSTORE_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	overrideDuration("RECORDSTORE_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	overrideDuration("RECORDSTORE_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	overrideDuration("RECORDSTORE_SERVER_REQUEST_TIMEOUT", &cfg.Server.RequestTimeout)
	overrideDuration("RECORDSTORE_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	// Database overrides
	if val := os.Getenv("RECORDSTORE_DATABASE_DRIVER"); val != "" {
		cfg.Database.Driver = val
	}
	if val := os.Getenv("RECORDSTORE_DATABASE_PATH"); val != "" {
		cfg.Database.Path = val
	}
	overrideBool("RECORDSTORE_DATABASE_WAL_MODE", &cfg.Database.WALMode)

	// Task overrides
	overrideInt("RECORDSTORE_TASKS_WORKERS", &cfg.Tasks.Workers)
	overrideInt("RECORDSTORE_TASKS_MAX_ATTEMPTS", &cfg.Tasks.MaxAttempts)
	overrideDuration("RECORDSTORE_TASKS_PROCESSING_DELAY", &cfg.Tasks.ProcessingDelay)
	overrideBool("RECORDSTORE_TASKS_SWEEP_ENABLED", &cfg.Tasks.SweepEnabled)
	if val, ok := os.LookupEnv("RECORDSTORE_TASKS_SWEEP_SCHEDULE"); ok {
		cfg.Tasks.SweepSchedule = val
	}

	// Telemetry overrides
	if val := os.Getenv("RECORDSTORE_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("RECORDSTORE_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	overrideBool("RECORDSTORE_TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	if val := os.Getenv("RECORDSTORE_TELEMETRY_METRICS_PATH"); val != "" {
		cfg.Telemetry.Metrics.Path = val
	}
	overrideBool("RECORDSTORE_TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	if val := os.Getenv("RECORDSTORE_TELEMETRY_TRACING_EXPORTER"); val != "" {
		cfg.Telemetry.Tracing.Exporter = val
	}
	if val := os.Getenv("RECORDSTORE_TELEMETRY_TRACING_ENDPOINT"); val != "" {
		cfg.Telemetry.Tracing.Endpoint = val
	}
	if val := os.Getenv("RECORDSTORE_TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
	overrideBool("RECORDSTORE_TELEMETRY_TRACING_PROBE", &cfg.Telemetry.Tracing.Probe)
	if val := os.Getenv(EnvServiceName); val != "" {
		cfg.Telemetry.Tracing.ServiceName = val
	}
}

func overrideDuration(key string, dst *time.Duration) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func overrideBool(key string, dst *bool) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func overrideInt(key string, dst *int) {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}
