package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "0.0.0.0:8000"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultRequestTimeout  = 25 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// Database defaults
	DefaultDatabaseDriver       = "sqlite"
	DefaultDatabasePath         = "data/recordstore.db"
	DefaultDatabaseMaxOpenConns = 1 // SQLite only supports a single writer
	DefaultDatabaseMaxIdleConns = 1
	DefaultDatabaseWALMode      = true
	DefaultDatabaseBusyTimeout  = 5 * time.Second

	// Task queue defaults
	DefaultTasksWorkers       = 4
	DefaultTasksBuffer        = 256
	DefaultTasksMaxAttempts   = 3
	DefaultTasksRetryBackoff  = time.Second
	DefaultTasksSweepEnabled  = true
	DefaultTasksSweepSchedule = "*/5 * * * *"
	DefaultTasksStaleAfter    = 10 * time.Minute

	// Telemetry defaults
	DefaultLoggingLevel          = "info"
	DefaultLoggingFormat         = "json"
	DefaultMetricsEnabled        = true
	DefaultPrometheusPath        = "/metrics"
	DefaultMaxRouteCardinality   = 1000
	DefaultTracingEnabled        = true
	DefaultTracingSampler        = "always"
	DefaultTracingSamplingRate   = 1.0
	DefaultTracingExporter       = "otlp"
	DefaultTracingEndpoint       = "jaeger:4317"
	DefaultTracingServiceName    = "recordstore-service"
	DefaultTracingEnvironment    = "development"
	DefaultTracingProbe          = true
	DefaultOTLPInsecure          = true
	DefaultOTLPTimeout           = 10 * time.Second
	DefaultHealthLivenessPath    = "/health"
	DefaultHealthReadinessPath   = "/ready"
	DefaultHealthCheckTimeout    = 5 * time.Second
)

// DefaultRequestDurationBuckets are the fixed request duration histogram
// boundaries in seconds.
var DefaultRequestDurationBuckets = []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0}

// Default returns a Config populated with every default value. YAML files
// are decoded on top of it so booleans that default to true keep their
// default unless the file sets them explicitly.
func Default() *Config {
	cfg := &Config{
		Database: DatabaseConfig{
			WALMode: DefaultDatabaseWALMode,
		},
		Tasks: TasksConfig{
			SweepEnabled: DefaultTasksSweepEnabled,
		},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{
				Enabled: DefaultMetricsEnabled,
			},
			Tracing: TracingConfig{
				Enabled: DefaultTracingEnabled,
				Probe:   DefaultTracingProbe,
				OTLP: OTLPConfig{
					Insecure: DefaultOTLPInsecure,
				},
			},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	// Database defaults
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DefaultDatabaseDriver
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = DefaultDatabasePath
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = DefaultDatabaseMaxOpenConns
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = DefaultDatabaseMaxIdleConns
	}
	if cfg.Database.BusyTimeout == 0 {
		cfg.Database.BusyTimeout = DefaultDatabaseBusyTimeout
	}

	// Task queue defaults
	if cfg.Tasks.Workers == 0 {
		cfg.Tasks.Workers = DefaultTasksWorkers
	}
	if cfg.Tasks.Buffer == 0 {
		cfg.Tasks.Buffer = DefaultTasksBuffer
	}
	if cfg.Tasks.MaxAttempts == 0 {
		cfg.Tasks.MaxAttempts = DefaultTasksMaxAttempts
	}
	if cfg.Tasks.RetryBackoff == 0 {
		cfg.Tasks.RetryBackoff = DefaultTasksRetryBackoff
	}
	if cfg.Tasks.SweepSchedule == "" {
		cfg.Tasks.SweepSchedule = DefaultTasksSweepSchedule
	}
	if cfg.Tasks.StaleAfter == 0 {
		cfg.Tasks.StaleAfter = DefaultTasksStaleAfter
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultPrometheusPath
	}
	if len(cfg.Telemetry.Metrics.RequestDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.RequestDurationBuckets = append([]float64(nil), DefaultRequestDurationBuckets...)
	}
	if cfg.Telemetry.Metrics.MaxRouteCardinality == 0 {
		cfg.Telemetry.Metrics.MaxRouteCardinality = DefaultMaxRouteCardinality
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSamplingRate
	}
	if cfg.Telemetry.Tracing.Exporter == "" {
		cfg.Telemetry.Tracing.Exporter = DefaultTracingExporter
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.Environment == "" {
		cfg.Telemetry.Tracing.Environment = DefaultTracingEnvironment
	}
	if cfg.Telemetry.Tracing.OTLP.Timeout == 0 {
		cfg.Telemetry.Tracing.OTLP.Timeout = DefaultOTLPTimeout
	}
	if cfg.Telemetry.Health.LivenessPath == "" {
		cfg.Telemetry.Health.LivenessPath = DefaultHealthLivenessPath
	}
	if cfg.Telemetry.Health.ReadinessPath == "" {
		cfg.Telemetry.Health.ReadinessPath = DefaultHealthReadinessPath
	}
	if cfg.Telemetry.Health.CheckTimeout == 0 {
		cfg.Telemetry.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
}
