package config

import "time"

// Config is the root configuration structure for the record store service.
// It contains the HTTP server, database, background task and telemetry
// sections.
type Config struct {
	// Server contains HTTP server configuration including listen address
	// and timeouts.
	Server ServerConfig `yaml:"server"`

	// Database contains the product/order table store configuration.
	Database DatabaseConfig `yaml:"database"`

	// Tasks contains configuration for the background task queue that
	// processes orders after checkout.
	Tasks TasksConfig `yaml:"tasks"`

	// Telemetry contains configuration for observability including logging,
	// metrics, distributed tracing and health endpoints.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port for the server to listen on.
	// Default: "0.0.0.0:8000"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// RequestTimeout bounds the time a single handler may run. Requests
	// exceeding it are cancelled and answered with 504.
	// Default: 25s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// DatabaseConfig contains configuration for the SQLite table store.
type DatabaseConfig struct {
	// Driver selects the database/sql driver.
	// Options: "sqlite" (pure Go, modernc.org/sqlite), "sqlite3" (cgo, mattn/go-sqlite3),
	// "memory" (process-local, no persistence)
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// Path is the file path for the SQLite database.
	// Default: "data/recordstore.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open database connections.
	// Default: 1
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle database connections.
	// Default: 1
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// TasksConfig contains configuration for the background task queue.
type TasksConfig struct {
	// Workers is the number of goroutines executing jobs.
	// Default: 4
	Workers int `yaml:"workers"`

	// Buffer is the capacity of the pending job channel.
	// Default: 256
	Buffer int `yaml:"buffer"`

	// MaxAttempts is how many times a failing job is executed before it is
	// given up on.
	// Default: 3
	MaxAttempts int `yaml:"max_attempts"`

	// RetryBackoff is the delay before a failed job is retried. It doubles
	// on every attempt.
	// Default: 1s
	RetryBackoff time.Duration `yaml:"retry_backoff"`

	// ProcessingDelay simulates the work done by the process_order task.
	// Default: 0
	ProcessingDelay time.Duration `yaml:"processing_delay"`

	// SweepEnabled turns the stale order sweeper on or off.
	// Default: true
	SweepEnabled bool `yaml:"sweep_enabled"`

	// SweepSchedule is a cron expression for re-submitting orders stuck in
	// the pending or processing state. An empty value left in the file is
	// replaced by the default; use sweep_enabled to turn the sweeper off.
	// Default: "*/5 * * * *"
	SweepSchedule string `yaml:"sweep_schedule"`

	// StaleAfter is how long an order may stay pending or processing before
	// the sweeper re-submits it.
	// Default: 10m
	StaleAfter time.Duration `yaml:"stale_after"`
}

// Sweep returns the schedule the sweeper should run on, or "" when it is
// turned off.
func (c *TasksConfig) Sweep() string {
	if !c.SweepEnabled {
		return ""
	}
	return c.SweepSchedule
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// RequestDurationBuckets defines histogram buckets for request duration (seconds).
	// Default: [0.1, 0.5, 1.0, 2.0, 5.0, 10.0]
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`

	// MaxRouteCardinality caps the number of distinct route label values.
	// Routes beyond the cap are recorded as "other".
	// Default: 1000
	MaxRouteCardinality int `yaml:"max_route_cardinality"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "always"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Only used when Sampler is "ratio".
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Exporter determines the trace exporter to use.
	// Options: "otlp", "zipkin", "stdout", "none"
	// Default: "otlp"
	Exporter string `yaml:"exporter"`

	// Endpoint is the collector address: host:port of the OTLP gRPC
	// receiver, or the span URL for zipkin
	// (e.g. "http://zipkin:9411/api/v2/spans").
	// Default: "jaeger:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces. OTEL_SERVICE_NAME
	// overrides it.
	// Default: "recordstore-service"
	ServiceName string `yaml:"service_name"`

	// Environment is reported as deployment.environment.
	// Default: "development"
	Environment string `yaml:"environment"`

	// Probe enables a TCP connectivity check against the collector during
	// setup. Failures are logged, never fatal.
	// Default: true
	Probe bool `yaml:"probe"`

	// OTLP contains OTLP exporter specific configuration.
	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter configuration.
type OTLPConfig struct {
	// Insecure disables TLS for OTLP connection.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout is the timeout for OTLP exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains health check endpoint configuration.
type HealthConfig struct {
	// LivenessPath is the path for the liveness probe endpoint.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path for the readiness probe endpoint.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// CheckTimeout is the timeout for individual component health checks.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}
