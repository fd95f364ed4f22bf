package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"recordstore/service/pkg/config"
	"recordstore/service/pkg/telemetry/health"
	"recordstore/service/pkg/telemetry/logging"
	"recordstore/service/pkg/telemetry/metrics"
	"recordstore/service/pkg/telemetry/tracing"
)

// Telemetry bundles the observability components of the process. It is
// created once by the entry point and passed to the components that need
// it.
type Telemetry struct {
	Logger  *logging.Logger
	Metrics *metrics.Collector
	Tracing *tracing.State
	Health  *health.Checker

	// TracingResult reports what tracing.Setup did.
	TracingResult tracing.SetupResult
}

// Option customizes New.
type Option func(*options)

type options struct {
	registry       *prometheus.Registry
	tracingOptions []tracing.Option
}

// WithRegistry registers the metrics on registry instead of a fresh one.
func WithRegistry(r *prometheus.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithTracingOptions passes options through to tracing.Setup.
func WithTracingOptions(opts ...tracing.Option) Option {
	return func(o *options) { o.tracingOptions = append(o.tracingOptions, opts...) }
}

// New builds the logger, the metrics collector, the tracer and the health
// checker from cfg. The logger also becomes the slog default.
//
// Tracing failures never fail New: they are logged and the process runs
// with a noop tracer. An invalid logging configuration or a metrics
// registration conflict is returned as an error.
func New(ctx context.Context, cfg *config.TelemetryConfig, version string, opts ...Option) (*Telemetry, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.AddSource,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	slog.SetDefault(logger.Slog())

	registry := o.registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	collector, err := metrics.NewCollector(&cfg.Metrics, registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics collector: %w", err)
	}

	state := &tracing.State{}
	tracingOpts := append([]tracing.Option{tracing.WithServiceVersion(version)}, o.tracingOptions...)
	result := tracing.Setup(ctx, state, &cfg.Tracing, logger, tracingOpts...)

	return &Telemetry{
		Logger:        logger,
		Metrics:       collector,
		Tracing:       state,
		Health:        health.New(cfg.Health.CheckTimeout),
		TracingResult: result,
	}, nil
}

// Tracer returns the process tracer, a noop tracer if setup did not
// succeed.
func (t *Telemetry) Tracer() *tracing.Tracer {
	return t.Tracing.Tracer()
}

// Shutdown flushes and stops the span exporter.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if err := t.Tracing.Shutdown(ctx); err != nil {
		return fmt.Errorf("tracing shutdown: %w", err)
	}
	return nil
}
