package tracing

import (
	"context"
	"net"
	"sync"
	"time"

	"recordstore/service/pkg/config"
	"recordstore/service/pkg/telemetry/logging"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace/noop"
)

// SetupResult reports the outcome of Setup.
type SetupResult int

const (
	// SetupInitialized means the provider was built and installed.
	SetupInitialized SetupResult = iota
	// SetupSkipped means the state was already initialized; nothing changed.
	SetupSkipped
	// SetupDisabled means tracing is turned off in the configuration.
	SetupDisabled
	// SetupFailed means the provider could not be built. A noop tracer is
	// in place and a later Setup may retry.
	SetupFailed
)

func (r SetupResult) String() string {
	switch r {
	case SetupInitialized:
		return "initialized"
	case SetupSkipped:
		return "skipped"
	case SetupDisabled:
		return "disabled"
	case SetupFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ProbeTimeout bounds the collector connectivity check.
const ProbeTimeout = time.Second

// State holds the process's tracer. It is created by the entry point and
// passed to Setup; a State is initialized at most once.
type State struct {
	mu          sync.Mutex
	initialized bool
	tracer      *Tracer
}

// Initialized reports whether Setup has installed a provider.
func (s *State) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// Tracer returns the installed tracer, or a noop tracer before a successful
// Setup.
func (s *State) Tracer() *Tracer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tracer == nil {
		return Noop()
	}
	return s.tracer
}

// Shutdown flushes pending spans and stops the exporter.
func (s *State) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	t := s.tracer
	s.mu.Unlock()
	if t == nil {
		return nil
	}
	return t.Shutdown(ctx)
}

// Noop returns a tracer whose spans are never recorded.
func Noop() *Tracer {
	return &Tracer{tracer: noop.NewTracerProvider().Tracer(InstrumentationName)}
}

// Setup builds the tracer provider from cfg and installs it as the global
// provider. It never returns an error: failures are logged and reported
// through the result. Calling Setup again on an initialized state returns
// SetupSkipped without registering another exporter.
func Setup(ctx context.Context, state *State, cfg *config.TracingConfig, logger *logging.Logger, opts ...Option) SetupResult {
	if logger == nil {
		logger = logging.Nop()
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	if state.initialized {
		logger.Info("telemetry already initialized, skipping setup")
		return SetupSkipped
	}

	if !cfg.Enabled {
		state.tracer = Noop()
		state.initialized = true
		logger.Info("tracing disabled")
		return SetupDisabled
	}

	if cfg.Probe && cfg.Exporter == "otlp" {
		probeCollector(ctx, cfg.Endpoint, logger)
	}

	t, err := New(ctx, cfg, opts...)
	if err != nil {
		state.tracer = Noop()
		logger.Error("failed to set up tracing", "error", err)
		return SetupFailed
	}

	otel.SetTracerProvider(t.provider)
	otel.SetTextMapPropagator(propagator)

	state.tracer = t
	state.initialized = true

	logger.Info("tracing initialized",
		"service_name", cfg.ServiceName,
		"exporter", cfg.Exporter,
		"endpoint", cfg.Endpoint,
		"sampler", cfg.Sampler,
	)

	_, span := t.Start(ctx, "telemetry_test_span")
	span.SetAttributes(attribute.String("test.attribute", "telemetry_setup"))
	span.End()

	return SetupInitialized
}

// probeCollector dials the collector once. The result is only logged.
func probeCollector(ctx context.Context, endpoint string, logger *logging.Logger) {
	dialer := net.Dialer{Timeout: ProbeTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		logger.Warn("trace collector not reachable, spans will be retried by the exporter",
			"endpoint", endpoint,
			"error", err,
		)
		return
	}
	conn.Close()
	logger.Info("trace collector reachable", "endpoint", endpoint)
}
