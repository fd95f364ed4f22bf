// Package tracingtest provides a recording tracer for tests.
package tracingtest

import (
	"context"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"recordstore/service/pkg/config"
	"recordstore/service/pkg/telemetry/tracing"
)

// Config returns an enabled tracing configuration that exports nowhere.
func Config() *config.TracingConfig {
	return &config.TracingConfig{
		Enabled:     true,
		Sampler:     tracing.SamplerAlways,
		SampleRatio: 1.0,
		Exporter:    "none",
		Endpoint:    "localhost:4317",
		ServiceName: "test-service",
		Environment: "test",
		OTLP:        config.OTLPConfig{Insecure: true, Timeout: time.Second},
	}
}

// NewTracer returns a tracer whose finished spans are kept in the returned
// recorder. The tracer is shut down when the test ends.
func NewTracer(tb testing.TB) (*tracing.Tracer, *tracetest.SpanRecorder) {
	tb.Helper()

	rec := tracetest.NewSpanRecorder()
	tr, err := tracing.New(context.Background(), Config(), tracing.WithSpanProcessor(rec))
	if err != nil {
		tb.Fatalf("tracing.New() error = %v", err)
	}
	tb.Cleanup(func() { _ = tr.Shutdown(context.Background()) })
	return tr, rec
}

// SpanNamed returns the first ended span called name, or nil.
func SpanNamed(rec *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	for _, s := range rec.Ended() {
		if s.Name() == name {
			return s
		}
	}
	return nil
}
