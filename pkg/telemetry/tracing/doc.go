// Package tracing provides OpenTelemetry distributed tracing for the record
// store service.
//
// # Setup
//
// The entry point owns a State and calls Setup once at startup:
//
//	var state tracing.State
//	switch tracing.Setup(ctx, &state, &cfg.Telemetry.Tracing, logger) {
//	case tracing.SetupFailed:
//	    // the service keeps running with a noop tracer
//	}
//	defer state.Shutdown(context.Background())
//
// A second Setup on the same State returns SetupSkipped. Spans are exported
// in batches over OTLP gRPC (default collector jaeger:4317), to a Zipkin
// collector URL, to stdout, or not at all.
//
// # Scoped spans
//
// StartSpan returns a guard whose deferred End records a panic passing
// through the scope and re-panics with the original value:
//
//	ctx, span := tracer.StartSpan(ctx, "checkout_order")
//	defer span.End()
//
// # Propagation
//
// W3C Trace Context and Baggage are used for HTTP headers and for the
// string maps carried by background jobs.
package tracing
