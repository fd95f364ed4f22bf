// Package telemetry wires the observability of the record store service.
//
// # Components
//
//   - logging: slog JSON logger; every record carries trace_id and span_id
//   - metrics: Prometheus request, order and task metrics
//   - tracing: OpenTelemetry tracer with an OTLP batch exporter
//   - health: liveness and readiness probes
//
// # Usage
//
//	tel, err := telemetry.New(ctx, &cfg.Telemetry, version)
//	if err != nil {
//		return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx, span := tel.Tracer().StartSpan(ctx, "checkout_order")
//	defer span.End()
//	tel.Logger.InfoContext(ctx, "order placed", "order_id", id)
//
// Telemetry is owned by the entry point. There is no package level state:
// tracing.Setup records its initialization on the tracing.State it is
// given, so a second Setup on the same state is skipped rather than
// installing a second exporter.
package telemetry
