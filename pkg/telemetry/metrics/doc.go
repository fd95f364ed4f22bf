// Package metrics provides Prometheus metrics for the record store service.
//
// # Metrics
//
//   - http_requests_total{method,route,status}
//   - http_request_duration_seconds{method,route}, buckets 0.1 0.5 1 2 5 10
//   - http_request_errors_total{method,route,error_kind}
//   - order_processing_time_seconds, buckets 1 2 3 5 10 30
//   - tasks_processed_total{task,outcome}
//   - tasks_queue_depth
//
// The route label is always a route template such as /orders/{order_id},
// never a raw path. Past MaxRouteCardinality distinct routes, new values
// are recorded as "other".
//
// # Usage
//
//	collector, err := metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())
//	if err != nil {
//		return err
//	}
//	mux.Handle("GET /metrics", collector.Handler())
//
//	collector.RecordRequest("POST", "/checkout", 200, 35*time.Millisecond)
//
// Metrics are registered once per registry; a second NewCollector against
// the same registry returns an error wrapping
// prometheus.AlreadyRegisteredError.
package metrics
