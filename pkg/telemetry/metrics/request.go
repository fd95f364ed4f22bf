package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetrics tracks HTTP request handling.
//
// Metrics:
//   - http_requests_total: Request count by method, route, status
//   - http_request_duration_seconds: Request duration histogram by method, route
//   - http_request_errors_total: Error count by method, route, error_kind
type RequestMetrics struct {
	// Total request count
	requestsTotal *prometheus.CounterVec

	// Request duration histogram
	requestDuration *prometheus.HistogramVec

	// Errors by kind: http_{status} or a runtime error type
	errorsTotal *prometheus.CounterVec
}

// NewRequestMetrics creates the request metrics. They are registered by the
// Collector.
func NewRequestMetrics(buckets []float64) *RequestMetrics {
	return &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: buckets,
			},
			[]string{"method", "route"},
		),

		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_request_errors_total",
				Help: "Total number of HTTP request errors",
			},
			[]string{"method", "route", "error_kind"},
		),
	}
}

func (rm *RequestMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{rm.requestsTotal, rm.requestDuration, rm.errorsTotal}
}

// RecordRequest increments the request count and observes the duration.
func (rm *RequestMetrics) RecordRequest(method, route, status string, duration time.Duration) {
	rm.requestsTotal.WithLabelValues(method, route, status).Inc()
	rm.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordError increments the error count.
func (rm *RequestMetrics) RecordError(method, route, kind string) {
	rm.errorsTotal.WithLabelValues(method, route, kind).Inc()
}
