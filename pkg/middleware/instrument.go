package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"recordstore/service/pkg/telemetry/logging"
	"recordstore/service/pkg/telemetry/metrics"
	"recordstore/service/pkg/telemetry/tracing"
)

const (
	// TraceIDHeader carries the request's trace ID back to the client.
	TraceIDHeader = "X-Trace-ID"

	// UnmatchedRoute is the route label for requests no route matched.
	UnmatchedRoute = "unmatched"

	// OtherMethod replaces request methods outside the standard set.
	OtherMethod = "other"
)

// MethodLabel maps method to one of the standard HTTP methods, or
// OtherMethod. net/http accepts any token as a method, so the raw value
// cannot be used as a label.
func MethodLabel(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions,
		http.MethodConnect, http.MethodTrace:
		return method
	}
	return OtherMethod
}

// Log messages emitted by Instrument.
const (
	MsgRequestProcessed = "request_processed"
	MsgHTTPError        = "http_error"
	MsgRequestFailed    = "request_failed"
)

// RouteResolver returns the route template serving r.
type RouteResolver func(r *http.Request) string

// MuxRoute resolves routes through mux's pattern matching. The method
// prefix and a trailing {$} are dropped, so "GET /orders/{order_id}" yields
// "/orders/{order_id}" and "GET /{$}" yields "/".
func MuxRoute(mux *http.ServeMux) RouteResolver {
	return func(r *http.Request) string {
		_, pattern := mux.Handler(r)
		if pattern == "" {
			return UnmatchedRoute
		}
		if i := strings.IndexByte(pattern, ' '); i >= 0 {
			pattern = pattern[i+1:]
		}
		return strings.TrimSuffix(pattern, "{$}")
	}
}

// InstrumentConfig holds the telemetry sinks used by Instrument.
type InstrumentConfig struct {
	Tracer  *tracing.Tracer
	Metrics *metrics.Collector
	Logger  *logging.Logger

	// Route resolves the route template. Nil labels every request with
	// UnmatchedRoute.
	Route RouteResolver
}

// Instrument wraps every request in a "{method} {route}" span and records
// the request metrics and logs. The method is reduced with MethodLabel.
//
// On return from the handler it records http_requests_total and
// http_request_duration_seconds, logs request_processed, and for status
// >= 400 marks the span as failed, counts the error as "http_{status}" and
// logs http_error.
//
// A panic is observed, never swallowed: the span gets the exception and an
// error status, http_request_errors_total is incremented with the panic
// value's type, request_failed is logged, and the original value is
// re-panicked for Recovery to handle. Count and duration are not recorded
// on this path.
//
// The span is ended exactly once on every path, after all metrics and
// logs for the request.
func Instrument(cfg InstrumentConfig) func(http.Handler) http.Handler {
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = tracing.Noop()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	resolve := cfg.Route
	if resolve == nil {
		resolve = func(*http.Request) string { return UnmatchedRoute }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			method := MethodLabel(r.Method)
			route := resolve(r)

			ctx := tracing.Extract(r.Context(), r.Header)
			ctx, span := tracer.StartSpan(ctx, method+" "+route,
				tracing.HTTPAttributes(method, r.URL.String(), route)...)
			defer span.End()

			if id := logging.RequestIDFrom(ctx); id != "" {
				span.SetAttributes(attribute.String(tracing.AttrRequestID, id))
			}
			if sc := span.SpanContext(); sc.HasTraceID() {
				w.Header().Set(TraceIDHeader, sc.TraceID().String())
			}

			defer func() {
				v := recover()
				if v == nil {
					return
				}
				kind := tracing.ErrorKind(v)
				cfg.Metrics.RecordException(method, route, kind)
				logger.ErrorContext(ctx, MsgRequestFailed,
					"method", method,
					"route", route,
					"path", r.URL.Path,
					"error", tracing.PanicError(v).Error(),
					"error_type", kind,
					"duration_ms", durationMS(start),
				)
				panic(v)
			}()

			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r.WithContext(ctx))

			status := rw.statusCode
			span.SetAttributes(attribute.Int(tracing.AttrHTTPStatusCode, status))
			if status >= 400 {
				span.SetStatus(codes.Error, http.StatusText(status))
			}
			if err := ctx.Err(); err != nil {
				markCancelled(span, err)
			}

			cfg.Metrics.RecordRequest(method, route, status, time.Since(start))

			fields := []any{
				"method", method,
				"route", route,
				"path", r.URL.Path,
				"status", status,
				"duration_ms", durationMS(start),
			}
			logger.InfoContext(ctx, MsgRequestProcessed, fields...)
			if status >= 400 {
				level := slog.LevelWarn
				if status >= 500 {
					level = slog.LevelError
				}
				logger.Log(ctx, level, MsgHTTPError, fields...)
			}
		})
	}
}

// markCancelled flags a span whose request context ended before the
// handler returned.
func markCancelled(span *tracing.Span, err error) {
	reason := "request cancelled"
	if errors.Is(err, context.DeadlineExceeded) {
		reason = "request timed out"
	}
	span.SetAttributes(attribute.Bool(tracing.AttrHTTPCancelled, true))
	span.SetStatus(codes.Error, reason)
}

func durationMS(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
