package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys. HTTP keys follow the OpenTelemetry semantic
// conventions; service specific keys live under order.*, product.* and
// task.*.
const (
	// HTTP attributes
	AttrHTTPMethod     = "http.method"
	AttrHTTPURL        = "http.url"
	AttrHTTPRoute      = "http.route"
	AttrHTTPStatusCode = "http.status_code"
	AttrRequestID      = "http.request_id"
	AttrHTTPCancelled  = "http.cancelled"

	// Domain attributes
	AttrOrderID       = "order.id"
	AttrOrderQuantity = "order.quantity"
	AttrOrderStatus   = "order.status"
	AttrProductID     = "product.id"
	AttrProductCount  = "product.count"

	// Task attributes
	AttrTaskName    = "task.name"
	AttrTaskID      = "task.id"
	AttrTaskAttempt = "task.attempt"

	// Error attributes
	AttrErrorKind    = "error.kind"
	AttrErrorMessage = "error.message"
)

// HTTPAttributes returns the attributes set on every request span.
func HTTPAttributes(method, url, route string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrHTTPURL, url),
		attribute.String(AttrHTTPRoute, route),
	}
}

// SetTaskAttributes sets task execution attributes on a span.
func SetTaskAttributes(span trace.Span, name, id string, attempt int) {
	span.SetAttributes(
		attribute.String(AttrTaskName, name),
		attribute.String(AttrTaskID, id),
		attribute.Int(AttrTaskAttempt, attempt),
	)
}

// SetOrderAttributes sets order attributes on a span.
func SetOrderAttributes(span trace.Span, orderID, productID int64, quantity int) {
	span.SetAttributes(
		attribute.Int64(AttrOrderID, orderID),
		attribute.Int64(AttrProductID, productID),
		attribute.Int(AttrOrderQuantity, quantity),
	)
}

// SetErrorAttributes records err on the span, tags it with kind and sets
// the span status to Error.
func SetErrorAttributes(span trace.Span, err error, kind string) {
	if err == nil {
		return
	}

	span.SetAttributes(
		attribute.String(AttrErrorKind, kind),
		attribute.String(AttrErrorMessage, err.Error()),
	)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
