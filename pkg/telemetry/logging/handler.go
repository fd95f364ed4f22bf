package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"go.opentelemetry.io/otel/trace"
)

const (
	traceIDKey = "trace_id"
	spanIDKey  = "span_id"
)

// traceHandler adds the identifiers of the span active in the record's
// context. Outside a span both keys are present with a null value.
type traceHandler struct {
	slog.Handler
}

func newTraceHandler(h slog.Handler) *traceHandler {
	return &traceHandler{Handler: h}
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	sc := trace.SpanContextFromContext(ctx)
	if sc.IsValid() {
		r.AddAttrs(
			slog.String(traceIDKey, sc.TraceID().String()),
			slog.String(spanIDKey, sc.SpanID().String()),
		)
	} else {
		r.AddAttrs(
			slog.Any(traceIDKey, nil),
			slog.Any(spanIDKey, nil),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithGroup(name)}
}

// replaceAttr renames the message key and coerces values that cannot be
// encoded as JSON to their string form.
func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.MessageKey {
		a.Key = MessageKey
		return a
	}

	switch a.Value.Kind() {
	case slog.KindFloat64:
		if f := a.Value.Float64(); math.IsNaN(f) || math.IsInf(f, 0) {
			a.Value = slog.StringValue(strconv.FormatFloat(f, 'g', -1, 64))
		}
		return a
	case slog.KindAny:
	default:
		return a
	}

	v := a.Value.Any()
	switch val := v.(type) {
	case nil:
		return a
	case error:
		a.Value = slog.StringValue(val.Error())
		return a
	}

	if _, err := json.Marshal(v); err != nil {
		a.Value = slog.StringValue(fmt.Sprintf("%v", v))
	}
	return a
}
