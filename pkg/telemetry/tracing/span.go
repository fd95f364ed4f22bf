package tracing

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span is a scoped span guard. It must be closed with a deferred End so
// that a panic unwinding through the scope is recorded before the span
// ends:
//
//	ctx, span := tracer.StartSpan(ctx, "checkout_order")
//	defer span.End()
//
// End is safe to call more than once; only the first call ends the span.
type Span struct {
	trace.Span
	once sync.Once
}

// StartSpan starts a child of the span in ctx and returns a guard for it.
func (t *Tracer) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *Span) {
	ctx, span := t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, &Span{Span: span}
}

// End ends the span. When called from a deferred statement while a panic is
// unwinding, the panic is recorded on the span, the status is set to Error
// and the original value is re-panicked after the span ends.
func (s *Span) End(opts ...trace.SpanEndOption) {
	if r := recover(); r != nil {
		RecordPanic(s.Span, r)
		s.end(opts...)
		panic(r)
	}
	s.end(opts...)
}

// Fail records err on the span and sets the status to Error without ending
// it.
func (s *Span) Fail(err error) {
	if err == nil {
		return
	}
	s.Span.RecordError(err)
	s.Span.SetStatus(codes.Error, err.Error())
}

func (s *Span) end(opts ...trace.SpanEndOption) {
	s.once.Do(func() { s.Span.End(opts...) })
}

// RecordPanic records a recovered panic value as an exception event on the
// span and sets the span status to Error with the panic message.
func RecordPanic(span trace.Span, v any) {
	err := PanicError(v)
	span.RecordError(err, trace.WithAttributes(attribute.String(AttrErrorKind, ErrorKind(v))))
	span.SetStatus(codes.Error, err.Error())
}

// PanicError converts a recovered panic value to an error.
func PanicError(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return errors.New(fmt.Sprint(v))
}

// ErrorKind returns the runtime type name of v, without the pointer marker,
// for use as a bounded metric label. For example a panic with
// errors.New("x") yields "errors.errorString".
func ErrorKind(v any) string {
	if v == nil {
		return "nil"
	}
	return strings.TrimLeft(reflect.TypeOf(v).String(), "*")
}
