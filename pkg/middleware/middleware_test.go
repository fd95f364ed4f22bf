package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"recordstore/service/pkg/config"
	"recordstore/service/pkg/telemetry/logging"
	"recordstore/service/pkg/telemetry/metrics"
	"recordstore/service/pkg/telemetry/tracing/tracingtest"
)

type harness struct {
	mux      *http.ServeMux
	handler  http.Handler
	recorder *tracetest.SpanRecorder
	registry *prometheus.Registry
	logs     *bytes.Buffer
}

// newHarness wraps mux in Instrument with recording sinks.
func newHarness(t *testing.T, mux *http.ServeMux) *harness {
	t.Helper()

	tracer, rec := tracingtest.NewTracer(t)

	reg := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(&config.MetricsConfig{
		Enabled:                true,
		RequestDurationBuckets: config.DefaultRequestDurationBuckets,
		MaxRouteCardinality:    100,
	}, reg)
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}

	var buf bytes.Buffer
	logger, err := logging.New(logging.Config{Level: "debug", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("logging.New() error = %v", err)
	}

	h := Instrument(InstrumentConfig{
		Tracer:  tracer,
		Metrics: collector,
		Logger:  logger,
		Route:   MuxRoute(mux),
	})(mux)

	return &harness{mux: mux, handler: h, recorder: rec, registry: reg, logs: &buf}
}

func (h *harness) messages(t *testing.T) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(h.logs.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func (h *harness) messageNames(t *testing.T) []string {
	var names []string
	for _, m := range h.messages(t) {
		names = append(names, m["message"].(string))
	}
	return names
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (any, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value.AsInterface(), true
		}
	}
	return nil, false
}

func TestInstrument_Success(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /orders/{order_id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := newHarness(t, mux)

	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/42", nil))

	spans := h.recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	span := spans[0]
	if span.Name() != "GET /orders/{order_id}" {
		t.Errorf("span name = %q", span.Name())
	}
	if span.Status().Code == codes.Error {
		t.Errorf("span status = %v, want unset", span.Status())
	}
	if v, _ := spanAttr(span, "http.route"); v != "/orders/{order_id}" {
		t.Errorf("http.route = %v", v)
	}
	if v, _ := spanAttr(span, "http.url"); v != "/orders/42" {
		t.Errorf("http.url = %v", v)
	}
	if got := w.Header().Get(TraceIDHeader); got != span.SpanContext().TraceID().String() {
		t.Errorf("X-Trace-ID = %q, want %q", got, span.SpanContext().TraceID())
	}

	expected := `
# HELP http_requests_total Total number of HTTP requests
# TYPE http_requests_total counter
http_requests_total{method="GET",route="/orders/{order_id}",status="200"} 1
`
	if err := testutil.GatherAndCompare(h.registry, strings.NewReader(expected), "http_requests_total"); err != nil {
		t.Error(err)
	}
	if n, _ := testutil.GatherAndCount(h.registry, "http_request_errors_total"); n != 0 {
		t.Errorf("error series = %d, want 0", n)
	}

	names := h.messageNames(t)
	if len(names) != 1 || names[0] != MsgRequestProcessed {
		t.Errorf("log messages = %v, want [%s]", names, MsgRequestProcessed)
	}
	logged := h.messages(t)[0]
	if logged["trace_id"] != span.SpanContext().TraceID().String() {
		t.Errorf("log trace_id = %v", logged["trace_id"])
	}
	if logged["route"] != "/orders/{order_id}" {
		t.Errorf("log route = %v", logged["route"])
	}
}

func TestInstrument_ErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   string
	}{
		{"not found", http.StatusNotFound, "http_404"},
		{"validation", http.StatusUnprocessableEntity, "http_422"},
		{"server error", http.StatusInternalServerError, "http_500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("POST /checkout", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			h := newHarness(t, mux)

			h.handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/checkout", nil))

			span := h.recorder.Ended()[0]
			if span.Status().Code != codes.Error {
				t.Errorf("span status = %v, want Error", span.Status().Code)
			}
			if v, _ := spanAttr(span, "http.status_code"); v != int64(tt.status) {
				t.Errorf("http.status_code = %v", v)
			}

			expected := `
# HELP http_request_errors_total Total number of HTTP request errors
# TYPE http_request_errors_total counter
http_request_errors_total{error_kind="` + tt.kind + `",method="POST",route="/checkout"} 1
`
			if err := testutil.GatherAndCompare(h.registry, strings.NewReader(expected), "http_request_errors_total"); err != nil {
				t.Error(err)
			}

			names := h.messageNames(t)
			if len(names) != 2 || names[0] != MsgRequestProcessed || names[1] != MsgHTTPError {
				t.Errorf("log messages = %v", names)
			}
		})
	}
}

func TestInstrument_PanicIsObservedAndRepanicked(t *testing.T) {
	boom := errors.New("boom")
	mux := http.NewServeMux()
	mux.HandleFunc("GET /error-test", func(w http.ResponseWriter, r *http.Request) {
		panic(boom)
	})
	h := newHarness(t, mux)

	var recovered any
	func() {
		defer func() { recovered = recover() }()
		h.handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/error-test", nil))
	}()

	if recovered != boom {
		t.Fatalf("recovered %v, want the original error value", recovered)
	}

	spans := h.recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	span := spans[0]
	if span.Status().Code != codes.Error || span.Status().Description != "boom" {
		t.Errorf("span status = %+v", span.Status())
	}
	var exception bool
	for _, ev := range span.Events() {
		if ev.Name == "exception" {
			exception = true
		}
	}
	if !exception {
		t.Error("span has no exception event")
	}

	expected := `
# HELP http_request_errors_total Total number of HTTP request errors
# TYPE http_request_errors_total counter
http_request_errors_total{error_kind="errors.errorString",method="GET",route="/error-test"} 1
`
	if err := testutil.GatherAndCompare(h.registry, strings.NewReader(expected), "http_request_errors_total"); err != nil {
		t.Error(err)
	}
	if n, _ := testutil.GatherAndCount(h.registry, "http_requests_total"); n != 0 {
		t.Errorf("http_requests_total series = %d, want 0 on the panic path", n)
	}

	names := h.messageNames(t)
	if len(names) != 1 || names[0] != MsgRequestFailed {
		t.Errorf("log messages = %v, want [%s]", names, MsgRequestFailed)
	}
	if got := h.messages(t)[0]["error_type"]; got != "errors.errorString" {
		t.Errorf("error_type = %v", got)
	}
}

func TestInstrument_CancelledRequestEndsSpan(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /products", func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	h := newHarness(t, mux)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/products", nil).WithContext(ctx)
	h.handler.ServeHTTP(httptest.NewRecorder(), req)

	spans := h.recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("span status = %v, want Error", spans[0].Status().Code)
	}
	if v, _ := spanAttr(spans[0], "http.cancelled"); v != true {
		t.Errorf("http.cancelled = %v, want true", v)
	}
}

func TestInstrument_TimeoutInsideIsRecorded(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /slow", func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	tracer, rec := tracingtest.NewTracer(t)
	h := Chain(mux,
		Instrument(InstrumentConfig{Tracer: tracer, Route: MuxRoute(mux)}),
		Timeout(10*time.Millisecond),
	)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))

	if w.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", w.Code)
	}
	spans := rec.Ended()
	if len(spans) != 1 || spans[0].Status().Code != codes.Error {
		t.Fatalf("want one failed span, got %d", len(spans))
	}
}

func TestInstrument_UnmatchedRoute(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /products", func(http.ResponseWriter, *http.Request) {})
	h := newHarness(t, mux)

	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/no/such/path/123", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if name := h.recorder.Ended()[0].Name(); name != "GET unmatched" {
		t.Errorf("span name = %q", name)
	}
	expected := `
# HELP http_requests_total Total number of HTTP requests
# TYPE http_requests_total counter
http_requests_total{method="GET",route="unmatched",status="404"} 1
`
	if err := testutil.GatherAndCompare(h.registry, strings.NewReader(expected), "http_requests_total"); err != nil {
		t.Error(err)
	}
}

func TestInstrument_NonStandardMethodsShareOneLabel(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /products", func(http.ResponseWriter, *http.Request) {})
	h := newHarness(t, mux)

	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodGet, "/products", nil)
		req.Method = fmt.Sprintf("X%d", i)
		h.handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	h.handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/products", nil))

	for _, name := range []string{"http_requests_total", "http_request_duration_seconds"} {
		n, err := testutil.GatherAndCount(h.registry, name)
		if err != nil {
			t.Fatal(err)
		}
		if n != 2 {
			t.Errorf("%s series = %d, want 2", name, n)
		}
	}

	names := map[string]bool{}
	for _, span := range h.recorder.Ended() {
		names[span.Name()] = true
	}
	if len(names) != 2 || !names["other unmatched"] || !names["GET /products"] {
		t.Errorf("span names = %v", names)
	}
}

func TestMethodLabel(t *testing.T) {
	tests := map[string]string{
		http.MethodGet:     http.MethodGet,
		http.MethodPatch:   http.MethodPatch,
		http.MethodConnect: http.MethodConnect,
		"get":              OtherMethod,
		"PURGE":            OtherMethod,
		"":                 OtherMethod,
	}
	for in, want := range tests {
		if got := MethodLabel(in); got != want {
			t.Errorf("MethodLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInstrument_ContinuesIncomingTrace(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /trace-test", func(http.ResponseWriter, *http.Request) {})
	h := newHarness(t, mux)

	req := httptest.NewRequest(http.MethodGet, "/trace-test", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	h.handler.ServeHTTP(httptest.NewRecorder(), req)

	span := h.recorder.Ended()[0]
	if got := span.SpanContext().TraceID().String(); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("trace id = %s", got)
	}
	if got := span.Parent().SpanID().String(); got != "00f067aa0ba902b7" {
		t.Errorf("parent span id = %s", got)
	}
}

func TestInstrument_ConcurrentRequestsGetSeparateTraces(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /products", func(http.ResponseWriter, *http.Request) {})
	h := newHarness(t, mux)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/products", nil))
		}()
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, s := range h.recorder.Ended() {
		seen[s.SpanContext().TraceID().String()] = true
	}
	if len(seen) != n {
		t.Errorf("distinct traces = %d, want %d", len(seen), n)
	}
}

func TestChain_FullStackPanic(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /explode", func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})
	h := newHarness(t, mux)

	var buf bytes.Buffer
	logger, _ := logging.New(logging.Config{Level: "error", Format: "json", Writer: &buf})
	stack := Chain(h.handler, Recovery(logger), RequestID)

	w := httptest.NewRecorder()
	stack.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/explode", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if body["detail"] != "Internal Server Error" {
		t.Errorf("body = %v", body)
	}
	if !strings.Contains(buf.String(), "panic in handler") {
		t.Errorf("recovery did not log the panic: %s", buf.String())
	}
	if len(h.recorder.Ended()) != 1 {
		t.Errorf("ended spans = %d, want 1", len(h.recorder.Ended()))
	}
}
