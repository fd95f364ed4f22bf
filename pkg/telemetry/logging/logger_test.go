package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"strings"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("log line is not valid JSON: %v\n%s", err, line)
		}
		records = append(records, m)
	}
	return records
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "valid JSON config", config: Config{Level: "info", Format: "json"}},
		{name: "valid text config", config: Config{Level: "debug", Format: "text"}},
		{name: "empty config uses defaults", config: Config{}},
		{name: "invalid log level", config: Config{Level: "invalid", Format: "json"}, wantErr: true},
		{name: "invalid format", config: Config{Level: "info", Format: "invalid"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && logger == nil {
				t.Fatal("New() returned nil logger")
			}
		})
	}
}

func TestLogger_RecordShapeWithoutSpan(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("request_processed", "method", "GET", "status_code", 200)

	records := decodeLines(t, &buf)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]

	if rec["message"] != "request_processed" {
		t.Errorf("message = %v", rec["message"])
	}
	if _, ok := rec["msg"]; ok {
		t.Error("msg key should be renamed to message")
	}
	if rec["level"] != "INFO" {
		t.Errorf("level = %v", rec["level"])
	}
	if rec["method"] != "GET" {
		t.Errorf("method = %v", rec["method"])
	}
	if rec["status_code"] != float64(200) {
		t.Errorf("status_code = %v", rec["status_code"])
	}
	for _, key := range []string{"trace_id", "span_id"} {
		v, ok := rec[key]
		if !ok {
			t.Errorf("%s should be present", key)
		}
		if v != nil {
			t.Errorf("%s should be null outside a span, got %v", key, v)
		}
	}
}

func TestLogger_TraceCorrelation(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	logger.InfoContext(ctx, "inside span")
	span.End()

	rec := decodeLines(t, &buf)[0]
	sc := span.SpanContext()
	if rec["trace_id"] != sc.TraceID().String() {
		t.Errorf("trace_id = %v, want %s", rec["trace_id"], sc.TraceID())
	}
	if rec["span_id"] != sc.SpanID().String() {
		t.Errorf("span_id = %v, want %s", rec["span_id"], sc.SpanID())
	}
}

type unencodable struct {
	Ch chan int
}

func (u unencodable) String() string { return "unencodable-value" }

func TestLogger_UnserializableValues(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("coerced",
		"channel", make(chan int),
		"stringer", unencodable{Ch: make(chan int)},
		"fn", func() {},
		"price", math.Inf(1),
		"floor", math.Inf(-1),
		"ratio", math.NaN(),
		"total", 12.5,
	)

	rec := decodeLines(t, &buf)[0]
	if rec["stringer"] != "unencodable-value" {
		t.Errorf("stringer = %v", rec["stringer"])
	}
	for _, key := range []string{"channel", "fn"} {
		if _, ok := rec[key].(string); !ok {
			t.Errorf("%s should be coerced to a string, got %T", key, rec[key])
		}
	}
	for key, want := range map[string]string{"price": "+Inf", "floor": "-Inf", "ratio": "NaN"} {
		if rec[key] != want {
			t.Errorf("%s = %v, want %q", key, rec[key], want)
		}
	}
	if rec["total"] != 12.5 {
		t.Errorf("total = %v, want 12.5", rec["total"])
	}
}

func TestLogger_RequestIDFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	ctx := WithRequestID(context.Background(), "req-123")
	logger.InfoContext(ctx, "with request id")
	logger.InfoContext(WithTaskID(ctx, "task-9"), "with task id")

	recs := decodeLines(t, &buf)
	if recs[0]["request_id"] != "req-123" {
		t.Errorf("request_id = %v", recs[0]["request_id"])
	}
	if _, ok := recs[0]["task_id"]; ok {
		t.Errorf("task_id should be absent, got %v", recs[0]["task_id"])
	}
	if recs[1]["request_id"] != "req-123" || recs[1]["task_id"] != "task-9" {
		t.Errorf("record = %v", recs[1])
	}
	if RequestIDFrom(context.Background()) != "" || TaskIDFrom(context.Background()) != "" {
		t.Error("empty context should carry no IDs")
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "warn", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")

	records := decodeLines(t, &buf)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
}

func TestLogger_SetLevelAppliesToDerivedLoggers(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}
	child := logger.With("component", "tasks")

	child.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatal("debug should be filtered at info level")
	}

	if err := logger.SetLevel("debug"); err != nil {
		t.Fatal(err)
	}
	child.Debug("visible")

	records := decodeLines(t, &buf)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0]["component"] != "tasks" {
		t.Errorf("component = %v", records[0]["component"])
	}
	if logger.Level() != slog.LevelDebug {
		t.Errorf("Level() = %v", logger.Level())
	}

	if err := logger.SetLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Format: "text", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("hello", "key", "value")

	out := buf.String()
	if !strings.Contains(out, "message=hello") {
		t.Errorf("expected message=hello in %q", out)
	}
	if !strings.Contains(out, "key=value") {
		t.Errorf("expected key=value in %q", out)
	}
}
