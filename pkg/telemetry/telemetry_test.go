package telemetry

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"recordstore/service/pkg/config"
	"recordstore/service/pkg/telemetry/tracing"
)

func testConfig() *config.TelemetryConfig {
	cfg := config.Default().Telemetry
	cfg.Tracing.Exporter = "none"
	cfg.Tracing.Probe = false
	cfg.Logging.Level = "error"
	return &cfg
}

func TestNew(t *testing.T) {
	tel, err := New(context.Background(), testConfig(), "test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer tel.Shutdown(context.Background())

	if tel.TracingResult != tracing.SetupInitialized {
		t.Errorf("TracingResult = %v, want initialized", tel.TracingResult)
	}
	if !tel.Tracing.Initialized() {
		t.Error("tracing state not initialized")
	}
	if tel.Logger == nil || tel.Metrics == nil || tel.Health == nil {
		t.Fatal("missing component")
	}

	families, err := tel.Metrics.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	var goMetrics bool
	for _, f := range families {
		if f.GetName() == "go_goroutines" {
			goMetrics = true
		}
	}
	if !goMetrics {
		t.Error("runtime collectors not registered")
	}
}

func TestNew_InvalidLogging(t *testing.T) {
	cfg := testConfig()
	cfg.Logging.Level = "loud"

	if _, err := New(context.Background(), cfg, "test"); err == nil {
		t.Fatal("expected error for invalid log level")
	}
}

func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()

	tel, err := New(context.Background(), testConfig(), "test", WithRegistry(reg))
	if err != nil {
		t.Fatalf("first New() error = %v", err)
	}
	defer tel.Shutdown(context.Background())

	if _, err := New(context.Background(), testConfig(), "test", WithRegistry(reg)); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestNew_TracingDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Tracing.Enabled = false

	tel, err := New(context.Background(), cfg, "test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if tel.TracingResult != tracing.SetupDisabled {
		t.Errorf("TracingResult = %v, want disabled", tel.TracingResult)
	}
	if tel.Tracer().Enabled() {
		t.Error("tracer should be disabled")
	}
}
