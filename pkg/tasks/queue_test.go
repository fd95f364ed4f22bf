package tasks

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recordstore/service/pkg/config"
	"recordstore/service/pkg/telemetry/metrics"
	"recordstore/service/pkg/telemetry/tracing/tracingtest"
)

func testTasksConfig() *config.TasksConfig {
	return &config.TasksConfig{
		Workers:      2,
		Buffer:       16,
		MaxAttempts:  3,
		RetryBackoff: time.Millisecond,
	}
}

func newTestCollector(t *testing.T) (*metrics.Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	c, err := metrics.NewCollector(&config.MetricsConfig{
		Enabled:                true,
		RequestDurationBuckets: config.DefaultRequestDurationBuckets,
		MaxRouteCardinality:    100,
	}, reg)
	require.NoError(t, err)
	return c, reg
}

func newTestQueue(t *testing.T, cfg *config.TasksConfig, opts ...Option) *Queue {
	t.Helper()
	q := NewQueue(cfg, opts...)
	t.Cleanup(func() { _ = q.Shutdown(context.Background()) })
	return q
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for task")
	}
}

func TestQueue_SubmitRunsHandler(t *testing.T) {
	q := newTestQueue(t, testTasksConfig())

	got := make(chan map[string]any, 1)
	q.Register("echo", func(_ context.Context, payload map[string]any) error {
		got <- payload
		return nil
	})

	h, err := q.Submit(context.Background(), Job{Name: "echo", Payload: map[string]any{"order_id": int64(7)}})
	require.NoError(t, err)
	_, err = uuid.Parse(h.ID)
	assert.NoError(t, err, "handle ID should be a UUID")

	select {
	case payload := <-got:
		assert.Equal(t, int64(7), payload["order_id"])
	case <-time.After(5 * time.Second):
		t.Fatal("handler was not called")
	}
}

func TestQueue_UnknownTask(t *testing.T) {
	q := newTestQueue(t, testTasksConfig())

	_, err := q.Submit(context.Background(), Job{Name: "missing"})
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestQueue_RetriesUntilSuccess(t *testing.T) {
	collector, reg := newTestCollector(t)
	q := newTestQueue(t, testTasksConfig(), WithMetrics(collector))

	var calls atomic.Int32
	done := make(chan struct{})
	q.Register("flaky", func(context.Context, map[string]any) error {
		if calls.Add(1) < 3 {
			return errors.New("temporary failure")
		}
		close(done)
		return nil
	})

	_, err := q.Submit(context.Background(), Job{Name: "flaky"})
	require.NoError(t, err)
	waitFor(t, done)
	require.NoError(t, q.Shutdown(context.Background()))

	assert.Equal(t, int32(3), calls.Load())
	expected := `
# HELP tasks_processed_total Total number of background task executions
# TYPE tasks_processed_total counter
tasks_processed_total{outcome="retry",task="flaky"} 2
tasks_processed_total{outcome="success",task="flaky"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "tasks_processed_total"))
}

func TestQueue_GivesUpAfterMaxAttempts(t *testing.T) {
	collector, reg := newTestCollector(t)
	q := newTestQueue(t, testTasksConfig(), WithMetrics(collector))

	var calls atomic.Int32
	q.Register("broken", func(context.Context, map[string]any) error {
		calls.Add(1)
		return errors.New("permanent failure")
	})
	var exhausted []error
	q.OnExhausted("broken", func(_ context.Context, payload map[string]any, err error) {
		assert.Equal(t, "v", payload["k"])
		exhausted = append(exhausted, err)
	})

	_, err := q.Submit(context.Background(), Job{Name: "broken", Payload: map[string]any{"k": "v"}})
	require.NoError(t, err)
	require.NoError(t, q.Shutdown(context.Background()))

	assert.Equal(t, int32(3), calls.Load())
	require.Len(t, exhausted, 1)
	assert.EqualError(t, exhausted[0], "permanent failure")
	expected := `
# HELP tasks_processed_total Total number of background task executions
# TYPE tasks_processed_total counter
tasks_processed_total{outcome="failure",task="broken"} 1
tasks_processed_total{outcome="retry",task="broken"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "tasks_processed_total"))
}

func TestQueue_PanickingHandlerDoesNotStopWorker(t *testing.T) {
	cfg := testTasksConfig()
	cfg.Workers = 1
	cfg.MaxAttempts = 1
	q := newTestQueue(t, cfg)

	done := make(chan struct{})
	q.Register("explode", func(context.Context, map[string]any) error { panic("boom") })
	q.Register("after", func(context.Context, map[string]any) error {
		close(done)
		return nil
	})

	_, err := q.Submit(context.Background(), Job{Name: "explode"})
	require.NoError(t, err)
	_, err = q.Submit(context.Background(), Job{Name: "after"})
	require.NoError(t, err)

	waitFor(t, done)
}

func TestQueue_TaskSpanJoinsSubmitterTrace(t *testing.T) {
	tracer, rec := tracingtest.NewTracer(t)
	q := newTestQueue(t, testTasksConfig(), WithTracer(tracer))

	done := make(chan struct{})
	q.Register("traced", func(context.Context, map[string]any) error {
		close(done)
		return nil
	})

	ctx, parent := tracer.StartSpan(context.Background(), "POST /checkout")
	_, err := q.Submit(ctx, Job{Name: "traced"})
	require.NoError(t, err)
	parent.End()

	waitFor(t, done)
	require.NoError(t, q.Shutdown(context.Background()))

	span := tracingtest.SpanNamed(rec, "task traced")
	require.NotNil(t, span)
	assert.Equal(t, parent.SpanContext().TraceID(), span.SpanContext().TraceID())
	assert.Equal(t, parent.SpanContext().SpanID(), span.Parent().SpanID())

	attrs := map[string]any{}
	for _, kv := range span.Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "traced", attrs["task.name"])
	assert.Equal(t, int64(1), attrs["task.attempt"])
}

func TestQueue_ShutdownDrainsBuffer(t *testing.T) {
	cfg := testTasksConfig()
	cfg.Workers = 1
	q := NewQueue(cfg)

	var calls atomic.Int32
	q.Register("count", func(context.Context, map[string]any) error {
		time.Sleep(time.Millisecond)
		calls.Add(1)
		return nil
	})

	for i := 0; i < 5; i++ {
		_, err := q.Submit(context.Background(), Job{Name: "count"})
		require.NoError(t, err)
	}

	require.NoError(t, q.Shutdown(context.Background()))
	assert.Equal(t, int32(5), calls.Load())

	_, err := q.Submit(context.Background(), Job{Name: "count"})
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.ErrorIs(t, q.Healthy(context.Background()), ErrQueueClosed)
	assert.NoError(t, q.Shutdown(context.Background()), "second shutdown is a no-op")
}

func TestQueue_ShutdownTimeoutCancelsHandlers(t *testing.T) {
	cfg := testTasksConfig()
	cfg.MaxAttempts = 1
	q := NewQueue(cfg)

	started := make(chan struct{})
	cancelled := make(chan struct{})
	q.Register("stuck", func(ctx context.Context, _ map[string]any) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	})
	var exhausted atomic.Bool
	q.OnExhausted("stuck", func(context.Context, map[string]any, error) { exhausted.Store(true) })

	_, err := q.Submit(context.Background(), Job{Name: "stuck"})
	require.NoError(t, err)
	waitFor(t, started)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = q.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	waitFor(t, cancelled)
	assert.False(t, exhausted.Load(), "abandoned jobs are not exhausted")
}

func TestQueue_Healthy(t *testing.T) {
	q := newTestQueue(t, testTasksConfig())
	assert.NoError(t, q.Healthy(context.Background()))
}
