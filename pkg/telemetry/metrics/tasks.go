package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderProcessingBuckets are the histogram boundaries, in seconds, for
// order_processing_time_seconds.
var OrderProcessingBuckets = []float64{1, 2, 3, 5, 10, 30}

// TaskMetrics tracks the background task queue and order processing.
//
// Metrics:
//   - order_processing_time_seconds: Time spent processing an order
//   - tasks_processed_total: Finished task executions by task and outcome
//   - tasks_queue_depth: Jobs waiting to be picked up by a worker
type TaskMetrics struct {
	orderProcessing prometheus.Histogram
	tasksProcessed  *prometheus.CounterVec
	queueDepth      prometheus.Gauge
}

// NewTaskMetrics creates the task metrics. They are registered by the
// Collector.
func NewTaskMetrics() *TaskMetrics {
	return &TaskMetrics{
		orderProcessing: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "order_processing_time_seconds",
			Help:    "Time spent processing orders",
			Buckets: OrderProcessingBuckets,
		}),
		tasksProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasks_processed_total",
				Help: "Total number of background task executions",
			},
			[]string{"task", "outcome"},
		),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tasks_queue_depth",
			Help: "Number of jobs waiting in the task queue",
		}),
	}
}

func (tm *TaskMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{tm.orderProcessing, tm.tasksProcessed, tm.queueDepth}
}

// RecordOrderProcessing observes one order processing duration.
func (tm *TaskMetrics) RecordOrderProcessing(duration time.Duration) {
	tm.orderProcessing.Observe(duration.Seconds())
}

// RecordTask counts one task execution.
func (tm *TaskMetrics) RecordTask(task, outcome string) {
	tm.tasksProcessed.WithLabelValues(task, outcome).Inc()
}

// SetQueueDepth sets the queue depth gauge.
func (tm *TaskMetrics) SetQueueDepth(depth int) {
	tm.queueDepth.Set(float64(depth))
}
