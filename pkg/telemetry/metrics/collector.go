package metrics

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"recordstore/service/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// OverflowRoute is the route label used once the cardinality limit is
// reached.
const OverflowRoute = "other"

// Collector owns every Prometheus metric of the service. It registers them
// once against its registry; constructing a second Collector on the same
// registry fails.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	// HTTP request metrics
	requestMetrics *RequestMetrics

	// Order and background task metrics
	taskMetrics *TaskMetrics

	// Cardinality tracking for the route label
	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates the service metrics and registers them with
// registry. If registry is nil, a fresh registry is used.
//
// An error wrapping prometheus.AlreadyRegisteredError is returned when the
// metrics already exist in registry.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) (*Collector, error) {
	if cfg == nil {
		return nil, errors.New("metrics config is nil")
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	buckets := cfg.RequestDurationBuckets
	if len(buckets) == 0 {
		buckets = config.DefaultRequestDurationBuckets
	}
	maxCardinality := cfg.MaxRouteCardinality
	if maxCardinality <= 0 {
		maxCardinality = config.DefaultMaxRouteCardinality
	}

	c := &Collector{
		config:             cfg,
		registry:           registry,
		requestMetrics:     NewRequestMetrics(buckets),
		taskMetrics:        NewTaskMetrics(),
		cardinalityLimiter: NewCardinalityLimiter(maxCardinality),
	}

	collectors := append(c.requestMetrics.collectors(), c.taskMetrics.collectors()...)
	for _, m := range collectors {
		if err := registry.Register(m); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				return nil, fmt.Errorf("metrics already registered: %w", err)
			}
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return c, nil
}

// RecordRequest records a completed HTTP request: the request count, the
// duration and, for status >= 400, the error count with kind "http_{status}".
//
// Example:
//
//	collector.RecordRequest("GET", "/orders/{order_id}", 404, 12*time.Millisecond)
func (c *Collector) RecordRequest(method, route string, status int, duration time.Duration) {
	if c == nil || !c.config.Enabled {
		return
	}

	route = c.limitRoute(route)
	c.requestMetrics.RecordRequest(method, route, strconv.Itoa(status), duration)
	if status >= 400 {
		c.requestMetrics.RecordError(method, route, "http_"+strconv.Itoa(status))
	}
}

// RecordException records a request that failed with a runtime error.
// errorType is the runtime type name of the failure.
func (c *Collector) RecordException(method, route, errorType string) {
	if c == nil || !c.config.Enabled {
		return
	}

	c.requestMetrics.RecordError(method, c.limitRoute(route), errorType)
}

// RecordOrderProcessing observes the time an order spent in process_order.
func (c *Collector) RecordOrderProcessing(duration time.Duration) {
	if c == nil || !c.config.Enabled {
		return
	}

	c.taskMetrics.RecordOrderProcessing(duration)
}

// RecordTask counts one finished task execution.
// outcome is "success", "retry" or "failure".
func (c *Collector) RecordTask(task, outcome string) {
	if c == nil || !c.config.Enabled {
		return
	}

	c.taskMetrics.RecordTask(task, outcome)
}

// SetQueueDepth reports the number of jobs waiting in the task queue.
func (c *Collector) SetQueueDepth(depth int) {
	if c == nil || !c.config.Enabled {
		return
	}

	c.taskMetrics.SetQueueDepth(depth)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) limitRoute(route string) string {
	if !c.cardinalityLimiter.Allow(route) {
		return OverflowRoute
	}
	return route
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow checks if a label value is allowed. Returns true if the value
// already exists or if we haven't reached the cardinality limit yet.
// Returns false if adding this value would exceed the limit.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
