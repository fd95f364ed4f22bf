package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"recordstore/service/pkg/config"
	"recordstore/service/pkg/telemetry/logging"
	"recordstore/service/pkg/telemetry/metrics"
	"recordstore/service/pkg/telemetry/tracing"
)

var (
	// ErrQueueClosed is returned by Submit after Shutdown has started.
	ErrQueueClosed = errors.New("task queue is closed")

	// ErrUnknownTask is returned by Submit for a job without a registered
	// handler.
	ErrUnknownTask = errors.New("unknown task")
)

// Task outcomes reported in tasks_processed_total.
const (
	OutcomeSuccess = "success"
	OutcomeRetry   = "retry"
	OutcomeFailure = "failure"
)

// Job is a unit of background work.
type Job struct {
	// Name selects the registered handler.
	Name string

	// Payload is passed to the handler unchanged.
	Payload map[string]any

	// Carrier holds the submitter's trace context. Submit fills it in.
	Carrier map[string]string
}

// Handle identifies a submitted job.
type Handle struct {
	ID string `json:"id"`
}

// HandlerFunc executes one attempt of a job.
type HandlerFunc func(ctx context.Context, payload map[string]any) error

// ExhaustedFunc is called once a job has failed its last attempt.
type ExhaustedFunc func(ctx context.Context, payload map[string]any, err error)

// Submitter hands jobs to the background runner. Delivery is at least
// once: a handler may run more than once for the same job.
type Submitter interface {
	Submit(ctx context.Context, job Job) (Handle, error)
}

type envelope struct {
	id  string
	job Job
}

// Queue is an in-process Submitter backed by a bounded channel and a fixed
// pool of workers. Failed jobs are retried with exponential backoff up to
// the configured number of attempts.
type Queue struct {
	config  *config.TasksConfig
	tracer  *tracing.Tracer
	metrics *metrics.Collector
	logger  *logging.Logger

	mu        sync.RWMutex
	handlers  map[string]HandlerFunc
	exhausted map[string]ExhaustedFunc

	// closeMu is held for reading while a job is being sent so Shutdown
	// cannot close the queue under an in-flight Submit.
	closeMu sync.RWMutex
	closed  bool

	jobs chan envelope
	done chan struct{}
	wg   sync.WaitGroup

	// runCtx is cancelled when Shutdown gives up waiting for the workers.
	runCtx    context.Context
	cancelRun context.CancelFunc
}

// Option customizes a Queue.
type Option func(*Queue)

// WithTracer sets the tracer used for task spans.
func WithTracer(t *tracing.Tracer) Option {
	return func(q *Queue) { q.tracer = t }
}

// WithMetrics sets the collector receiving task metrics.
func WithMetrics(c *metrics.Collector) Option {
	return func(q *Queue) { q.metrics = c }
}

// WithLogger sets the queue logger.
func WithLogger(l *logging.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// NewQueue creates a queue and starts its workers.
func NewQueue(cfg *config.TasksConfig, opts ...Option) *Queue {
	runCtx, cancel := context.WithCancel(context.Background())

	q := &Queue{
		config:    cfg,
		tracer:    tracing.Noop(),
		logger:    logging.Nop(),
		handlers:  make(map[string]HandlerFunc),
		exhausted: make(map[string]ExhaustedFunc),
		jobs:      make(chan envelope, cfg.Buffer),
		done:      make(chan struct{}),
		runCtx:    runCtx,
		cancelRun: cancel,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.logger = q.logger.With("component", "tasks.queue")

	for i := 0; i < cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}

	q.logger.Info("task queue started",
		"workers", cfg.Workers,
		"buffer", cfg.Buffer,
		"max_attempts", cfg.MaxAttempts,
	)

	return q
}

// Register binds a handler to a task name, replacing any previous one.
func (q *Queue) Register(name string, h HandlerFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[name] = h
}

// OnExhausted sets fn to run when a job named name fails its last
// attempt. It is not called for jobs abandoned by Shutdown.
func (q *Queue) OnExhausted(name string, fn ExhaustedFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.exhausted[name] = fn
}

// Submit enqueues job and returns its handle. The trace context in ctx is
// copied into the job so the worker's span joins the submitter's trace.
// Submit blocks while the buffer is full, until ctx is done.
func (q *Queue) Submit(ctx context.Context, job Job) (Handle, error) {
	q.mu.RLock()
	_, known := q.handlers[job.Name]
	q.mu.RUnlock()

	q.closeMu.RLock()
	defer q.closeMu.RUnlock()

	if q.closed {
		return Handle{}, ErrQueueClosed
	}
	if !known {
		return Handle{}, fmt.Errorf("%w: %q", ErrUnknownTask, job.Name)
	}

	if job.Carrier == nil {
		job.Carrier = make(map[string]string)
	}
	tracing.InjectToMap(ctx, job.Carrier)

	env := envelope{id: uuid.New().String(), job: job}

	select {
	case q.jobs <- env:
	case <-ctx.Done():
		return Handle{}, ctx.Err()
	}

	q.metrics.SetQueueDepth(len(q.jobs))
	q.logger.DebugContext(ctx, "task submitted", "task", job.Name, "task_id", env.id)

	return Handle{ID: env.id}, nil
}

// Healthy reports an error once the queue no longer accepts jobs.
func (q *Queue) Healthy(context.Context) error {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	return nil
}

// Shutdown stops accepting jobs and waits for the workers to drain the
// buffer. If ctx expires first, running handlers are cancelled and the
// remaining jobs are abandoned.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.closeMu.Lock()
	if q.closed {
		q.closeMu.Unlock()
		return nil
	}
	q.closed = true
	close(q.done)
	q.closeMu.Unlock()

	q.logger.Info("shutting down task queue", "pending_count", len(q.jobs))

	finished := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		q.cancelRun()
		q.logger.Info("task queue shut down complete")
		return nil
	case <-ctx.Done():
		q.cancelRun()
		<-finished
		return fmt.Errorf("task queue shutdown: %w", ctx.Err())
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()

	for {
		select {
		case env := <-q.jobs:
			q.run(env)

		case <-q.done:
			for {
				select {
				case env := <-q.jobs:
					q.run(env)
				default:
					return
				}
			}
		}
	}
}

// run executes env until it succeeds, the attempts are exhausted or the
// queue is cancelled.
func (q *Queue) run(env envelope) {
	q.metrics.SetQueueDepth(len(q.jobs))

	name := env.job.Name
	backoff := q.config.RetryBackoff

	for attempt := 1; ; attempt++ {
		err := q.execute(env, attempt)
		if err == nil {
			q.metrics.RecordTask(name, OutcomeSuccess)
			return
		}

		if attempt >= q.config.MaxAttempts || q.runCtx.Err() != nil {
			q.metrics.RecordTask(name, OutcomeFailure)
			q.logger.Error("task failed",
				"task", name,
				"task_id", env.id,
				"attempts", attempt,
				"error", err,
			)
			if q.runCtx.Err() == nil {
				q.giveUp(env, err)
			}
			return
		}

		q.metrics.RecordTask(name, OutcomeRetry)
		q.logger.Warn("task attempt failed, retrying",
			"task", name,
			"task_id", env.id,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-q.runCtx.Done():
			timer.Stop()
		}
		backoff *= 2
	}
}

func (q *Queue) giveUp(env envelope, err error) {
	q.mu.RLock()
	fn := q.exhausted[env.job.Name]
	q.mu.RUnlock()
	if fn == nil {
		return
	}

	ctx := tracing.ExtractFromMap(q.runCtx, env.job.Carrier)
	fn(logging.WithTaskID(ctx, env.id), env.job.Payload, err)
}

// execute runs one attempt inside a "task {name}" span parented on the
// submitter's trace. A panicking handler fails the attempt.
func (q *Queue) execute(env envelope, attempt int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %w", env.job.Name, tracing.PanicError(r))
		}
	}()

	q.mu.RLock()
	h := q.handlers[env.job.Name]
	q.mu.RUnlock()

	ctx := tracing.ExtractFromMap(q.runCtx, env.job.Carrier)
	ctx = logging.WithTaskID(ctx, env.id)
	ctx, span := q.tracer.StartSpan(ctx, "task "+env.job.Name)
	defer span.End()
	tracing.SetTaskAttributes(span, env.job.Name, env.id, attempt)

	if err := h(ctx, env.job.Payload); err != nil {
		span.Fail(err)
		return err
	}
	return nil
}
