package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"recordstore/service/pkg/store"
	"recordstore/service/pkg/telemetry/logging"
)

// Sweeper re-submits process_order for orders left pending or processing
// longer than a threshold. It covers jobs lost when the process stopped
// before a worker picked them up or while one was running.
type Sweeper struct {
	store      store.Store
	submitter  Submitter
	schedule   string
	staleAfter time.Duration
	logger     *logging.Logger
	now        func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewSweeper creates a sweeper running on the cron schedule. An empty
// schedule disables it.
func NewSweeper(s store.Store, submitter Submitter, schedule string, staleAfter time.Duration, logger *logging.Logger) *Sweeper {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Sweeper{
		store:      s,
		submitter:  submitter,
		schedule:   schedule,
		staleAfter: staleAfter,
		logger:     logger.With("component", "tasks.sweeper"),
		now:        time.Now,
		cron:       cron.New(),
	}
}

// Start schedules the sweep. It stops when ctx is cancelled or Stop is
// called.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("sweep schedule not configured, skipping sweeper")
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, func() { s.Sweep(ctx) }); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("order sweeper started",
		"schedule", s.schedule,
		"stale_after", s.staleAfter,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// sweptStatuses are the states an order is left in when its job is lost.
// A processing order goes stale when the worker died mid-task.
var sweptStatuses = []store.OrderStatus{store.StatusPending, store.StatusProcessing}

// Sweep submits one process_order job per stale pending or processing
// order and returns how many were submitted.
func (s *Sweeper) Sweep(ctx context.Context) int {
	cutoff := s.now().Add(-s.staleAfter)

	submitted := 0
	for _, status := range sweptStatuses {
		orders, err := s.store.ListOrdersByStatus(ctx, status, cutoff)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to list stale orders", "status", status, "error", err)
			continue
		}

		for i := range orders {
			h, err := s.submitter.Submit(ctx, Job{Name: TaskProcessOrder, Payload: OrderPayload(&orders[i])})
			if err != nil {
				s.logger.ErrorContext(ctx, "failed to resubmit stale order",
					"order_id", orders[i].ID,
					"status", status,
					"error", err,
				)
				continue
			}
			submitted++
			s.logger.InfoContext(ctx, "stale order resubmitted",
				"order_id", orders[i].ID,
				"status", status,
				"task_id", h.ID,
			)
		}
	}

	if submitted > 0 {
		s.logger.InfoContext(ctx, "order sweep completed", "resubmitted_count", submitted)
	} else {
		s.logger.DebugContext(ctx, "order sweep completed, nothing to resubmit")
	}
	return submitted
}

// Stop stops the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("order sweeper stopped")
	}
}

// IsRunning reports whether the sweep is scheduled.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled sweep, or nil when not running.
func (s *Sweeper) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if !s.running || len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
