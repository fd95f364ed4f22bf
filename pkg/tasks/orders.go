package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"recordstore/service/pkg/store"
	"recordstore/service/pkg/telemetry/logging"
	"recordstore/service/pkg/telemetry/metrics"
	"recordstore/service/pkg/telemetry/tracing"
)

// Task names.
const (
	TaskProcessOrder          = "process_order"
	TaskSendOrderConfirmation = "send_order_confirmation"
)

// OrderPayload builds the payload shared by the order tasks.
func OrderPayload(o *store.Order) map[string]any {
	return map[string]any{
		"order_id":   o.ID,
		"product_id": o.ProductID,
		"quantity":   o.Quantity,
	}
}

// OrderProcessor implements the order tasks against a store.
type OrderProcessor struct {
	store   store.Store
	metrics *metrics.Collector
	logger  *logging.Logger

	// delay simulates the fulfilment work of process_order.
	delay time.Duration
}

// NewOrderProcessor creates an OrderProcessor. metrics may be nil.
func NewOrderProcessor(s store.Store, m *metrics.Collector, logger *logging.Logger, delay time.Duration) *OrderProcessor {
	if logger == nil {
		logger = logging.Nop()
	}
	return &OrderProcessor{
		store:   s,
		metrics: m,
		logger:  logger.With("component", "tasks.orders"),
		delay:   delay,
	}
}

// Register binds the order task handlers on q.
func (p *OrderProcessor) Register(q *Queue) {
	q.Register(TaskProcessOrder, p.ProcessOrder)
	q.Register(TaskSendOrderConfirmation, p.SendConfirmation)
	q.OnExhausted(TaskProcessOrder, p.MarkFailed)
}

// ProcessOrder moves an order from pending through processing to
// completed. Orders already completed are left untouched so a redelivered
// job is harmless. If the work is interrupted the order is put back to
// pending for the sweeper to pick up.
func (p *OrderProcessor) ProcessOrder(ctx context.Context, payload map[string]any) error {
	start := time.Now()

	order, err := p.loadOrder(ctx, payload)
	if err != nil {
		return err
	}

	if order.Status == store.StatusCompleted {
		p.logger.InfoContext(ctx, "order already processed", "order_id", order.ID)
		return nil
	}

	if err := p.store.UpdateOrderStatus(ctx, order.ID, store.StatusProcessing); err != nil {
		return fmt.Errorf("mark order %d processing: %w", order.ID, err)
	}
	p.logger.InfoContext(ctx, "processing order",
		"order_id", order.ID,
		"product_id", order.ProductID,
		"quantity", order.Quantity,
	)

	if err := sleep(ctx, p.delay); err != nil {
		p.requeue(order.ID)
		return err
	}

	if err := p.store.UpdateOrderStatus(ctx, order.ID, store.StatusCompleted); err != nil {
		p.requeue(order.ID)
		return fmt.Errorf("mark order %d completed: %w", order.ID, err)
	}

	elapsed := time.Since(start)
	p.metrics.RecordOrderProcessing(elapsed)
	p.logger.InfoContext(ctx, "order processed",
		"order_id", order.ID,
		"duration_ms", elapsed.Milliseconds(),
	)
	return nil
}

// MarkFailed moves the order of an exhausted process_order job to failed.
// Completed orders are left as they are.
func (p *OrderProcessor) MarkFailed(ctx context.Context, payload map[string]any, cause error) {
	id, err := payloadInt64(payload, "order_id")
	if err != nil {
		p.logger.ErrorContext(ctx, "cannot mark order failed", "error", err)
		return
	}

	order, err := p.store.GetOrder(ctx, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			p.logger.ErrorContext(ctx, "cannot mark order failed", "order_id", id, "error", err)
		}
		return
	}
	if order.Status == store.StatusCompleted {
		return
	}

	if err := p.store.UpdateOrderStatus(ctx, id, store.StatusFailed); err != nil {
		p.logger.ErrorContext(ctx, "cannot mark order failed", "order_id", id, "error", err)
		return
	}
	p.logger.WarnContext(ctx, "order failed", "order_id", id, "error", cause)
}

// SendConfirmation logs the confirmation for an order.
func (p *OrderProcessor) SendConfirmation(ctx context.Context, payload map[string]any) error {
	order, err := p.loadOrder(ctx, payload)
	if err != nil {
		return err
	}
	p.logger.InfoContext(ctx, "order confirmation sent",
		"order_id", order.ID,
		"status", order.Status,
	)
	return nil
}

func (p *OrderProcessor) loadOrder(ctx context.Context, payload map[string]any) (*store.Order, error) {
	id, err := payloadInt64(payload, "order_id")
	if err != nil {
		return nil, err
	}

	order, err := p.store.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load order %d: %w", id, err)
	}

	tracing.SetOrderAttributes(trace.SpanFromContext(ctx), order.ID, order.ProductID, order.Quantity)
	return order, nil
}

// requeue resets an interrupted order to pending. It uses its own context
// because the task context is usually what was cancelled.
func (p *OrderProcessor) requeue(id int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.store.UpdateOrderStatus(ctx, id, store.StatusPending); err != nil && !errors.Is(err, store.ErrNotFound) {
		p.logger.Error("failed to reset interrupted order", "order_id", id, "error", err)
	}
}

// payloadInt64 reads an integer field. Payloads built in-process carry
// Go integers; payloads that went through JSON carry float64 or
// json.Number.
func payloadInt64(payload map[string]any, key string) (int64, error) {
	switch v := payload[key].(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case nil:
		return 0, fmt.Errorf("payload field %q is missing", key)
	default:
		return 0, fmt.Errorf("payload field %q has type %T, want integer", key, v)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
