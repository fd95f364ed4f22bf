package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"recordstore/service/pkg/store"
	"recordstore/service/pkg/tasks"
	"recordstore/service/pkg/telemetry/tracing"
)

// ProductCreate is the body of POST /products.
type ProductCreate struct {
	Name  string   `json:"name" validate:"required,max=200"`
	Price *float64 `json:"price" validate:"required,gte=0"`
}

// OrderCreate is the body of POST /orders and POST /checkout.
type OrderCreate struct {
	ProductID *int64 `json:"product_id" validate:"required"`
	Quantity  *int   `json:"quantity" validate:"required,gt=0"`
}

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Record Store API is running!"})
}

func (h *Handler) traceTest(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.StartSpan(r.Context(), "test-span",
		attribute.String("test.attribute", "test-value"))
	defer span.End()

	h.logger.InfoContext(ctx, "creating test span")

	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Test span created",
		"trace_id":    tracing.TraceID(ctx),
		"span_id":     tracing.SpanID(ctx),
		"propagation": tracing.PropagationDebugInfo(r.Header),
	})
}

// errorTest always fails so the error path of the telemetry can be
// exercised end to end.
func (h *Handler) errorTest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	err := errors.New("This is a test error")

	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	h.logger.ErrorContext(ctx, "test error triggered", "error", err)

	writeJSON(w, http.StatusInternalServerError, map[string]any{
		"error":    err.Error(),
		"trace_id": tracing.TraceID(ctx),
		"span_id":  tracing.SpanID(ctx),
	})
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.StartSpan(r.Context(), "get_products")
	defer span.End()

	products, err := h.store.ListProducts(ctx)
	if err != nil {
		h.storeFailure(ctx, w, span, err)
		return
	}

	span.SetAttributes(attribute.Int(tracing.AttrProductCount, len(products)))
	writeJSON(w, http.StatusOK, products)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.StartSpan(r.Context(), "create_product")
	defer span.End()

	var req ProductCreate
	if rerr := h.decode(r, &req); rerr != nil {
		writeDetail(w, rerr.status, rerr.detail)
		return
	}

	product, err := h.store.CreateProduct(ctx, req.Name, *req.Price)
	if err != nil {
		h.storeFailure(ctx, w, span, err)
		return
	}

	span.SetAttributes(attribute.Int64(tracing.AttrProductID, product.ID))
	h.logger.InfoContext(ctx, "product created",
		"product_id", product.ID,
		"name", product.Name,
		"price", product.Price,
	)
	writeJSON(w, http.StatusOK, product)
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.StartSpan(r.Context(), "checkout_order")
	defer span.End()

	var req OrderCreate
	if rerr := h.decode(r, &req); rerr != nil {
		writeDetail(w, rerr.status, rerr.detail)
		return
	}

	order, ok := h.placeOrder(ctx, w, span, *req.ProductID, *req.Quantity)
	if !ok {
		return
	}

	handle, err := h.tasks.Submit(ctx, tasks.Job{Name: tasks.TaskProcessOrder, Payload: tasks.OrderPayload(order)})
	if err != nil {
		h.submitFailure(ctx, w, span, order.ID, err)
		return
	}
	span.SetAttributes(attribute.String(tracing.AttrTaskID, handle.ID))

	// The confirmation is best effort; the sweeper does not retry it.
	if _, err := h.tasks.Submit(ctx, tasks.Job{Name: tasks.TaskSendOrderConfirmation, Payload: tasks.OrderPayload(order)}); err != nil {
		h.logger.WarnContext(ctx, "failed to queue order confirmation", "order_id", order.ID, "error", err)
	}

	h.logger.InfoContext(ctx, "order placed",
		"order_id", order.ID,
		"product_id", order.ProductID,
		"quantity", order.Quantity,
		"task_id", handle.ID,
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Order received, processing in the background",
		"order_id": order.ID,
		"task_id":  handle.ID,
	})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orders, err := h.store.ListOrders(ctx)
	if err != nil {
		h.storeFailure(ctx, w, trace.SpanFromContext(ctx), err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req OrderCreate
	if rerr := h.decode(r, &req); rerr != nil {
		writeDetail(w, rerr.status, rerr.detail)
		return
	}

	order, ok := h.placeOrder(ctx, w, trace.SpanFromContext(ctx), *req.ProductID, *req.Quantity)
	if !ok {
		return
	}

	h.logger.InfoContext(ctx, "order created",
		"order_id", order.ID,
		"product_id", order.ProductID,
		"quantity", order.Quantity,
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Order created successfully",
		"order_id": order.ID,
		"status":   order.Status,
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	order, ok := h.lookupOrder(ctx, w, r)
	if !ok {
		return
	}
	tracing.SetOrderAttributes(trace.SpanFromContext(ctx), order.ID, order.ProductID, order.Quantity)
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) processOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	span := trace.SpanFromContext(ctx)

	order, ok := h.lookupOrder(ctx, w, r)
	if !ok {
		return
	}

	handle, err := h.tasks.Submit(ctx, tasks.Job{Name: tasks.TaskProcessOrder, Payload: tasks.OrderPayload(order)})
	if err != nil {
		h.submitFailure(ctx, w, span, order.ID, err)
		return
	}

	h.logger.InfoContext(ctx, "manual processing triggered", "order_id", order.ID, "task_id", handle.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  fmt.Sprintf("Order %d processing triggered", order.ID),
		"order_id": order.ID,
		"task_id":  handle.ID,
	})
}

// placeOrder checks the product exists and creates a pending order. It
// writes the error response itself and reports whether to continue.
func (h *Handler) placeOrder(ctx context.Context, w http.ResponseWriter, span trace.Span, productID int64, quantity int) (*store.Order, bool) {
	if _, err := h.store.GetProduct(ctx, productID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeDetail(w, http.StatusNotFound, "Product not found")
			return nil, false
		}
		h.storeFailure(ctx, w, span, err)
		return nil, false
	}

	order, err := h.store.CreateOrder(ctx, productID, quantity)
	if err != nil {
		h.storeFailure(ctx, w, span, err)
		return nil, false
	}

	tracing.SetOrderAttributes(span, order.ID, order.ProductID, order.Quantity)
	return order, true
}

// lookupOrder loads the order named by the order_id path value.
func (h *Handler) lookupOrder(ctx context.Context, w http.ResponseWriter, r *http.Request) (*store.Order, bool) {
	id, err := strconv.ParseInt(r.PathValue("order_id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, []FieldError{{Field: "order_id", Message: "must be an integer"}})
		return nil, false
	}

	order, err := h.store.GetOrder(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("Order with ID %d not found", id))
		return nil, false
	}
	if err != nil {
		h.storeFailure(ctx, w, trace.SpanFromContext(ctx), err)
		return nil, false
	}
	return order, true
}

func (h *Handler) storeFailure(ctx context.Context, w http.ResponseWriter, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	h.logger.ErrorContext(ctx, "store operation failed", "error", err)
	writeDetail(w, http.StatusInternalServerError, "Internal Server Error")
}

func (h *Handler) submitFailure(ctx context.Context, w http.ResponseWriter, span trace.Span, orderID int64, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	h.logger.ErrorContext(ctx, "failed to submit order task", "order_id", orderID, "error", err)
	writeDetail(w, http.StatusServiceUnavailable, "Task queue unavailable")
}
