// Package store persists products and orders.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a product or order does not exist.
var ErrNotFound = errors.New("not found")

// OrderStatus is the processing state of an order.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusCompleted  OrderStatus = "completed"
	StatusFailed     OrderStatus = "failed"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Product is an item that can be ordered.
type Product struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Order is a request for a quantity of one product.
type Order struct {
	ID        int64       `json:"id"`
	ProductID int64       `json:"product_id"`
	Quantity  int         `json:"quantity"`
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Store is the product and order table store.
type Store interface {
	// CreateProduct inserts a product and returns it with its ID.
	CreateProduct(ctx context.Context, name string, price float64) (*Product, error)

	// GetProduct returns ErrNotFound if no product has the given ID.
	GetProduct(ctx context.Context, id int64) (*Product, error)

	// ListProducts returns all products ordered by ID.
	ListProducts(ctx context.Context) ([]Product, error)

	// CreateOrder inserts a pending order.
	CreateOrder(ctx context.Context, productID int64, quantity int) (*Order, error)

	// GetOrder returns ErrNotFound if no order has the given ID.
	GetOrder(ctx context.Context, id int64) (*Order, error)

	// ListOrders returns all orders ordered by ID.
	ListOrders(ctx context.Context) ([]Order, error)

	// UpdateOrderStatus sets the status of an order. It returns ErrNotFound
	// if the order does not exist.
	UpdateOrderStatus(ctx context.Context, id int64, status OrderStatus) error

	// ListOrdersByStatus returns orders in status whose last update is
	// before olderThan.
	ListOrdersByStatus(ctx context.Context, status OrderStatus, olderThan time.Time) ([]Order, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}

// StorageError represents an error from the storage backend.
type StorageError struct {
	Backend   string // Storage backend type ("sqlite", "memory")
	Operation string // Operation that failed ("create_product", "get_order", ...)
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}
