package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

const backendMemory = "memory"

var errClosed = errors.New("store is closed")

// MemoryStore implements Store using in-memory maps.
// This implementation is intended for testing and dry runs.
type MemoryStore struct {
	mu            sync.RWMutex
	products      map[int64]Product
	orders        map[int64]Order
	nextProductID int64
	nextOrderID   int64
	closed        bool
	now           func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[int64]Product),
		orders:   make(map[int64]Order),
		now:      time.Now,
	}
}

// CreateProduct inserts a product.
func (s *MemoryStore) CreateProduct(_ context.Context, name string, price float64) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, NewStorageError(backendMemory, "create_product", errClosed)
	}

	s.nextProductID++
	p := Product{ID: s.nextProductID, Name: name, Price: price}
	s.products[p.ID] = p
	return &p, nil
}

// GetProduct returns the product with id.
func (s *MemoryStore) GetProduct(_ context.Context, id int64) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// ListProducts returns all products ordered by ID.
func (s *MemoryStore) ListProducts(context.Context) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

// CreateOrder inserts a pending order. Like the SQLite store it rejects
// orders for unknown products.
func (s *MemoryStore) CreateOrder(_ context.Context, productID int64, quantity int) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, NewStorageError(backendMemory, "create_order", errClosed)
	}
	if _, ok := s.products[productID]; !ok {
		return nil, NewStorageError(backendMemory, "create_order", errors.New("FOREIGN KEY constraint failed"))
	}

	now := s.now().UTC()
	s.nextOrderID++
	o := Order{
		ID:        s.nextOrderID,
		ProductID: productID,
		Quantity:  quantity,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.orders[o.ID] = o
	return &o, nil
}

// GetOrder returns the order with id.
func (s *MemoryStore) GetOrder(_ context.Context, id int64) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

// ListOrders returns all orders ordered by ID.
func (s *MemoryStore) ListOrders(context.Context) ([]Order, error) {
	return s.filterOrders(func(Order) bool { return true }), nil
}

// ListOrdersByStatus returns orders in status last updated before olderThan.
func (s *MemoryStore) ListOrdersByStatus(_ context.Context, status OrderStatus, olderThan time.Time) ([]Order, error) {
	return s.filterOrders(func(o Order) bool {
		return o.Status == status && o.UpdatedAt.Before(olderThan)
	}), nil
}

// UpdateOrderStatus sets the status of an order.
func (s *MemoryStore) UpdateOrderStatus(_ context.Context, id int64, status OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return NewStorageError(backendMemory, "update_order_status", errClosed)
	}

	o, ok := s.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = s.now().UTC()
	s.orders[id] = o
	return nil
}

// Ping fails once the store is closed.
func (s *MemoryStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return NewStorageError(backendMemory, "ping", errClosed)
	}
	return nil
}

// Close marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

func (s *MemoryStore) filterOrders(keep func(Order) bool) []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := []Order{}
	for _, o := range s.orders {
		if keep(o) {
			orders = append(orders, o)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	return orders
}
