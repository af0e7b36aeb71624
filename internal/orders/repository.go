package orders

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrOrderNotFound is returned when no order matches the id.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInvalidOrderID rejects blank lookups.
	ErrInvalidOrderID = errors.New("order id is required")
)

// Repository reads order records.
type Repository interface {
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	CustomerOrders(ctx context.Context, customerID string, limit int) ([]Order, error)
}

// MemoryRepository is an in-process Repository for tests and local runs.
type MemoryRepository struct {
	mu     sync.RWMutex
	orders map[string]Order
}

func NewMemoryRepository(seed ...Order) *MemoryRepository {
	r := &MemoryRepository{orders: make(map[string]Order)}
	for _, o := range seed {
		r.Put(o)
	}
	return r
}

// Put inserts or replaces an order.
func (r *MemoryRepository) Put(o Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[strings.ToUpper(o.OrderID)] = o
}

func (r *MemoryRepository) GetOrder(_ context.Context, orderID string) (*Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[strings.ToUpper(orderID)]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return &o, nil
}

func (r *MemoryRepository) CustomerOrders(_ context.Context, customerID string, limit int) ([]Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Order
	for _, o := range r.orders {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
