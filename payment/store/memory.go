// Package store provides Repository implementations.
package store

import (
	"context"
	"sync"

	"github.com/openfun/payplan/payment"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps orders in a map guarded by a mutex. SaveOrder enforces the
// same optimistic versioning contract as the SQLite store so ledger
// concurrency behavior is identical in tests.
type Memory struct {
	mu     sync.RWMutex
	orders map[string]*payment.Order
	events []payment.Event
}

func NewMemory() *Memory {
	return &Memory{orders: make(map[string]*payment.Order)}
}

// GetOrder returns a deep copy of the stored order.
func (m *Memory) GetOrder(_ context.Context, id string) (*payment.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	order, ok := m.orders[id]
	if !ok {
		return nil, payment.ErrOrderNotFound
	}
	return order.Clone(), nil
}

// SaveOrder stores the order wholesale. An existing order must be saved with
// the version it was read at; on mismatch the write is rejected and the
// caller retries against a fresh read.
func (m *Memory) SaveOrder(_ context.Context, order *payment.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.orders[order.ID]
	if ok && existing.Version != order.Version {
		return payment.ErrConcurrentModification
	}

	saved := order.Clone()
	saved.Version++
	m.orders[order.ID] = saved
	order.Version = saved.Version
	return nil
}

// ListOrders returns copies of all stored orders, for the reminder scan.
func (m *Memory) ListOrders(_ context.Context) ([]*payment.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*payment.Order, 0, len(m.orders))
	for _, order := range m.orders {
		out = append(out, order.Clone())
	}
	return out, nil
}

// Record appends a payment event. Memory doubles as an EventSink so tests can
// assert on emitted events.
func (m *Memory) Record(_ context.Context, ev payment.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

// Events returns a copy of all recorded events.
func (m *Memory) Events() []payment.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]payment.Event(nil), m.events...)
}

// EventsForOrder returns the recorded events for one order, oldest first.
func (m *Memory) EventsForOrder(_ context.Context, orderID string) ([]payment.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []payment.Event
	for _, ev := range m.events {
		if ev.OrderID == orderID {
			out = append(out, ev)
		}
	}
	return out, nil
}
