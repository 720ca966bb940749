package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fastpay/internal/model"
)

// Memory is an in-process store with the same contract as Orders and
// Clients. It backs tests.
type Memory struct {
	mu      sync.RWMutex
	orders  map[string]*model.Order
	clients map[string]*model.Client
}

func NewMemory() *Memory {
	return &Memory{
		orders:  map[string]*model.Order{},
		clients: map[string]*model.Client{},
	}
}

func (m *Memory) PutOrder(o *model.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.orders[o.ID.String()] = &cp
}

func (m *Memory) PutClient(c *model.Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.clients[c.Phone] = &cp
}

// Order returns a copy of the stored order.
func (m *Memory) Order(id string) (*model.Order, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, false
	}
	cp := *o
	return &cp, true
}

func (m *Memory) Client(phone string) (*model.Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[phone]
	if !ok {
		return nil, false
	}
	cp := *c
	return &cp, true
}

func (m *Memory) PaymentState(_ context.Context, orderID string) (*model.PaymentState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	status := o.PaymentStatus
	if status == "" {
		status = model.StatusAwaitingPayment
	}
	return &model.PaymentState{
		OrderID:       o.ID,
		Total:         o.Total,
		AmountPaid:    o.AmountPaid,
		PaymentStatus: status,
	}, nil
}

func (m *Memory) UpdatePayment(_ context.Context, orderID string, upd model.PaymentUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[orderID]; ok {
		o.PaymentStatus = upd.PaymentStatus
		o.AmountPaid = upd.AmountPaid
		o.StripePaymentID = upd.StripePaymentID
	}
	return nil
}

func (m *Memory) MarkRefunded(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[orderID]; ok {
		o.PaymentStatus = model.StatusRefunded
	}
	return nil
}

func (m *Memory) FindByCode(_ context.Context, code string) (*model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.orders {
		if o.OrderCode == code {
			cp := *o
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("order %s: %w", code, ErrNotFound)
}

func (m *Memory) LatestByPhone(_ context.Context, phone string) (*model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *model.Order
	for _, o := range m.orders {
		if o.ClientPhone != phone {
			continue
		}
		if latest == nil || o.CreatedAt.After(latest.CreatedAt) {
			latest = o
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *Memory) CountByPhone(_ context.Context, phone string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, o := range m.orders {
		if o.ClientPhone == phone {
			n++
		}
	}
	return n, nil
}

func (m *Memory) SetManychatID(_ context.Context, orderID, subscriberID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[orderID]; ok {
		o.ManychatID = subscriberID
	}
	return nil
}

func (m *Memory) FindByManychatID(_ context.Context, subscriberID string) (*model.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.clients {
		if c.ManychatID == subscriberID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) LinkManychatID(_ context.Context, phone, subscriberID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[phone]
	if !ok {
		return fmt.Errorf("client %s: %w", phone, ErrNotFound)
	}
	c.ManychatID = subscriberID
	c.ManychatUpdatedAt = &at
	return nil
}
