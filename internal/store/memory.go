package store

import (
	"context"
	"strings"
	"sync"

	"pricewaiter-bridge/internal/model"
)

// Memory is an in-process Store guarded by a single RWMutex.
type Memory struct {
	mu        sync.RWMutex
	orders    map[string]*model.Order
	byPWID    map[string]string
	customers map[string]int64
	products  map[int64]*Product
	failWith  error
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		orders:    make(map[string]*model.Order),
		byPWID:    make(map[string]string),
		customers: make(map[string]int64),
		products:  make(map[int64]*Product),
	}
}

// AddCustomer registers a customer account.
func (m *Memory) AddCustomer(id int64, email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[strings.ToLower(email)] = id
}

// AddProduct registers or replaces a catalog product.
func (m *Memory) AddProduct(p Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := p
	m.products[p.ID] = &cp
}

// FailWrites makes every CreateOrder return err. Pass nil to clear.
func (m *Memory) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

func (m *Memory) OrderExists(_ context.Context, pricewaiterID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byPWID[pricewaiterID]
	return ok, nil
}

func (m *Memory) CreateOrder(_ context.Context, o *model.Order, stock []StockChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return m.failWith
	}
	if o.PricewaiterID != "" {
		if _, taken := m.byPWID[o.PricewaiterID]; taken {
			return ErrDuplicateOrder
		}
	}

	for _, sc := range stock {
		if p, ok := m.products[sc.ProductID]; ok && p.ManageStock {
			p.Stock -= sc.Quantity
		}
	}
	m.orders[o.ID] = cloneOrder(o)
	if o.PricewaiterID != "" {
		m.byPWID[o.PricewaiterID] = o.ID
	}
	return nil
}

func (m *Memory) GetOrder(_ context.Context, id string) (*model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneOrder(o), nil
}

func (m *Memory) GetOrderByPricewaiterID(ctx context.Context, pricewaiterID string) (*model.Order, error) {
	m.mu.RLock()
	id, ok := m.byPWID[pricewaiterID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return m.GetOrder(ctx, id)
}

// Orders returns every stored order. Order is unspecified.
func (m *Memory) Orders() []*model.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, cloneOrder(o))
	}
	return out
}

func (m *Memory) CustomerIDByEmail(_ context.Context, email string) (*int64, error) {
	if email == "" {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.customers[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	return &id, nil
}

func (m *Memory) Product(_ context.Context, id int64) (*Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func cloneOrder(o *model.Order) *model.Order {
	cp := *o
	cp.Items = append([]model.LineItem(nil), o.Items...)
	cp.Notes = append([]string(nil), o.Notes...)
	cp.Meta = make(map[string]string, len(o.Meta))
	for k, v := range o.Meta {
		cp.Meta[k] = v
	}
	return &cp
}

var _ Store = (*Memory)(nil)
