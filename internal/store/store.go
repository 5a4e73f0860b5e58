// Package store defines the order persistence collaborators the bridge
// writes through, plus an in-memory implementation.
package store

import (
	"context"
	"errors"

	"pricewaiter-bridge/internal/model"
)

var (
	// ErrDuplicateOrder is returned when an order with the same PriceWaiter
	// id already exists. Implementations must enforce this atomically.
	ErrDuplicateOrder = errors.New("duplicate pricewaiter order")
	// ErrNotFound is returned by lookups that match nothing.
	ErrNotFound = errors.New("record not found")
)

// Product is a catalog entry as the bridge needs it.
type Product struct {
	ID          int64
	ParentID    int64 // non-zero for variations
	Name        string
	SKU         string
	Price       int64
	TaxClass    string
	ManageStock bool
	Stock       int
	Attributes  map[string]string // variation attributes, e.g. attribute_pa_size=large
}

// StockChange decrements a product's stock by Quantity.
type StockChange struct {
	ProductID int64
	Quantity  int
}

// Orders persists order records.
type Orders interface {
	// OrderExists reports whether an order with this PriceWaiter id exists.
	OrderExists(ctx context.Context, pricewaiterID string) (bool, error)
	// CreateOrder inserts o and applies stock in one unit of work.
	// Returns ErrDuplicateOrder when o.PricewaiterID is taken.
	CreateOrder(ctx context.Context, o *model.Order, stock []StockChange) error
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	GetOrderByPricewaiterID(ctx context.Context, pricewaiterID string) (*model.Order, error)
}

// Customers resolves registered customers.
type Customers interface {
	// CustomerIDByEmail returns nil when no account uses email.
	CustomerIDByEmail(ctx context.Context, email string) (*int64, error)
}

// Catalog resolves products. Product returns ErrNotFound for unknown ids.
type Catalog interface {
	Product(ctx context.Context, id int64) (*Product, error)
}

// Store groups the collaborators a deployment provides.
type Store interface {
	Orders
	Customers
	Catalog
}
