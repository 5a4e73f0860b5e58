package postgres

import (
	"time"

	"pricewaiter-bridge/internal/model"
)

// OrderModel is the orders row. PricewaiterID is nullable so REST orders
// without a PriceWaiter id do not collide on the unique index.
type OrderModel struct {
	ID                 string            `gorm:"primaryKey;type:uuid"`
	OrderKey           string            `gorm:"not null;uniqueIndex"`
	PricewaiterID      *string           `gorm:"uniqueIndex:idx_orders_pricewaiter_id"`
	Status             string            `gorm:"not null;index"`
	CustomerID         *int64            `gorm:"index"`
	CreatedVia         string            `gorm:"not null"`
	Currency           string
	PaymentMethod      string
	PaymentMethodTitle string
	Test               bool
	Billing            model.Address     `gorm:"type:jsonb;serializer:json"`
	Shipping           model.Address     `gorm:"type:jsonb;serializer:json"`
	Meta               map[string]string `gorm:"type:jsonb;serializer:json"`
	Notes              []string          `gorm:"type:jsonb;serializer:json"`
	CartTax            int64
	ShippingTotal      int64
	ShippingTax        int64
	CartDiscount       int64
	OrderDiscount      int64
	Total              int64
	Items              []OrderItemModel `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (OrderModel) TableName() string { return "orders" }

type OrderItemModel struct {
	ID          uint   `gorm:"primaryKey"`
	OrderID     string `gorm:"type:uuid;not null;index"`
	Position    int    `gorm:"not null"`
	Kind        string `gorm:"not null"`
	Name        string
	ProductID   int64
	SKU         string
	Quantity    int
	UnitPrice   int64
	Subtotal    int64
	Total       int64
	Tax         int64
	Variation   map[string]string `gorm:"type:jsonb;serializer:json"`
	MethodID    string
	Label       string
	RateID      int64
	ShippingTax int64
	Compound    bool
}

func (OrderItemModel) TableName() string { return "order_items" }

type CustomerModel struct {
	ID    int64  `gorm:"primaryKey"`
	Email string `gorm:"not null;uniqueIndex"`
}

func (CustomerModel) TableName() string { return "customers" }

type ProductModel struct {
	ID          int64 `gorm:"primaryKey"`
	ParentID    int64
	Name        string
	SKU         string
	Price       int64
	TaxClass    string
	ManageStock bool
	Stock       int
	Attributes  map[string]string `gorm:"type:jsonb;serializer:json"`
}

func (ProductModel) TableName() string { return "products" }

// SettingsModel is a single row keyed by settingsRowID.
type SettingsModel struct {
	ID                 int `gorm:"primaryKey"`
	APIKey             string
	APIUserID          string
	SetupComplete      bool
	Debug              bool
	EcommerceTracking  string
	TrackingObject     string
	ButtonWrapperStyle string
	UpdatedAt          time.Time
}

func (SettingsModel) TableName() string { return "pricewaiter_settings" }

const settingsRowID = 1
