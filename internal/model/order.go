package model

import (
	"time"

	"github.com/google/uuid"
	nanoid "github.com/jaevor/go-nanoid"
)

// OrderStatus mirrors the host store's order status slugs.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusOnHold     OrderStatus = "on-hold"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
)

// LineKind distinguishes the three line item types an order can carry.
type LineKind string

const (
	KindProduct  LineKind = "line_item"
	KindShipping LineKind = "shipping"
	KindTax      LineKind = "tax"
)

// CreatedVia records which entry point produced an order.
const (
	CreatedViaIPN  = "ipn"
	CreatedViaREST = "rest"
)

// PaymentMethodID is the payment method tag PriceWaiter orders carry.
const (
	PaymentMethodID    = "pricewaiter"
	PaymentMethodTitle = "PriceWaiter"
)

// Order meta keys.
const (
	MetaPricewaiterID      = "_wc_pricewaiter_id"
	MetaPricewaiterMethod  = "_wc_pricewaiter_payment_method"
	MetaTransactionID      = "_transaction_id"
	MetaPaymentMethod      = "_payment_method"
	MetaPaymentMethodTitle = "_payment_method_title"
)

// Address is a billing or shipping address. Shipping addresses leave Email empty.
type Address struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address1  string `json:"address_1"`
	Address2  string `json:"address_2"`
	City      string `json:"city"`
	State     string `json:"state"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
}

// LineItem is one order line. Which fields are meaningful depends on Kind:
// product lines use ProductID through Variation, shipping lines use MethodID
// and Total, tax lines use Label through Compound.
type LineItem struct {
	Kind LineKind `json:"type"`
	Name string   `json:"name"`

	ProductID int64             `json:"product_id,omitempty"`
	SKU       string            `json:"sku,omitempty"`
	Quantity  int               `json:"quantity,omitempty"`
	UnitPrice int64             `json:"unit_price,omitempty"`
	Subtotal  int64             `json:"subtotal,omitempty"`
	Total     int64             `json:"total"`
	Tax       int64             `json:"total_tax,omitempty"`
	Variation map[string]string `json:"variation,omitempty"`

	MethodID string `json:"method_id,omitempty"`

	Label       string `json:"label,omitempty"`
	RateID      int64  `json:"rate_id,omitempty"`
	ShippingTax int64  `json:"shipping_tax_total,omitempty"`
	Compound    bool   `json:"compound,omitempty"`
}

// Totals are stored in cents.
type Totals struct {
	CartTax       int64 `json:"cart_tax"`
	Shipping      int64 `json:"shipping_total"`
	ShippingTax   int64 `json:"shipping_tax"`
	CartDiscount  int64 `json:"discount_total"`
	OrderDiscount int64 `json:"order_discount"`
	Total         int64 `json:"total"`
}

// Order is the bridge's order record.
type Order struct {
	ID                 string            `json:"id"`
	OrderKey           string            `json:"order_key"`
	PricewaiterID      string            `json:"pricewaiter_id,omitempty"`
	Status             OrderStatus       `json:"status"`
	CustomerID         *int64            `json:"customer_id"`
	CreatedVia         string            `json:"created_via"`
	Currency           string            `json:"currency,omitempty"`
	PaymentMethod      string            `json:"payment_method,omitempty"`
	PaymentMethodTitle string            `json:"payment_method_title,omitempty"`
	Test               bool              `json:"test,omitempty"`
	Billing            Address           `json:"billing"`
	Shipping           Address           `json:"shipping"`
	Items              []LineItem        `json:"line_items"`
	Totals             Totals            `json:"totals"`
	Meta               map[string]string `json:"meta_data"`
	Notes              []string          `json:"notes,omitempty"`
	CreatedAt          time.Time         `json:"date_created"`
	UpdatedAt          time.Time         `json:"date_modified"`
}

var orderKeyGen = mustKeyGenerator()

func mustKeyGenerator() func() string {
	gen, err := nanoid.Standard(13)
	if err != nil {
		panic(err)
	}
	return gen
}

// NewOrder returns an empty pending order with a fresh id and order key.
func NewOrder(createdVia string, now time.Time) *Order {
	return &Order{
		ID:         uuid.New().String(),
		OrderKey:   "wc_order_" + orderKeyGen(),
		Status:     StatusPending,
		CreatedVia: createdVia,
		Meta:       map[string]string{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// ItemsOf returns the order's line items of the given kind.
func (o *Order) ItemsOf(kind LineKind) []LineItem {
	var out []LineItem
	for _, it := range o.Items {
		if it.Kind == kind {
			out = append(out, it)
		}
	}
	return out
}

// RemoveItems drops every line item of the given kind.
func (o *Order) RemoveItems(kind LineKind) {
	kept := o.Items[:0]
	for _, it := range o.Items {
		if it.Kind != kind {
			kept = append(kept, it)
		}
	}
	o.Items = kept
}

// AddNote appends a private order note.
func (o *Order) AddNote(note string) {
	o.Notes = append(o.Notes, note)
}

// SetMeta sets a meta value, allocating the map when needed.
func (o *Order) SetMeta(key, value string) {
	if o.Meta == nil {
		o.Meta = map[string]string{}
	}
	o.Meta[key] = value
}

// CalculateTotals sums the line items into Totals the way the host store
// does before persisting. Discounts are left as set.
func (o *Order) CalculateTotals() {
	var lines, cartTax, shipping, shippingTax int64
	for _, it := range o.Items {
		switch it.Kind {
		case KindProduct:
			lines += it.Total
		case KindShipping:
			shipping += it.Total
		case KindTax:
			cartTax += it.Tax
			shippingTax += it.ShippingTax
		}
	}
	o.Totals.CartTax = cartTax
	o.Totals.Shipping = shipping
	o.Totals.ShippingTax = shippingTax
	o.Totals.Total = lines + shipping + cartTax + shippingTax - o.Totals.CartDiscount - o.Totals.OrderDiscount
}
