package orderwrite

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"pricewaiter-bridge/internal/model"
)

// Amount is a money value in cents decoded from either a JSON string
// ("26.50") or number (26.5). Set reports whether the field was present.
// Negative and out-of-range amounts are rejected.
type Amount struct {
	Cents int64
	Set   bool
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = Amount{}
		return nil
	}
	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		var err error
		if s, err = strconv.Unquote(s); err != nil {
			return fmt.Errorf("amount: %w", err)
		}
	}
	c, err := model.ParseAmount(s)
	if err != nil {
		return err
	}
	if c < 0 {
		return fmt.Errorf("amount %q: negative", s)
	}
	*a = Amount{Cents: c, Set: true}
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Set {
		return []byte("null"), nil
	}
	return json.Marshal(model.FormatCents(a.Cents))
}

// LineItemRequest is one entry of line_items.
type LineItemRequest struct {
	ProductID   int64  `json:"product_id"`
	VariationID int64  `json:"variation_id,omitempty"`
	Quantity    int    `json:"quantity"`
	Name        string `json:"name,omitempty"`
	SKU         string `json:"sku,omitempty"`
	Subtotal    Amount `json:"subtotal"`
	Total       Amount `json:"total"`
}

// ShippingLineRequest is one entry of shipping_lines.
type ShippingLineRequest struct {
	MethodID    string `json:"method_id"`
	MethodTitle string `json:"method_title"`
	Total       Amount `json:"total"`
}

// MetaDataRequest is one entry of meta_data.
type MetaDataRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Request is a REST API v3 order creation body. Only the fields the bridge
// acts on are decoded.
type Request struct {
	PaymentMethod      string                `json:"payment_method"`
	PaymentMethodTitle string                `json:"payment_method_title"`
	TransactionID      string                `json:"transaction_id"`
	SetPaid            bool                  `json:"set_paid"`
	Status             string                `json:"status"`
	Currency           string                `json:"currency"`
	CustomerID         *int64                `json:"customer_id"`
	Billing            model.Address         `json:"billing"`
	Shipping           model.Address         `json:"shipping"`
	LineItems          []LineItemRequest     `json:"line_items"`
	ShippingLines      []ShippingLineRequest `json:"shipping_lines"`
	MetaData           []MetaDataRequest     `json:"meta_data"`
	TotalTax           Amount                `json:"total_tax"`
	Total              Amount                `json:"total"`
}

// Meta returns the value of the first meta_data entry with key.
func (r *Request) Meta(key string) string {
	for _, m := range r.MetaData {
		if m.Key == key {
			return m.Value
		}
	}
	return ""
}

var allowedStatuses = map[model.OrderStatus]bool{
	model.StatusPending:    true,
	model.StatusProcessing: true,
	model.StatusOnHold:     true,
	model.StatusCompleted:  true,
	model.StatusCancelled:  true,
}

// Validate rejects requests that cannot become an order.
func (r *Request) Validate() error {
	if len(r.LineItems) == 0 {
		return model.NewValidationError("line_items", "at least one line item is required")
	}
	for i, li := range r.LineItems {
		if li.Quantity <= 0 {
			return model.NewValidationError(fmt.Sprintf("line_items[%d].quantity", i), "must be positive")
		}
		if li.ProductID <= 0 && !li.Total.Set {
			return model.NewValidationError(fmt.Sprintf("line_items[%d]", i), "product_id or total is required")
		}
	}
	if r.Status != "" && !allowedStatuses[model.OrderStatus(r.Status)] {
		return model.NewValidationError("status", fmt.Sprintf("unknown status %q", r.Status))
	}
	return nil
}
