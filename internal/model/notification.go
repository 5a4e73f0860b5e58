package model

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// MaxQuantity bounds the quantity one notification may carry.
const MaxQuantity = 1_000_000

// Notification is a PriceWaiter IPN payload after parsing.
// Raw keeps the form exactly as received; verification echoes it back.
type Notification struct {
	PricewaiterID string
	APIKey        string
	Test          bool

	ProductID   int64
	ProductName string
	ProductSKU  string
	Quantity    int
	UnitPrice   int64
	Tax         int64
	Shipping    int64
	Total       int64

	PaymentMethod  string
	TransactionID  string
	ShippingMethod string
	Currency       string

	BuyerEmail      string
	BillingAddress  Address
	ShippingAddress Address

	Raw url.Values
}

// ParseNotification converts a posted IPN form into a Notification.
// Missing identifiers and malformed numbers are validation errors.
func ParseNotification(form url.Values) (*Notification, error) {
	if len(form) == 0 {
		return nil, NewValidationError("payload", "empty")
	}

	n := &Notification{
		PricewaiterID:  strings.TrimSpace(form.Get("pricewaiter_id")),
		APIKey:         strings.TrimSpace(form.Get("api_key")),
		Test:           form.Get("test") == "1",
		ProductName:    form.Get("product_name"),
		ProductSKU:     form.Get("product_sku"),
		PaymentMethod:  form.Get("payment_method"),
		TransactionID:  form.Get("transaction_id"),
		ShippingMethod: form.Get("shipping_method"),
		Currency:       form.Get("currency"),
		BuyerEmail:     form.Get("buyer_email"),
		Raw:            form,
	}
	if n.PricewaiterID == "" {
		return nil, NewValidationError("pricewaiter_id", "required")
	}
	if n.APIKey == "" {
		return nil, NewValidationError("api_key", "required")
	}

	if v := strings.TrimSpace(form.Get("metadata__wc_post_id")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id < 0 {
			return nil, NewValidationError("metadata__wc_post_id", fmt.Sprintf("not an id: %q", v))
		}
		n.ProductID = id
	}

	qty := strings.TrimSpace(form.Get("quantity"))
	if qty == "" {
		n.Quantity = 1
	} else {
		q, err := strconv.Atoi(qty)
		if err != nil || q <= 0 {
			return nil, NewValidationError("quantity", fmt.Sprintf("not a positive integer: %q", qty))
		}
		if q > MaxQuantity {
			return nil, NewValidationError("quantity", fmt.Sprintf("exceeds %d", MaxQuantity))
		}
		n.Quantity = q
	}

	for _, f := range []struct {
		key string
		dst *int64
	}{
		{"unit_price", &n.UnitPrice},
		{"tax", &n.Tax},
		{"shipping", &n.Shipping},
		{"total", &n.Total},
	} {
		c, err := ParseAmount(form.Get(f.key))
		if err != nil {
			return nil, NewValidationError(f.key, err.Error())
		}
		if c < 0 {
			return nil, NewValidationError(f.key, "negative amount")
		}
		*f.dst = c
	}
	if err := checkOrderSum(n); err != nil {
		return nil, err
	}

	n.BillingAddress = buyerAddress(form, "billing")
	n.BillingAddress.Email = n.BuyerEmail
	n.ShippingAddress = buyerAddress(form, "shipping")
	return n, nil
}

// checkOrderSum rejects notifications whose line total, tax and shipping
// cannot be summed in cents. Amounts are already non-negative.
func checkOrderSum(n *Notification) error {
	room := int64(math.MaxInt64)
	if n.UnitPrice > room/int64(n.Quantity) {
		return NewValidationError("unit_price", "line total out of range")
	}
	room -= n.UnitPrice * int64(n.Quantity)
	if n.Tax > room {
		return NewValidationError("tax", "order total out of range")
	}
	room -= n.Tax
	if n.Shipping > room {
		return NewValidationError("shipping", "order total out of range")
	}
	return nil
}

// buyerAddress reads the buyer_<kind>_* fields. Lines 2 and 3 collapse
// into Address2.
func buyerAddress(form url.Values, kind string) Address {
	get := func(field string) string {
		return form.Get("buyer_" + kind + "_" + field)
	}
	return Address{
		FirstName: get("first_name"),
		LastName:  get("last_name"),
		Phone:     get("phone"),
		Address1:  get("address"),
		Address2:  strings.TrimSpace(get("address2") + " " + get("address3")),
		City:      get("city"),
		State:     get("state"),
		Postcode:  get("zip"),
		Country:   get("country"),
	}
}
