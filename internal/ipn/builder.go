package ipn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pricewaiter-bridge/internal/model"
	"pricewaiter-bridge/internal/store"
)

// Line item constants written on IPN orders.
const (
	ShippingMethodID     = "pricewaiter_fixed_shipping"
	DefaultShippingTitle = "Flat Rate"
	TaxItemName          = "PRICEWAITER-ORDER-CUSTOM-TAX"
	TestOrderNote        = `This was a PriceWaiter "test" order.`
)

// buildOrder turns a verified notification into an order and the stock
// changes to apply with it. Amounts are taken as posted; nothing is
// recalculated.
func buildOrder(ctx context.Context, n *model.Notification, customers store.Customers, catalog store.Catalog, now time.Time) (*model.Order, []store.StockChange, error) {
	o := model.NewOrder(model.CreatedViaIPN, now)
	o.PricewaiterID = n.PricewaiterID
	o.Test = n.Test
	o.Currency = n.Currency
	o.Status = model.StatusProcessing
	if n.Test {
		o.Status = model.StatusCancelled
	}

	customerID, err := customers.CustomerIDByEmail(ctx, n.BuyerEmail)
	if err != nil {
		return nil, nil, fmt.Errorf("look up customer: %w", err)
	}
	o.CustomerID = customerID

	line := model.LineItem{
		Kind:      model.KindProduct,
		ProductID: n.ProductID,
		Name:      n.ProductName,
		SKU:       n.ProductSKU,
		Quantity:  n.Quantity,
		UnitPrice: n.UnitPrice,
		Subtotal:  n.UnitPrice * int64(n.Quantity),
		Total:     n.UnitPrice * int64(n.Quantity),
		Tax:       n.Tax,
	}

	var product *store.Product
	if n.ProductID != 0 {
		product, err = catalog.Product(ctx, n.ProductID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, nil, fmt.Errorf("look up product %d: %w", n.ProductID, err)
		}
	}
	if product != nil {
		line.Name = product.Name
		line.SKU = product.SKU
		if product.ParentID != 0 && len(product.Attributes) > 0 {
			line.Variation = product.Attributes
		}
	}
	o.Items = append(o.Items, line)

	if n.Shipping > 0 {
		title := n.ShippingMethod
		if title == "" {
			title = DefaultShippingTitle
		}
		o.Items = append(o.Items, model.LineItem{
			Kind:     model.KindShipping,
			Name:     title,
			MethodID: ShippingMethodID,
			Total:    n.Shipping,
		})
	}

	if n.Tax > 0 {
		o.Items = append(o.Items, model.LineItem{
			Kind:        model.KindTax,
			Name:        TaxItemName,
			Label:       fmt.Sprintf("Tax (%s)", n.ShippingAddress.State),
			RateID:      0,
			Tax:         n.Tax,
			ShippingTax: 0,
			Compound:    false,
		})
	}

	o.Billing = n.BillingAddress
	o.Shipping = n.ShippingAddress

	o.Totals = model.Totals{
		CartTax:       n.Tax,
		ShippingTax:   0,
		Shipping:      n.Shipping,
		CartDiscount:  0,
		OrderDiscount: 0,
		Total:         n.Total,
	}

	o.PaymentMethod = fmt.Sprintf("%s (%s)", model.PaymentMethodTitle, n.PaymentMethod)
	o.PaymentMethodTitle = model.PaymentMethodTitle
	o.SetMeta(model.MetaPricewaiterID, n.PricewaiterID)
	o.SetMeta(model.MetaPricewaiterMethod, n.PaymentMethod)
	o.SetMeta(model.MetaTransactionID, n.TransactionID)
	o.SetMeta(model.MetaPaymentMethod, o.PaymentMethod)
	o.SetMeta(model.MetaPaymentMethodTitle, model.PaymentMethodTitle)

	var stock []store.StockChange
	if n.Test {
		o.AddNote(TestOrderNote)
	} else if product != nil {
		stock = append(stock, store.StockChange{ProductID: product.ID, Quantity: n.Quantity})
	}
	return o, stock, nil
}
