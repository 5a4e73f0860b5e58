// Package orderwrite implements REST order creation and the PriceWaiter
// correction applied to it.
//
// Service.Create calls each Interceptor's PreInsert before the store computes
// taxes. An interceptor that wants the final say returns a BeforeSave hook,
// which runs after totals are computed and just before the order is stored.
// Anything an interceptor captures lives in the returned hook, so concurrent
// requests never share state.
package orderwrite

import (
	"context"
	"fmt"
	"log/slog"

	"pricewaiter-bridge/internal/mail"
	"pricewaiter-bridge/internal/metrics"
	"pricewaiter-bridge/internal/model"
	"pricewaiter-bridge/internal/settings"
)

// TaxLineName names the replacement tax line.
const TaxLineName = "pw"

const logComponent = "pricewaiter-orderwrite"

// BeforeSave mutates the order just before it is persisted.
type BeforeSave func(o *model.Order)

// Interceptor hooks into REST order creation.
type Interceptor interface {
	// PreInsert sees the request before taxes are computed. It may disable
	// emails on cycle. A nil hook means the interceptor does not apply.
	PreInsert(ctx context.Context, req *Request, cycle *mail.Cycle) (BeforeSave, error)
}

// TaxCorrector replaces the store's computed taxes and total on PriceWaiter
// orders with the amounts PriceWaiter actually charged.
type TaxCorrector struct {
	rateID   int64
	settings settings.Provider
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewTaxCorrector creates the interceptor. rateID is the tax rate the
// replacement line references and must be positive.
func NewTaxCorrector(rateID int64, sp settings.Provider, m *metrics.Metrics, logger *slog.Logger) (*TaxCorrector, error) {
	if rateID <= 0 {
		return nil, fmt.Errorf("orderwrite: tax rate id must be a positive configured value, got %d", rateID)
	}
	return &TaxCorrector{
		rateID:   rateID,
		settings: sp,
		metrics:  m,
		logger:   logger.With(slog.String("component", logComponent)),
	}, nil
}

// captured is the part of the original request the hook needs.
type captured struct {
	totalTax int64
	total    int64
}

func (t *TaxCorrector) PreInsert(ctx context.Context, req *Request, cycle *mail.Cycle) (BeforeSave, error) {
	if req.PaymentMethod != model.PaymentMethodID {
		return nil, nil
	}
	if !req.Total.Set {
		return nil, model.NewValidationError("total", "required for PriceWaiter orders")
	}

	c := captured{totalTax: req.TotalTax.Cents, total: req.Total.Cents}

	// PriceWaiter already notified the buyer.
	cycle.Disable(mail.CustomerInvoice, mail.CustomerProcessingOrder)

	debug := t.debug(ctx)
	return func(o *model.Order) {
		if debug {
			t.logger.Info("correcting taxes and totals",
				slog.String("order_id", o.ID),
				slog.Int64("computed_tax", o.Totals.CartTax),
				slog.Int64("computed_total", o.Totals.Total),
				slog.Int64("requested_tax", c.totalTax),
				slog.Int64("requested_total", c.total),
			)
		}
		applyCorrection(o, c, t.rateID)
		t.metrics.RecordTaxCorrection()
	}, nil
}

func applyCorrection(o *model.Order, c captured, rateID int64) {
	o.RemoveItems(model.KindTax)
	if c.totalTax != 0 {
		o.Items = append(o.Items, model.LineItem{
			Kind:        model.KindTax,
			Name:        TaxLineName,
			RateID:      rateID,
			Tax:         c.totalTax,
			ShippingTax: 0,
		})
	}
	o.Totals.CartTax = c.totalTax
	o.Totals.ShippingTax = 0
	o.Totals.Total = c.total
}

func (t *TaxCorrector) debug(ctx context.Context) bool {
	if t.settings == nil {
		return false
	}
	s, err := t.settings.Current(ctx)
	return err == nil && s.Debug
}

var _ Interceptor = (*TaxCorrector)(nil)
