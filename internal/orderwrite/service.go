package orderwrite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pricewaiter-bridge/internal/events"
	"pricewaiter-bridge/internal/mail"
	"pricewaiter-bridge/internal/metrics"
	"pricewaiter-bridge/internal/model"
	"pricewaiter-bridge/internal/store"
)

// Deps are the Service's collaborators. Taxes, Publisher, Mailer and
// Metrics may be nil.
type Deps struct {
	Store        store.Store
	Interceptors []Interceptor
	Taxes        TaxCalculator
	Publisher    events.Publisher
	Mailer       mail.Sender
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

// Service creates orders from REST requests.
type Service struct {
	store        store.Store
	interceptors []Interceptor
	taxes        TaxCalculator
	publisher    events.Publisher
	mailer       mail.Sender
	metrics      *metrics.Metrics
	logger       *slog.Logger
	now          func() time.Time
}

func NewService(d Deps) *Service {
	taxes := d.Taxes
	if taxes == nil {
		taxes = RateTable(nil)
	}
	return &Service{
		store:        d.Store,
		interceptors: d.Interceptors,
		taxes:        taxes,
		publisher:    d.Publisher,
		mailer:       d.Mailer,
		metrics:      d.Metrics,
		logger:       d.Logger,
		now:          time.Now,
	}
}

// Create builds, corrects, stores and announces one order. Without any
// interceptor, PriceWaiter orders are refused rather than stored with
// host-computed totals.
func (s *Service) Create(ctx context.Context, req *Request) (*model.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if len(s.interceptors) == 0 && req.PaymentMethod == model.PaymentMethodID {
		return nil, model.NewOrderWriteDisabledError()
	}

	cycle := mail.NewCycle(s.mailerOrDiscard(), s.logger)

	var hooks []BeforeSave
	for _, ic := range s.interceptors {
		hook, err := ic.PreInsert(ctx, req, cycle)
		if err != nil {
			return nil, err
		}
		if hook != nil {
			hooks = append(hooks, hook)
		}
	}

	o, stock, err := s.build(ctx, req)
	if err != nil {
		return nil, err
	}

	s.taxes.Calculate(o)
	o.CalculateTotals()

	for _, hook := range hooks {
		hook(o)
	}

	if err := s.store.CreateOrder(ctx, o, stock); err != nil {
		if errors.Is(err, store.ErrDuplicateOrder) {
			return nil, model.NewDuplicateOrderError(o.PricewaiterID)
		}
		s.logger.Error("order creation failed",
			slog.String("created_via", model.CreatedViaREST),
			slog.String("error", err.Error()),
		)
		return nil, model.NewPersistenceError(err)
	}
	s.metrics.RecordOrder(o)

	if s.publisher != nil {
		if err := s.publisher.PublishOrder(ctx, events.NewOrderCreated(o, s.now())); err != nil {
			s.logger.Error("publish order event failed",
				slog.String("order_id", o.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	if s.mailer != nil {
		cycle.Dispatch(ctx, o)
	}
	return o, nil
}

func (s *Service) build(ctx context.Context, req *Request) (*model.Order, []store.StockChange, error) {
	o := model.NewOrder(model.CreatedViaREST, s.now())
	o.Currency = req.Currency
	o.CustomerID = req.CustomerID
	o.Billing = req.Billing
	o.Shipping = req.Shipping
	o.PaymentMethod = req.PaymentMethod
	o.PaymentMethodTitle = req.PaymentMethodTitle

	switch {
	case req.Status != "":
		o.Status = model.OrderStatus(req.Status)
	case req.SetPaid:
		o.Status = model.StatusProcessing
	default:
		o.Status = model.StatusPending
	}

	for _, m := range req.MetaData {
		o.SetMeta(m.Key, m.Value)
	}
	if req.TransactionID != "" {
		o.SetMeta(model.MetaTransactionID, req.TransactionID)
	}
	o.PricewaiterID = req.Meta(model.MetaPricewaiterID)

	if o.CustomerID == nil && req.Billing.Email != "" {
		id, err := s.store.CustomerIDByEmail(ctx, req.Billing.Email)
		if err != nil {
			return nil, nil, model.NewInternalError(fmt.Errorf("look up customer: %w", err))
		}
		o.CustomerID = id
	}

	reduce := o.Status == model.StatusProcessing || o.Status == model.StatusCompleted
	var stock []store.StockChange
	for i, li := range req.LineItems {
		line, product, err := s.lineItem(ctx, i, li)
		if err != nil {
			return nil, nil, err
		}
		o.Items = append(o.Items, line)
		if reduce && product != nil {
			stock = append(stock, store.StockChange{ProductID: product.ID, Quantity: li.Quantity})
		}
	}

	for _, sl := range req.ShippingLines {
		o.Items = append(o.Items, model.LineItem{
			Kind:     model.KindShipping,
			Name:     sl.MethodTitle,
			MethodID: sl.MethodID,
			Total:    sl.Total.Cents,
		})
	}
	return o, stock, nil
}

// lineItem prices a requested line from the catalog unless the request
// carries its own totals.
func (s *Service) lineItem(ctx context.Context, i int, li LineItemRequest) (model.LineItem, *store.Product, error) {
	line := model.LineItem{
		Kind:      model.KindProduct,
		ProductID: li.ProductID,
		Name:      li.Name,
		SKU:       li.SKU,
		Quantity:  li.Quantity,
	}

	id := li.ProductID
	if li.VariationID != 0 {
		id = li.VariationID
	}

	var product *store.Product
	if id > 0 {
		p, err := s.store.Product(ctx, id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			if !li.Total.Set {
				return line, nil, model.NewValidationError(fmt.Sprintf("line_items[%d].product_id", i), "product not found")
			}
		case err != nil:
			return line, nil, model.NewInternalError(fmt.Errorf("look up product %d: %w", id, err))
		default:
			product = p
		}
	}

	if product != nil {
		if line.Name == "" {
			line.Name = product.Name
		}
		if line.SKU == "" {
			line.SKU = product.SKU
		}
		line.UnitPrice = product.Price
		if product.ParentID != 0 && len(product.Attributes) > 0 {
			line.Variation = product.Attributes
		}
	}

	line.Subtotal = line.UnitPrice * int64(li.Quantity)
	line.Total = line.Subtotal
	if li.Subtotal.Set {
		line.Subtotal = li.Subtotal.Cents
	}
	if li.Total.Set {
		line.Total = li.Total.Cents
		if !li.Subtotal.Set {
			line.Subtotal = li.Total.Cents
		}
		if product == nil {
			line.UnitPrice = li.Total.Cents / int64(li.Quantity)
		}
	}
	return line, product, nil
}

func (s *Service) mailerOrDiscard() mail.Sender {
	if s.mailer != nil {
		return s.mailer
	}
	return discardSender{}
}

type discardSender struct{}

func (discardSender) Send(context.Context, mail.Message) error { return nil }
