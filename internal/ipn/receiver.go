// Package ipn receives PriceWaiter payment notifications and turns verified
// ones into orders.
package ipn

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"pricewaiter-bridge/internal/events"
	"pricewaiter-bridge/internal/mail"
	"pricewaiter-bridge/internal/metrics"
	"pricewaiter-bridge/internal/model"
	"pricewaiter-bridge/internal/settings"
	"pricewaiter-bridge/internal/store"
)

// logComponent tags merchant debug records from this package.
const logComponent = "pricewaiter-ipn"

// Deps are the Receiver's collaborators. Publisher, Mailer and Metrics may
// be nil.
type Deps struct {
	Settings       settings.Provider
	Verifier       Verifier
	Store          store.Store
	HostVersion    VersionSource
	MaxHostVersion string
	Publisher      events.Publisher
	Mailer         mail.Sender
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
}

// Receiver processes IPN requests.
type Receiver struct {
	settings       settings.Provider
	verifier       Verifier
	store          store.Store
	hostVersion    VersionSource
	maxHostVersion string
	publisher      events.Publisher
	mailer         mail.Sender
	metrics        *metrics.Metrics
	logger         *slog.Logger
	now            func() time.Time
}

// NewReceiver creates a Receiver.
func NewReceiver(d Deps) *Receiver {
	maxVersion := d.MaxHostVersion
	if maxVersion == "" {
		maxVersion = DefaultMaxHostVersion
	}
	hv := d.HostVersion
	if hv == nil {
		hv = StaticVersion("")
	}
	return &Receiver{
		settings:       d.Settings,
		verifier:       d.Verifier,
		store:          d.Store,
		hostVersion:    hv,
		maxHostVersion: maxVersion,
		publisher:      d.Publisher,
		mailer:         d.Mailer,
		metrics:        d.Metrics,
		logger:         d.Logger.With(slog.String("component", logComponent)),
		now:            time.Now,
	}
}

// Handle runs one notification through the gate, verification, duplicate
// check and order creation. Errors are *model.APIError carrying the HTTP
// status to answer with.
func (r *Receiver) Handle(ctx context.Context, form url.Values) (*model.Order, error) {
	debug := r.debugEnabled(ctx)

	if err := r.checkHost(ctx, debug); err != nil {
		r.metrics.RecordIPN(metrics.OutcomeUnsupported)
		return nil, err
	}

	if len(form) == 0 {
		r.metrics.RecordIPN(metrics.OutcomeMalformed)
		return nil, model.NewIPNFailureError(model.NewValidationError("payload", "empty"))
	}

	if debug {
		r.logger.Info("new IPN request", slog.Any("post_data", form))
	}

	n, err := model.ParseNotification(form)
	if err != nil {
		r.metrics.RecordIPN(metrics.OutcomeMalformed)
		if debug {
			r.logger.Info("IPN payload rejected", slog.String("error", err.Error()))
		}
		return nil, model.NewIPNFailureError(err)
	}

	start := r.now()
	err = r.verifier.Verify(ctx, n.Raw)
	r.metrics.ObserveVerify(r.now().Sub(start))
	if err != nil {
		r.metrics.RecordIPN(metrics.OutcomeUnverified)
		if debug {
			attrs := []any{slog.Any("post_data", n.Raw), slog.String("error", err.Error())}
			var ve *VerifyError
			if errors.As(err, &ve) {
				attrs = append(attrs, slog.Int("response_status", ve.StatusCode), slog.String("response_body", ve.Body))
			}
			r.logger.Info("IPN verification failed", attrs...)
		}
		return nil, model.NewIPNFailureError(err)
	}
	if debug {
		r.logger.Info("valid IPN request", slog.String("pricewaiter_id", n.PricewaiterID))
	}

	exists, err := r.store.OrderExists(ctx, n.PricewaiterID)
	if err != nil {
		return nil, r.persistFailed(n, err)
	}
	if exists {
		return nil, r.duplicate(n, debug)
	}

	order, stock, err := buildOrder(ctx, n, r.store, r.store, r.now())
	if err != nil {
		return nil, r.persistFailed(n, err)
	}

	if err := r.store.CreateOrder(ctx, order, stock); err != nil {
		if errors.Is(err, store.ErrDuplicateOrder) {
			return nil, r.duplicate(n, debug)
		}
		return nil, r.persistFailed(n, err)
	}

	r.metrics.RecordIPN(metrics.OutcomeCreated)
	r.metrics.RecordOrder(order)
	if debug {
		r.logger.Info("order created",
			slog.String("order_id", order.ID),
			slog.String("pricewaiter_id", order.PricewaiterID),
			slog.String("status", string(order.Status)),
		)
		if order.Test {
			r.logger.Info(`order flagged as "test" and set to cancelled`, slog.String("order_id", order.ID))
		}
	}

	r.afterCreate(ctx, order)
	return order, nil
}

// checkHost rejects notifications when the host store is too new for IPN.
// A failed probe is logged and does not block the request.
func (r *Receiver) checkHost(ctx context.Context, debug bool) error {
	version, err := r.hostVersion.Version(ctx)
	if err != nil {
		r.logger.Warn("host version probe failed", slog.String("error", err.Error()))
		return nil
	}
	if hostSupportsIPN(version, r.maxHostVersion) {
		return nil
	}
	if debug {
		r.logger.Info("PriceWaiter IPN is not supported on this store version. Contact support@pricewaiter.com about upgrading to the REST API.",
			slog.String("host_version", version))
	}
	return model.NewUnsupportedHostError(version)
}

func (r *Receiver) duplicate(n *model.Notification, debug bool) error {
	r.metrics.RecordIPN(metrics.OutcomeDuplicate)
	if debug {
		r.logger.Info("order already exists", slog.String("pricewaiter_id", n.PricewaiterID))
	}
	return model.NewDuplicateOrderError(n.PricewaiterID)
}

// persistFailed is logged regardless of the debug setting.
func (r *Receiver) persistFailed(n *model.Notification, err error) error {
	r.metrics.RecordIPN(metrics.OutcomeFailed)
	r.logger.Error("order creation failed",
		slog.String("pricewaiter_id", n.PricewaiterID),
		slog.String("error", err.Error()),
	)
	return model.NewPersistenceError(err)
}

// afterCreate publishes the order event and sends the status emails.
// Failures are logged; the order is already stored.
func (r *Receiver) afterCreate(ctx context.Context, o *model.Order) {
	if r.publisher != nil {
		if err := r.publisher.PublishOrder(ctx, events.NewOrderCreated(o, r.now())); err != nil {
			r.logger.Error("publish order event failed",
				slog.String("order_id", o.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	if r.mailer != nil {
		mail.NewCycle(r.mailer, r.logger).Dispatch(ctx, o)
	}
}

func (r *Receiver) debugEnabled(ctx context.Context) bool {
	s, err := r.settings.Current(ctx)
	if err != nil {
		r.logger.Warn("read settings failed", slog.String("error", err.Error()))
		return false
	}
	return s.Debug
}
