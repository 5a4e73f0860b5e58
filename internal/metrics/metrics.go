// Package metrics defines the bridge's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"pricewaiter-bridge/internal/model"
)

// IPN outcomes.
const (
	OutcomeCreated     = "created"
	OutcomeDuplicate   = "duplicate"
	OutcomeUnverified  = "unverified"
	OutcomeMalformed   = "malformed"
	OutcomeUnsupported = "unsupported"
	OutcomeFailed      = "failed"
)

// Metrics holds every collector. A nil *Metrics records nothing.
type Metrics struct {
	IPNRequests        *prometheus.CounterVec
	VerifyDuration     prometheus.Histogram
	OrdersCreated      *prometheus.CounterVec
	OrderAmountCents   *prometheus.CounterVec
	TaxCorrections     prometheus.Counter
	AnalyticsSnippets  *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
	HTTPRequestSeconds *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		IPNRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricewaiter_ipn_requests_total",
				Help: "IPN requests by outcome",
			},
			[]string{"outcome"},
		),
		VerifyDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pricewaiter_ipn_verify_duration_seconds",
				Help:    "Latency of the verification call to PriceWaiter",
				Buckets: prometheus.DefBuckets,
			},
		),
		OrdersCreated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricewaiter_orders_created_total",
				Help: "Orders persisted by entry point and status",
			},
			[]string{"created_via", "status"},
		),
		OrderAmountCents: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricewaiter_orders_amount_cents_total",
				Help: "Sum of persisted order totals in cents",
			},
			[]string{"created_via", "currency"},
		),
		TaxCorrections: f.NewCounter(
			prometheus.CounterOpts{
				Name: "pricewaiter_orderwrite_tax_corrections_total",
				Help: "REST orders whose tax lines were replaced with PriceWaiter's",
			},
		),
		AnalyticsSnippets: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricewaiter_analytics_snippets_total",
				Help: "Tracking snippets rendered by format",
			},
			[]string{"format"},
		),
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		HTTPRequestSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"handler", "method"},
		),
	}
}

func (m *Metrics) RecordIPN(outcome string) {
	if m == nil {
		return
	}
	m.IPNRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveVerify(d time.Duration) {
	if m == nil {
		return
	}
	m.VerifyDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordOrder(o *model.Order) {
	if m == nil {
		return
	}
	m.OrdersCreated.WithLabelValues(o.CreatedVia, string(o.Status)).Inc()
	if o.Totals.Total > 0 {
		m.OrderAmountCents.WithLabelValues(o.CreatedVia, o.Currency).Add(float64(o.Totals.Total))
	}
}

func (m *Metrics) RecordTaxCorrection() {
	if m == nil {
		return
	}
	m.TaxCorrections.Inc()
}

func (m *Metrics) RecordSnippet(format string) {
	if m == nil {
		return
	}
	m.AnalyticsSnippets.WithLabelValues(format).Inc()
}

func (m *Metrics) RecordHTTP(handler, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(handler, method, statusLabel(status)).Inc()
	m.HTTPRequestSeconds.WithLabelValues(handler, method).Observe(d.Seconds())
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
