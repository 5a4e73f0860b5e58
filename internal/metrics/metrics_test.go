package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"pricewaiter-bridge/internal/model"
)

func TestRecordIPN(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordIPN(OutcomeCreated)
	m.RecordIPN(OutcomeCreated)
	m.RecordIPN(OutcomeDuplicate)

	if got := testutil.ToFloat64(m.IPNRequests.WithLabelValues(OutcomeCreated)); got != 2 {
		t.Errorf("created = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.IPNRequests.WithLabelValues(OutcomeDuplicate)); got != 1 {
		t.Errorf("duplicate = %v, want 1", got)
	}
}

func TestRecordOrder(t *testing.T) {
	m := New(prometheus.NewRegistry())
	o := &model.Order{CreatedVia: model.CreatedViaIPN, Status: model.StatusProcessing, Currency: "USD"}
	o.Totals.Total = 2650
	m.RecordOrder(o)

	if got := testutil.ToFloat64(m.OrderAmountCents.WithLabelValues("ipn", "USD")); got != 2650 {
		t.Errorf("amount = %v, want 2650", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordIPN(OutcomeFailed)
	m.ObserveVerify(time.Second)
	m.RecordOrder(&model.Order{})
	m.RecordTaxCorrection()
	m.RecordSnippet("ua")
	m.RecordHTTP("ipn", "POST", 200, time.Millisecond)
}

func TestStatusLabel(t *testing.T) {
	tests := map[int]string{200: "2xx", 201: "2xx", 302: "3xx", 404: "4xx", 410: "4xx", 500: "5xx"}
	for code, want := range tests {
		if got := statusLabel(code); got != want {
			t.Errorf("statusLabel(%d) = %q, want %q", code, got, want)
		}
	}
}

func TestSeparateRegistries(t *testing.T) {
	// Registering twice on distinct registries must not panic.
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
}
