// Package analytics renders the e-commerce tracking snippet shown on the
// order confirmation page for PriceWaiter orders.
package analytics

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"text/template"

	"pricewaiter-bridge/internal/metrics"
	"pricewaiter-bridge/internal/settings"
)

// IDPrefix is prepended to the PriceWaiter id in every snippet.
const IDPrefix = "pricewaiter-"

const logComponent = "pricewaiter-analytics"

// Page describes where the snippet would be rendered.
type Page struct {
	OrderReceived bool
}

// Item is the purchased product. A confirmation always carries one.
type Item struct {
	ID          string
	Name        string
	SKU         string
	Category    string
	HasCategory bool
	Price       string
	Quantity    string
}

// Event is the transaction a snippet reports. Amounts are passed through
// exactly as posted.
type Event struct {
	ID          string
	Affiliation string
	Revenue     string
	Shipping    string
	Tax         string
	Currency    string
	APIKey      string
	Test        bool
	Items       []Item
}

// ParseEvent reads the confirmation context posted by PriceWaiter.
func ParseEvent(form url.Values, storeName string) Event {
	id := IDPrefix + form.Get("pricewaiter_id")
	item := Item{
		ID:       id,
		Name:     form.Get("product_name"),
		SKU:      form.Get("product_sku"),
		Price:    form.Get("unit_price"),
		Quantity: form.Get("quantity"),
	}
	if form.Has("product_option_count") {
		item.Category = optionCategory(form)
		item.HasCategory = true
	}
	return Event{
		ID:          id,
		Affiliation: storeName,
		Revenue:     form.Get("total"),
		Shipping:    form.Get("shipping"),
		Tax:         form.Get("tax"),
		Currency:    form.Get("currency"),
		APIKey:      form.Get("api_key"),
		Test:        form.Get("test") == "1",
		Items:       []Item{item},
	}
}

// maxOptionPairs bounds how many option pairs one confirmation may declare.
const maxOptionPairs = 100

// optionCategory joins product_option_name{i}:product_option_value{i}
// pairs. A count that is not a positive number yields no pairs.
func optionCategory(form url.Values) string {
	n, err := strconv.Atoi(strings.TrimSpace(form.Get("product_option_count")))
	if err != nil || n <= 0 {
		return ""
	}
	n = min(n, maxOptionPairs)
	pairs := make([]string, 0, n)
	for i := 0; i < n; i++ {
		idx := strconv.Itoa(i)
		pairs = append(pairs, form.Get("product_option_name"+idx)+":"+form.Get("product_option_value"+idx))
	}
	return strings.Join(pairs, " / ")
}

var (
	universalTmpl = template.Must(template.New("ua").Parse(`
	{{.Object}}('require', 'ecommerce', 'ecommerce.js');

	{{.Object}}('ecommerce:addTransaction', {
		'id': '{{js .ID}}',
		'affiliation': '{{js .Affiliation}}',
		'revenue': '{{js .Revenue}}',
		'shipping': '{{js .Shipping}}',
		'tax': '{{js .Tax}}',
		'currency': '{{js .Currency}}'
	});
{{with .Item}}
	{{$.Object}}('ecommerce:addItem', {'id': '{{js .ID}}','name': '{{js .Name}}','sku': '{{js .SKU}}',{{if .HasCategory}}'category': '{{js .Category}}',{{end}}'price': '{{js .Price}}','quantity': '{{js .Quantity}}'});{{end}}
	{{.Object}}('ecommerce:send');`))

	classicTmpl = template.Must(template.New("ga").Parse(`
	var {{.Object}} = {{.Object}} || [];

	{{.Object}}.push(
		['_set', 'currencyCode', '{{js .Currency}}']
	);

	{{.Object}}.push(['_addTrans',
		'{{js .ID}}',
		'{{js .Affiliation}}',
		'{{js .Revenue}}',
		'{{js .Tax}}',
		'{{js .Shipping}}'
	]);
{{with .Item}}
	{{$.Object}}.push(['_addItem','{{js .ID}}','{{js .SKU}}','{{js .Name}}',{{if .HasCategory}}'{{js .Category}}',{{end}}'{{js .Price}}','{{js .Quantity}}']);{{end}}
	{{.Object}}.push(['_trackTrans']);
`))
)

type snippetData struct {
	Event
	Object string
	Item   *Item
}

const (
	openComment  = "<!-- WooCommerce PriceWaiter Google Analytics E-Commerce Integration -->"
	closeComment = "<!-- /WooCommerce PriceWaiter Google Analytics E-Commerce Integration -->"
)

// Snippet renders ev in the given format. objectName overrides the
// format's default tracker object. Disabled mode renders nothing.
func Snippet(mode settings.AnalyticsMode, objectName string, ev Event) (string, error) {
	var tmpl *template.Template
	switch mode {
	case settings.AnalyticsUniversal:
		tmpl = universalTmpl
		if objectName == "" {
			objectName = "ga"
		}
	case settings.AnalyticsClassic:
		tmpl = classicTmpl
		if objectName == "" {
			objectName = "_gaq"
		}
	default:
		return "", nil
	}

	data := snippetData{Event: ev, Object: objectName}
	if len(ev.Items) == 1 {
		data.Item = &ev.Items[0]
	}

	var code bytes.Buffer
	if err := tmpl.Execute(&code, data); err != nil {
		return "", fmt.Errorf("render %s snippet: %w", mode, err)
	}
	return "\n" + openComment + "\n<script type='text/javascript'>" + code.String() + "</script>\n" + closeComment + "\n", nil
}

// Emitter decides whether a confirmation page gets a snippet and renders it.
type Emitter struct {
	settings  settings.Provider
	storeName string
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewEmitter(sp settings.Provider, storeName string, m *metrics.Metrics, logger *slog.Logger) *Emitter {
	return &Emitter{
		settings:  sp,
		storeName: storeName,
		metrics:   m,
		logger:    logger.With(slog.String("component", logComponent)),
	}
}

// ShouldTrack reports whether ev may be tracked on page.
func ShouldTrack(s settings.Settings, page Page, ev Event) bool {
	if !page.OrderReceived {
		return false
	}
	if s.EcommerceTracking == settings.AnalyticsDisabled {
		return false
	}
	return ev.APIKey == s.APIKey
}

// Render returns the snippet for the posted confirmation context, or ""
// when nothing should be tracked. Test orders are logged but never tracked.
func (e *Emitter) Render(ctx context.Context, page Page, form url.Values) (string, error) {
	s, err := e.settings.Current(ctx)
	if err != nil {
		return "", fmt.Errorf("load settings: %w", err)
	}

	ev := ParseEvent(form, e.storeName)
	if !ShouldTrack(s, page, ev) {
		return "", nil
	}

	out, err := Snippet(s.EcommerceTracking, s.TrackingObject, ev)
	if err != nil {
		return "", err
	}

	if s.Debug {
		e.logger.Info("tracking output", slog.String("snippet", out))
		e.logger.Info("pricewaiter post data", slog.Any("form", redactForm(form)))
	}

	if ev.Test {
		return "", nil
	}
	e.metrics.RecordSnippet(string(s.EcommerceTracking))
	return out, nil
}

func redactForm(form url.Values) map[string]string {
	out := make(map[string]string, len(form))
	for k := range form {
		out[k] = form.Get(k)
	}
	if _, ok := out["api_key"]; ok {
		out["api_key"] = "[redacted]"
	}
	return out
}
