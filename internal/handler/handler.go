// Package handler provides the bridge's HTTP handlers.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pricewaiter-bridge/internal/analytics"
	"pricewaiter-bridge/internal/metrics"
	"pricewaiter-bridge/internal/middleware"
	"pricewaiter-bridge/internal/model"
	"pricewaiter-bridge/internal/orderwrite"
	"pricewaiter-bridge/internal/settings"
	"pricewaiter-bridge/internal/store"
)

// NotificationReceiver processes one IPN.
type NotificationReceiver interface {
	Handle(ctx context.Context, form url.Values) (*model.Order, error)
}

// OrderCreator creates orders posted to the REST API.
type OrderCreator interface {
	Create(ctx context.Context, req *orderwrite.Request) (*model.Order, error)
}

// SnippetRenderer renders the confirmation page tracking snippet.
type SnippetRenderer interface {
	Render(ctx context.Context, page analytics.Page, form url.Values) (string, error)
}

// OrderLookup reads stored orders.
type OrderLookup interface {
	GetOrderByPricewaiterID(ctx context.Context, pricewaiterID string) (*model.Order, error)
}

// Deps are the Handler's collaborators. Gatherer and Metrics may be nil.
// ConsumerKey and ConsumerSecret guard the REST order route; left empty,
// that route rejects every request.
type Deps struct {
	Receiver       NotificationReceiver
	Orders         OrderCreator
	Analytics      SnippetRenderer
	Lookup         OrderLookup
	Settings       settings.Store
	ManageURL      string
	AdminToken     string
	ConsumerKey    string
	ConsumerSecret string
	Gatherer       prometheus.Gatherer
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	receiver       NotificationReceiver
	orders         OrderCreator
	analytics      SnippetRenderer
	lookup         OrderLookup
	settings       settings.Store
	manageURL      string
	adminToken     string
	consumerKey    string
	consumerSecret string
	gatherer       prometheus.Gatherer
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

func New(d Deps) *Handler {
	return &Handler{
		receiver:       d.Receiver,
		orders:         d.Orders,
		analytics:      d.Analytics,
		lookup:         d.Lookup,
		settings:       d.Settings,
		manageURL:      d.ManageURL,
		adminToken:     d.AdminToken,
		consumerKey:    d.ConsumerKey,
		consumerSecret: d.ConsumerSecret,
		gatherer:       d.Gatherer,
		metrics:        d.Metrics,
		logger:         d.Logger,
	}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// PriceWaiter IPN, at the host's legacy API path and a short alias
	h.handle(mux, "POST /wc-api/pricewaiter_ipn", "ipn", h.handleIPN)
	h.handle(mux, "POST /ipn", "ipn", h.handleIPN)

	consumer := middleware.ConsumerAuth(h.consumerKey, h.consumerSecret)
	mux.Handle("POST /wp-json/wc/v3/orders", consumer(h.instrument("orders_create", h.handleCreateOrder)))
	h.handle(mux, "POST /checkout/order-received", "order_received", h.handleOrderReceived)

	admin := middleware.AdminAuth(h.adminToken)
	mux.Handle("GET /admin/settings", admin(h.instrument("settings_get", h.handleGetSettings)))
	mux.Handle("PUT /admin/settings", admin(h.instrument("settings_put", h.handlePutSettings)))

	// MCP tools read stored orders and settings.
	mux.Handle("/mcp", admin(h.NewMCPHandler()))

	if h.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}

	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

func (h *Handler) handle(mux *http.ServeMux, pattern, name string, fn http.HandlerFunc) {
	mux.Handle(pattern, h.instrument(name, fn))
}

func (h *Handler) instrument(name string, fn http.HandlerFunc) http.Handler {
	return middleware.Instrument(h.metrics, name)(fn)
}

// handleHealth returns a simple health check response.
// GET /health, GET /healthz
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

type healthResponse struct {
	Status string `json:"status"`
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// asAPIError extracts the APIError from err's chain, or wraps unexpected
// errors as a 500 without exposing their details.
func (h *Handler) asAPIError(err error) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	h.logger.Error("internal error", slog.String("error", err.Error()))
	return &model.APIError{
		Code:       "INTERNAL_ERROR",
		Message:    "an internal error occurred",
		StatusCode: http.StatusInternalServerError,
	}
}

// writeError sends the JSON error envelope.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	apiErr := h.asAPIError(err)
	h.writeJSON(w, apiErr.StatusCode, errorResponse{
		Error: errorBody{
			Code:    apiErr.Code,
			Message: apiErr.Message,
		},
	})
}

// writeText sends a plain text body.
func (h *Handler) writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		h.logger.Error("failed to write response", slog.String("error", err.Error()))
	}
}

// errorResponse is the JSON structure for error responses.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MaxRequestBodySize limits request bodies to 1MB.
const MaxRequestBodySize = 1 << 20

// decodeJSON reads JSON from request body into v.
// Returns an APIError if decoding fails.
func decodeJSON(r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Don't expose internal error details to client
		return model.NewValidationError("body", "invalid JSON")
	}
	return nil
}

// parseForm reads a url-encoded body. An unreadable body is treated as
// empty, which the receivers reject.
func parseForm(r *http.Request) url.Values {
	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)
	if err := r.ParseForm(); err != nil {
		return url.Values{}
	}
	return r.PostForm
}

var _ OrderLookup = (store.Orders)(nil)
