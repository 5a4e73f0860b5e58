package handler

import (
	"html/template"
	"log/slog"
	"net/http"

	"pricewaiter-bridge/internal/analytics"
	"pricewaiter-bridge/internal/orderwrite"
)

// handleCreateOrder creates an order through the REST API.
// POST /wp-json/wc/v3/orders
func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req orderwrite.Request
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "creating order",
		slog.String("payment_method", req.PaymentMethod),
		slog.Int("line_items", len(req.LineItems)),
		slog.Bool("set_paid", req.SetPaid),
	)

	o, err := h.orders.Create(ctx, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, o)
}

var orderReceivedPage = template.Must(template.New("order-received").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Order received</title></head>
<body>
<p>Thank you. Your order has been received.</p>
{{.Snippet}}
</body>
</html>
`))

// handleOrderReceived renders the confirmation page PriceWaiter sends the
// buyer to, with the tracking snippet when one applies.
// POST /checkout/order-received
func (h *Handler) handleOrderReceived(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	form := parseForm(r)

	snippet, err := h.analytics.Render(ctx, analytics.Page{OrderReceived: true}, form)
	if err != nil {
		// The page still renders without tracking.
		h.logger.ErrorContext(ctx, "render tracking snippet failed", slog.String("error", err.Error()))
		snippet = ""
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := orderReceivedPage.Execute(w, struct{ Snippet template.HTML }{template.HTML(snippet)}); err != nil {
		h.logger.Error("failed to write response", slog.String("error", err.Error()))
	}
}
