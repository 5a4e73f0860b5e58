package handler

import (
	"log/slog"
	"net/http"
)

// handleIPN receives a PriceWaiter payment notification.
// POST /wc-api/pricewaiter_ipn, POST /ipn
//
// Responses are plain text: "OK" on success, otherwise the error message
// with its status (404, 409, 410 or 500).
func (h *Handler) handleIPN(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	form := parseForm(r)

	o, err := h.receiver.Handle(ctx, form)
	if err != nil {
		apiErr := h.asAPIError(err)
		h.writeText(w, apiErr.StatusCode, apiErr.Message)
		return
	}

	h.logger.InfoContext(ctx, "ipn order created",
		slog.String("order_id", o.ID),
		slog.String("pricewaiter_id", o.PricewaiterID),
		slog.String("status", string(o.Status)),
	)
	h.writeText(w, http.StatusOK, "OK")
}
