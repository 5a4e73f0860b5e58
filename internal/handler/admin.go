package handler

import (
	"log/slog"
	"net/http"

	"pricewaiter-bridge/internal/settings"
)

// settingsResponse adds the derived button editor link to the settings.
type settingsResponse struct {
	settings.Settings
	CustomizeButtonURL string `json:"customize_button_url,omitempty"`
}

func (h *Handler) settingsView(s settings.Settings) settingsResponse {
	resp := settingsResponse{Settings: s}
	if s.APIKey != "" {
		resp.CustomizeButtonURL = settings.CustomizeButtonURL(h.manageURL, s.APIKey)
	}
	return resp
}

// handleGetSettings returns the current settings.
// GET /admin/settings
func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.Current(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.settingsView(s))
}

// handlePutSettings validates and stores new settings.
// PUT /admin/settings
func (h *Handler) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in settings.Settings
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, err)
		return
	}

	s, err := settings.Sanitize(in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.settings.Save(ctx, s); err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "settings updated",
		slog.Bool("setup_complete", s.SetupComplete),
		slog.String("ecommerce_tracking", string(s.EcommerceTracking)),
		slog.Bool("debug", s.Debug),
	)

	saved, err := h.settings.Current(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.settingsView(saved))
}
