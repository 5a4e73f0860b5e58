// MCP transport handler using the official MCP Go SDK.
// Exposes read-only order and settings lookups as MCP tools.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"pricewaiter-bridge/internal/model"
	"pricewaiter-bridge/internal/settings"
	"pricewaiter-bridge/internal/store"
)

// LookupOrderInput is the input schema for the lookup_order tool.
type LookupOrderInput struct {
	PricewaiterID string `json:"pricewaiter_id" jsonschema:"PriceWaiter order id,required"`
}

// GetSettingsInput is the input schema for the get_settings tool.
type GetSettingsInput struct{}

// NewMCPServer creates an MCP server with the bridge's tools registered.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "pricewaiter-bridge",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "PriceWaiter bridge. Look up orders created from PriceWaiter " +
				"notifications and inspect the merchant's PriceWaiter settings.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "lookup_order",
		Description: "Get the order created for a PriceWaiter order id.",
	}, h.mcpLookupOrder)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_settings",
		Description: "Get the current PriceWaiter settings. The API key is masked.",
	}, h.mcpGetSettings)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpLookupOrder(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input LookupOrderInput,
) (*mcp.CallToolResult, *model.Order, error) {
	if input.PricewaiterID == "" {
		return nil, nil, fmt.Errorf("pricewaiter_id is required")
	}

	o, err := h.lookup.GetOrderByPricewaiterID(ctx, input.PricewaiterID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, h.mcpError(model.NewNotFoundError("order"))
	}
	if err != nil {
		return nil, nil, h.mcpError(err)
	}

	return nil, o, nil
}

func (h *Handler) mcpGetSettings(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input GetSettingsInput,
) (*mcp.CallToolResult, *settings.Settings, error) {
	s, err := h.settings.Current(ctx)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	redacted := s.Redacted()
	return nil, &redacted, nil
}

// mcpError converts errors to MCP-friendly errors.
func (h *Handler) mcpError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	// Don't leak internal error details
	h.logger.Error("mcp internal error", "error", err.Error())
	return fmt.Errorf("internal error")
}
