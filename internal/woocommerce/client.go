package woocommerce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"pricewaiter-bridge/internal/model"
	"pricewaiter-bridge/internal/store"
)

// restAPIPath is the base path for WooCommerce REST API v3 endpoints.
const restAPIPath = "/wp-json/wc/v3"

// Config holds the REST API credentials of one store.
type Config struct {
	StoreURL       string
	ConsumerKey    string
	ConsumerSecret string
	HTTPClient     *http.Client
}

// Client calls the WooCommerce REST API v3 with consumer key/secret basic auth.
type Client struct {
	httpClient     *http.Client
	storeURL       string
	consumerKey    string
	consumerSecret string
}

// New creates a client. HTTPClient defaults to http.DefaultClient.
func New(cfg Config) (*Client, error) {
	if cfg.StoreURL == "" {
		return nil, fmt.Errorf("store URL is required")
	}
	if cfg.ConsumerKey == "" || cfg.ConsumerSecret == "" {
		return nil, fmt.Errorf("API credentials are required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		httpClient:     hc,
		storeURL:       strings.TrimSuffix(cfg.StoreURL, "/"),
		consumerKey:    cfg.ConsumerKey,
		consumerSecret: cfg.ConsumerSecret,
	}, nil
}

// SystemStatus fetches the store's environment report.
func (c *Client) SystemStatus(ctx context.Context) (*SystemStatus, error) {
	var st SystemStatus
	if err := c.get(ctx, "/system_status", "system status", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Version returns the WooCommerce version the store runs.
func (c *Client) Version(ctx context.Context) (string, error) {
	st, err := c.SystemStatus(ctx)
	if err != nil {
		return "", err
	}
	return st.Environment.Version, nil
}

// Product implements store.Catalog against the live store.
func (c *Client) Product(ctx context.Context, id int64) (*store.Product, error) {
	var p WooProduct
	err := c.get(ctx, "/products/"+strconv.FormatInt(id, 10), "product", &p)
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toStoreProduct(&p), nil
}

func toStoreProduct(p *WooProduct) *store.Product {
	out := &store.Product{
		ID:          int64(p.ID),
		ParentID:    int64(p.ParentID),
		Name:        p.Name,
		SKU:         p.SKU,
		Price:       model.ParseCents(p.Price),
		TaxClass:    p.TaxClass,
		ManageStock: p.ManageStock,
	}
	if p.StockQuantity != nil {
		out.Stock = *p.StockQuantity
	}
	if p.ParentID != 0 && len(p.Attributes) > 0 {
		out.Attributes = make(map[string]string, len(p.Attributes))
		for _, a := range p.Attributes {
			out.Attributes["attribute_"+attributeSlug(a.Name)] = a.Option
		}
	}
	return out
}

// attributeSlug lowercases and dashes a display name the way the store
// builds variation meta keys.
func attributeSlug(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}

func (c *Client) get(ctx context.Context, path, resource string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.storeURL+restAPIPath+path, nil)
	if err != nil {
		return fmt.Errorf("creating %s request: %w", resource, err)
	}
	req.SetBasicAuth(c.consumerKey, c.consumerSecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.NewUpstreamError("WooCommerce", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", resource, err)
	}
	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp.StatusCode, resource, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing %s response: %w", resource, err)
	}
	return nil
}

// parseErrorResponse converts a WooCommerce error to APIError.
func parseErrorResponse(statusCode int, resource string, body []byte) error {
	var wcErr WooErrorResponse
	json.Unmarshal(body, &wcErr) // Best effort parse

	switch statusCode {
	case 404:
		return model.NewNotFoundError(resource)
	case 401, 403:
		return model.NewUnauthorizedError("WooCommerce authentication failed")
	case 400:
		msg := wcErr.Message
		if msg == "" {
			msg = "invalid request"
		}
		return model.NewValidationError(resource, msg)
	default:
		return model.NewUpstreamError("WooCommerce",
			fmt.Errorf("status %d: %s - %s", statusCode, wcErr.Code, wcErr.Message))
	}
}

var _ store.Catalog = (*Client)(nil)
