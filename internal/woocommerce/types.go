// Package woocommerce is a small client for the WooCommerce REST API v3.
// The bridge uses it to learn the host store's version and to read
// products when the catalog lives in the store rather than in Postgres.
package woocommerce

// SystemStatus is the part of GET /system_status the bridge reads.
type SystemStatus struct {
	Environment struct {
		HomeURL   string `json:"home_url"`
		SiteURL   string `json:"site_url"`
		Version   string `json:"version"` // WooCommerce version, e.g. "2.6.14"
		WPVersion string `json:"wp_version"`
	} `json:"environment"`
}

// WooProduct is a product or variation from GET /products/{id}.
type WooProduct struct {
	ID            int            `json:"id"`
	ParentID      int            `json:"parent_id"`
	Name          string         `json:"name"`
	SKU           string         `json:"sku"`
	Price         string         `json:"price"` // "10.00"
	TaxClass      string         `json:"tax_class"`
	ManageStock   bool           `json:"manage_stock"`
	StockQuantity *int           `json:"stock_quantity"`
	Attributes    []WooAttribute `json:"attributes"`
}

// WooAttribute is a variation attribute. Option is set on variations.
type WooAttribute struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Option string `json:"option"`
}

// WooErrorResponse is the REST API error envelope.
type WooErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Status int `json:"status"`
	} `json:"data"`
}
