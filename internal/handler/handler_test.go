package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"pricewaiter-bridge/internal/analytics"
	"pricewaiter-bridge/internal/metrics"
	"pricewaiter-bridge/internal/model"
	"pricewaiter-bridge/internal/orderwrite"
	"pricewaiter-bridge/internal/settings"
	"pricewaiter-bridge/internal/store"
)

const (
	testAdminToken     = "admin-secret"
	testConsumerKey    = "ck_test"
	testConsumerSecret = "cs_test"
)

type mockReceiver struct {
	HandleFunc func(ctx context.Context, form url.Values) (*model.Order, error)
}

func (m *mockReceiver) Handle(ctx context.Context, form url.Values) (*model.Order, error) {
	if m.HandleFunc != nil {
		return m.HandleFunc(ctx, form)
	}
	return &model.Order{ID: "order-1", Status: model.StatusProcessing}, nil
}

type mockOrders struct {
	CreateFunc func(ctx context.Context, req *orderwrite.Request) (*model.Order, error)
}

func (m *mockOrders) Create(ctx context.Context, req *orderwrite.Request) (*model.Order, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, req)
	}
	return &model.Order{ID: "order-1", Status: model.StatusPending}, nil
}

type mockAnalytics struct {
	RenderFunc func(ctx context.Context, page analytics.Page, form url.Values) (string, error)
}

func (m *mockAnalytics) Render(ctx context.Context, page analytics.Page, form url.Values) (string, error) {
	if m.RenderFunc != nil {
		return m.RenderFunc(ctx, page, form)
	}
	return "", nil
}

type mockLookup struct {
	GetFunc func(ctx context.Context, pricewaiterID string) (*model.Order, error)
}

func (m *mockLookup) GetOrderByPricewaiterID(ctx context.Context, pricewaiterID string) (*model.Order, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, pricewaiterID)
	}
	return nil, store.ErrNotFound
}

func testDeps() Deps {
	return Deps{
		Receiver:   &mockReceiver{},
		Orders:     &mockOrders{},
		Analytics:  &mockAnalytics{},
		Lookup:     &mockLookup{},
		Settings:   settings.NewMemoryStore(settings.Defaults()),
		AdminToken:     testAdminToken,
		ConsumerKey:    testConsumerKey,
		ConsumerSecret: testConsumerSecret,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func testHandler(d Deps) (*Handler, *http.ServeMux) {
	h := New(d)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return h, mux
}

// getErrorCode extracts the code from a JSON error envelope.
func getErrorCode(body []byte) string {
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ""
	}
	return resp.Error.Code
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func postOrder(body string) *http.Request {
	req := httptest.NewRequest("POST", "/wp-json/wc/v3/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(testConsumerKey, testConsumerSecret)
	return req
}

func TestHandleHealth(t *testing.T) {
	_, mux := testHandler(testDeps())

	for _, path := range []string{"/health", "/healthz"} {
		req := httptest.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()

		mux.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("%s Status = %d, want %d", path, w.Code, http.StatusOK)
		}
		var resp healthResponse
		json.NewDecoder(w.Body).Decode(&resp)
		if resp.Status != "ok" {
			t.Errorf("%s Status = %s, want ok", path, resp.Status)
		}
	}
}

func TestHandleIPN(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{name: "created", path: "/wc-api/pricewaiter_ipn", wantStatus: 200, wantBody: "OK"},
		{name: "alias", path: "/ipn", wantStatus: 200, wantBody: "OK"},
		{
			name:       "verification failed",
			path:       "/ipn",
			err:        model.NewIPNFailureError(errors.New("rejected")),
			wantStatus: 404,
			wantBody:   "PriceWaiter IPN Request Failure",
		},
		{
			name:       "duplicate",
			path:       "/ipn",
			err:        model.NewDuplicateOrderError("PW-1"),
			wantStatus: 409,
			wantBody:   "PriceWaiter Order Already Exists - PW-1",
		},
		{
			name:       "unsupported host",
			path:       "/ipn",
			err:        model.NewUnsupportedHostError("3.1.0"),
			wantStatus: 410,
			wantBody:   "IPN Requests are not supported by WooCommerce-PriceWaiter for 3.0 and above.",
		},
		{
			name:       "unexpected error",
			path:       "/ipn",
			err:        errors.New("boom"),
			wantStatus: 500,
			wantBody:   "an internal error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got url.Values
			d := testDeps()
			d.Receiver = &mockReceiver{HandleFunc: func(_ context.Context, form url.Values) (*model.Order, error) {
				got = form
				if tt.err != nil {
					return nil, tt.err
				}
				return &model.Order{ID: "order-1", PricewaiterID: form.Get("pricewaiter_id")}, nil
			}}
			_, mux := testHandler(d)

			w := httptest.NewRecorder()
			mux.ServeHTTP(w, postForm(tt.path, url.Values{"pricewaiter_id": {"PW-1"}, "api_key": {"KEY"}}))

			if w.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d", w.Code, tt.wantStatus)
			}
			if w.Body.String() != tt.wantBody {
				t.Errorf("Body = %q, want %q", w.Body.String(), tt.wantBody)
			}
			if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain") {
				t.Errorf("Content-Type = %q", w.Header().Get("Content-Type"))
			}
			if got.Get("pricewaiter_id") != "PW-1" {
				t.Errorf("receiver form = %v", got)
			}
		})
	}
}

func TestHandleIPN_WrongMethod(t *testing.T) {
	_, mux := testHandler(testDeps())

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/ipn", nil))

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}

func TestHandleCreateOrder(t *testing.T) {
	var got *orderwrite.Request
	d := testDeps()
	d.Orders = &mockOrders{CreateFunc: func(_ context.Context, req *orderwrite.Request) (*model.Order, error) {
		got = req
		return &model.Order{ID: "order-9", Status: model.StatusProcessing, Totals: model.Totals{Total: 2650}}, nil
	}}
	_, mux := testHandler(d)

	body := `{"payment_method":"pricewaiter","set_paid":true,"total":"26.50","total_tax":"1.50",
		"line_items":[{"product_id":42,"quantity":2}],
		"meta_data":[{"key":"_wc_pricewaiter_id","value":"PW-100"}]}`
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, postOrder(body))

	if w.Code != http.StatusCreated {
		t.Fatalf("Status = %d, want %d\nBody: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	if got == nil || got.Total.Cents != 2650 || got.TotalTax.Cents != 150 || got.Meta(model.MetaPricewaiterID) != "PW-100" {
		t.Errorf("request = %+v", got)
	}

	var o model.Order
	if err := json.NewDecoder(w.Body).Decode(&o); err != nil {
		t.Fatal(err)
	}
	if o.ID != "order-9" || o.Totals.Total != 2650 {
		t.Errorf("order = %+v", o)
	}
}

func TestHandleCreateOrder_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "invalid json", body: "{", wantStatus: 400, wantCode: "VALIDATION_ERROR"},
		{name: "bad amount", body: `{"total":"abc"}`, wantStatus: 400, wantCode: "VALIDATION_ERROR"},
		{
			name:       "duplicate",
			body:       `{}`,
			err:        model.NewDuplicateOrderError("PW-1"),
			wantStatus: 409,
			wantCode:   "ORDER_EXISTS",
		},
		{
			name:       "persistence",
			body:       `{}`,
			err:        model.NewPersistenceError(errors.New("db")),
			wantStatus: 500,
			wantCode:   "PERSISTENCE_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := testDeps()
			d.Orders = &mockOrders{CreateFunc: func(context.Context, *orderwrite.Request) (*model.Order, error) {
				return nil, tt.err
			}}
			_, mux := testHandler(d)

			w := httptest.NewRecorder()
			mux.ServeHTTP(w, postOrder(tt.body))

			if w.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d", w.Code, tt.wantStatus)
			}
			if code := getErrorCode(w.Body.Bytes()); code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestHandleCreateOrder_RequiresCredentials(t *testing.T) {
	tests := []struct {
		name       string
		storeKey   string
		user, pass string
		basic      bool
	}{
		{name: "no credentials", storeKey: testConsumerKey},
		{name: "wrong secret", storeKey: testConsumerKey, user: testConsumerKey, pass: "cs_wrong", basic: true},
		{name: "store credentials unset", basic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			d := testDeps()
			if tt.storeKey == "" {
				d.ConsumerKey, d.ConsumerSecret = "", ""
			}
			d.Orders = &mockOrders{CreateFunc: func(context.Context, *orderwrite.Request) (*model.Order, error) {
				called = true
				return &model.Order{ID: "order-1"}, nil
			}}
			_, mux := testHandler(d)

			req := httptest.NewRequest("POST", "/wp-json/wc/v3/orders", strings.NewReader(`{"payment_method":"pricewaiter"}`))
			if tt.basic {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("Status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			if code := getErrorCode(w.Body.Bytes()); code != "UNAUTHORIZED" {
				t.Errorf("code = %q, want UNAUTHORIZED", code)
			}
			if called {
				t.Error("order created without credentials")
			}
		})
	}
}

func TestHandleOrderReceived(t *testing.T) {
	const snippet = "<script type='text/javascript'>ga('ecommerce:send');</script>"

	tests := []struct {
		name      string
		renderErr error
		want      string
		wantNot   string
	}{
		{name: "with snippet", want: snippet},
		{name: "render error", renderErr: errors.New("db down"), wantNot: "<script"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var page analytics.Page
			d := testDeps()
			d.Analytics = &mockAnalytics{RenderFunc: func(_ context.Context, p analytics.Page, form url.Values) (string, error) {
				page = p
				if tt.renderErr != nil {
					return "", tt.renderErr
				}
				return snippet, nil
			}}
			_, mux := testHandler(d)

			w := httptest.NewRecorder()
			mux.ServeHTTP(w, postForm("/checkout/order-received", url.Values{"pricewaiter_id": {"PW-1"}}))

			if w.Code != http.StatusOK {
				t.Errorf("Status = %d", w.Code)
			}
			if !page.OrderReceived {
				t.Error("renderer should be told it is on the confirmation page")
			}
			if tt.want != "" && !strings.Contains(w.Body.String(), tt.want) {
				t.Errorf("Body missing snippet:\n%s", w.Body.String())
			}
			if tt.wantNot != "" && strings.Contains(w.Body.String(), tt.wantNot) {
				t.Errorf("Body should not contain %q:\n%s", tt.wantNot, w.Body.String())
			}
		})
	}
}

func TestAdminSettings(t *testing.T) {
	d := testDeps()
	d.ManageURL = "https://manage.example.com"
	_, mux := testHandler(d)

	do := func(method, body, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/admin/settings", bytes.NewBufferString(body))
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		return w
	}

	if w := do("GET", "", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated GET Status = %d", w.Code)
	}
	if w := do("PUT", `{"api_key":"KEY"}`, "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token PUT Status = %d", w.Code)
	}

	w := do("PUT", `{"api_key":"","ecommerce_tracking":"ua"}`, testAdminToken)
	if w.Code != http.StatusBadRequest || getErrorCode(w.Body.Bytes()) != "VALIDATION_ERROR" {
		t.Errorf("empty key PUT = %d %s", w.Code, w.Body.String())
	}

	w = do("PUT", `{"api_key":" KEY123 ","api_user_id":"7","ecommerce_tracking":"ua","debug":true}`, testAdminToken)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT Status = %d\nBody: %s", w.Code, w.Body.String())
	}

	w = do("GET", "", testAdminToken)
	if w.Code != http.StatusOK {
		t.Fatalf("GET Status = %d", w.Code)
	}
	var resp struct {
		APIKey             string `json:"api_key"`
		SetupComplete      bool   `json:"setup_complete"`
		EcommerceTracking  string `json:"ecommerce_tracking"`
		CustomizeButtonURL string `json:"customize_button_url"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.APIKey != "KEY123" || !resp.SetupComplete || resp.EcommerceTracking != "ua" {
		t.Errorf("settings = %+v", resp)
	}
	if resp.CustomizeButtonURL != "https://manage.example.com/stores/KEY123/button" {
		t.Errorf("customize_button_url = %q", resp.CustomizeButtonURL)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	d := testDeps()
	d.Gatherer = reg
	d.Metrics = metrics.New(reg)
	_, mux := testHandler(d)

	mux.ServeHTTP(httptest.NewRecorder(), postForm("/ipn", url.Values{"pricewaiter_id": {"PW-1"}}))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `http_requests_total{handler="ipn",method="POST",status="2xx"} 1`) {
		t.Errorf("metrics output missing ipn request:\n%s", w.Body.String())
	}
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	h, _ := testHandler(testDeps())

	w := httptest.NewRecorder()
	h.writeError(w, errors.New("password=hunter2"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "hunter2") {
		t.Error("internal error details leaked")
	}
	if getErrorCode(w.Body.Bytes()) != "INTERNAL_ERROR" {
		t.Errorf("Body = %s", w.Body.String())
	}
}
