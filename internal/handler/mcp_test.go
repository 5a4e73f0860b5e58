package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pricewaiter-bridge/internal/model"
	"pricewaiter-bridge/internal/settings"
)

// jsonrpcRequest is a JSON-RPC 2.0 request structure for testing.
type jsonrpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// jsonrpcResponse is a JSON-RPC 2.0 response structure for testing.
type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
}

type jsonrpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// toolCallParams represents the params for tools/call method.
type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// callToolResult is the expected result structure from a tool call.
type callToolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"content"`
	IsError bool `json:"isError,omitempty"`
}

func TestMCPServerCreation(t *testing.T) {
	h, _ := testHandler(testDeps())
	if h.NewMCPServer() == nil {
		t.Fatal("NewMCPServer returned nil")
	}
	if h.NewMCPHandler() == nil {
		t.Fatal("NewMCPHandler returned nil")
	}
}

func TestMCPRequiresAdminToken(t *testing.T) {
	called := false
	d := testDeps()
	d.Lookup = &mockLookup{GetFunc: func(context.Context, string) (*model.Order, error) {
		called = true
		return &model.Order{ID: "order-1"}, nil
	}}
	_, mux := testHandler(d)

	for _, auth := range []string{"", "Bearer wrong"} {
		body, _ := json.Marshal(jsonrpcRequest{JSONRPC: "2.0", ID: 1, Method: "initialize"})
		req := httptest.NewRequest("POST", "/mcp", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json, text/event-stream")
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("auth %q: Status = %d, want %d", auth, w.Code, http.StatusUnauthorized)
		}
	}
	if called {
		t.Error("order lookup reached without a token")
	}
}

func TestMCPToolsList(t *testing.T) {
	_, mux := testHandler(testDeps())
	sessionID := initMCPSession(t, mux)

	resp := mcpCall(t, mux, sessionID, jsonrpcRequest{JSONRPC: "2.0", ID: 2, Method: "tools/list"})
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %+v", resp.Error)
	}

	var toolsResult struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &toolsResult); err != nil {
		t.Fatalf("Failed to parse tools result: %v", err)
	}

	expectedTools := map[string]bool{"lookup_order": false, "get_settings": false}
	for _, tool := range toolsResult.Tools {
		if _, ok := expectedTools[tool.Name]; ok {
			expectedTools[tool.Name] = true
		}
	}
	for name, found := range expectedTools {
		if !found {
			t.Errorf("Expected tool %q not found in tools list", name)
		}
	}
}

func TestMCPLookupOrder(t *testing.T) {
	d := testDeps()
	d.Lookup = &mockLookup{GetFunc: func(_ context.Context, id string) (*model.Order, error) {
		if id != "PW-100" {
			t.Errorf("lookup id = %q", id)
		}
		return &model.Order{ID: "order-1", PricewaiterID: id, Status: model.StatusProcessing}, nil
	}}
	_, mux := testHandler(d)
	sessionID := initMCPSession(t, mux)

	result := callTool(t, mux, sessionID, "lookup_order", map[string]interface{}{"pricewaiter_id": "PW-100"})
	if result.IsError {
		t.Fatalf("Expected success, got error: %+v", result.Content)
	}
	if len(result.Content) == 0 || result.Content[0].Type != "text" {
		t.Fatalf("Expected text content, got %+v", result.Content)
	}

	var o model.Order
	if err := json.Unmarshal([]byte(result.Content[0].Text), &o); err != nil {
		t.Fatalf("Failed to parse order from result: %v", err)
	}
	if o.ID != "order-1" || o.PricewaiterID != "PW-100" {
		t.Errorf("order = %+v", o)
	}
}

func TestMCPLookupOrderNotFound(t *testing.T) {
	_, mux := testHandler(testDeps())
	sessionID := initMCPSession(t, mux)

	result := callTool(t, mux, sessionID, "lookup_order", map[string]interface{}{"pricewaiter_id": "missing"})
	if !result.IsError {
		t.Fatal("Expected tool error for unknown order")
	}
	if len(result.Content) == 0 || !strings.Contains(result.Content[0].Text, "NOT_FOUND") {
		t.Errorf("content = %+v", result.Content)
	}
}

func TestMCPGetSettingsMasksKey(t *testing.T) {
	d := testDeps()
	d.Settings = settings.NewMemoryStore(settings.Settings{APIKey: "SECRETKEY1234", EcommerceTracking: settings.AnalyticsClassic})
	_, mux := testHandler(d)
	sessionID := initMCPSession(t, mux)

	result := callTool(t, mux, sessionID, "get_settings", map[string]interface{}{})
	if result.IsError {
		t.Fatalf("Expected success, got error: %+v", result.Content)
	}
	if len(result.Content) == 0 {
		t.Fatal("Expected content in result")
	}

	text := result.Content[0].Text
	if strings.Contains(text, "SECRETKEY") {
		t.Errorf("api key leaked: %s", text)
	}
	var s settings.Settings
	if err := json.Unmarshal([]byte(text), &s); err != nil {
		t.Fatalf("Failed to parse settings: %v", err)
	}
	if s.APIKey != "*********1234" || s.EcommerceTracking != settings.AnalyticsClassic {
		t.Errorf("settings = %+v", s)
	}
}

func callTool(t *testing.T, mux *http.ServeMux, sessionID, name string, args map[string]interface{}) callToolResult {
	t.Helper()
	raw, _ := json.Marshal(args)
	resp := mcpCall(t, mux, sessionID, jsonrpcRequest{
		JSONRPC: "2.0",
		ID:      2,
		Method:  "tools/call",
		Params:  toolCallParams{Name: name, Arguments: raw},
	})
	if resp.Error != nil {
		t.Fatalf("Unexpected JSON-RPC error: %+v", resp.Error)
	}

	var result callToolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("Failed to parse result: %v", err)
	}
	return result
}

func mcpCall(t *testing.T, mux *http.ServeMux, sessionID string, req jsonrpcRequest) jsonrpcResponse {
	t.Helper()
	body, _ := json.Marshal(req)
	httpReq := httptest.NewRequest("POST", "/mcp", bytes.NewReader(body))
	setMCPHeaders(httpReq, sessionID)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, httpReq)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d\nBody: %s", w.Code, http.StatusOK, w.Body.String())
	}
	jsonData, err := parseSSEResponse(w.Body.String())
	if err != nil {
		t.Fatalf("Failed to parse SSE response: %v", err)
	}
	var resp jsonrpcResponse
	if err := json.Unmarshal(jsonData, &resp); err != nil {
		t.Fatalf("Failed to decode response: %v\nBody: %s", err, string(jsonData))
	}
	return resp
}

// setMCPHeaders sets the required headers for MCP Streamable HTTP requests.
func setMCPHeaders(req *http.Request, sessionID string) {
	req.Header.Set("Content-Type", "application/json")
	// MCP Streamable HTTP requires Accept header with both json and event-stream
	req.Header.Set("Accept", "application/json, text/event-stream")
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	if sessionID != "" {
		req.Header.Set("Mcp-Session-Id", sessionID)
	}
}

// parseSSEResponse extracts JSON data from SSE formatted response.
// SSE format: "event: message\ndata: {json}\n\n"
func parseSSEResponse(body string) ([]byte, error) {
	lines := strings.Split(body, "\n")
	for _, line := range lines {
		if strings.HasPrefix(line, "data: ") {
			return []byte(strings.TrimPrefix(line, "data: ")), nil
		}
	}
	// If no SSE format found, assume plain JSON
	return []byte(body), nil
}

// initMCPSession initializes an MCP session and returns the session ID.
func initMCPSession(t *testing.T, mux *http.ServeMux) string {
	t.Helper()

	initReq := jsonrpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "initialize",
		Params: map[string]interface{}{
			"protocolVersion": "2025-06-18",
			"clientInfo":      map[string]string{"name": "test", "version": "1.0"},
			"capabilities":    map[string]interface{}{},
		},
	}

	body, _ := json.Marshal(initReq)
	httpReq := httptest.NewRequest("POST", "/mcp", bytes.NewReader(body))
	setMCPHeaders(httpReq, "")
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, httpReq)

	if w.Code != http.StatusOK {
		t.Fatalf("Failed to initialize MCP session: %s", w.Body.String())
	}

	return w.Header().Get("Mcp-Session-Id")
}
