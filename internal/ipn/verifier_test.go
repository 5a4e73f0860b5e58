package ipn

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"pricewaiter-bridge/internal/model"
)

func TestHTTPVerifier(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{"accepted", http.StatusOK, "1", false},
		{"accepted 202", http.StatusAccepted, "1", false},
		{"body zero", http.StatusOK, "0", true},
		{"body with newline", http.StatusOK, "1\n", true},
		{"server error", http.StatusInternalServerError, "1", true},
		{"empty body", http.StatusOK, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got url.Values
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("method = %s, want POST", r.Method)
				}
				body, _ := io.ReadAll(r.Body)
				got, _ = url.ParseQuery(string(body))
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			v := NewHTTPVerifier(srv.Client(), srv.URL)
			payload := url.Values{"pricewaiter_id": {"PW-1"}, "total": {"26.50"}}
			err := v.Verify(context.Background(), payload)

			if (err != nil) != tt.wantErr {
				t.Fatalf("Verify() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, model.ErrUnverified) {
				t.Errorf("error should wrap ErrUnverified: %v", err)
			}
			if got.Get("pricewaiter_id") != "PW-1" || got.Get("total") != "26.50" {
				t.Errorf("echoed payload = %v", got)
			}
		})
	}
}

func TestHTTPVerifier_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte("1"))
	}))
	defer srv.Close()

	client := srv.Client()
	client.Timeout = 20 * time.Millisecond
	err := NewHTTPVerifier(client, srv.URL).Verify(context.Background(), url.Values{"a": {"b"}})
	if !errors.Is(err, model.ErrUnverified) {
		t.Errorf("Verify() error = %v, want ErrUnverified", err)
	}
}

func TestNewHTTPVerifier_DefaultEndpoint(t *testing.T) {
	v := NewHTTPVerifier(http.DefaultClient, "")
	if v.Endpoint() != DefaultVerifyEndpoint {
		t.Errorf("Endpoint() = %q", v.Endpoint())
	}
}
