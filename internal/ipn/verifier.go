package ipn

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pricewaiter-bridge/internal/model"
)

// DefaultVerifyEndpoint is PriceWaiter's notification verification URL.
const DefaultVerifyEndpoint = "https://api.pricewaiter.com/order/verify"

// DefaultVerifyTimeout bounds one verification round trip.
const DefaultVerifyTimeout = 60 * time.Second

// maxVerifyBody caps how much of the verification response is read.
const maxVerifyBody = 4 << 10

// Verifier confirms that a notification really came from PriceWaiter.
type Verifier interface {
	// Verify returns nil only when PriceWaiter vouches for payload.
	Verify(ctx context.Context, payload url.Values) error
}

// VerifyError describes a rejected verification. It wraps model.ErrUnverified.
type VerifyError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *VerifyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("verification failed: %v", e.Err)
	}
	return fmt.Sprintf("verification rejected: status %d body %q", e.StatusCode, e.Body)
}

func (e *VerifyError) Unwrap() []error {
	if e.Err != nil {
		return []error{model.ErrUnverified, e.Err}
	}
	return []error{model.ErrUnverified}
}

// HTTPVerifier posts the notification back to PriceWaiter. A 2xx response
// whose body is exactly "1" is the only acceptance.
type HTTPVerifier struct {
	client   *http.Client
	endpoint string
}

// NewHTTPVerifier creates a verifier. An empty endpoint uses
// DefaultVerifyEndpoint. The client's Timeout should be DefaultVerifyTimeout
// or less.
func NewHTTPVerifier(client *http.Client, endpoint string) *HTTPVerifier {
	if endpoint == "" {
		endpoint = DefaultVerifyEndpoint
	}
	return &HTTPVerifier{client: client, endpoint: endpoint}
}

// Endpoint returns the URL notifications are posted back to.
func (v *HTTPVerifier) Endpoint() string { return v.endpoint }

func (v *HTTPVerifier) Verify(ctx context.Context, payload url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(payload.Encode()))
	if err != nil {
		return &VerifyError{Err: fmt.Errorf("creating verify request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return &VerifyError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxVerifyBody))
	if err != nil {
		return &VerifyError{StatusCode: resp.StatusCode, Err: fmt.Errorf("reading verify response: %w", err)}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 && string(body) == "1" {
		return nil
	}
	return &VerifyError{StatusCode: resp.StatusCode, Body: string(body)}
}

var _ Verifier = (*HTTPVerifier)(nil)
