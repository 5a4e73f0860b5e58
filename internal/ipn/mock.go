package ipn

import (
	"context"
	"net/url"
	"sync/atomic"
)

// MockVerifier implements Verifier with a configurable function.
// The zero value accepts every payload.
type MockVerifier struct {
	VerifyFunc func(ctx context.Context, payload url.Values) error
	calls      atomic.Int64
}

func (m *MockVerifier) Verify(ctx context.Context, payload url.Values) error {
	m.calls.Add(1)
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, payload)
	}
	return nil
}

// Calls returns how many times Verify ran.
func (m *MockVerifier) Calls() int { return int(m.calls.Load()) }

var _ Verifier = (*MockVerifier)(nil)
