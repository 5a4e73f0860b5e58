package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases.
// Use errors.Is() to check against these.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrConflict       = errors.New("conflict")
	ErrGone           = errors.New("gone")
	ErrUnverified     = errors.New("notification not verified")
	ErrUpstreamError  = errors.New("upstream error")
	ErrPersistence    = errors.New("persistence failed")
	ErrUnavailable    = errors.New("unavailable")
)

// APIError represents a structured error for API responses.
// Implements error interface and supports unwrapping.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"` // HTTP status, not serialized
	Err        error  `json:"-"` // Wrapped error, not serialized
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a 404 error for missing resources.
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: 404,
		Err:        ErrNotFound,
	}
}

// NewValidationError creates a 400 error for invalid input.
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:       "VALIDATION_ERROR",
		Message:    fmt.Sprintf("invalid %s: %s", field, reason),
		StatusCode: 400,
		Err:        ErrInvalidRequest,
	}
}

// NewUnauthorizedError creates a 401 error for auth failures.
func NewUnauthorizedError(reason string) *APIError {
	return &APIError{
		Code:       "UNAUTHORIZED",
		Message:    reason,
		StatusCode: 401,
		Err:        ErrUnauthorized,
	}
}

// NewIPNFailureError creates the 404 returned for IPN payloads that are
// empty, malformed or rejected by the verification endpoint. The cause is
// wrapped and never sent in the response body.
func NewIPNFailureError(cause error) *APIError {
	return &APIError{
		Code:       "IPN_FAILURE",
		Message:    "PriceWaiter IPN Request Failure",
		StatusCode: 404,
		Err:        cause,
	}
}

// NewDuplicateOrderError creates a 409 error for an already imported order.
func NewDuplicateOrderError(pricewaiterID string) *APIError {
	return &APIError{
		Code:       "ORDER_EXISTS",
		Message:    fmt.Sprintf("PriceWaiter Order Already Exists - %s", pricewaiterID),
		StatusCode: 409,
		Err:        ErrConflict,
	}
}

// NewUnsupportedHostError creates a 410 error for host platforms that
// no longer accept IPN-created orders.
func NewUnsupportedHostError(version string) *APIError {
	return &APIError{
		Code:       "IPN_UNSUPPORTED",
		Message:    "IPN Requests are not supported by WooCommerce-PriceWaiter for 3.0 and above.",
		StatusCode: 410,
		Err:        fmt.Errorf("%w: host version %s", ErrGone, version),
	}
}

// NewOrderWriteDisabledError creates a 503 error for PriceWaiter REST
// orders arriving while their total correction is switched off.
func NewOrderWriteDisabledError() *APIError {
	return &APIError{
		Code:       "ORDERWRITE_DISABLED",
		Message:    "PriceWaiter orders are not accepted until order write is enabled",
		StatusCode: 503,
		Err:        fmt.Errorf("%w: order write disabled", ErrUnavailable),
	}
}

// NewPersistenceError creates a 500 error for failed order writes.
func NewPersistenceError(err error) *APIError {
	return &APIError{
		Code:       "PERSISTENCE_ERROR",
		Message:    "order could not be saved",
		StatusCode: 500,
		Err:        fmt.Errorf("%w: %v", ErrPersistence, err),
	}
}

// NewUpstreamError creates a 502 error for backend failures.
func NewUpstreamError(service string, err error) *APIError {
	return &APIError{
		Code:       "UPSTREAM_ERROR",
		Message:    fmt.Sprintf("%s request failed", service),
		StatusCode: 502,
		Err:        fmt.Errorf("%w: %v", ErrUpstreamError, err),
	}
}

// NewInternalError creates a 500 error for unexpected failures.
func NewInternalError(err error) *APIError {
	return &APIError{
		Code:       "INTERNAL_ERROR",
		Message:    "an internal error occurred",
		StatusCode: 500,
		Err:        err,
	}
}
