package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrPaymentRequired marks billing or quota failures (HTTP 402).
	ErrPaymentRequired = errors.New("payment required")
	// ErrUnauthorized marks rejected credentials (HTTP 401/403).
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnavailable marks a collaborator that could not be reached at all.
	ErrUnavailable = errors.New("collaborator unavailable")
	// ErrExhausted marks a transient failure that outlived its retry budget.
	ErrExhausted = errors.New("retries exhausted")
)

// StatusError carries the HTTP status returned by a collaborator.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s returned %d: %s", e.Service, e.StatusCode, e.Body)
}

// Is lets errors.Is match the non-retryable sentinels by status code.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrPaymentRequired:
		return e.StatusCode == http.StatusPaymentRequired
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}

// NewStatusError builds a StatusError.
func NewStatusError(service string, status int, body string) error {
	return &StatusError{Service: service, StatusCode: status, Body: body}
}

// Unavailable wraps a transport failure so callers can degrade from it.
func Unavailable(service string, err error) error {
	return fmt.Errorf("%s: %w: %w", service, ErrUnavailable, err)
}

// IsPaymentRequired reports billing or quota failures.
func IsPaymentRequired(err error) bool {
	return errors.Is(err, ErrPaymentRequired)
}

// IsUnauthorized reports authentication failures.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsRetryable reports whether a call may succeed if repeated: timeouts,
// transport errors, 408, 429 and 5xx. Auth and billing failures never are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if IsPaymentRequired(err) || IsUnauthorized(err) || errors.Is(err, ErrExhausted) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		code := statusErr.StatusCode
		return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return errors.Is(err, ErrUnavailable)
}

// Kind names an error class for logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case IsPaymentRequired(err):
		return "payment_required"
	case IsUnauthorized(err):
		return "unauthorized"
	case errors.Is(err, ErrExhausted):
		return "exhausted"
	case IsRetryable(err):
		return "transient"
	default:
		return "permanent"
	}
}
