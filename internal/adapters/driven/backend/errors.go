package backend

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

// errEmptyID is returned before any request when an ID is blank.
var errEmptyID = fmt.Errorf("%w: empty id", domain.ErrInvalidInput)

// APIError represents a backend answer that signalled failure, either
// through a non-2xx status or `success: false` in a 2xx envelope.
type APIError struct {
	StatusCode int
	Message    string
	Method     string
	Path       string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend: %s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("backend: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Unwrap maps the status onto the matching domain sentinel.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode < 300:
		return domain.ErrRequestFailed
	case e.StatusCode == http.StatusUnauthorized:
		return domain.ErrAuthRequired
	case e.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case e.StatusCode == http.StatusBadRequest, e.StatusCode == http.StatusUnprocessableEntity:
		return domain.ErrInvalidInput
	case e.StatusCode == http.StatusRequestEntityTooLarge:
		return domain.ErrFileTooLarge
	case e.StatusCode == http.StatusUnsupportedMediaType:
		return domain.ErrUnsupportedFileType
	}
	return nil
}

// ServerMessage returns the message the backend supplied, if any.
func (e *APIError) ServerMessage() string {
	return e.Message
}

// TransportError represents a request that received no response.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("backend: %s %s: %v", e.Method, e.Path, e.Err)
}

// Unwrap exposes both the cause and domain.ErrBackendUnavailable.
func (e *TransportError) Unwrap() []error {
	return []error{domain.ErrBackendUnavailable, e.Err}
}

// RateLimitError represents a 429 answer with the time the backend asked us to wait.
type RateLimitError struct {
	RetryAt time.Time
	Path    string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("backend: %s: rate limited, retry at %s", e.Path, e.RetryAt.Format(time.RFC3339))
}

// IsNotFound checks if the error indicates a resource was not found.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}

// IsUnauthorized checks if the error indicates an authentication failure.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized
	}
	return false
}

// IsRateLimited checks if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	var rateLimitErr *RateLimitError
	return errors.As(err, &rateLimitErr)
}

// IsRetryable reports whether a failed attempt may be repeated:
// transport failures, 5xx answers and rate limiting. 4xx answers and
// `success: false` envelopes are terminal.
func IsRetryable(err error) bool {
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return true
	}
	if IsRateLimited(err) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return false
}
