package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrUnauthorized is returned when the request carries no signature or no secret is configured
	ErrUnauthorized = errors.New("unauthorized")

	// ErrBadSignature is returned when a well-formed signature does not match the body
	ErrBadSignature = errors.New("bad signature")

	// ErrInvalidURL is returned when no record identifier can be found in a URL
	ErrInvalidURL = errors.New("invalid record url")

	// ErrConfiguration is returned when a required target collection is not configured
	ErrConfiguration = errors.New("configuration error")

	// ErrMissingTitle is returned when a history record has no display name
	ErrMissingTitle = errors.New("history record requires a Name property")
)

// ValidationError describes why a batch was rejected before any job ran
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "invalid request"
	}
	return strings.Join(e.Issues, "; ")
}

// NewValidationError creates a validation error from one or more issues
func NewValidationError(issues ...string) error {
	return &ValidationError{Issues: issues}
}

// ThrottledError wraps a rate-limited response from the external store.
// RetryAfter is zero when the server did not supply a usable value.
type ThrottledError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *ThrottledError) Error() string {
	return "throttled: " + e.Err.Error()
}

func (e *ThrottledError) Unwrap() error {
	return e.Err
}

// StoreError is a non-throttling failure reported by the external store
type StoreError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StoreError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("external store error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("external store error %d: %s", e.StatusCode, e.Message)
}
