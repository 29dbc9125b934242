package inference

import (
	"errors"
	"fmt"
)

// ErrorClass classifies a generation failure. rate_limit, server_error and
// network_error are retryable; quota_exceeded and invalid_response are
// terminal.
type ErrorClass string

const (
	ErrorClassRateLimit       ErrorClass = "rate_limit"
	ErrorClassServerError     ErrorClass = "server_error"
	ErrorClassNetworkError    ErrorClass = "network_error"
	ErrorClassQuotaExceeded   ErrorClass = "quota_exceeded"
	ErrorClassInvalidResponse ErrorClass = "invalid_response"
)

// Retryable reports whether errors of this class should be retried.
func (c ErrorClass) Retryable() bool {
	switch c {
	case ErrorClassRateLimit, ErrorClassServerError, ErrorClassNetworkError:
		return true
	}
	return false
}

// GenerationError is a classified failure of the external AI call. The
// classification survives retry exhaustion so callers can report it.
type GenerationError struct {
	Class   ErrorClass
	Message string
	Err     error
}

func NewGenerationError(class ErrorClass, message string, err error) *GenerationError {
	return &GenerationError{Class: class, Message: message, Err: err}
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation failed (%s): %s: %v", e.Class, e.Message, e.Err)
	}
	return fmt.Sprintf("generation failed (%s): %s", e.Class, e.Message)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Retryable reports whether this error should trigger a retry.
func (e *GenerationError) Retryable() bool {
	return e.Class.Retryable()
}

// ClassOf extracts the classification from err, or ErrorClassNetworkError
// for unclassified transport-level failures.
func ClassOf(err error) ErrorClass {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Class
	}
	return ErrorClassNetworkError
}
