// Package errors provides centralized error definitions for the insight engine.
// Errors are organized by domain to avoid duplication and provide consistent naming.
//
// Naming conventions:
//   - Exported errors (Err*): Use for errors that callers need to check with errors.Is
//   - All sentinel errors should be defined as variables, not inline errors.New calls
//   - Use fmt.Errorf with %w to wrap sentinel errors with context
package errors

import "errors"

// Embedding provider errors.
var (
	// ErrTransientProvider indicates a retryable provider failure (rate limit, timeout).
	ErrTransientProvider = errors.New("transient provider error")

	// ErrEmbeddingFailed indicates a chunk exhausted its retry budget.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrCircuitBreakerOpen indicates the circuit breaker has tripped and requests are blocked.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

	// ErrEmptyResponse indicates an empty response was received from a provider.
	ErrEmptyResponse = errors.New("empty response")
)

// Clustering errors.
var (
	// ErrInsufficientData indicates too few vectors to run clustering.
	ErrInsufficientData = errors.New("insufficient data for clustering")
)

// Search errors.
var (
	// ErrInvalidFilter indicates a malformed search filter, rejected before querying.
	ErrInvalidFilter = errors.New("invalid search filter")
)

// Generic lookup errors.
var (
	// ErrNotFound is a generic not found error.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates invalid input was provided.
	ErrInvalidInput = errors.New("invalid input")
)

// Is is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
