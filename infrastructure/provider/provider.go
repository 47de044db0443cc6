// Package provider integrates external embedding providers.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotConfigured indicates no embedding provider was configured. Callers
// treat this as "index without vectors", not as a failure.
var ErrNotConfigured = errors.New("embedding provider not configured")

// Embedder generates vector embeddings for texts.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension returns the embedding dimensionality.
	Dimension() int
}

// ProviderError wraps provider failures with operation context.
type ProviderError struct {
	operation  string
	statusCode int
	message    string
	cause      error
}

// NewProviderError creates a ProviderError.
func NewProviderError(operation string, statusCode int, message string, cause error) *ProviderError {
	return &ProviderError{
		operation:  operation,
		statusCode: statusCode,
		message:    message,
		cause:      cause,
	}
}

// Error implements error.
func (e *ProviderError) Error() string {
	if e.statusCode > 0 {
		return fmt.Sprintf("provider %s failed (status %d): %s", e.operation, e.statusCode, e.message)
	}
	return fmt.Sprintf("provider %s failed: %s", e.operation, e.message)
}

// Unwrap returns the underlying cause.
func (e *ProviderError) Unwrap() error { return e.cause }

// StatusCode returns the HTTP status code, or 0 when not applicable.
func (e *ProviderError) StatusCode() int { return e.statusCode }

// Operation returns the failed operation name.
func (e *ProviderError) Operation() string { return e.operation }

// NullEmbedder is the Embedder used when no provider is configured.
// Every call reports ErrNotConfigured; ingestion falls back to storing
// documents without vectors.
type NullEmbedder struct{}

// Embed always returns ErrNotConfigured.
func (NullEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, ErrNotConfigured
}

// Dimension returns 0.
func (NullEmbedder) Dimension() int { return 0 }

var _ Embedder = NullEmbedder{}
