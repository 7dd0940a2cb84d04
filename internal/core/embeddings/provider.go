// Package embeddings provides text embedding generation for the insight engine.
//
// Providers turn batches of text into fixed-dimension float vectors. The
// package includes:
//   - OpenAI text-embedding-3-small / text-embedding-3-large
//   - A deterministic mock provider for tests and local development
//   - Circuit breaker pattern for provider resilience
//   - Rate limiting per provider
package embeddings

import (
	"context"
	"time"
)

// ProviderName identifies an embedding provider.
type ProviderName string

// Provider name constants.
const (
	ProviderOpenAI ProviderName = "openai"
	ProviderMock   ProviderName = "mock"
)

// DefaultDimensions matches the vector(1536) column in the store schema.
const DefaultDimensions = 1536

// BatchResult contains the embedding vectors for one batch request.
// Vectors[i] corresponds to the i-th input text.
type BatchResult struct {
	Vectors  [][]float32
	Model    string
	Provider ProviderName
}

// Provider defines the interface for embedding providers.
type Provider interface {
	// Name returns the provider identifier.
	Name() ProviderName

	// Embed generates embeddings for a batch of texts. The result preserves
	// input order: Vectors[i] embeds texts[i].
	Embed(ctx context.Context, texts []string) (BatchResult, error)

	// Dimensions returns the output dimensions of this provider.
	Dimensions() int

	// IsAvailable returns true if the provider is currently available.
	IsAvailable() bool
}

// CircuitBreakerConfig configures failure handling for a provider.
type CircuitBreakerConfig struct {
	Threshold  int
	ResetAfter time.Duration
}

// DefaultCircuitBreakerConfig returns sensible circuit breaker defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Threshold:  5,
		ResetAfter: 30 * time.Second,
	}
}
