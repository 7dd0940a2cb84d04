package embeddings

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/counselkit/insight-engine/internal/observability"
)

// Client is the embedding interface used throughout the engine.
type Client interface {
	// Embed generates embeddings for a batch of texts, preserving input order.
	Embed(ctx context.Context, texts []string) (BatchResult, error)

	// Dimensions returns the fixed output dimension of every vector.
	Dimensions() int
}

// Config holds configuration for creating an embedding client.
type Config struct {
	OpenAIAPIKey     string
	OpenAIModel      string
	OpenAIDimensions int
	OpenAIRateLimit  int

	CircuitBreakerConfig CircuitBreakerConfig
}

// guardedClient wraps a provider with a circuit breaker and request metrics.
type guardedClient struct {
	provider Provider
	breaker  *CircuitBreaker
}

// NewClient creates an embedding client. Without an API key it falls back to
// the deterministic mock provider for tests and local development.
func NewClient(cfg Config, logger *zerolog.Logger) Client {
	if cfg.CircuitBreakerConfig.Threshold == 0 {
		cfg.CircuitBreakerConfig = DefaultCircuitBreakerConfig()
	}

	var provider Provider

	if cfg.OpenAIAPIKey != "" {
		provider = NewOpenAIProvider(OpenAIConfig{
			APIKey:     cfg.OpenAIAPIKey,
			Model:      cfg.OpenAIModel,
			Dimensions: cfg.OpenAIDimensions,
			RateLimit:  cfg.OpenAIRateLimit,
		})
	} else {
		logger.Warn().Msg("no embedding provider configured, using mock provider")

		if cfg.OpenAIDimensions > 0 {
			provider = NewMockProviderWithDimensions(cfg.OpenAIDimensions)
		} else {
			provider = NewMockProvider()
		}
	}

	return &guardedClient{
		provider: provider,
		breaker:  NewCircuitBreaker(cfg.CircuitBreakerConfig, logger),
	}
}

func (c *guardedClient) Embed(ctx context.Context, texts []string) (BatchResult, error) {
	if err := c.breaker.CheckCircuit(); err != nil {
		return BatchResult{}, err
	}

	start := time.Now()
	result, err := c.provider.Embed(ctx, texts)
	observability.EmbeddingRequestDuration.WithLabelValues(string(c.provider.Name())).Observe(time.Since(start).Seconds())

	if err != nil {
		c.breaker.RecordFailure(c.provider.Name())

		return BatchResult{}, err
	}

	c.breaker.RecordSuccess()

	return result, nil
}

func (c *guardedClient) Dimensions() int {
	return c.provider.Dimensions()
}
