package embeddings

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	apperrors "github.com/counselkit/insight-engine/internal/core/errors"
)

// OpenAI model constants.
const (
	ModelTextEmbedding3Large = "text-embedding-3-large"
	ModelTextEmbedding3Small = "text-embedding-3-small"

	// Default rate limiter burst.
	openaiRateLimiterBurst = 5

	// Maximum dimensions for text-embedding-3-large.
	maxLargeDimensions = 3072
)

// OpenAIProvider implements the embedding Provider interface for OpenAI.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	dimensions  int
	rateLimiter *rate.Limiter
	mu          sync.RWMutex
	available   bool
}

// OpenAIConfig holds configuration for the OpenAI provider.
type OpenAIConfig struct {
	APIKey     string
	Model      string // "text-embedding-3-large" or "text-embedding-3-small"
	Dimensions int    // Output dimensions (3072 max for large, 1536 for small)
	RateLimit  int    // Requests per second
}

// NewOpenAIProvider creates a new OpenAI embedding provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.Model == "" {
		cfg.Model = ModelTextEmbedding3Small
	}

	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}

	if cfg.RateLimit == 0 {
		cfg.RateLimit = 1
	}

	return &OpenAIProvider{
		client:      openai.NewClient(cfg.APIKey),
		model:       cfg.Model,
		dimensions:  cfg.Dimensions,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), openaiRateLimiterBurst),
		available:   cfg.APIKey != "",
	}
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() ProviderName {
	return ProviderOpenAI
}

// Dimensions returns the configured output dimensions.
func (p *OpenAIProvider) Dimensions() int {
	return p.dimensions
}

// IsAvailable returns true if the provider is configured and available.
func (p *OpenAIProvider) IsAvailable() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.available
}

// Embed generates embeddings for a batch of texts using the OpenAI API.
// Response order matches request order.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) (BatchResult, error) {
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return BatchResult{}, fmt.Errorf("rate limiter: %w", err)
	}

	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(p.model),
	}

	// text-embedding-3-large supports dimension reduction via API parameter
	if p.model == ModelTextEmbedding3Large && p.dimensions > 0 && p.dimensions < maxLargeDimensions {
		req.Dimensions = p.dimensions
	}

	resp, err := p.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return BatchResult{}, classifyOpenAIError(err)
	}

	if len(resp.Data) != len(texts) {
		return BatchResult{}, fmt.Errorf("%w: got %d embeddings for %d texts",
			apperrors.ErrEmptyResponse, len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return BatchResult{}, fmt.Errorf("openai embeddings: index %d out of range", d.Index)
		}

		vectors[d.Index] = d.Embedding
	}

	return BatchResult{
		Vectors:  vectors,
		Model:    p.model,
		Provider: ProviderOpenAI,
	}, nil
}

// classifyOpenAIError maps rate limits, timeouts and server-side failures to
// the transient taxonomy so the pipeline retries them with backoff.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: openai rate limited: %v", apperrors.ErrTransientProvider, err)
		case apiErr.HTTPStatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("%w: openai server error: %v", apperrors.ErrTransientProvider, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: openai timeout: %v", apperrors.ErrTransientProvider, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: openai deadline exceeded: %v", apperrors.ErrTransientProvider, err)
	}

	return fmt.Errorf("openai embeddings: %w", err)
}
