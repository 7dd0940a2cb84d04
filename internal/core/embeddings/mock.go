package embeddings

import (
	"context"
	"hash/fnv"

	"github.com/counselkit/insight-engine/internal/vecmath"
)

// LCG constants for deterministic pseudo-random vector generation.
const (
	lcgMultiplier = 6364136223846793005
	lcgIncrement  = 1442695040888963407
	seedShift     = 33
	floatScale    = 0x40000000
)

// MockProvider implements the embedding Provider interface for testing.
// It generates deterministic unit vectors from the input text hash, so the
// same text always embeds to the same vector.
type MockProvider struct {
	dimensions int
}

// NewMockProvider creates a new mock embedding provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{dimensions: DefaultDimensions}
}

// NewMockProviderWithDimensions creates a mock provider with custom dimensions.
func NewMockProviderWithDimensions(dims int) *MockProvider {
	return &MockProvider{dimensions: dims}
}

// Name returns the provider identifier.
func (p *MockProvider) Name() ProviderName {
	return ProviderMock
}

// Dimensions returns the configured output dimensions.
func (p *MockProvider) Dimensions() int {
	return p.dimensions
}

// IsAvailable always returns true for the mock provider.
func (p *MockProvider) IsAvailable() bool {
	return true
}

// Embed generates deterministic embeddings for a batch of texts.
func (p *MockProvider) Embed(_ context.Context, texts []string) (BatchResult, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = p.vectorFor(text)
	}

	return BatchResult{
		Vectors:  vectors,
		Model:    "mock",
		Provider: ProviderMock,
	}, nil
}

// vectorFor produces a unit-norm vector seeded by the text's FNV hash.
func (p *MockProvider) vectorFor(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	state := h.Sum64()

	vec := make([]float32, p.dimensions)

	for i := range vec {
		state = state*lcgMultiplier + lcgIncrement
		vec[i] = float32(float64(int64(state>>seedShift)%floatScale)/floatScale - 0.5)
	}

	unit, ok := vecmath.NormalizeL2Copy(vec)
	if !ok {
		vec[0] = 1

		return vec
	}

	return unit
}
