package embeddings

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/counselkit/insight-engine/internal/vecmath"
)

func TestMockProvider_DeterministicUnitVectors(t *testing.T) {
	provider := NewMockProviderWithDimensions(8)

	first, err := provider.Embed(context.Background(), []string{"hello", "world"})
	require.NoError(t, err)
	require.Len(t, first.Vectors, 2)

	second, err := provider.Embed(context.Background(), []string{"hello", "world"})
	require.NoError(t, err)

	assert.Equal(t, first.Vectors, second.Vectors, "same text must embed to the same vector")
	assert.NotEqual(t, first.Vectors[0], first.Vectors[1])

	for _, v := range first.Vectors {
		require.Len(t, v, 8)
		assert.InDelta(t, 1.0, math.Sqrt(vecmath.Dot(v, v)), 1e-5, "mock vectors are unit norm")
	}
}

func TestMockProvider_SelfSimilarity(t *testing.T) {
	provider := NewMockProvider()

	result, err := provider.Embed(context.Background(), []string{"a counseling transcript"})
	require.NoError(t, err)

	v := result.Vectors[0]
	assert.InDelta(t, 1.0, vecmath.Cosine(v, v), 1e-6)
}
