package search

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/counselkit/insight-engine/internal/core/domain"
	apperrors "github.com/counselkit/insight-engine/internal/core/errors"
)

type fakeStore struct {
	lastThreshold float64
	lastTopK      int
	matches       []domain.SearchMatch
}

func (f *fakeStore) Search(_ context.Context, _ []float32, _ domain.SearchFilter, threshold float64, topK int) ([]domain.SearchMatch, error) {
	f.lastThreshold = threshold
	f.lastTopK = topK

	return f.matches, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func TestEngineSearch_InvalidFilterRejectedBeforeQuery(t *testing.T) {
	store := &fakeStore{}
	logger := zerolog.Nop()
	engine := NewEngine(store, fakeEmbedder{}, 0.7, 10, &logger)

	rate := float32(1.5)

	_, err := engine.Search(context.Background(), "query", 10, domain.SearchFilter{MinSuccessRate: &rate})
	require.ErrorIs(t, err, apperrors.ErrInvalidFilter)
	assert.Zero(t, store.lastTopK, "store must not be queried with an invalid filter")
}

func TestEngineSearch_DefaultsApplied(t *testing.T) {
	store := &fakeStore{matches: []domain.SearchMatch{{VectorID: "v1", Score: 0.9}}}
	logger := zerolog.Nop()
	engine := NewEngine(store, fakeEmbedder{}, 0, 0, &logger)

	matches, err := engine.Search(context.Background(), "query", 0, domain.SearchFilter{})
	require.NoError(t, err)

	assert.Len(t, matches, 1)
	assert.Equal(t, DefaultTopK, store.lastTopK)
	assert.InDelta(t, DefaultThreshold, store.lastThreshold, 1e-9)
}

func TestEngineSearch_ConfiguredTopKUsedWhenCallerPassesNone(t *testing.T) {
	store := &fakeStore{}
	logger := zerolog.Nop()
	engine := NewEngine(store, fakeEmbedder{}, 0.7, 25, &logger)

	_, err := engine.Search(context.Background(), "query", 0, domain.SearchFilter{})
	require.NoError(t, err)
	assert.Equal(t, 25, store.lastTopK)

	_, err = engine.Search(context.Background(), "query", 3, domain.SearchFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, store.lastTopK, "an explicit topK overrides the configured default")
}

func TestEngineSearch_EmptyResultIsValid(t *testing.T) {
	store := &fakeStore{}
	logger := zerolog.Nop()
	engine := NewEngine(store, fakeEmbedder{}, 0.7, 10, &logger)

	matches, err := engine.Search(context.Background(), "query", 5, domain.SearchFilter{})
	require.NoError(t, err)
	assert.Empty(t, matches)
}
