// Package search implements ranked similarity search over the success
// evidence base and the failure-to-success mapper built on top of it.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/counselkit/insight-engine/internal/core/domain"
	"github.com/counselkit/insight-engine/internal/observability"
)

// Search defaults.
const (
	DefaultTopK      = 10
	DefaultThreshold = 0.7
)

// Store is the slice of the vector store the engine needs.
type Store interface {
	Search(ctx context.Context, query []float32, filter domain.SearchFilter, threshold float64, topK int) ([]domain.SearchMatch, error)
}

// Embedder turns query text into a vector without persisting anything.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Engine runs similarity queries against stored success vectors.
type Engine struct {
	store     Store
	embedder  Embedder
	threshold float64
	topK      int
	logger    *zerolog.Logger
}

// NewEngine creates a search engine with the given default similarity
// threshold and default result count, used when a caller passes none.
func NewEngine(store Store, embedder Embedder, threshold float64, topK int, logger *zerolog.Logger) *Engine {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}

	if topK <= 0 {
		topK = DefaultTopK
	}

	return &Engine{store: store, embedder: embedder, threshold: threshold, topK: topK, logger: logger}
}

// Search embeds the query text and returns up to topK success chunks scoring
// at or above the engine's threshold, best first. An empty result is a valid
// answer, not an error.
func (e *Engine) Search(ctx context.Context, queryText string, topK int, filter domain.SearchFilter) ([]domain.SearchMatch, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	query, err := e.embedder.EmbedQuery(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed search query: %w", err)
	}

	return e.SearchByVector(ctx, query, topK, filter)
}

// SearchByVector runs the query with an already-embedded vector.
func (e *Engine) SearchByVector(ctx context.Context, query []float32, topK int, filter domain.SearchFilter) ([]domain.SearchMatch, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	if topK <= 0 {
		topK = e.topK
	}

	start := time.Now()

	matches, err := e.store.Search(ctx, query, filter, e.threshold, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	observability.SearchDuration.Observe(time.Since(start).Seconds())
	e.logger.Debug().Int("matches", len(matches)).Int("top_k", topK).Msg("similarity search done")

	return matches, nil
}
