package embed

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/counselkit/insight-engine/internal/core/domain"
	"github.com/counselkit/insight-engine/internal/core/embeddings"
	apperrors "github.com/counselkit/insight-engine/internal/core/errors"
	"github.com/counselkit/insight-engine/internal/observability"
)

// Pipeline defaults.
const (
	DefaultBatchSize      = 20
	DefaultWorkers        = 4
	DefaultMaxAttempts    = 3
	DefaultRetryBaseDelay = 500 * time.Millisecond
)

// Options configures batching, concurrency and retry behavior.
type Options struct {
	BatchSize      int
	Workers        int
	MaxAttempts    int
	RetryBaseDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}

	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}

	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}

	if o.RetryBaseDelay <= 0 {
		o.RetryBaseDelay = DefaultRetryBaseDelay
	}

	return o
}

// ChunkResult is the outcome of embedding one chunk. A chunk that exhausted
// its retry budget carries Err and a nil vector; sibling chunks of the same
// conversation are unaffected.
type ChunkResult struct {
	Chunk  domain.TextChunk
	Vector []float32
	Model  string
	Err    error
}

// Pipeline chunks transcript text and converts chunks to vectors through the
// embedding client. Batches run on a bounded worker pool; result order always
// matches chunk order regardless of which worker finished first.
type Pipeline struct {
	client  embeddings.Client
	chunker *Chunker
	opts    Options
	logger  *zerolog.Logger
}

// New creates an embedding pipeline.
func New(client embeddings.Client, chunker *Chunker, opts Options, logger *zerolog.Logger) *Pipeline {
	return &Pipeline{
		client:  client,
		chunker: chunker,
		opts:    opts.withDefaults(),
		logger:  logger,
	}
}

// EmbedConversation chunks the conversation text and embeds every chunk.
// Transient provider failures are retried with exponential backoff; a chunk
// that exhausts its attempts is marked failed without aborting the rest.
// The returned slice is ordered by chunk index.
func (p *Pipeline) EmbedConversation(ctx context.Context, conversationID, text string) ([]ChunkResult, error) {
	chunks := p.chunker.Chunk(conversationID, text)
	if len(chunks) == 0 {
		return nil, nil
	}

	results := make([]ChunkResult, len(chunks))
	for i, ch := range chunks {
		results[i] = ChunkResult{Chunk: ch}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)

	for start := 0; start < len(chunks); start += p.opts.BatchSize {
		end := min(start+p.opts.BatchSize, len(chunks))

		g.Go(func() error {
			p.embedBatch(gctx, chunks[start:end], results[start:end])

			return gctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("embed conversation %s: %w", conversationID, err)
	}

	for i := range results {
		if results[i].Err != nil {
			observability.ChunksEmbedded.WithLabelValues("failed").Inc()
		} else {
			observability.ChunksEmbedded.WithLabelValues("ok").Inc()
		}
	}

	return results, nil
}

// EmbedQuery embeds text transiently for use as a search query; nothing is
// persisted. Over-long texts are represented by their first chunk.
func (p *Pipeline) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	chunks := p.chunker.Chunk("query", text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: empty query text", apperrors.ErrInvalidInput)
	}

	var result embeddings.BatchResult

	err := p.withRetry(ctx, func() error {
		var embedErr error
		result, embedErr = p.client.Embed(ctx, []string{chunks[0].Text})

		return embedErr
	})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	return result.Vectors[0], nil
}

// embedBatch fills out[i] for each chunk. The whole batch is attempted first;
// if it keeps failing, chunks are retried individually so one poisoned input
// cannot sink its siblings.
func (p *Pipeline) embedBatch(ctx context.Context, batch []domain.TextChunk, out []ChunkResult) {
	texts := make([]string, len(batch))
	for i, ch := range batch {
		texts[i] = ch.Text
	}

	var result embeddings.BatchResult

	err := p.withRetry(ctx, func() error {
		var embedErr error
		result, embedErr = p.client.Embed(ctx, texts)

		return embedErr
	})
	if err == nil {
		for i := range out {
			out[i].Vector = result.Vectors[i]
			out[i].Model = result.Model
		}

		return
	}

	p.logger.Warn().Err(err).Int("batch_size", len(batch)).Msg("batch embedding failed, retrying chunks individually")

	for i := range batch {
		out[i].Vector, out[i].Model, out[i].Err = p.embedSingle(ctx, texts[i])
	}
}

func (p *Pipeline) embedSingle(ctx context.Context, text string) ([]float32, string, error) {
	var result embeddings.BatchResult

	err := p.withRetry(ctx, func() error {
		var embedErr error
		result, embedErr = p.client.Embed(ctx, []string{text})

		return embedErr
	})
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", apperrors.ErrEmbeddingFailed, err)
	}

	return result.Vectors[0], result.Model, nil
}

// withRetry runs fn, retrying transient provider errors with exponential
// backoff up to the configured attempt count.
func (p *Pipeline) withRetry(ctx context.Context, fn func() error) error {
	var err error

	delay := p.opts.RetryBaseDelay

	for attempt := 1; attempt <= p.opts.MaxAttempts; attempt++ {
		err = fn()
		if err == nil || !apperrors.Is(err, apperrors.ErrTransientProvider) {
			return err
		}

		if attempt == p.opts.MaxAttempts {
			break
		}

		observability.EmbeddingRetries.Inc()
		p.logger.Debug().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("transient embedding error, backing off")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
	}

	return err
}
