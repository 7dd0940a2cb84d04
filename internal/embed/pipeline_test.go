package embed

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/counselkit/insight-engine/internal/core/embeddings"
	apperrors "github.com/counselkit/insight-engine/internal/core/errors"
)

// fakeClient embeds deterministically and can inject failures.
type fakeClient struct {
	mu            sync.Mutex
	calls         int
	transientLeft int    // fail this many calls with a transient error first
	permanentText string // any batch containing this text fails permanently
	dims          int
	delegate      *embeddings.MockProvider
}

func newFakeClient(dims int) *fakeClient {
	return &fakeClient{dims: dims, delegate: embeddings.NewMockProviderWithDimensions(dims)}
}

func (f *fakeClient) Embed(ctx context.Context, texts []string) (embeddings.BatchResult, error) {
	f.mu.Lock()
	f.calls++
	failTransient := f.transientLeft > 0
	if failTransient {
		f.transientLeft--
	}
	f.mu.Unlock()

	if failTransient {
		return embeddings.BatchResult{}, fmt.Errorf("%w: injected", apperrors.ErrTransientProvider)
	}

	if f.permanentText != "" {
		for _, t := range texts {
			if strings.Contains(t, f.permanentText) {
				return embeddings.BatchResult{}, fmt.Errorf("invalid input")
			}
		}
	}

	return f.delegate.Embed(ctx, texts)
}

func (f *fakeClient) Dimensions() int { return f.dims }

func testPipeline(client embeddings.Client) *Pipeline {
	logger := zerolog.Nop()

	return New(client, NewChunker(30, 0), Options{
		BatchSize:      2,
		Workers:        3,
		MaxAttempts:    3,
		RetryBaseDelay: time.Millisecond,
	}, &logger)
}

func conversationText() string {
	var sb strings.Builder
	for i := 0; i < 12; i++ {
		sb.WriteString(fmt.Sprintf("Utterance number %d about treatment plans and pricing concerns. ", i))
	}

	return sb.String()
}

func TestEmbedConversation_OrderPreserved(t *testing.T) {
	client := newFakeClient(8)
	p := testPipeline(client)

	results, err := p.EmbedConversation(context.Background(), "conv-1", conversationText())
	require.NoError(t, err)
	require.NotEmpty(t, results)

	for i, r := range results {
		assert.Equal(t, i, r.Chunk.Index, "results must be ordered by chunk index")
		require.NoError(t, r.Err)
		assert.Len(t, r.Vector, 8)

		// The vector must be the embedding of this chunk's text, not a sibling's.
		expected, embedErr := client.delegate.Embed(context.Background(), []string{r.Chunk.Text})
		require.NoError(t, embedErr)
		assert.Equal(t, expected.Vectors[0], r.Vector)
	}
}

func TestEmbedConversation_TransientErrorsRetried(t *testing.T) {
	client := newFakeClient(8)
	client.transientLeft = 2
	p := testPipeline(client)

	results, err := p.EmbedConversation(context.Background(), "conv-1", conversationText())
	require.NoError(t, err)

	for _, r := range results {
		assert.NoError(t, r.Err, "transient failures within the retry budget must recover")
	}
}

func TestEmbedConversation_PermanentFailureIsolatedToChunk(t *testing.T) {
	client := newFakeClient(8)
	client.permanentText = "number 3"
	p := testPipeline(client)

	results, err := p.EmbedConversation(context.Background(), "conv-1", conversationText())
	require.NoError(t, err, "sibling chunks must not abort on a per-chunk failure")

	var failed, ok int

	for _, r := range results {
		if r.Err != nil {
			failed++

			assert.ErrorIs(t, r.Err, apperrors.ErrEmbeddingFailed)
			assert.Nil(t, r.Vector)
		} else {
			ok++

			assert.NotNil(t, r.Vector)
		}
	}

	assert.Greater(t, failed, 0, "the poisoned chunk must be marked failed")
	assert.Greater(t, ok, 0, "siblings must still succeed")
}

func TestEmbedQuery_DeterministicAcrossCalls(t *testing.T) {
	p := testPipeline(newFakeClient(8))

	first, err := p.EmbedQuery(context.Background(), "How much does the treatment cost?")
	require.NoError(t, err)

	second, err := p.EmbedQuery(context.Background(), "How much does the treatment cost?")
	require.NoError(t, err)

	require.Len(t, second, len(first))

	for i := range first {
		assert.InDelta(t, first[i], second[i], 1e-6)
	}
}

func TestEmbedQuery_EmptyText(t *testing.T) {
	p := testPipeline(newFakeClient(8))

	_, err := p.EmbedQuery(context.Background(), "  ")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestEmbedConversation_Canceled(t *testing.T) {
	client := newFakeClient(8)
	client.transientLeft = 1000 // keep every call failing so retries spin
	p := testPipeline(client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.EmbedConversation(ctx, "conv-1", conversationText())
	assert.Error(t, err)
}
