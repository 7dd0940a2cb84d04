package embed

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/counselkit/insight-engine/internal/core/domain"
)

// Chunking defaults.
const (
	DefaultMaxTokens     = 512
	DefaultOverlapTokens = 50
)

// utteranceBoundary splits transcript text at sentence and speaker-turn
// boundaries. Covers both western and CJK terminators since transcripts
// arrive in mixed languages.
var utteranceBoundary = regexp.MustCompile(`[。！？!?]+|[.]\s+|\n+`)

// Chunker splits transcript text into bounded chunks respecting utterance
// boundaries where possible.
type Chunker struct {
	maxTokens     int
	overlapTokens int
}

// NewChunker creates a chunker with the given token budget per chunk and
// overlap carried between consecutive chunks.
func NewChunker(maxTokens, overlapTokens int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	if overlapTokens < 0 || overlapTokens >= maxTokens {
		overlapTokens = DefaultOverlapTokens
	}

	return &Chunker{maxTokens: maxTokens, overlapTokens: overlapTokens}
}

// Chunk splits a conversation's text into token-bounded chunks. Utterances
// are kept whole unless a single utterance exceeds the budget, in which case
// it is hard-split on whitespace. Consecutive chunks share up to the
// configured overlap of trailing utterances for context continuity.
func (c *Chunker) Chunk(conversationID, text string) []domain.TextChunk {
	text = norm.NFKC.String(strings.TrimSpace(text))
	if text == "" {
		return nil
	}

	utterances := c.splitUtterances(text)

	var (
		chunks  []domain.TextChunk
		current []string
		tokens  int
	)

	flush := func() {
		if len(current) == 0 {
			return
		}

		joined := strings.Join(current, " ")
		chunks = append(chunks, domain.TextChunk{
			ConversationID: conversationID,
			Index:          len(chunks),
			TokenCount:     CountTokens(joined),
			Text:           joined,
		})

		current, tokens = c.carryOverlap(current)
	}

	for _, u := range utterances {
		uTokens := CountTokens(u)

		if tokens+uTokens > c.maxTokens && len(current) > 0 {
			flush()
		}

		current = append(current, u)
		tokens += uTokens
	}

	if len(current) > 0 {
		joined := strings.Join(current, " ")
		chunks = append(chunks, domain.TextChunk{
			ConversationID: conversationID,
			Index:          len(chunks),
			TokenCount:     CountTokens(joined),
			Text:           joined,
		})
	}

	return chunks
}

// splitUtterances breaks text at utterance boundaries, hard-splitting any
// single utterance that exceeds the chunk budget on its own.
func (c *Chunker) splitUtterances(text string) []string {
	var out []string

	for _, u := range utteranceBoundary.Split(text, -1) {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}

		if CountTokens(u) <= c.maxTokens {
			out = append(out, u)

			continue
		}

		out = append(out, c.hardSplit(u)...)
	}

	return out
}

// hardSplit breaks an oversized utterance on whitespace into budget-sized pieces.
func (c *Chunker) hardSplit(u string) []string {
	words := strings.Fields(u)

	var (
		pieces  []string
		current []string
		tokens  int
	)

	for _, w := range words {
		wTokens := CountTokens(w)
		if tokens+wTokens > c.maxTokens && len(current) > 0 {
			pieces = append(pieces, strings.Join(current, " "))
			current = current[:0]
			tokens = 0
		}

		current = append(current, w)
		tokens += wTokens
	}

	if len(current) > 0 {
		pieces = append(pieces, strings.Join(current, " "))
	}

	return pieces
}

// carryOverlap returns the trailing utterances of the flushed chunk that fit
// the overlap budget, seeding the next chunk.
func (c *Chunker) carryOverlap(flushed []string) ([]string, int) {
	if c.overlapTokens == 0 {
		return nil, 0
	}

	var (
		carried []string
		tokens  int
	)

	for i := len(flushed) - 1; i >= 0; i-- {
		uTokens := CountTokens(flushed[i])
		if tokens+uTokens > c.overlapTokens {
			break
		}

		carried = append([]string{flushed[i]}, carried...)
		tokens += uTokens
	}

	return carried, tokens
}
