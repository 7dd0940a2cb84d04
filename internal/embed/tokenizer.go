// Package embed implements the embedding pipeline: utterance-aware chunking
// of transcripts and batched, order-preserving vectorization through an
// embedding provider with bounded concurrency and per-chunk retry.
package embed

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const (
	encodingName = "cl100k_base"

	// Fallback heuristic: english text averages roughly 4 tokens per 3 words.
	fallbackTokensPerWordNum = 4
	fallbackTokensPerWordDen = 3
)

var (
	tiktokenOnce sync.Once
	tiktokenEnc  *tiktoken.Tiktoken
)

func loadTiktoken() {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		// Encoder download failed (air-gapped environment); the word-count
		// heuristic takes over.
		return
	}

	tiktokenEnc = enc
}

// CountTokens returns the token count of text under the cl100k_base encoding,
// falling back to a word-count heuristic when the encoder is unavailable.
func CountTokens(text string) int {
	tiktokenOnce.Do(loadTiktoken)

	if tiktokenEnc != nil {
		return len(tiktokenEnc.EncodeOrdinary(text))
	}

	words := len(strings.Fields(text))

	return (words*fallbackTokensPerWordNum + fallbackTokensPerWordDen - 1) / fallbackTokensPerWordDen
}
