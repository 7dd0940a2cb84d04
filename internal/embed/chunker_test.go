package embed

import (
	"strings"
	"testing"
)

func TestChunk_Empty(t *testing.T) {
	c := NewChunker(DefaultMaxTokens, DefaultOverlapTokens)

	if got := c.Chunk("conv-1", "   "); got != nil {
		t.Errorf("Chunk() = %v, want nil for blank text", got)
	}
}

func TestChunk_ShortTextSingleChunk(t *testing.T) {
	c := NewChunker(DefaultMaxTokens, DefaultOverlapTokens)

	chunks := c.Chunk("conv-1", "Hello, thanks for coming in today. How can I help you?")
	if len(chunks) != 1 {
		t.Fatalf("Chunk() produced %d chunks, want 1", len(chunks))
	}

	if chunks[0].ConversationID != "conv-1" || chunks[0].Index != 0 {
		t.Errorf("chunk metadata = %+v", chunks[0])
	}

	if chunks[0].TokenCount <= 0 {
		t.Errorf("TokenCount = %d, want > 0", chunks[0].TokenCount)
	}
}

func TestChunk_RespectsTokenBudget(t *testing.T) {
	c := NewChunker(40, 0)

	var sb strings.Builder
	for i := 0; i < 30; i++ {
		sb.WriteString("The customer asked about treatment pricing and scheduling. ")
	}

	chunks := c.Chunk("conv-1", sb.String())
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	for i, ch := range chunks {
		if ch.Index != i {
			t.Errorf("chunk %d has index %d", i, ch.Index)
		}

		// A chunk may exceed the budget only when a single utterance does.
		if ch.TokenCount > 40+CountTokens("The customer asked about treatment pricing and scheduling") {
			t.Errorf("chunk %d token count %d far exceeds budget", i, ch.TokenCount)
		}
	}
}

func TestChunk_OverlapCarriesTrailingUtterance(t *testing.T) {
	c := NewChunker(30, 15)

	text := "First the counselor greeted the visitor warmly. " +
		"Then they discussed the available treatment options. " +
		"Finally they agreed on a follow-up appointment next week."

	chunks := c.Chunk("conv-1", text)
	if len(chunks) < 2 {
		t.Skipf("text fit in %d chunks, overlap not exercised", len(chunks))
	}

	// The second chunk should start with material from the first.
	firstWords := strings.Fields(chunks[0].Text)
	if !strings.Contains(chunks[1].Text, firstWords[len(firstWords)-1]) {
		t.Errorf("second chunk %q shares no trailing content with first %q", chunks[1].Text, chunks[0].Text)
	}
}

func TestChunk_HardSplitsOversizedUtterance(t *testing.T) {
	c := NewChunker(20, 0)

	// One long utterance with no sentence boundary.
	text := strings.Repeat("word ", 200)

	chunks := c.Chunk("conv-1", text)
	if len(chunks) < 2 {
		t.Fatalf("expected hard split, got %d chunks", len(chunks))
	}
}

func TestCountTokens_Positive(t *testing.T) {
	if got := CountTokens("hello world"); got <= 0 {
		t.Errorf("CountTokens = %d, want > 0", got)
	}

	if CountTokens("") != 0 {
		t.Errorf("CountTokens(\"\") = %d, want 0", CountTokens(""))
	}
}
