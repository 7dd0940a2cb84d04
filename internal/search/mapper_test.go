package search

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/counselkit/insight-engine/internal/core/domain"
)

func TestMapFailureToSuccesses_ThresholdBeforeTopK(t *testing.T) {
	// Nine candidates below the threshold and one above. With topK=5 the
	// low scorers must not ride in to fill the result.
	candidates := make([]domain.SearchMatch, 0, 10)
	for i := 0; i < 9; i++ {
		candidates = append(candidates, domain.SearchMatch{
			VectorID: fmt.Sprintf("low-%d", i),
			Text:     "an unrelated conversation",
			Score:    0.4,
		})
	}

	candidates = append(candidates, domain.SearchMatch{
		VectorID: "high",
		Text:     "We walked through the price plan and the customer felt reassured.",
		Score:    0.85,
	})

	result := MapFailureToSuccesses("The customer asked about cost and left.", candidates, 0.7, 5)

	require.Len(t, result.Mappings, 1)
	assert.Equal(t, "high", result.Mappings[0].Match.VectorID)
	assert.Equal(t, 1, result.Summary.TotalFound)
	assert.InDelta(t, 0.85, result.Summary.AvgSimilarity, 1e-9)
}

func TestMapFailureToSuccesses_EmptyIsValid(t *testing.T) {
	result := MapFailureToSuccesses("anything", nil, 0.7, 5)

	assert.Empty(t, result.Mappings)
	assert.Equal(t, 0, result.Summary.TotalFound)
	assert.Zero(t, result.Summary.AvgSimilarity)
}

func TestMapFailureToSuccesses_SingleMatchAnalysis(t *testing.T) {
	failure := "The customer asked how much the sessions cost and hesitated."
	success := domain.SearchMatch{
		VectorID: "s1",
		Text: "The counselor gave a clear price breakdown for the course plan, " +
			"shared a customer experience story, and the visitor decided to sign up " +
			"feeling reassured about the effect of the treatment.",
		Score: 0.9,
	}

	result := MapFailureToSuccesses(failure, []domain.SearchMatch{success}, 0.7, 5)
	require.Len(t, result.Mappings, 1)

	m := result.Mappings[0]
	assert.NotEmpty(t, m.ImprovementHints)
	assert.LessOrEqual(t, len(m.ImprovementHints), 3)
	assert.NotEmpty(t, m.KeyDifferences, "longer, more positive success example should surface differences")
	assert.GreaterOrEqual(t, m.SituationalSimilarity, 0.0)
	assert.LessOrEqual(t, m.SituationalSimilarity, 1.0)
}

func TestMapFailureToSuccesses_Deterministic(t *testing.T) {
	failure := "The visitor worried about pain and did not book."
	candidates := []domain.SearchMatch{
		{VectorID: "a", Text: "We explained the treatment is safe and comfortable.", Score: 0.8},
		{VectorID: "b", Text: "A price plan with installments convinced the visitor.", Score: 0.75},
	}

	first := MapFailureToSuccesses(failure, candidates, 0.7, 5)
	second := MapFailureToSuccesses(failure, candidates, 0.7, 5)

	assert.Equal(t, first, second)
}

func TestExtractAttributes(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Attributes
	}{
		{
			name: "pricing concern in proposal phase",
			text: "I recommend the course plan; the cost is split per month.",
			want: Attributes{ConcernCategory: "pricing", PlanType: "course", Phase: "proposal"},
		},
		{
			name: "safety concern",
			text: "Will it hurt? I worry about the pain.",
			want: Attributes{ConcernCategory: "safety"},
		},
		{
			name: "nothing recognized",
			text: "Hello there.",
			want: Attributes{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractAttributes(tt.text))
		})
	}
}
