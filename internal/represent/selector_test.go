package represent

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/counselkit/insight-engine/internal/core/domain"
)

// blobCandidates builds count members of one cluster around a base direction,
// ordered from closest to farthest from the centroid.
func blobCandidates(label, count int, base []float32) []Candidate {
	out := make([]Candidate, count)

	for i := range out {
		v := make([]float32, len(base))
		copy(v, base)
		v[label%len(v)] += float32(i) * 0.05

		out[i] = Candidate{
			VectorID:    fmt.Sprintf("c%d-%d", label, i),
			Label:       label,
			Vector:      v,
			Text:        fmt.Sprintf("conversation %d of cluster %d", i, label),
			TokenCount:  300,
			SuccessRate: 0.8,
			Distance:    float64(i),
		}
	}

	return out
}

func TestSelect_CoverageThenFill(t *testing.T) {
	var candidates []Candidate

	candidates = append(candidates, blobCandidates(0, 5, []float32{1, 0, 0})...)
	candidates = append(candidates, blobCandidates(1, 5, []float32{0, 1, 0})...)
	candidates = append(candidates, blobCandidates(2, 5, []float32{0, 0, 1})...)

	reps := Select("run-1", candidates, Options{Min: 3, Max: 5})
	require.Len(t, reps, 5)

	var primaries int

	covered := make(map[int]bool)

	for _, r := range reps {
		assert.Equal(t, "run-1", r.RunID)
		covered[r.Label] = true

		if r.Primary {
			primaries++
		}
	}

	assert.Equal(t, 3, primaries, "exactly one primary per cluster")
	assert.Len(t, covered, 3, "every cluster must be covered")

	// Primaries come first and in label order.
	for i := 0; i < 3; i++ {
		assert.True(t, reps[i].Primary)
		assert.Equal(t, i, reps[i].Label)
	}
}

func TestSelect_FirstPickMaximallyNovel(t *testing.T) {
	candidates := blobCandidates(0, 5, []float32{1, 0, 0})

	reps := Select("run-1", candidates, Options{Min: 1, Max: 3})
	require.NotEmpty(t, reps)

	assert.Equal(t, 1.0, reps[0].Score.Novelty)

	for _, r := range reps[1:] {
		assert.Less(t, r.Score.Novelty, 1.0, "later picks from the same cluster cannot be maximally novel")
	}
}

func TestSelect_NoveltyPenalizesDuplicates(t *testing.T) {
	candidates := []Candidate{
		{VectorID: "a", Label: 0, Vector: []float32{1, 0}, TokenCount: 300, SuccessRate: 0.9, Distance: 0},
		// Exact duplicate of a, slightly farther from the centroid.
		{VectorID: "b", Label: 0, Vector: []float32{1, 0}, TokenCount: 300, SuccessRate: 0.9, Distance: 0.1},
		// Orthogonal member of the same cluster, same static quality as b.
		{VectorID: "z", Label: 0, Vector: []float32{0, 1}, TokenCount: 300, SuccessRate: 0.9, Distance: 0.1},
	}

	reps := Select("run-1", candidates, Options{Min: 1, Max: 2})
	require.Len(t, reps, 2)

	assert.Equal(t, "a", reps[0].VectorID)
	assert.Equal(t, "z", reps[1].VectorID, "the duplicate must lose the fill slot to the novel candidate")
}

func TestSelect_TieBreakByVectorID(t *testing.T) {
	candidates := []Candidate{
		{VectorID: "bbb", Label: 0, Vector: []float32{1, 0}, TokenCount: 300, SuccessRate: 0.5, Distance: 0},
		{VectorID: "aaa", Label: 0, Vector: []float32{1, 0}, TokenCount: 300, SuccessRate: 0.5, Distance: 0},
	}

	reps := Select("run-1", candidates, Options{Min: 1, Max: 1})
	require.Len(t, reps, 1)
	assert.Equal(t, "aaa", reps[0].VectorID)
}

func TestSelect_NoiseExcluded(t *testing.T) {
	candidates := []Candidate{
		{VectorID: "a", Label: 0, Vector: []float32{1, 0}, TokenCount: 300, SuccessRate: 0.5},
		{VectorID: "n", Label: domain.NoiseLabel, Vector: []float32{0, 1}, TokenCount: 300, SuccessRate: 0.9},
	}

	reps := Select("run-1", candidates, Options{Min: 1, Max: 5})
	require.Len(t, reps, 1)
	assert.Equal(t, "a", reps[0].VectorID)
}

func TestSelect_Empty(t *testing.T) {
	assert.Nil(t, Select("run-1", nil, Options{}))
}

func TestLengthScore(t *testing.T) {
	tests := []struct {
		name   string
		tokens int
		want   float64
	}{
		{"ideal", 300, 1.0},
		{"zero tokens floors", 0, lengthScoreFloor},
		{"very long floors", 3000, lengthScoreFloor},
		{"half ideal", 150, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, lengthScore(tt.tokens, 300), 1e-9)
		})
	}
}
