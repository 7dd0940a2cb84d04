// Package represent selects cluster representatives: the exemplars that stand
// in for each success pattern when scripts are generated. Selection is a
// deterministic greedy fold over composite quality scores.
package represent

import (
	"math"
	"sort"

	"github.com/counselkit/insight-engine/internal/core/domain"
	"github.com/counselkit/insight-engine/internal/vecmath"
)

// Selection defaults.
const (
	DefaultMin         = 5
	DefaultMax         = 10
	DefaultIdealTokens = 300

	lengthScoreFloor = 0.3
)

// DefaultWeights match the composite score contract: centroid proximity and
// success rate carry most of the weight.
func DefaultWeights() Weights {
	return Weights{Centroid: 0.3, SuccessRate: 0.3, Length: 0.2, Novelty: 0.2}
}

// Weights are the composite score coefficients.
type Weights struct {
	Centroid    float64
	SuccessRate float64
	Length      float64
	Novelty     float64
}

// Options configures selection bounds and scoring.
type Options struct {
	Weights     Weights
	IdealTokens int
	Min         int
	Max         int
}

func (o Options) withDefaults() Options {
	zero := Weights{}
	if o.Weights == zero {
		o.Weights = DefaultWeights()
	}

	if o.IdealTokens <= 0 {
		o.IdealTokens = DefaultIdealTokens
	}

	if o.Min <= 0 {
		o.Min = DefaultMin
	}

	if o.Max < o.Min {
		o.Max = DefaultMax
	}

	return o
}

// Candidate is one clustered vector eligible for selection. Distance is the
// vector's distance to its cluster centroid from the assignment.
type Candidate struct {
	VectorID    string
	Label       int
	Vector      []float32
	Text        string
	TokenCount  int
	SuccessRate float64
	Distance    float64
}

// Select picks representatives for a run: first the best-scoring member of
// every cluster in label order, guaranteeing coverage, then the remaining
// budget is filled with the globally best candidates. Novelty is recomputed
// against the growing selected set after each pick, so near-duplicates of an
// already-selected exemplar lose ground. Ties break on the smaller vector id.
// Noise-labeled candidates are ignored.
func Select(runID string, candidates []Candidate, opts Options) []domain.Representative {
	opts = opts.withDefaults()

	pool := make([]Candidate, 0, len(candidates))

	for _, c := range candidates {
		if c.Label != domain.NoiseLabel {
			pool = append(pool, c)
		}
	}

	if len(pool) == 0 {
		return nil
	}

	normDist := normalizedDistances(pool)

	type entry struct {
		c        Candidate
		static   domain.ScoreBreakdown
		selected bool
	}

	entries := make([]*entry, len(pool))
	for i, c := range pool {
		entries[i] = &entry{
			c: c,
			static: domain.ScoreBreakdown{
				Centroid:    1 - normDist[i],
				SuccessRate: clamp01(c.SuccessRate),
				Length:      lengthScore(c.TokenCount, opts.IdealTokens),
			},
		}
	}

	var (
		selected        []domain.Representative
		selectedVectors [][]float32
	)

	score := func(e *entry) (float64, domain.ScoreBreakdown) {
		breakdown := e.static
		breakdown.Novelty = noveltyScore(e.c.Vector, selectedVectors)
		breakdown.Total = opts.Weights.Centroid*breakdown.Centroid +
			opts.Weights.SuccessRate*breakdown.SuccessRate +
			opts.Weights.Length*breakdown.Length +
			opts.Weights.Novelty*breakdown.Novelty

		return breakdown.Total, breakdown
	}

	pick := func(eligible func(*entry) bool, primary bool) bool {
		var (
			best          *entry
			bestScore     float64
			bestBreakdown domain.ScoreBreakdown
		)

		for _, e := range entries {
			if e.selected || !eligible(e) {
				continue
			}

			s, breakdown := score(e)

			if best == nil || s > bestScore || (s == bestScore && e.c.VectorID < best.c.VectorID) {
				best, bestScore, bestBreakdown = e, s, breakdown
			}
		}

		if best == nil {
			return false
		}

		best.selected = true
		selectedVectors = append(selectedVectors, best.c.Vector)
		selected = append(selected, domain.Representative{
			RunID:    runID,
			Label:    best.c.Label,
			VectorID: best.c.VectorID,
			Text:     best.c.Text,
			Score:    bestBreakdown,
			Primary:  primary,
		})

		return true
	}

	// Coverage pass: one pick per cluster, label order, capped at the budget.
	for _, label := range sortedLabels(pool) {
		if len(selected) == opts.Max {
			break
		}

		pick(func(e *entry) bool { return e.c.Label == label }, true)
	}

	// Fill pass: best remaining candidates from any cluster.
	for len(selected) < opts.Max {
		if !pick(func(*entry) bool { return true }, false) {
			break
		}
	}

	return selected
}

func sortedLabels(pool []Candidate) []int {
	seen := make(map[int]struct{})

	var labels []int

	for _, c := range pool {
		if _, ok := seen[c.Label]; !ok {
			seen[c.Label] = struct{}{}
			labels = append(labels, c.Label)
		}
	}

	sort.Ints(labels)

	return labels
}

// normalizedDistances scales each candidate's centroid distance by its
// cluster's maximum, so clusters of different spread compare fairly.
func normalizedDistances(pool []Candidate) []float64 {
	maxByLabel := make(map[int]float64)

	for _, c := range pool {
		if c.Distance > maxByLabel[c.Label] {
			maxByLabel[c.Label] = c.Distance
		}
	}

	out := make([]float64, len(pool))

	for i, c := range pool {
		if max := maxByLabel[c.Label]; max > 0 {
			out[i] = c.Distance / max
		}
	}

	return out
}

// lengthScore peaks at the ideal token count and decays linearly in both
// directions down to a floor, so very short and very long chunks stay
// eligible but rank behind well-sized ones.
func lengthScore(tokens, ideal int) float64 {
	if tokens <= 0 {
		return lengthScoreFloor
	}

	score := 1 - math.Abs(float64(tokens-ideal))/float64(ideal)

	return math.Max(lengthScoreFloor, score)
}

// noveltyScore is 1 minus the maximum cosine similarity to the already
// selected set; the first pick is maximally novel.
func noveltyScore(v []float32, selected [][]float32) float64 {
	if len(selected) == 0 {
		return 1
	}

	maxSim := -1.0

	for _, s := range selected {
		if sim := vecmath.Cosine(v, s); sim > maxSim {
			maxSim = sim
		}
	}

	return math.Max(0, 1-maxSim)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
