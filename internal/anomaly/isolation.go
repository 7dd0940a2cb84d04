// Package anomaly flags statistically unusual success examples for manual
// review. Two interchangeable methods: isolation forest and local outlier
// factor. Output is advisory; conversation labels never change.
package anomaly

import (
	"math"
	"math/rand"
)

// Isolation forest parameters.
const (
	forestTrees     = 100
	forestSubsample = 256
)

type isoNode struct {
	feature float64
	dim     int
	left    *isoNode
	right   *isoNode
	size    int
}

// isolationScores returns one anomaly score per vector in [0,1]; higher means
// easier to isolate, therefore more anomalous. Deterministic for a fixed seed.
func isolationScores(matrix [][]float32, seed int64) []float64 {
	n := len(matrix)
	if n == 0 {
		return nil
	}

	subsample := forestSubsample
	if subsample > n {
		subsample = n
	}

	maxDepth := int(math.Ceil(math.Log2(float64(subsample)))) + 1
	rng := rand.New(rand.NewSource(seed))
	trees := make([]*isoNode, forestTrees)

	for t := range trees {
		sample := sampleIndices(rng, n, subsample)
		trees[t] = buildIsoTree(matrix, sample, 0, maxDepth, rng)
	}

	norm := avgPathLength(float64(subsample))
	scores := make([]float64, n)

	for i, v := range matrix {
		var total float64

		for _, tree := range trees {
			total += pathLength(v, tree, 0)
		}

		mean := total / float64(forestTrees)
		scores[i] = math.Pow(2, -mean/norm)
	}

	return scores
}

func sampleIndices(rng *rand.Rand, n, k int) []int {
	perm := rng.Perm(n)

	return perm[:k]
}

func buildIsoTree(matrix [][]float32, indices []int, depth, maxDepth int, rng *rand.Rand) *isoNode {
	if len(indices) <= 1 || depth >= maxDepth {
		return &isoNode{size: len(indices)}
	}

	dims := len(matrix[0])
	dim := rng.Intn(dims)

	lo, hi := math.Inf(1), math.Inf(-1)

	for _, i := range indices {
		v := float64(matrix[i][dim])
		if v < lo {
			lo = v
		}

		if v > hi {
			hi = v
		}
	}

	if lo == hi {
		return &isoNode{size: len(indices)}
	}

	split := lo + rng.Float64()*(hi-lo)

	var left, right []int

	for _, i := range indices {
		if float64(matrix[i][dim]) < split {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &isoNode{
		feature: split,
		dim:     dim,
		left:    buildIsoTree(matrix, left, depth+1, maxDepth, rng),
		right:   buildIsoTree(matrix, right, depth+1, maxDepth, rng),
		size:    len(indices),
	}
}

func pathLength(v []float32, node *isoNode, depth int) float64 {
	if node.left == nil {
		// External node: account for the subtree that was not grown.
		if node.size > 1 {
			return float64(depth) + avgPathLength(float64(node.size))
		}

		return float64(depth)
	}

	if float64(v[node.dim]) < node.feature {
		return pathLength(v, node.left, depth+1)
	}

	return pathLength(v, node.right, depth+1)
}

// avgPathLength is the expected path length of an unsuccessful BST search,
// the standard isolation forest normalizer.
func avgPathLength(n float64) float64 {
	if n <= 1 {
		return 0
	}

	const euler = 0.5772156649

	return 2*(math.Log(n-1)+euler) - 2*(n-1)/n
}
