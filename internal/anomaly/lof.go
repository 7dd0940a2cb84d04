package anomaly

import (
	"math"
	"sort"

	"github.com/counselkit/insight-engine/internal/vecmath"
)

const lofMaxNeighbors = 20

// lofScores returns the local outlier factor per vector; a score well above 1
// means the point is in a sparser region than its neighbors. The neighborhood
// size scales with the sample, capped at lofMaxNeighbors.
func lofScores(matrix [][]float32) []float64 {
	n := len(matrix)
	if n < 2 {
		return make([]float64, n)
	}

	k := n / 5
	if k > lofMaxNeighbors {
		k = lofMaxNeighbors
	}

	if k < 1 {
		k = 1
	}

	neighbors, kDistances := nearestNeighbors(matrix, k)

	// Local reachability density per point.
	lrd := make([]float64, n)

	for i := range matrix {
		var reachSum float64

		for _, j := range neighbors[i] {
			dist := vecmath.L2(matrix[i], matrix[j])
			reachSum += math.Max(dist, kDistances[j])
		}

		if reachSum == 0 {
			lrd[i] = math.Inf(1)
		} else {
			lrd[i] = float64(len(neighbors[i])) / reachSum
		}
	}

	scores := make([]float64, n)

	for i := range matrix {
		var ratioSum float64

		for _, j := range neighbors[i] {
			if math.IsInf(lrd[i], 1) {
				ratioSum++

				continue
			}

			ratioSum += lrd[j] / lrd[i]
		}

		scores[i] = ratioSum / float64(len(neighbors[i]))
	}

	return scores
}

// nearestNeighbors returns each point's k nearest neighbor indices and its
// k-distance. Distance ties break on index so the result is deterministic.
func nearestNeighbors(matrix [][]float32, k int) ([][]int, []float64) {
	n := len(matrix)
	neighbors := make([][]int, n)
	kDistances := make([]float64, n)

	type pair struct {
		idx  int
		dist float64
	}

	for i := range matrix {
		pairs := make([]pair, 0, n-1)

		for j := range matrix {
			if i == j {
				continue
			}

			pairs = append(pairs, pair{j, vecmath.L2(matrix[i], matrix[j])})
		}

		sort.Slice(pairs, func(a, b int) bool {
			if pairs[a].dist != pairs[b].dist {
				return pairs[a].dist < pairs[b].dist
			}

			return pairs[a].idx < pairs[b].idx
		})

		count := k
		if count > len(pairs) {
			count = len(pairs)
		}

		neighbors[i] = make([]int, count)
		for p := 0; p < count; p++ {
			neighbors[i][p] = pairs[p].idx
		}

		kDistances[i] = pairs[count-1].dist
	}

	return neighbors, kDistances
}
