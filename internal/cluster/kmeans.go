// Package cluster implements the clustering strategies run over success
// vector snapshots: seeded k-means with a silhouette k-sweep and a
// density-based algorithm with an explicit noise label. Both are
// deterministic for a fixed seed and input order.
package cluster

import (
	"math"
	"math/rand"

	"github.com/counselkit/insight-engine/internal/vecmath"
)

const (
	defaultNInit   = 10
	maxLloydIters  = 300
	convergenceEps = 1e-6
)

type kmeansResult struct {
	labels    []int
	centroids [][]float32
	inertia   float64
}

// kMeans runs nInit k-means++ restarts with deterministic seeding and keeps
// the run with the lowest inertia.
func kMeans(vectors [][]float32, k, nInit int, seed int64) kmeansResult {
	if nInit <= 0 {
		nInit = defaultNInit
	}

	best := kmeansResult{inertia: math.Inf(1)}

	for restart := 0; restart < nInit; restart++ {
		rng := rand.New(rand.NewSource(seed + int64(restart)))

		result := lloyd(vectors, k, rng)
		if result.inertia < best.inertia {
			best = result
		}
	}

	return best
}

func lloyd(vectors [][]float32, k int, rng *rand.Rand) kmeansResult {
	centroids := seedCentroids(vectors, k, rng)
	labels := make([]int, len(vectors))

	var inertia float64

	for iter := 0; iter < maxLloydIters; iter++ {
		inertia = 0

		for i, v := range vectors {
			label, dist := nearestCentroid(v, centroids)
			labels[i] = label
			inertia += dist
		}

		next := recomputeCentroids(vectors, labels, k, centroids)

		if centroidShift(centroids, next) < convergenceEps {
			centroids = next

			break
		}

		centroids = next
	}

	return kmeansResult{labels: labels, centroids: centroids, inertia: inertia}
}

// seedCentroids picks initial centroids with k-means++ weighting.
func seedCentroids(vectors [][]float32, k int, rng *rand.Rand) [][]float32 {
	centroids := make([][]float32, 0, k)
	centroids = append(centroids, vectors[rng.Intn(len(vectors))])

	distances := make([]float64, len(vectors))

	for len(centroids) < k {
		var total float64

		for i, v := range vectors {
			d := math.Inf(1)

			for _, c := range centroids {
				if dd := vecmath.SquaredL2(v, c); dd < d {
					d = dd
				}
			}

			distances[i] = d
			total += d
		}

		if total == 0 {
			// All remaining points coincide with a centroid.
			centroids = append(centroids, vectors[rng.Intn(len(vectors))])

			continue
		}

		target := rng.Float64() * total

		var cumulative float64

		picked := len(vectors) - 1

		for i, d := range distances {
			cumulative += d
			if cumulative >= target {
				picked = i

				break
			}
		}

		centroids = append(centroids, vectors[picked])
	}

	return centroids
}

func nearestCentroid(v []float32, centroids [][]float32) (int, float64) {
	best := 0
	bestDist := math.Inf(1)

	for j, c := range centroids {
		if d := vecmath.SquaredL2(v, c); d < bestDist {
			best = j
			bestDist = d
		}
	}

	return best, bestDist
}

// recomputeCentroids averages each cluster's members. An emptied cluster
// keeps its previous centroid.
func recomputeCentroids(vectors [][]float32, labels []int, k int, previous [][]float32) [][]float32 {
	dims := len(vectors[0])
	sums := make([][]float64, k)
	counts := make([]int, k)

	for j := range sums {
		sums[j] = make([]float64, dims)
	}

	for i, v := range vectors {
		j := labels[i]
		counts[j]++

		for d := range v {
			sums[j][d] += float64(v[d])
		}
	}

	next := make([][]float32, k)

	for j := range next {
		if counts[j] == 0 {
			next[j] = previous[j]

			continue
		}

		c := make([]float32, dims)
		for d := range c {
			c[d] = float32(sums[j][d] / float64(counts[j]))
		}

		next[j] = c
	}

	return next
}

func centroidShift(old, next [][]float32) float64 {
	var shift float64

	for j := range old {
		shift += vecmath.SquaredL2(old[j], next[j])
	}

	return shift
}
