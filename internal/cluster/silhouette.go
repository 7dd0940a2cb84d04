package cluster

import "github.com/counselkit/insight-engine/internal/vecmath"

// silhouette computes the mean silhouette coefficient over all samples using
// Euclidean distance. Samples in singleton clusters contribute 0. Returns 0
// when fewer than two distinct clusters exist.
func silhouette(vectors [][]float32, labels []int) float64 {
	members := make(map[int][]int)
	for i, l := range labels {
		members[l] = append(members[l], i)
	}

	if len(members) < 2 {
		return 0
	}

	var total float64

	for i, v := range vectors {
		own := members[labels[i]]
		if len(own) == 1 {
			continue
		}

		a := meanDistance(v, vectors, own, i)
		b := nearestOtherCluster(v, vectors, members, labels[i])

		if max := maxOf(a, b); max > 0 {
			total += (b - a) / max
		}
	}

	return total / float64(len(vectors))
}

func meanDistance(v []float32, vectors [][]float32, indices []int, self int) float64 {
	var sum float64

	count := 0

	for _, idx := range indices {
		if idx == self {
			continue
		}

		sum += vecmath.L2(v, vectors[idx])
		count++
	}

	if count == 0 {
		return 0
	}

	return sum / float64(count)
}

func nearestOtherCluster(v []float32, vectors [][]float32, members map[int][]int, ownLabel int) float64 {
	best := -1.0

	for label, indices := range members {
		if label == ownLabel {
			continue
		}

		d := meanDistance(v, vectors, indices, -1)
		if best < 0 || d < best {
			best = d
		}
	}

	return best
}

func maxOf(a, b float64) float64 {
	if a > b {
		return a
	}

	return b
}
