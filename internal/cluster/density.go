package cluster

import (
	"github.com/counselkit/insight-engine/internal/core/domain"
	"github.com/counselkit/insight-engine/internal/vecmath"
)

// Density defaults.
const (
	DefaultEpsilon    = 0.5
	DefaultMinSamples = 3
)

// densityScan runs a DBSCAN-style pass: points with at least minSamples
// neighbors within epsilon seed clusters, reachable points join them, the
// rest is noise. Clusters smaller than minClusterSize are dissolved into
// noise. Deterministic given input order.
func densityScan(vectors [][]float32, epsilon float64, minSamples, minClusterSize int) []int {
	n := len(vectors)
	labels := make([]int, n)

	for i := range labels {
		labels[i] = domain.NoiseLabel
	}

	epsSq := epsilon * epsilon
	visited := make([]bool, n)
	nextLabel := 0

	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}

		visited[i] = true

		neighbors := regionQuery(vectors, i, epsSq)
		if len(neighbors) < minSamples {
			continue
		}

		expandCluster(vectors, labels, visited, i, neighbors, nextLabel, epsSq, minSamples)
		nextLabel++
	}

	dissolveSmallClusters(labels, nextLabel, minClusterSize)

	return labels
}

func expandCluster(vectors [][]float32, labels []int, visited []bool, point int, neighbors []int, label int, epsSq float64, minSamples int) {
	labels[point] = label

	// Queue order follows index order, keeping expansion deterministic.
	for idx := 0; idx < len(neighbors); idx++ {
		p := neighbors[idx]

		if labels[p] == domain.NoiseLabel {
			labels[p] = label
		}

		if visited[p] {
			continue
		}

		visited[p] = true

		reachable := regionQuery(vectors, p, epsSq)
		if len(reachable) >= minSamples {
			neighbors = append(neighbors, reachable...)
		}
	}
}

func regionQuery(vectors [][]float32, point int, epsSq float64) []int {
	var neighbors []int

	for i, v := range vectors {
		if i == point {
			continue
		}

		if vecmath.SquaredL2(vectors[point], v) <= epsSq {
			neighbors = append(neighbors, i)
		}
	}

	return neighbors
}

// dissolveSmallClusters relabels undersized clusters as noise and compacts
// the remaining labels to a dense 0..m-1 range.
func dissolveSmallClusters(labels []int, labelCount, minClusterSize int) {
	sizes := make([]int, labelCount)

	for _, l := range labels {
		if l != domain.NoiseLabel {
			sizes[l]++
		}
	}

	remap := make([]int, labelCount)
	next := 0

	for l, size := range sizes {
		if size < minClusterSize {
			remap[l] = domain.NoiseLabel
		} else {
			remap[l] = next
			next++
		}
	}

	for i, l := range labels {
		if l != domain.NoiseLabel {
			labels[i] = remap[l]
		}
	}
}
