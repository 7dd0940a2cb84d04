// Package vecmath provides the small set of vector operations the analysis
// packages share. Callers guarantee equal lengths; the functions do not check.
package vecmath

import (
	"math"
	"slices"
)

// Dot calculates the dot product of two vectors.
func Dot(a, b []float32) float64 {
	var sum float64

	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}

	return sum
}

// SquaredL2 calculates the squared Euclidean distance between two vectors.
func SquaredL2(a, b []float32) float64 {
	var sum float64

	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}

	return sum
}

// L2 calculates the Euclidean distance between two vectors.
func L2(a, b []float32) float64 {
	return math.Sqrt(SquaredL2(a, b))
}

// Cosine calculates the cosine similarity of two vectors. Zero vectors have
// similarity 0.
func Cosine(a, b []float32) float64 {
	dot := Dot(a, b)

	na := math.Sqrt(Dot(a, a))
	nb := math.Sqrt(Dot(b, b))

	if na == 0 || nb == 0 {
		return 0
	}

	return dot / (na * nb)
}

// NormalizeL2Copy returns an L2-normalized copy of src.
// Returns false if src has zero norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	norm := math.Sqrt(Dot(src, src))
	if norm == 0 {
		return nil, false
	}

	dst := slices.Clone(src)
	inv := float32(1 / norm)

	for i := range dst {
		dst[i] *= inv
	}

	return dst, true
}

// Mean returns the element-wise mean of the given vectors.
func Mean(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}

	dims := len(vectors[0])
	acc := make([]float64, dims)

	for _, v := range vectors {
		for i := range v {
			acc[i] += float64(v[i])
		}
	}

	out := make([]float32, dims)
	for i := range acc {
		out[i] = float32(acc[i] / float64(len(vectors)))
	}

	return out
}
