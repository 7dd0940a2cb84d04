package vecmath

import (
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSquaredL2(t *testing.T) {
	if got := SquaredL2([]float32{0, 0}, []float32{3, 4}); got != 25 {
		t.Errorf("SquaredL2() = %v, want 25", got)
	}

	if got := L2([]float32{0, 0}, []float32{3, 4}); got != 5 {
		t.Errorf("L2() = %v, want 5", got)
	}
}

func TestNormalizeL2Copy(t *testing.T) {
	v, ok := NormalizeL2Copy([]float32{3, 4})
	if !ok {
		t.Fatal("NormalizeL2Copy() failed on non-zero vector")
	}

	if norm := math.Sqrt(Dot(v, v)); math.Abs(norm-1) > 1e-6 {
		t.Errorf("norm after normalize = %v, want 1", norm)
	}

	if _, ok := NormalizeL2Copy([]float32{0, 0}); ok {
		t.Error("NormalizeL2Copy() must fail on zero vector")
	}
}

func TestMean(t *testing.T) {
	got := Mean([][]float32{{1, 2}, {3, 4}})
	if got[0] != 2 || got[1] != 3 {
		t.Errorf("Mean() = %v, want [2 3]", got)
	}

	if Mean(nil) != nil {
		t.Error("Mean(nil) must be nil")
	}
}
