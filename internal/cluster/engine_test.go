package cluster

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/counselkit/insight-engine/internal/core/domain"
	apperrors "github.com/counselkit/insight-engine/internal/core/errors"
)

type fakeStore struct {
	vectors []domain.EmbeddingVector

	savedRun         *domain.ClusterRun
	savedAssignments []domain.ClusterAssignment
}

func (f *fakeStore) LoadSuccessVectors(_ context.Context) ([]domain.EmbeddingVector, error) {
	return f.vectors, nil
}

func (f *fakeStore) SaveClusterRun(_ context.Context, run domain.ClusterRun, assignments []domain.ClusterAssignment) error {
	f.savedRun = &run
	f.savedAssignments = assignments

	return nil
}

// twoBlobs builds two well-separated 8-dimensional blobs of six points each.
func twoBlobs() []domain.EmbeddingVector {
	var vectors []domain.EmbeddingVector

	appendBlob := func(name string, base float32) {
		for i := 0; i < 6; i++ {
			v := make([]float32, 8)
			for d := range v {
				v[d] = base + float32(i)*0.01 + float32(d)*0.001
			}

			vectors = append(vectors, domain.EmbeddingVector{
				ID:     fmt.Sprintf("%s-%d", name, i),
				Vector: v,
			})
		}
	}

	appendBlob("a", 0)
	appendBlob("b", 10)

	return vectors
}

func testEngine(store *fakeStore, params Params) *Engine {
	logger := zerolog.Nop()

	return NewEngine(store, params, &logger)
}

func TestRunKMeans_TwoBlobsFindK2(t *testing.T) {
	store := &fakeStore{vectors: twoBlobs()}
	engine := testEngine(store, Params{KMin: 2, KMax: 4, MinClusterSize: 2})

	run, err := engine.RunKMeans(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.AlgorithmKMeans, run.Algorithm)
	assert.Equal(t, 2, run.Parameters["k"])
	assert.Greater(t, run.Validity, 0.5, "well-separated blobs should score high silhouette")

	// Every vector assigned, sizes sum to the input count.
	require.Len(t, store.savedAssignments, 12)

	sizes := make(map[int]int)
	for _, a := range store.savedAssignments {
		sizes[a.Label]++
	}

	require.Len(t, sizes, 2)
	assert.Equal(t, 6, sizes[0])
	assert.Equal(t, 6, sizes[1])

	// Blob members stay together.
	labelOf := make(map[string]int)
	for _, a := range store.savedAssignments {
		labelOf[a.VectorID] = a.Label
	}

	for i := 1; i < 6; i++ {
		assert.Equal(t, labelOf["a-0"], labelOf[fmt.Sprintf("a-%d", i)])
		assert.Equal(t, labelOf["b-0"], labelOf[fmt.Sprintf("b-%d", i)])
	}
}

func TestRunKMeans_Deterministic(t *testing.T) {
	first := &fakeStore{vectors: twoBlobs()}
	second := &fakeStore{vectors: twoBlobs()}

	_, err := testEngine(first, Params{KMin: 2, KMax: 4, MinClusterSize: 2}).RunKMeans(context.Background())
	require.NoError(t, err)

	_, err = testEngine(second, Params{KMin: 2, KMax: 4, MinClusterSize: 2}).RunKMeans(context.Background())
	require.NoError(t, err)

	labels := func(assignments []domain.ClusterAssignment) map[string]int {
		m := make(map[string]int)
		for _, a := range assignments {
			m[a.VectorID] = a.Label
		}

		return m
	}

	assert.Equal(t, labels(first.savedAssignments), labels(second.savedAssignments))
	assert.Equal(t, first.savedRun.Validity, second.savedRun.Validity)
}

func TestRunKMeans_InsufficientData(t *testing.T) {
	store := &fakeStore{vectors: twoBlobs()[:5]}
	engine := testEngine(store, Params{KMin: 2, KMax: 4, MinClusterSize: 5})

	_, err := engine.RunKMeans(context.Background())
	require.ErrorIs(t, err, apperrors.ErrInsufficientData)
	assert.Nil(t, store.savedRun, "nothing may be persisted below the data gate")
}

func TestRunKMeans_TinySnapshotClampsBelowKMin(t *testing.T) {
	// Two vectors pass the 2*MinClusterSize gate with MinClusterSize=1, but
	// the sweep upper bound clamps to n-1=1, below KMin.
	store := &fakeStore{vectors: twoBlobs()[:2]}
	engine := testEngine(store, Params{KMin: 2, KMax: 4, MinClusterSize: 1})

	_, err := engine.RunKMeans(context.Background())
	require.ErrorIs(t, err, apperrors.ErrInsufficientData)
	assert.Nil(t, store.savedRun, "nothing may be persisted for an empty sweep")
}

func TestRunDensity_NoiseStaysNoise(t *testing.T) {
	vectors := twoBlobs()

	// One far-away outlier in no dense region.
	outlier := make([]float32, 8)
	for d := range outlier {
		outlier[d] = 100
	}

	vectors = append(vectors, domain.EmbeddingVector{ID: "outlier", Vector: outlier})

	store := &fakeStore{vectors: vectors}
	engine := testEngine(store, Params{MinClusterSize: 2, Epsilon: 1.0, MinSamples: 3})

	run, err := engine.RunDensity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.AlgorithmDensity, run.Algorithm)

	require.Len(t, store.savedAssignments, 13)

	var sawNoise bool

	for _, a := range store.savedAssignments {
		if a.VectorID == "outlier" {
			assert.Equal(t, domain.NoiseLabel, a.Label)

			sawNoise = true
		} else {
			assert.NotEqual(t, domain.NoiseLabel, a.Label, "blob member %s must not be noise", a.VectorID)
		}
	}

	assert.True(t, sawNoise)
	assert.Equal(t, 2, run.Parameters["clusters"])
	assert.Equal(t, 1, run.Parameters["noise"])
}
