package anomaly

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
	assignments []domain.ClusterAssignment
	vectors     []domain.EmbeddingVector
	saved       []domain.AnomalyRecord
}

func (f *fakeStore) GetAssignments(_ context.Context, _ string) ([]domain.ClusterAssignment, error) {
	return f.assignments, nil
}

func (f *fakeStore) GetVectorsByIDs(_ context.Context, _ []string) ([]domain.EmbeddingVector, error) {
	return f.vectors, nil
}

func (f *fakeStore) SaveAnomalies(_ context.Context, records []domain.AnomalyRecord) error {
	f.saved = records

	return nil
}

// clusterWithOutlier builds a tight 19-point cluster plus one far outlier.
func clusterWithOutlier() *fakeStore {
	store := &fakeStore{}

	add := func(id string, base float32) {
		v := make([]float32, 4)
		for d := range v {
			v[d] = base
		}

		store.vectors = append(store.vectors, domain.EmbeddingVector{ID: id, Vector: v})
		store.assignments = append(store.assignments, domain.ClusterAssignment{VectorID: id, RunID: "run-1", Label: 0})
	}

	for i := 0; i < 19; i++ {
		add(fmt.Sprintf("normal-%d", i), float32(i)*0.01)
	}

	add("outlier", 50)

	return store
}

func testDetector(store Store, contamination float64) *Detector {
	logger := zerolog.Nop()

	return NewDetector(store, contamination, DefaultSeed, &logger)
}

func TestDetect_IsolationForestFlagsOutlier(t *testing.T) {
	store := clusterWithOutlier()

	records, err := testDetector(store, 0.05).Detect(context.Background(), "run-1", domain.MethodIsolationForest)
	require.NoError(t, err)

	// 5% of 20 vectors is exactly the one outlier.
	require.Len(t, records, 1)
	assert.Equal(t, "outlier", records[0].VectorID)
	assert.Equal(t, domain.MethodIsolationForest, records[0].Method)
	assert.Equal(t, records, store.saved)
}

func TestDetect_LOFFlagsOutlier(t *testing.T) {
	store := clusterWithOutlier()

	records, err := testDetector(store, 0.05).Detect(context.Background(), "run-1", domain.MethodLOF)
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, "outlier", records[0].VectorID)
	assert.Greater(t, records[0].Score, 1.0, "LOF of an outlier must exceed the inlier baseline")
}

func TestDetect_Deterministic(t *testing.T) {
	first, err := testDetector(clusterWithOutlier(), 0.2).Detect(context.Background(), "run-1", domain.MethodIsolationForest)
	require.NoError(t, err)

	second, err := testDetector(clusterWithOutlier(), 0.2).Detect(context.Background(), "run-1", domain.MethodIsolationForest)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDetect_UnknownMethod(t *testing.T) {
	_, err := testDetector(clusterWithOutlier(), 0.1).Detect(context.Background(), "run-1", "zscore")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestDetect_EmptyRun(t *testing.T) {
	_, err := testDetector(&fakeStore{}, 0.1).Detect(context.Background(), "run-1", domain.MethodLOF)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientData)
}
