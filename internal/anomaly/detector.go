package anomaly

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/counselkit/insight-engine/internal/core/domain"
	apperrors "github.com/counselkit/insight-engine/internal/core/errors"
	"github.com/counselkit/insight-engine/internal/observability"
)

// Detector defaults.
const (
	DefaultContamination = 0.1
	DefaultSeed          = 42
)

// Store is the slice of the vector store the detector needs.
type Store interface {
	GetAssignments(ctx context.Context, runID string) ([]domain.ClusterAssignment, error)
	GetVectorsByIDs(ctx context.Context, ids []string) ([]domain.EmbeddingVector, error)
	SaveAnomalies(ctx context.Context, records []domain.AnomalyRecord) error
}

// Detector scores a run's vectors for statistical unusualness and records
// the top contamination fraction as anomalies.
type Detector struct {
	store         Store
	contamination float64
	seed          int64
	logger        *zerolog.Logger
}

// NewDetector creates a detector with the given expected contamination
// fraction.
func NewDetector(store Store, contamination float64, seed int64, logger *zerolog.Logger) *Detector {
	if contamination <= 0 || contamination >= 1 {
		contamination = DefaultContamination
	}

	if seed == 0 {
		seed = DefaultSeed
	}

	return &Detector{store: store, contamination: contamination, seed: seed, logger: logger}
}

// Detect scores every vector of the run with the given method and persists
// records for those beyond the contamination cutoff. The underlying
// conversations keep their labels; the records are advisory.
func (d *Detector) Detect(ctx context.Context, runID, method string) ([]domain.AnomalyRecord, error) {
	if method != domain.MethodIsolationForest && method != domain.MethodLOF {
		return nil, fmt.Errorf("%w: unknown anomaly method %q", apperrors.ErrInvalidInput, method)
	}

	assignments, err := d.store.GetAssignments(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load assignments: %w", err)
	}

	if len(assignments) == 0 {
		return nil, fmt.Errorf("%w: run %s has no assignments", apperrors.ErrInsufficientData, runID)
	}

	ids := make([]string, len(assignments))
	for i, a := range assignments {
		ids[i] = a.VectorID
	}

	vectors, err := d.store.GetVectorsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load vectors: %w", err)
	}

	matrix := make([][]float32, len(vectors))
	for i, v := range vectors {
		matrix[i] = v.Vector
	}

	var scores []float64

	switch method {
	case domain.MethodIsolationForest:
		scores = isolationScores(matrix, d.seed)
	case domain.MethodLOF:
		scores = lofScores(matrix)
	}

	records := d.flag(runID, method, vectors, scores)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := d.store.SaveAnomalies(ctx, records); err != nil {
		return nil, fmt.Errorf("persist anomalies: %w", err)
	}

	observability.AnomaliesDetected.WithLabelValues(method).Add(float64(len(records)))
	d.logger.Info().Str("method", method).Int("flagged", len(records)).Int("scored", len(vectors)).Msg("anomaly detection done")

	return records, nil
}

// flag keeps the top contamination fraction of scores, ties broken by vector
// id for a deterministic cutoff.
func (d *Detector) flag(runID, method string, vectors []domain.EmbeddingVector, scores []float64) []domain.AnomalyRecord {
	type scored struct {
		vectorID string
		score    float64
	}

	ranked := make([]scored, len(vectors))
	for i, v := range vectors {
		ranked[i] = scored{v.ID, scores[i]}
	}

	sort.Slice(ranked, func(a, b int) bool {
		if ranked[a].score != ranked[b].score {
			return ranked[a].score > ranked[b].score
		}

		return ranked[a].vectorID < ranked[b].vectorID
	})

	cutoff := int(math.Ceil(d.contamination * float64(len(ranked))))
	if cutoff > len(ranked) {
		cutoff = len(ranked)
	}

	records := make([]domain.AnomalyRecord, cutoff)
	for i := 0; i < cutoff; i++ {
		records[i] = domain.AnomalyRecord{
			VectorID: ranked[i].vectorID,
			RunID:    runID,
			Method:   method,
			Score:    ranked[i].score,
		}
	}

	return records
}
