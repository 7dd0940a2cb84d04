package cluster

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/counselkit/insight-engine/internal/core/domain"
	apperrors "github.com/counselkit/insight-engine/internal/core/errors"
	"github.com/counselkit/insight-engine/internal/observability"
	"github.com/counselkit/insight-engine/internal/vecmath"
)

// Engine defaults.
const (
	DefaultKMin           = 2
	DefaultKMax           = 15
	DefaultSeed           = 42
	DefaultMinClusterSize = 5
	DefaultSweepWorkers   = 4
)

// Store is the slice of the vector store the engine needs.
type Store interface {
	LoadSuccessVectors(ctx context.Context) ([]domain.EmbeddingVector, error)
	SaveClusterRun(ctx context.Context, run domain.ClusterRun, assignments []domain.ClusterAssignment) error
}

// Params configures both clustering strategies.
type Params struct {
	KMin           int
	KMax           int
	NInit          int
	Seed           int64
	MinClusterSize int
	Epsilon        float64
	MinSamples     int
	SweepWorkers   int
}

func (p Params) withDefaults() Params {
	if p.KMin < 2 {
		p.KMin = DefaultKMin
	}

	if p.KMax < p.KMin {
		p.KMax = DefaultKMax
	}

	if p.NInit <= 0 {
		p.NInit = defaultNInit
	}

	if p.Seed == 0 {
		p.Seed = DefaultSeed
	}

	if p.MinClusterSize <= 0 {
		p.MinClusterSize = DefaultMinClusterSize
	}

	if p.Epsilon <= 0 {
		p.Epsilon = DefaultEpsilon
	}

	if p.MinSamples <= 0 {
		p.MinSamples = DefaultMinSamples
	}

	if p.SweepWorkers <= 0 {
		p.SweepWorkers = DefaultSweepWorkers
	}

	return p
}

// Engine runs clustering over a snapshot of success vectors and persists the
// result atomically.
type Engine struct {
	store  Store
	params Params
	logger *zerolog.Logger
}

// NewEngine creates a clustering engine.
func NewEngine(store Store, params Params, logger *zerolog.Logger) *Engine {
	return &Engine{store: store, params: params.withDefaults(), logger: logger}
}

type sweepResult struct {
	k      int
	score  float64
	result kmeansResult
}

// RunKMeans sweeps k over the configured range, scores each candidate
// clustering by silhouette and persists the winner. Ties go to the smaller k.
// The sweep parallelizes across k but the outcome is independent of
// scheduling: every k is seeded independently and selection happens after
// all candidates are in.
func (e *Engine) RunKMeans(ctx context.Context) (*domain.ClusterRun, error) {
	vectors, matrix, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	kMax := e.params.KMax
	if kMax > len(matrix)-1 {
		kMax = len(matrix) - 1
	}

	// A tiny snapshot can clamp the sweep below its lower bound.
	if kMax < e.params.KMin {
		return nil, fmt.Errorf("%w: have %d vectors, need at least %d clusters", apperrors.ErrInsufficientData, len(matrix), e.params.KMin)
	}

	candidates := make([]sweepResult, kMax-e.params.KMin+1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.params.SweepWorkers)

	for k := e.params.KMin; k <= kMax; k++ {
		idx := k - e.params.KMin

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			result := kMeans(matrix, k, e.params.NInit, e.params.Seed)
			candidates[idx] = sweepResult{k: k, score: silhouette(matrix, result.labels), result: result}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("k-sweep: %w", err)
	}

	best := candidates[0]
	scoresByK := make(map[string]float64, len(candidates))

	for _, c := range candidates {
		scoresByK[fmt.Sprintf("%d", c.k)] = c.score

		if c.score > best.score {
			best = c
		}
	}

	run := domain.ClusterRun{
		ID:        uuid.NewString(),
		Algorithm: domain.AlgorithmKMeans,
		Parameters: map[string]any{
			"k":           best.k,
			"k_min":       e.params.KMin,
			"k_max":       kMax,
			"n_init":      e.params.NInit,
			"seed":        e.params.Seed,
			"inertia":     best.result.inertia,
			"scores_by_k": scoresByK,
		},
		Validity:  best.score,
		CreatedAt: time.Now().UTC(),
	}

	assignments := make([]domain.ClusterAssignment, len(vectors))
	for i, v := range vectors {
		label := best.result.labels[i]
		assignments[i] = domain.ClusterAssignment{
			VectorID: v.ID,
			RunID:    run.ID,
			Label:    label,
			Distance: vecmath.L2(matrix[i], best.result.centroids[label]),
		}
	}

	if err := e.persist(ctx, run, assignments, start); err != nil {
		return nil, err
	}

	e.logger.Info().Int("k", best.k).Float64("silhouette", best.score).Int("vectors", len(vectors)).Msg("kmeans run complete")

	return &run, nil
}

// RunDensity clusters without a fixed k. The minimum cluster size scales with
// the snapshot (a tenth of it, floored at the configured minimum); vectors in
// no dense region keep the noise label.
func (e *Engine) RunDensity(ctx context.Context) (*domain.ClusterRun, error) {
	vectors, matrix, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	minClusterSize := e.params.MinClusterSize
	if scaled := len(matrix) / 10; scaled > minClusterSize {
		minClusterSize = scaled
	}

	labels := densityScan(matrix, e.params.Epsilon, e.params.MinSamples, minClusterSize)

	clusterCount, noiseCount := summarize(labels)

	run := domain.ClusterRun{
		ID:        uuid.NewString(),
		Algorithm: domain.AlgorithmDensity,
		Parameters: map[string]any{
			"epsilon":          e.params.Epsilon,
			"min_samples":      e.params.MinSamples,
			"min_cluster_size": minClusterSize,
			"clusters":         clusterCount,
			"noise":            noiseCount,
		},
		Validity:  densityValidity(matrix, labels, clusterCount),
		CreatedAt: time.Now().UTC(),
	}

	centroids := clusterCentroids(matrix, labels, clusterCount)

	assignments := make([]domain.ClusterAssignment, len(vectors))
	for i, v := range vectors {
		a := domain.ClusterAssignment{VectorID: v.ID, RunID: run.ID, Label: labels[i]}
		if labels[i] != domain.NoiseLabel {
			a.Distance = vecmath.L2(matrix[i], centroids[labels[i]])
		}

		assignments[i] = a
	}

	if err := e.persist(ctx, run, assignments, start); err != nil {
		return nil, err
	}

	e.logger.Info().Int("clusters", clusterCount).Int("noise", noiseCount).Int("vectors", len(vectors)).Msg("density run complete")

	return &run, nil
}

// snapshot loads the success vectors and enforces the minimum data gate.
func (e *Engine) snapshot(ctx context.Context) ([]domain.EmbeddingVector, [][]float32, error) {
	vectors, err := e.store.LoadSuccessVectors(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load snapshot: %w", err)
	}

	if required := 2 * e.params.MinClusterSize; len(vectors) < required {
		return nil, nil, fmt.Errorf("%w: have %d vectors, need %d", apperrors.ErrInsufficientData, len(vectors), required)
	}

	matrix := make([][]float32, len(vectors))
	for i, v := range vectors {
		matrix[i] = v.Vector
	}

	return vectors, matrix, nil
}

func (e *Engine) persist(ctx context.Context, run domain.ClusterRun, assignments []domain.ClusterAssignment, start time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := e.store.SaveClusterRun(ctx, run, assignments); err != nil {
		return fmt.Errorf("persist cluster run: %w", err)
	}

	observability.ClusterRunDuration.WithLabelValues(run.Algorithm).Observe(time.Since(start).Seconds())
	observability.ClusterRunVectors.Set(float64(len(assignments)))

	return nil
}

// densityValidity computes silhouette over the clustered subset only; noise
// has no cluster to be coherent with.
func densityValidity(matrix [][]float32, labels []int, clusterCount int) float64 {
	if clusterCount < 2 {
		return 0
	}

	var (
		subset    [][]float32
		subLabels []int
	)

	for i, l := range labels {
		if l == domain.NoiseLabel {
			continue
		}

		subset = append(subset, matrix[i])
		subLabels = append(subLabels, l)
	}

	return silhouette(subset, subLabels)
}

func summarize(labels []int) (clusters, noise int) {
	maxLabel := -1

	for _, l := range labels {
		if l == domain.NoiseLabel {
			noise++

			continue
		}

		if l > maxLabel {
			maxLabel = l
		}
	}

	return maxLabel + 1, noise
}

func clusterCentroids(matrix [][]float32, labels []int, clusterCount int) [][]float32 {
	if clusterCount == 0 {
		return nil
	}

	groups := make([][][]float32, clusterCount)

	for i, l := range labels {
		if l == domain.NoiseLabel {
			continue
		}

		groups[l] = append(groups[l], matrix[i])
	}

	centroids := make([][]float32, clusterCount)
	for i, g := range groups {
		centroids[i] = vecmath.Mean(g)
	}

	return centroids
}
