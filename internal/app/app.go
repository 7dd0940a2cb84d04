// Package app wires the analysis engine together and exposes its operations.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/counselkit/insight-engine/internal/anomaly"
	"github.com/counselkit/insight-engine/internal/cluster"
	"github.com/counselkit/insight-engine/internal/core/domain"
	"github.com/counselkit/insight-engine/internal/core/embeddings"
	apperrors "github.com/counselkit/insight-engine/internal/core/errors"
	"github.com/counselkit/insight-engine/internal/embed"
	"github.com/counselkit/insight-engine/internal/observability"
	"github.com/counselkit/insight-engine/internal/platform/config"
	"github.com/counselkit/insight-engine/internal/quality"
	"github.com/counselkit/insight-engine/internal/represent"
	"github.com/counselkit/insight-engine/internal/search"
	db "github.com/counselkit/insight-engine/internal/storage"
)

// Engine composes the pipeline stages over one shared database handle.
type Engine struct {
	cfg      *config.Config
	db       *db.DB
	pipeline *embed.Pipeline
	searcher *search.Engine
	cluster  *cluster.Engine
	detector *anomaly.Detector
	logger   *zerolog.Logger
}

// New builds a fully wired engine from configuration. Without an OpenAI key
// the embedding client falls back to the deterministic mock provider.
func New(cfg *config.Config, database *db.DB, logger *zerolog.Logger) *Engine {
	client := embeddings.NewClient(embeddings.Config{
		OpenAIAPIKey:     cfg.OpenAIAPIKey,
		OpenAIModel:      cfg.EmbeddingModel,
		OpenAIDimensions: cfg.EmbeddingDimensions,
		OpenAIRateLimit:  cfg.EmbeddingRateLimit,
	}, logger)

	chunker := embed.NewChunker(cfg.ChunkMaxTokens, cfg.ChunkOverlapTokens)

	pipeline := embed.New(client, chunker, embed.Options{
		BatchSize:      cfg.EmbedBatchSize,
		Workers:        cfg.EmbedWorkers,
		MaxAttempts:    cfg.EmbedMaxAttempts,
		RetryBaseDelay: cfg.EmbedRetryBaseDelay,
	}, logger)

	return &Engine{
		cfg:      cfg,
		db:       database,
		pipeline: pipeline,
		searcher: search.NewEngine(database, pipeline, float64(cfg.SimilarityThreshold), cfg.SearchTopK, logger),
		cluster: cluster.NewEngine(database, cluster.Params{
			KMin:           cfg.ClusterKMin,
			KMax:           cfg.ClusterKMax,
			Seed:           cfg.ClusterRandomSeed,
			MinClusterSize: cfg.ClusterMinSize,
			SweepWorkers:   cfg.ClusterSweepWorkers,
		}, logger),
		detector: anomaly.NewDetector(database, cfg.AnomalyContamination, cfg.ClusterRandomSeed, logger),
		logger:   logger,
	}
}

// IngestConversation stores a labeled transcript and, for successful ones,
// embeds and persists its chunks. Returns the number of vectors stored.
// Chunks that exhausted their retry budget are skipped with a warning; the
// rest of the conversation is kept.
func (e *Engine) IngestConversation(ctx context.Context, rec domain.ConversationRecord) (int, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	if err := e.db.SaveConversation(ctx, rec); err != nil {
		return 0, err
	}

	// Only successful conversations feed the pattern index.
	if !rec.Success {
		return 0, nil
	}

	results, err := e.pipeline.EmbedConversation(ctx, rec.ID, rec.Text)
	if err != nil {
		return 0, err
	}

	vectors := make([]domain.EmbeddingVector, 0, len(results))

	for _, r := range results {
		if r.Err != nil {
			e.logger.Warn().Err(r.Err).
				Str("conversation_id", rec.ID).
				Int("chunk_index", r.Chunk.Index).
				Msg("chunk embedding failed, skipping")

			continue
		}

		vectors = append(vectors, domain.EmbeddingVector{
			ID:             uuid.NewString(),
			ConversationID: rec.ID,
			ChunkIndex:     r.Chunk.Index,
			Text:           r.Chunk.Text,
			Vector:         r.Vector,
			Model:          r.Model,
		})
	}

	if err := e.db.SaveEmbeddings(ctx, vectors); err != nil {
		return 0, err
	}

	return len(vectors), nil
}

// RunClustering clusters the success vectors with the requested algorithm
// and persists the run atomically with its assignments.
func (e *Engine) RunClustering(ctx context.Context, algorithm string) (*domain.ClusterRun, error) {
	switch algorithm {
	case domain.AlgorithmKMeans:
		return e.cluster.RunKMeans(ctx)
	case domain.AlgorithmDensity:
		return e.cluster.RunDensity(ctx)
	default:
		return nil, fmt.Errorf("%w: unknown clustering algorithm %q", apperrors.ErrInvalidInput, algorithm)
	}
}

// SelectRepresentatives scores the clustered vectors of a run and replaces
// the run's representative set with the selection.
func (e *Engine) SelectRepresentatives(ctx context.Context, runID string) ([]domain.Representative, error) {
	candidates, err := e.loadCandidates(ctx, runID)
	if err != nil {
		return nil, err
	}

	reps := represent.Select(runID, candidates, represent.Options{
		Weights: represent.Weights{
			Centroid:    e.cfg.WeightCentroid,
			SuccessRate: e.cfg.WeightSuccessRate,
			Length:      e.cfg.WeightLength,
			Novelty:     e.cfg.WeightNovelty,
		},
		IdealTokens: e.cfg.IdealChunkTokens,
		Min:         e.cfg.RepresentativeMin,
		Max:         e.cfg.RepresentativeMax,
	})

	if err := e.db.ReplaceRepresentatives(ctx, runID, reps); err != nil {
		return nil, err
	}

	observability.RepresentativesSelected.Set(float64(len(reps)))
	e.logger.Info().Str("run_id", runID).Int("selected", len(reps)).Msg("representatives selected")

	return reps, nil
}

// RepresentativeSet returns the stored representatives of a run; an empty
// runID resolves to the most recent run.
func (e *Engine) RepresentativeSet(ctx context.Context, runID string) ([]domain.Representative, error) {
	if runID == "" {
		run, err := e.db.GetLatestClusterRun(ctx)
		if err != nil {
			return nil, err
		}

		runID = run.ID
	}

	return e.db.GetRepresentatives(ctx, runID)
}

// DetectAnomalies flags outlier vectors of a clustering run with the given
// method and persists the flagged records.
func (e *Engine) DetectAnomalies(ctx context.Context, runID, method string) ([]domain.AnomalyRecord, error) {
	return e.detector.Detect(ctx, runID, method)
}

// MapFailure retrieves the successful chunks most similar to a failed
// conversation and derives improvement guidance from each match.
func (e *Engine) MapFailure(ctx context.Context, failureText string, topK int, filter domain.SearchFilter) (search.MapResult, error) {
	if topK <= 0 {
		topK = e.cfg.MapperTopK
	}

	// Retrieve at the broader search width; the mapper narrows to topK after
	// its threshold pass.
	candidateK := e.cfg.SearchTopK
	if candidateK < topK {
		candidateK = topK
	}

	matches, err := e.searcher.Search(ctx, failureText, candidateK, filter)
	if err != nil {
		return search.MapResult{}, err
	}

	return search.MapFailureToSuccesses(failureText, matches, float64(e.cfg.SimilarityThreshold), topK), nil
}

// AnalyzeScript stores a script and scores it against the current success
// patterns. Markers come from the latest run's representatives; with no run
// recorded yet the coverage axis scores zero rather than failing.
func (e *Engine) AnalyzeScript(ctx context.Context, id, title string, phases map[string]string) (*domain.QualityReport, error) {
	if id == "" {
		id = uuid.NewString()
	}

	script := quality.Script{Phases: phases}

	if err := e.db.SaveScript(ctx, domain.Script{
		ID:     id,
		Title:  title,
		Text:   script.Text(),
		Active: true,
	}); err != nil {
		return nil, err
	}

	baseline, err := e.buildBaseline(ctx, id)
	if err != nil {
		return nil, err
	}

	report := quality.Analyze(id, script, baseline, quality.Weights{})

	if err := e.db.SaveQualityReport(ctx, report); err != nil {
		return nil, err
	}

	observability.QualityReports.Inc()
	e.logger.Info().Str("script_id", id).Float64("overall", report.Overall).Msg("script analyzed")

	return &report, nil
}

// RunAnalysisLoop periodically re-clusters, re-selects representatives and
// re-detects anomalies until the context is canceled. A failing cycle is
// logged and the loop keeps going.
func (e *Engine) RunAnalysisLoop(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.AnalysisInterval)
	defer ticker.Stop()

	e.logCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.logCycle(ctx)
		}
	}
}

// RunAnalysisOnce runs a single analysis cycle.
func (e *Engine) RunAnalysisOnce(ctx context.Context) error {
	return e.analysisCycle(ctx)
}

func (e *Engine) logCycle(ctx context.Context) {
	if err := e.analysisCycle(ctx); err != nil {
		if apperrors.Is(err, apperrors.ErrInsufficientData) {
			e.logger.Info().Msg("not enough vectors yet, skipping analysis cycle")

			return
		}

		e.logger.Error().Err(err).Msg("analysis cycle failed")
	}
}

// analysisCycle clusters and then derives representatives and anomalies from
// the fresh run. The two derived stages are independent; a failure in one is
// logged without blocking the other.
func (e *Engine) analysisCycle(ctx context.Context) error {
	run, err := e.RunClustering(ctx, e.cfg.ClusterAlgorithm)
	if err != nil {
		return err
	}

	if _, err := e.SelectRepresentatives(ctx, run.ID); err != nil {
		e.logger.Error().Err(err).Str("run_id", run.ID).Msg("representative selection failed")
	}

	if _, err := e.DetectAnomalies(ctx, run.ID, e.cfg.AnomalyMethod); err != nil {
		e.logger.Error().Err(err).Str("run_id", run.ID).Msg("anomaly detection failed")
	}

	return nil
}

// loadCandidates joins a run's assignments with their vectors and source
// conversation success rates.
func (e *Engine) loadCandidates(ctx context.Context, runID string) ([]represent.Candidate, error) {
	assignments, err := e.db.GetAssignments(ctx, runID)
	if err != nil {
		return nil, err
	}

	if len(assignments) == 0 {
		return nil, nil
	}

	ids := make([]string, len(assignments))
	for i, a := range assignments {
		ids[i] = a.VectorID
	}

	vectors, err := e.db.GetVectorsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	vectorByID := make(map[string]domain.EmbeddingVector, len(vectors))
	conversationIDs := make([]string, 0, len(vectors))

	for _, v := range vectors {
		vectorByID[v.ID] = v
		conversationIDs = append(conversationIDs, v.ConversationID)
	}

	rates, err := e.db.GetSuccessRates(ctx, conversationIDs)
	if err != nil {
		return nil, err
	}

	candidates := make([]represent.Candidate, 0, len(assignments))

	for _, a := range assignments {
		v, ok := vectorByID[a.VectorID]
		if !ok {
			continue
		}

		candidates = append(candidates, represent.Candidate{
			VectorID:    a.VectorID,
			Label:       a.Label,
			Vector:      v.Vector,
			Text:        v.Text,
			TokenCount:  embed.CountTokens(v.Text),
			SuccessRate: float64(rates[v.ConversationID]),
			Distance:    a.Distance,
		})
	}

	return candidates, nil
}

// buildBaseline assembles the quality baseline for one script: markers from
// the latest run's representatives, the curated element taxonomy, prior
// active scripts as the novelty history, and the successful conversation
// count as the sample size.
func (e *Engine) buildBaseline(ctx context.Context, scriptID string) (quality.Baseline, error) {
	baseline := quality.Baseline{Elements: quality.DefaultElements()}

	run, err := e.db.GetLatestClusterRun(ctx)

	switch {
	case err == nil:
		reps, repsErr := e.db.GetRepresentatives(ctx, run.ID)
		if repsErr != nil {
			return quality.Baseline{}, repsErr
		}

		baseline.Markers = quality.MarkersFromRepresentatives(reps)
	case apperrors.Is(err, apperrors.ErrNotFound):
		e.logger.Warn().Msg("no clustering run yet, scoring without success markers")
	default:
		return quality.Baseline{}, err
	}

	priors, err := e.db.ListActiveScripts(ctx, scriptID)
	if err != nil {
		return quality.Baseline{}, err
	}

	for _, s := range priors {
		baseline.PriorScripts = append(baseline.PriorScripts, s.Text)
	}

	sampleSize, err := e.db.CountConversations(ctx, true)
	if err != nil {
		return quality.Baseline{}, err
	}

	baseline.SampleSize = sampleSize

	return baseline, nil
}
