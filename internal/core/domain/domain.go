// Package domain defines the core entities of the insight engine: labeled
// conversations, their embedded chunks, clustering runs over the success
// vector space, and the artifacts derived from them.
//
// All persisted entities are immutable after creation. Re-embedding a chunk
// produces a new EmbeddingVector row; a new clustering run produces a new
// ClusterRun with its own assignments and representatives. Old runs remain
// queryable by id.
package domain

import "time"

// NoiseLabel marks vectors a density-based run left unassigned.
const NoiseLabel = -1

// Clustering algorithm names.
const (
	AlgorithmKMeans  = "kmeans"
	AlgorithmDensity = "density"
)

// Anomaly detection method names.
const (
	MethodIsolationForest = "isolation_forest"
	MethodLOF             = "lof"
)

// ConversationRecord is a finalized, labeled transcript received from the
// transcription subsystem. Immutable once labeled.
type ConversationRecord struct {
	ID          string
	Text        string
	Success     bool
	Counselor   string
	SuccessRate float32
	Timestamp   time.Time
}

// TextChunk is a bounded slice of a conversation sized to the embedding
// model's input limit.
type TextChunk struct {
	ConversationID string
	Index          int
	TokenCount     int
	Text           string
}

// EmbeddingVector is one embedded chunk. Bytes never change after creation;
// re-embedding inserts a new row.
type EmbeddingVector struct {
	ID             string
	ConversationID string
	ChunkIndex     int
	Text           string
	Vector         []float32
	Model          string
	CreatedAt      time.Time
}

// ClusterRun is one immutable execution of a clustering algorithm over a
// snapshot of success vectors.
type ClusterRun struct {
	ID         string
	Algorithm  string
	Parameters map[string]any
	Validity   float64
	CreatedAt  time.Time
}

// ClusterAssignment maps one vector to its cluster within a run.
// Label is NoiseLabel for unassigned vectors of a density-based run.
type ClusterAssignment struct {
	VectorID string
	RunID    string
	Label    int
	Distance float64
}

// ScoreBreakdown carries the components of a representative's composite score.
type ScoreBreakdown struct {
	Centroid    float64
	SuccessRate float64
	Length      float64
	Novelty     float64
	Total       float64
}

// Representative is a selected exemplar standing in for a cluster's pattern.
type Representative struct {
	RunID    string
	Label    int
	VectorID string
	Text     string
	Score    ScoreBreakdown
	Primary  bool
}

// AnomalyRecord flags a statistically unusual success example. Advisory only:
// it never changes the underlying conversation's label.
type AnomalyRecord struct {
	VectorID string
	RunID    string
	Method   string
	Score    float64
}

// QualityReport scores a generated script against the current evidence base.
type QualityReport struct {
	ScriptID        string
	Coverage        float64
	Novelty         float64
	SuccessMatching float64
	Reliability     float64
	Overall         float64

	CoveredMarkers  []string
	MissingMarkers  []string
	UniqueElements  []string
	MatchedElements []string
	MissingElements []string
}

// Script is a generated counseling script. Prior scripts form the history
// that quality analysis scores novelty against.
type Script struct {
	ID        string
	Title     string
	Text      string
	Active    bool
	CreatedAt time.Time
}

// SearchMatch is one ranked result of a similarity query.
type SearchMatch struct {
	VectorID       string
	ConversationID string
	Text           string
	Score          float64
	Counselor      string
	SuccessRate    float32
	CreatedAt      time.Time
}
