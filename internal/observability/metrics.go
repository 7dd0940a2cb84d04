// Package observability exposes prometheus metrics for the analysis engine.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChunksEmbedded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insight_chunks_embedded_total",
		Help: "The total number of chunks embedded",
	}, []string{"status"})

	EmbeddingRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "insight_embedding_request_duration_seconds",
		Help:    "Duration of embedding provider requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	EmbeddingRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "insight_embedding_retries_total",
		Help: "The total number of embedding retry attempts",
	})

	SearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "insight_search_duration_seconds",
		Help:    "Duration of similarity search queries",
		Buckets: prometheus.DefBuckets,
	})

	ClusterRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "insight_cluster_run_duration_seconds",
		Help:    "Duration of clustering runs",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	}, []string{"algorithm"})

	ClusterRunVectors = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "insight_cluster_run_vectors",
		Help: "Number of vectors in the most recent clustering run",
	})

	RepresentativesSelected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "insight_representatives_selected",
		Help: "Number of representatives selected in the most recent run",
	})

	AnomaliesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insight_anomalies_detected_total",
		Help: "The total number of anomalous success examples flagged",
	}, []string{"method"})

	QualityReports = promauto.NewCounter(prometheus.CounterOpts{
		Name: "insight_quality_reports_total",
		Help: "The total number of script quality reports produced",
	})
)
