// Package config loads engine configuration from the environment.
// A local .env file is honored when present.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"local"`
	PostgresDSN string `env:"POSTGRES_DSN,required"`
	MetricsPort int    `env:"METRICS_PORT" envDefault:"8080"`

	// Database pool
	DBMaxConnections    int32         `env:"DB_MAX_CONNECTIONS" envDefault:"10"`
	DBMinConnections    int32         `env:"DB_MIN_CONNECTIONS" envDefault:"2"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"5m"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBHealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"30s"`

	// Embedding provider
	OpenAIAPIKey        string        `env:"OPENAI_API_KEY"`
	EmbeddingModel      string        `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	EmbeddingDimensions int           `env:"EMBEDDING_DIMENSIONS" envDefault:"1536"`
	EmbeddingRateLimit  int           `env:"EMBEDDING_RATE_LIMIT_RPS" envDefault:"5"`
	ChunkMaxTokens      int           `env:"CHUNK_MAX_TOKENS" envDefault:"512"`
	ChunkOverlapTokens  int           `env:"CHUNK_OVERLAP_TOKENS" envDefault:"50"`
	EmbedBatchSize      int           `env:"EMBED_BATCH_SIZE" envDefault:"20"`
	EmbedWorkers        int           `env:"EMBED_WORKERS" envDefault:"4"`
	EmbedMaxAttempts    int           `env:"EMBED_MAX_ATTEMPTS" envDefault:"3"`
	EmbedRetryBaseDelay time.Duration `env:"EMBED_RETRY_BASE_DELAY" envDefault:"500ms"`

	// Similarity search
	SimilarityThreshold float32 `env:"SIMILARITY_THRESHOLD" envDefault:"0.7"`
	SearchTopK          int     `env:"SEARCH_TOP_K" envDefault:"10"`
	MapperTopK          int     `env:"MAPPER_TOP_K" envDefault:"5"`

	// Clustering
	ClusterAlgorithm    string `env:"CLUSTER_ALGORITHM" envDefault:"kmeans"`
	ClusterKMin         int    `env:"CLUSTER_K_MIN" envDefault:"2"`
	ClusterKMax         int    `env:"CLUSTER_K_MAX" envDefault:"15"`
	ClusterMinSize      int    `env:"CLUSTER_MIN_SIZE" envDefault:"5"`
	ClusterRandomSeed   int64  `env:"CLUSTER_RANDOM_SEED" envDefault:"42"`
	ClusterSweepWorkers int    `env:"CLUSTER_SWEEP_WORKERS" envDefault:"4"`

	// Representative selection
	RepresentativeMin  int     `env:"REPRESENTATIVE_MIN" envDefault:"5"`
	RepresentativeMax  int     `env:"REPRESENTATIVE_MAX" envDefault:"10"`
	IdealChunkTokens   int     `env:"IDEAL_CHUNK_TOKENS" envDefault:"300"`
	WeightCentroid     float64 `env:"WEIGHT_CENTROID" envDefault:"0.3"`
	WeightSuccessRate  float64 `env:"WEIGHT_SUCCESS_RATE" envDefault:"0.3"`
	WeightLength       float64 `env:"WEIGHT_LENGTH" envDefault:"0.2"`
	WeightNovelty      float64 `env:"WEIGHT_NOVELTY" envDefault:"0.2"`

	// Anomaly detection
	AnomalyMethod        string  `env:"ANOMALY_METHOD" envDefault:"isolation_forest"`
	AnomalyContamination float64 `env:"ANOMALY_CONTAMINATION" envDefault:"0.1"`

	// Analysis worker
	AnalysisInterval time.Duration `env:"ANALYSIS_INTERVAL" envDefault:"6h"`
}

func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.ClusterKMin < 2 {
		return fmt.Errorf("CLUSTER_K_MIN must be >= 2, got %d", c.ClusterKMin)
	}

	if c.ClusterKMax < c.ClusterKMin {
		return fmt.Errorf("CLUSTER_K_MAX %d below CLUSTER_K_MIN %d", c.ClusterKMax, c.ClusterKMin)
	}

	if c.RepresentativeMax < c.RepresentativeMin {
		return fmt.Errorf("REPRESENTATIVE_MAX %d below REPRESENTATIVE_MIN %d", c.RepresentativeMax, c.RepresentativeMin)
	}

	if c.AnomalyContamination <= 0 || c.AnomalyContamination >= 0.5 {
		return fmt.Errorf("ANOMALY_CONTAMINATION must be in (0, 0.5), got %.2f", c.AnomalyContamination)
	}

	if c.ChunkOverlapTokens >= c.ChunkMaxTokens {
		return fmt.Errorf("CHUNK_OVERLAP_TOKENS %d must be below CHUNK_MAX_TOKENS %d", c.ChunkOverlapTokens, c.ChunkMaxTokens)
	}

	return nil
}
