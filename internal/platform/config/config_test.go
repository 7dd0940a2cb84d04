package config

import (
	"os"
	"testing"
)

const (
	testEnvPostgresDSN = "POSTGRES_DSN"
	testPostgresDSN    = "postgres://localhost/test"
)

func setRequiredEnvVars(t *testing.T) {
	t.Helper()

	t.Setenv(testEnvPostgresDSN, testPostgresDSN)
}

func TestLoad_MissingRequired(t *testing.T) {
	os.Unsetenv(testEnvPostgresDSN)

	_, err := Load()
	if err == nil {
		t.Error("expected error for missing required env vars")
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.AppEnv != "local" {
		t.Errorf("AppEnv = %q, want local", cfg.AppEnv)
	}

	if cfg.ChunkMaxTokens != 512 {
		t.Errorf("ChunkMaxTokens = %d, want 512", cfg.ChunkMaxTokens)
	}

	if cfg.EmbedBatchSize != 20 {
		t.Errorf("EmbedBatchSize = %d, want 20", cfg.EmbedBatchSize)
	}

	if cfg.SimilarityThreshold != 0.7 {
		t.Errorf("SimilarityThreshold = %v, want 0.7", cfg.SimilarityThreshold)
	}

	if cfg.ClusterKMin != 2 || cfg.ClusterKMax != 15 {
		t.Errorf("cluster k range = [%d,%d], want [2,15]", cfg.ClusterKMin, cfg.ClusterKMax)
	}

	if cfg.RepresentativeMin != 5 || cfg.RepresentativeMax != 10 {
		t.Errorf("representative bounds = [%d,%d], want [5,10]", cfg.RepresentativeMin, cfg.RepresentativeMax)
	}

	if cfg.AnomalyContamination != 0.1 {
		t.Errorf("AnomalyContamination = %v, want 0.1", cfg.AnomalyContamination)
	}
}

func TestLoad_InvalidBounds(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"k max below k min", "CLUSTER_K_MAX", "1"},
		{"representative max below min", "REPRESENTATIVE_MAX", "2"},
		{"contamination too large", "ANOMALY_CONTAMINATION", "0.9"},
		{"overlap above chunk size", "CHUNK_OVERLAP_TOKENS", "600"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnvVars(t)
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Errorf("expected validation error for %s=%s", tt.key, tt.value)
			}
		})
	}
}
