package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	// Embedded thresholds.yaml supplies the matching defaults.
	cfg := Load()

	if cfg.Matching.LiveThreshold != 0.35 {
		t.Errorf("expected live threshold 0.35, got %v", cfg.Matching.LiveThreshold)
	}
	if cfg.Matching.DuplicateThreshold != 0.6 {
		t.Errorf("expected duplicate threshold 0.6, got %v", cfg.Matching.DuplicateThreshold)
	}
	if cfg.Database.EmbeddingDim != 512 {
		t.Errorf("expected embedding dim 512, got %v", cfg.Database.EmbeddingDim)
	}
	if cfg.Database.MaxOpenConns != 25 || cfg.Database.MaxIdleConns != 5 {
		t.Errorf("unexpected pool defaults: %+v", cfg.Database)
	}
	if cfg.Extraction.Timeout != 2*time.Minute {
		t.Errorf("expected 2m extraction timeout, got %v", cfg.Extraction.Timeout)
	}
	if cfg.Uploads.Dir != "uploads" {
		t.Errorf("expected default uploads dir, got %q", cfg.Uploads.Dir)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("EXTRACTION_URL", "http://extractor:9000")
	t.Setenv("EXTRACTION_TIMEOUT_SECONDS", "30")
	t.Setenv("DATABASE_URL", "postgres://localhost/kyc")
	t.Setenv("EMBEDDING_DIM", "128")
	t.Setenv("MATCH_THRESHOLD_LIVE", "0.5")
	t.Setenv("MATCH_THRESHOLD_DUPLICATE", "0.75")
	t.Setenv("UPLOADS_DIR", "/var/lib/kyc/uploads")

	cfg := Load()

	if cfg.Extraction.URL != "http://extractor:9000" {
		t.Errorf("unexpected extraction URL %q", cfg.Extraction.URL)
	}
	if cfg.Extraction.Timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", cfg.Extraction.Timeout)
	}
	if cfg.Database.URL != "postgres://localhost/kyc" {
		t.Errorf("unexpected database URL %q", cfg.Database.URL)
	}
	if cfg.Database.EmbeddingDim != 128 {
		t.Errorf("expected embedding dim 128, got %v", cfg.Database.EmbeddingDim)
	}
	if cfg.Matching.LiveThreshold != 0.5 || cfg.Matching.DuplicateThreshold != 0.75 {
		t.Errorf("unexpected thresholds: %+v", cfg.Matching)
	}
	if cfg.Uploads.Dir != "/var/lib/kyc/uploads" {
		t.Errorf("unexpected uploads dir %q", cfg.Uploads.Dir)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("EMBEDDING_DIM", "not-a-number")
	t.Setenv("MATCH_THRESHOLD_LIVE", "-1")
	t.Setenv("EXTRACTION_TIMEOUT_SECONDS", "0")

	cfg := Load()

	if cfg.Database.EmbeddingDim != 512 {
		t.Errorf("invalid dim must fall back to 512, got %v", cfg.Database.EmbeddingDim)
	}
	if cfg.Matching.LiveThreshold != 0.35 {
		t.Errorf("negative threshold must fall back to 0.35, got %v", cfg.Matching.LiveThreshold)
	}
	if cfg.Extraction.Timeout != 2*time.Minute {
		t.Errorf("zero timeout must fall back to 2m, got %v", cfg.Extraction.Timeout)
	}
}
