package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed thresholds.yaml
var thresholdsYAML []byte

type Config struct {
	Extraction ExtractionConfig
	Database   DatabaseConfig
	MariaDB    MariaDBConfig
	Matching   MatchingConfig
	Uploads    UploadsConfig
}

type ExtractionConfig struct {
	URL     string        // extraction service base URL (defaults to http://localhost:8000)
	Timeout time.Duration // per-call timeout; video processing is slow
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
	EmbeddingDim int    // vector column dimensionality (default 512, ArcFace)
}

type MariaDBConfig struct {
	DSN string // MariaDB DSN for the alternative store backend
}

type MatchingConfig struct {
	LiveThreshold      float64 // live-vs-document match threshold
	DuplicateThreshold float64 // population duplicate-search threshold
}

type UploadsConfig struct {
	Dir string // directory for stored document images and video captures
}

// thresholdsFile mirrors the embedded thresholds.yaml.
type thresholdsFile struct {
	Thresholds struct {
		LiveMatch       float64 `yaml:"live_match"`
		DuplicateSearch float64 `yaml:"duplicate_search"`
	} `yaml:"thresholds"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envDuration reads an environment variable as a number of seconds.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return defaultVal
}

// envDefault reads an environment variable with a fallback.
func envDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func Load() *Config {
	var defaults thresholdsFile
	if err := yaml.Unmarshal(thresholdsYAML, &defaults); err != nil {
		// Embedded file, malformed only if the build itself is broken.
		panic("failed to unmarshal embedded thresholds.yaml: " + err.Error())
	}

	return &Config{
		Extraction: ExtractionConfig{
			URL:     os.Getenv("EXTRACTION_URL"),
			Timeout: envDuration("EXTRACTION_TIMEOUT_SECONDS", 2*time.Minute),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
			EmbeddingDim: envInt("EMBEDDING_DIM", 512),
		},
		MariaDB: MariaDBConfig{
			DSN: os.Getenv("MARIADB_DSN"),
		},
		Matching: MatchingConfig{
			LiveThreshold:      envFloat("MATCH_THRESHOLD_LIVE", defaults.Thresholds.LiveMatch),
			DuplicateThreshold: envFloat("MATCH_THRESHOLD_DUPLICATE", defaults.Thresholds.DuplicateSearch),
		},
		Uploads: UploadsConfig{
			Dir: envDefault("UPLOADS_DIR", "uploads"),
		},
	}
}
