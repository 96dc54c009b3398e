// Package config loads and validates index configuration from a YAML
// file, with environment-variable overrides for the settings an operator
// most often needs to change per-deployment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"corvusscan/postings/internal/index"
)

// Config is the top-level configuration for a corvusscan/postings index
// process: where it stores segments, how eagerly it flushes, how it
// scores, and where it exposes metrics.
type Config struct {
	Index   IndexConfig   `yaml:"index"`
	Limits  LimitsConfig  `yaml:"limits"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// IndexConfig controls where segments live and how often they're cut.
type IndexConfig struct {
	Dir            string `yaml:"dir"`
	FlushThreshold int    `yaml:"flushThreshold"`
	ScoringMode    string `yaml:"scoringMode"` // "bm25" or "tfidf"
}

// LimitsConfig bounds per-query scratch allocation.
type LimitsConfig struct {
	MaxPosition uint32 `yaml:"maxPosition"`
}

// LoggingConfig controls slog's level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
}

// MetricsConfig controls the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Load reads a YAML config file (if path is non-empty) layered over
// defaults, then applies CORVUSSCAN_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Index: IndexConfig{
			Dir:            "./data",
			FlushThreshold: 1000,
			ScoringMode:    "bm25",
		},
		Limits: LimitsConfig{
			MaxPosition: 65535,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CORVUSSCAN_INDEX_DIR"); v != "" {
		cfg.Index.Dir = v
	}
	if v := os.Getenv("CORVUSSCAN_FLUSH_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Index.FlushThreshold = n
		}
	}
	if v := os.Getenv("CORVUSSCAN_SCORING_MODE"); v != "" {
		cfg.Index.ScoringMode = v
	}
	if v := os.Getenv("CORVUSSCAN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CORVUSSCAN_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
}

// IndexOptions translates this configuration into an index.Config against
// dir, picking the scoring mode the YAML named.
func (c *Config) IndexOptions() index.Config {
	opts := index.DefaultConfig(c.Index.Dir)
	if c.Index.FlushThreshold > 0 {
		opts.FlushThreshold = c.Index.FlushThreshold
	}
	switch c.Index.ScoringMode {
	case "tfidf":
		opts.ScoringMode = index.ScoringTFIDF
	default:
		opts.ScoringMode = index.ScoringBM25
	}
	return opts
}
