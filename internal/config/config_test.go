package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corvusscan/postings/internal/index"
)

func TestLoadDefaultsWithNoPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "./data", cfg.Index.Dir)
	assert.Equal(t, 1000, cfg.Index.FlushThreshold)
	assert.Equal(t, "bm25", cfg.Index.ScoringMode)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "index:\n  dir: /srv/idx\n  scoringMode: tfidf\nlogging:\n  level: debug\n  format: text\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/idx", cfg.Index.Dir)
	assert.Equal(t, "tfidf", cfg.Index.ScoringMode)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	// Unset fields keep their defaults.
	assert.Equal(t, 1000, cfg.Index.FlushThreshold)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestLoadMalformedYAMLErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("index: [this is not a mapping"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverridesTakePriority(t *testing.T) {
	t.Setenv("CORVUSSCAN_INDEX_DIR", "/env/dir")
	t.Setenv("CORVUSSCAN_SCORING_MODE", "tfidf")
	t.Setenv("CORVUSSCAN_FLUSH_THRESHOLD", "42")
	t.Setenv("CORVUSSCAN_LOG_LEVEL", "warn")
	t.Setenv("CORVUSSCAN_METRICS_ADDR", ":1234")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/env/dir", cfg.Index.Dir)
	assert.Equal(t, "tfidf", cfg.Index.ScoringMode)
	assert.Equal(t, 42, cfg.Index.FlushThreshold)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, ":1234", cfg.Metrics.Addr)
}

func TestEnvOverrideIgnoresMalformedInt(t *testing.T) {
	t.Setenv("CORVUSSCAN_FLUSH_THRESHOLD", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Index.FlushThreshold)
}

func TestIndexOptionsScoringModeMapping(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Index.ScoringMode = "tfidf"
	opts := cfg.IndexOptions()
	assert.Equal(t, index.ScoringTFIDF, opts.ScoringMode)

	cfg.Index.ScoringMode = "anything-else"
	opts = cfg.IndexOptions()
	assert.Equal(t, index.ScoringBM25, opts.ScoringMode)
}

func TestIndexOptionsZeroFlushThresholdKeepsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Index.FlushThreshold = 0

	defaultOpts := index.DefaultConfig(cfg.Index.Dir)
	opts := cfg.IndexOptions()
	assert.Equal(t, defaultOpts.FlushThreshold, opts.FlushThreshold)
}
