package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 1200, cfg.Index.ChunkSize)
	assert.Equal(t, 50, cfg.Index.ChunkOverlap)
	assert.Equal(t, "webpage_rag", cfg.Index.Collection)
	assert.Equal(t, 40, cfg.Review.K)
	assert.Equal(t, 60, cfg.Review.SynthesisK)
	assert.Equal(t, 25, cfg.Review.MaxIterations)
	assert.Equal(t, 20*time.Minute, cfg.Review.MaxDuration)
	assert.Equal(t, 150, cfg.Review.MaxActions)
	assert.Equal(t, 50, cfg.Capture.MinTextLength)
	assert.Equal(t, "https://www.google.com", cfg.Browser.SearchURL)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "research.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
browser:
  headless: true
review:
  max_iterations: 5
  max_duration: 90s
index:
  chunk_size: 800
`), 0o600))
	t.Setenv("RESEARCH_REVIEW_K", "12")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 5, cfg.Review.MaxIterations)
	assert.Equal(t, 90*time.Second, cfg.Review.MaxDuration)
	assert.Equal(t, 800, cfg.Index.ChunkSize)
	assert.Equal(t, 12, cfg.Review.K)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Config{}
	cfg.Index.ChunkSize = 100
	cfg.Index.ChunkOverlap = 100
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_overlap")
	assert.Contains(t, err.Error(), "search_url")
}
