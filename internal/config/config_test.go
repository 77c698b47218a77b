package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, 1536, cfg.Embedding.Dimensions)
	assert.Equal(t, "sentence-boundary", cfg.Chunking.Strategy)
	assert.Equal(t, 5, cfg.LLM.TopK)
	assert.True(t, cfg.Embedding.Cache.Enabled)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
embedding:
  provider: gemini
  model: text-embedding-004
  dimensions: 768
  retryDelay: 2s
chunking:
  strategy: markdown
  chunkSize: 800
  chunkOverlap: 80
llm:
  minScore: 0.7
  fallbackMessage: "No documents matched."
qdrant:
  host: qdrant.internal
  port: 7000
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.Embedding.Provider)
	assert.Equal(t, 768, cfg.Embedding.Dimensions)
	assert.Equal(t, 2*time.Second, cfg.Embedding.RetryDelay.Std())
	assert.Equal(t, "markdown", cfg.Chunking.Strategy)
	assert.Equal(t, 0.7, cfg.LLM.MinScore)
	assert.Equal(t, "No documents matched.", cfg.LLM.FallbackMessage)
	assert.Equal(t, "qdrant.internal", cfg.Qdrant.Host)
	assert.Equal(t, 7000, cfg.Qdrant.Port)

	// Untouched sections keep their defaults.
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	path := writeConfig(t, `
embedding:
  provider: cohere
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cohere")
}

func TestLoadRejectsBadChunking(t *testing.T) {
	path := writeConfig(t, `
chunking:
  chunkSize: 100
  chunkOverlap: 100
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsBadTemperature(t *testing.T) {
	path := writeConfig(t, `
llm:
  temperature: 3.5
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, `
embedding:
  timeout: soon
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("QDRANT_HOST", "qdrant.prod")
	t.Setenv("QDRANT_PORT", "6999")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Embedding.APIKey)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "qdrant.prod", cfg.Qdrant.Host)
	assert.Equal(t, 6999, cfg.Qdrant.Port)
}

func TestNewSplitter(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	splitter, err := cfg.NewSplitter()
	require.NoError(t, err)
	assert.NotNil(t, splitter)
}
