// Package config loads and validates the service configuration from a
// YAML file plus environment overrides. Provider tags and chunking
// strategies are rejected here, at load time, not when first used.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/goldarch/knowledge-engine/internal/chunker"
	"github.com/goldarch/knowledge-engine/internal/embedding"
)

// Duration wraps time.Duration so YAML values like "30s" parse.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// EmbeddingConfig tunes the embedding client.
type EmbeddingConfig struct {
	Provider      string   `yaml:"provider"`
	Model         string   `yaml:"model"`
	Dimensions    int      `yaml:"dimensions"`
	BatchSize     int      `yaml:"batchSize"`
	MaxParallel   int      `yaml:"maxParallel"`
	RetryAttempts int      `yaml:"retryAttempts"`
	RetryDelay    Duration `yaml:"retryDelay"`
	Timeout       Duration `yaml:"timeout"`
	APIKey        string   `yaml:"-"`
	BaseURL       string   `yaml:"baseURL"`

	Cache CacheConfig `yaml:"cache"`
}

// CacheConfig controls the embedding cache.
type CacheConfig struct {
	Enabled bool     `yaml:"enabled"`
	MaxSize int      `yaml:"maxSize"`
	TTL     Duration `yaml:"ttl"`
}

// LLMConfig tunes generation and the answer policy.
type LLMConfig struct {
	Provider                  string   `yaml:"provider"`
	Model                     string   `yaml:"model"`
	Temperature               float64  `yaml:"temperature"`
	MaxTokens                 int64    `yaml:"maxTokens"`
	TopK                      int      `yaml:"topK"`
	MinScore                  float64  `yaml:"minScore"`
	ContextWindow             int      `yaml:"contextWindow"`
	IncludeCitations          bool     `yaml:"includeCitations"`
	FallbackMessage           string   `yaml:"fallbackMessage"`
	EnableConversationHistory bool     `yaml:"enableConversationHistory"`
	MaxHistoryLength          int      `yaml:"maxHistoryLength"`
	RetryAttempts             uint64   `yaml:"retryAttempts"`
	RetryDelay                Duration `yaml:"retryDelay"`
	Timeout                   Duration `yaml:"timeout"`
	APIKey                    string   `yaml:"-"`
	BaseURL                   string   `yaml:"baseURL"`
}

// ChunkingConfig tunes the splitter.
type ChunkingConfig struct {
	Strategy     string `yaml:"strategy"`
	ChunkSize    int    `yaml:"chunkSize"`
	ChunkOverlap int    `yaml:"chunkOverlap"`
	MinChunkSize int    `yaml:"minChunkSize"`
}

// QdrantConfig locates the vector database.
type QdrantConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Config is the full service configuration.
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider:      string(embedding.ProviderOpenAI),
			Model:         "text-embedding-3-small",
			Dimensions:    1536,
			BatchSize:     100,
			MaxParallel:   5,
			RetryAttempts: 3,
			RetryDelay:    Duration(time.Second),
			Timeout:       Duration(30 * time.Second),
			Cache: CacheConfig{
				Enabled: true,
				MaxSize: 10000,
				TTL:     Duration(24 * time.Hour),
			},
		},
		LLM: LLMConfig{
			Provider:         string(embedding.ProviderOpenAI),
			Model:            "gpt-4o",
			Temperature:      0.2,
			MaxTokens:        1024,
			TopK:             5,
			MinScore:         0.6,
			ContextWindow:    4000,
			IncludeCitations: true,

			EnableConversationHistory: true,
			MaxHistoryLength:          10,
			RetryAttempts:             3,
			RetryDelay:                Duration(time.Second),
			Timeout:                   Duration(60 * time.Second),
		},
		Chunking: ChunkingConfig{
			Strategy:     string(chunker.StrategySentence),
			ChunkSize:    1000,
			ChunkOverlap: 100,
			MinChunkSize: 50,
		},
		Qdrant: QdrantConfig{
			Host: "localhost",
			Port: 6334,
		},
	}
}

// Load reads the YAML file at path over the defaults, applies
// environment overrides and validates. An empty path uses defaults plus
// environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv pulls secrets and deployment coordinates from the
// environment. Secrets never live in the YAML file.
func (c *Config) applyEnv() {
	c.Embedding.APIKey = providerKey(c.Embedding.Provider)
	c.LLM.APIKey = providerKey(c.LLM.Provider)

	if host := os.Getenv("QDRANT_HOST"); host != "" {
		c.Qdrant.Host = host
	}
	if port := os.Getenv("QDRANT_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Qdrant.Port = p
		}
	}
}

func providerKey(provider string) string {
	switch embedding.ProviderKind(provider) {
	case embedding.ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case embedding.ProviderGemini:
		return os.Getenv("GEMINI_API_KEY")
	case embedding.ProviderClaude:
		return os.Getenv("ANTHROPIC_API_KEY")
	}
	return ""
}

// Validate rejects unknown provider tags, bad chunking parameters and
// out-of-range values.
func (c *Config) Validate() error {
	if _, err := embedding.ParseProvider(c.Embedding.Provider); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if _, err := embedding.ParseProvider(c.LLM.Provider); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding: dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("embedding: batchSize must be positive, got %d", c.Embedding.BatchSize)
	}

	if _, err := chunker.ParseStrategy(c.Chunking.Strategy); err != nil {
		return err
	}
	// Reuse the splitter's own parameter validation.
	if _, err := chunker.New(c.chunkerConfig()); err != nil {
		return fmt.Errorf("chunking: %w", err)
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm: temperature must be in [0, 2], got %v", c.LLM.Temperature)
	}
	if c.LLM.MinScore < 0 || c.LLM.MinScore > 1 {
		return fmt.Errorf("llm: minScore must be in [0, 1], got %v", c.LLM.MinScore)
	}
	if c.Qdrant.Host == "" || c.Qdrant.Port <= 0 {
		return fmt.Errorf("qdrant: host and port are required")
	}
	return nil
}

func (c *Config) chunkerConfig() chunker.Config {
	strategy, _ := chunker.ParseStrategy(c.Chunking.Strategy)
	return chunker.Config{
		Strategy:     strategy,
		ChunkSize:    c.Chunking.ChunkSize,
		ChunkOverlap: c.Chunking.ChunkOverlap,
		MinChunkSize: c.Chunking.MinChunkSize,
	}
}

// NewSplitter builds the configured chunker.
func (c *Config) NewSplitter() (*chunker.Splitter, error) {
	return chunker.New(c.chunkerConfig())
}
