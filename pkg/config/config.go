// Package config loads memesearch settings from defaults, an optional YAML
// file and MEMESEARCH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/perbu/memesearch/pkg/embedder"
	"github.com/perbu/memesearch/pkg/ranking"
	"github.com/perbu/memesearch/pkg/retrieval"
)

// Embedding providers.
const (
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"
)

// DefaultFile is read when no -config flag is given and it exists.
const DefaultFile = "memesearch.yaml"

// Embedding configures the embedding provider.
type Embedding struct {
	Provider          string  `yaml:"provider"`
	BaseURL           string  `yaml:"base_url"`
	Model             string  `yaml:"model"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Dimension         int     `yaml:"dimension"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	TimeoutSec        int     `yaml:"timeout_sec"`
}

// Ranking configures the remote ranking model.
type Ranking struct {
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	APIKeyEnv  string `yaml:"api_key_env"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// Config is the complete application configuration.
type Config struct {
	MemesFolder string    `yaml:"memes_folder"`
	IndexDir    string    `yaml:"index_dir"`
	TopK        int       `yaml:"top_k"`
	Strategy    string    `yaml:"strategy"`
	Workers     int       `yaml:"workers"`
	LogLevel    string    `yaml:"log_level"`
	Embedding   Embedding `yaml:"embedding"`
	Ranking     Ranking   `yaml:"ranking"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		MemesFolder: "memes",
		IndexDir:    "vector_store",
		TopK:        retrieval.DefaultTopK,
		Strategy:    retrieval.StrategyIndexed,
		Workers:     4,
		LogLevel:    "info",
		Embedding: Embedding{
			Provider:          ProviderOpenAI,
			BaseURL:           embedder.DefaultEmbeddingBaseURL,
			Model:             embedder.DefaultEmbeddingModel,
			APIKeyEnv:         "JINA_API_KEY",
			RequestsPerSecond: 5,
			TimeoutSec:        60,
		},
		Ranking: Ranking{
			BaseURL:    ranking.DefaultBaseURL,
			Model:      ranking.DefaultModel,
			APIKeyEnv:  "GOOGLE_API_KEY",
			TimeoutSec: int(ranking.DefaultTimeout / time.Second),
		},
	}
}

// Load builds the configuration. path may be empty, in which case
// DefaultFile is used if present. Environment variables override the file.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func (c *Config) applyEnv() error {
	c.MemesFolder = envOrDefault("MEMESEARCH_MEMES_FOLDER", c.MemesFolder)
	c.IndexDir = envOrDefault("MEMESEARCH_INDEX_DIR", c.IndexDir)
	c.Strategy = envOrDefault("MEMESEARCH_STRATEGY", c.Strategy)
	c.LogLevel = envOrDefault("MEMESEARCH_LOG_LEVEL", c.LogLevel)
	c.Embedding.Provider = envOrDefault("MEMESEARCH_EMBEDDING_PROVIDER", c.Embedding.Provider)
	c.Embedding.BaseURL = envOrDefault("MEMESEARCH_EMBEDDING_BASE_URL", c.Embedding.BaseURL)
	c.Embedding.Model = envOrDefault("MEMESEARCH_EMBEDDING_MODEL", c.Embedding.Model)
	c.Ranking.BaseURL = envOrDefault("MEMESEARCH_RANKING_BASE_URL", c.Ranking.BaseURL)
	c.Ranking.Model = envOrDefault("MEMESEARCH_RANKING_MODEL", c.Ranking.Model)

	var err error
	if c.TopK, err = envInt("MEMESEARCH_TOP_K", c.TopK); err != nil {
		return err
	}
	if c.Workers, err = envInt("MEMESEARCH_WORKERS", c.Workers); err != nil {
		return err
	}
	if c.Embedding.Dimension, err = envInt("MEMESEARCH_EMBEDDING_DIMENSION", c.Embedding.Dimension); err != nil {
		return err
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.TopK <= 0 {
		return fmt.Errorf("top_k must be positive, got %d", c.TopK)
	}
	switch c.Strategy {
	case retrieval.StrategyIndexed, retrieval.StrategyLinear:
	default:
		return fmt.Errorf("unknown strategy %q", c.Strategy)
	}
	switch c.Embedding.Provider {
	case ProviderOpenAI, ProviderLocal:
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	if c.Embedding.TimeoutSec <= 0 || c.Ranking.TimeoutSec <= 0 {
		return errors.New("timeouts must be positive")
	}
	if c.Embedding.Dimension < 0 {
		return fmt.Errorf("embedding dimension must not be negative, got %d", c.Embedding.Dimension)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Level returns the configured log level, falling back to info.
func (c Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// EmbeddingTimeout returns the embedding request timeout.
func (c Config) EmbeddingTimeout() time.Duration {
	return time.Duration(c.Embedding.TimeoutSec) * time.Second
}

// RankingTimeout returns the ranking request timeout.
func (c Config) RankingTimeout() time.Duration {
	return time.Duration(c.Ranking.TimeoutSec) * time.Second
}
