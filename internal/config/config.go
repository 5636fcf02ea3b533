// Package config loads Lumina configuration from YAML with environment
// variable overrides.
//
// Resolution order, lowest to highest priority:
//  1. built-in defaults
//  2. config file (lumina.yaml)
//  3. LUMINA_* environment variables
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Text index backends for the store.
const (
	TextIndexFTS5  = "fts5"
	TextIndexBleve = "bleve"
)

// Embedding providers.
const (
	EmbeddingsOllama = "ollama"
	EmbeddingsOpenAI = "openai"
	EmbeddingsStatic = "static"
)

// Summarizer providers.
const (
	SummarizerOpenAI = "openai"
	SummarizerStatic = "static"
)

// Config is the complete Lumina configuration.
type Config struct {
	DataDir    string           `yaml:"data_dir"`
	Store      StoreConfig      `yaml:"store"`
	Search     SearchConfig     `yaml:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Watcher    WatcherConfig    `yaml:"watcher"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// StoreConfig configures the embedded store.
type StoreConfig struct {
	// TextIndex selects the keyword index backend: "fts5" (default, fully
	// transactional with the metadata tables) or "bleve".
	TextIndex string `yaml:"text_index"`
}

// SearchConfig configures hybrid score fusion. Weights are normalized
// min-max scores, not hidden constants; they must sum to 1.0.
type SearchConfig struct {
	KeywordWeight  float64 `yaml:"keyword_weight"`
	SemanticWeight float64 `yaml:"semantic_weight"`
	MaxResults     int     `yaml:"max_results"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	Provider   string        `yaml:"provider"` // ollama, openai, static
	Model      string        `yaml:"model"`
	Dimensions int           `yaml:"dimensions"`
	OllamaHost string        `yaml:"ollama_host"`
	APIKeyEnv  string        `yaml:"api_key_env"` // env var holding the OpenAI key
	Timeout    time.Duration `yaml:"timeout"`
	CacheSize  int           `yaml:"cache_size"` // LRU entries for query embeddings
}

// SummarizerConfig configures the summarization provider.
type SummarizerConfig struct {
	Provider  string        `yaml:"provider"` // openai, static
	Model     string        `yaml:"model"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Timeout   time.Duration `yaml:"timeout"`
}

// PipelineConfig configures file processing.
type PipelineConfig struct {
	// Workers bounds concurrent per-file processing in ProcessDirectory.
	Workers int `yaml:"workers"`
	// StageTimeout bounds each capability invocation; a timeout is a stage
	// failure like any other.
	StageTimeout time.Duration `yaml:"stage_timeout"`
	// MaxFileSize skips files larger than this many bytes during discovery.
	MaxFileSize int64 `yaml:"max_file_size"`
}

// WatcherConfig configures filesystem watching.
type WatcherConfig struct {
	// Debounce is the coalescing window for rapid events on the same path.
	Debounce time.Duration `yaml:"debounce"`
	// QueueSize bounds the event queue between fsnotify and the pipeline.
	QueueSize int `yaml:"queue_size"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns the built-in defaults.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		DataDir: filepath.Join(home, ".lumina"),
		Store: StoreConfig{
			TextIndex: TextIndexFTS5,
		},
		Search: SearchConfig{
			KeywordWeight:  0.5,
			SemanticWeight: 0.5,
			MaxResults:     20,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   EmbeddingsOllama,
			Model:      "nomic-embed-text",
			Dimensions: 768,
			OllamaHost: "http://localhost:11434",
			APIKeyEnv:  "OPENAI_API_KEY",
			Timeout:    60 * time.Second,
			CacheSize:  1000,
		},
		Summarizer: SummarizerConfig{
			Provider:  SummarizerOpenAI,
			Model:     "gpt-4o-mini",
			APIKeyEnv: "OPENAI_API_KEY",
			Timeout:   60 * time.Second,
		},
		Pipeline: PipelineConfig{
			Workers:      4,
			StageTimeout: 2 * time.Minute,
			MaxFileSize:  10 * 1024 * 1024,
		},
		Watcher: WatcherConfig{
			Debounce:  500 * time.Millisecond,
			QueueSize: 256,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from path (optional), applies environment
// overrides, and validates the result. An empty path uses defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from LUMINA_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("LUMINA_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("LUMINA_TEXT_INDEX"); v != "" {
		c.Store.TextIndex = v
	}
	if v, ok := envFloat("LUMINA_KEYWORD_WEIGHT"); ok {
		c.Search.KeywordWeight = v
	}
	if v, ok := envFloat("LUMINA_SEMANTIC_WEIGHT"); ok {
		c.Search.SemanticWeight = v
	}
	if v := os.Getenv("LUMINA_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("LUMINA_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("LUMINA_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("LUMINA_SUMMARIZER_PROVIDER"); v != "" {
		c.Summarizer.Provider = v
	}
	if v := os.Getenv("LUMINA_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks invariants that would otherwise surface as subtle bugs.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	switch c.Store.TextIndex {
	case TextIndexFTS5, TextIndexBleve:
	default:
		return fmt.Errorf("unknown text index backend: %q (valid: fts5, bleve)", c.Store.TextIndex)
	}
	sum := c.Search.KeywordWeight + c.Search.SemanticWeight
	if c.Search.KeywordWeight < 0 || c.Search.SemanticWeight < 0 || math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("search weights must be non-negative and sum to 1.0, got %.3f + %.3f",
			c.Search.KeywordWeight, c.Search.SemanticWeight)
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be positive")
	}
	if c.Embeddings.Dimensions <= 0 {
		return fmt.Errorf("embeddings.dimensions must be positive")
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be positive")
	}
	if c.Watcher.QueueSize <= 0 {
		return fmt.Errorf("watcher.queue_size must be positive")
	}
	return nil
}

func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
