package embed

import (
	"fmt"
	"os"

	"github.com/lumina-index/lumina/internal/config"
)

// NewFromConfig builds the configured embedding provider wrapped in an
// LRU cache.
func NewFromConfig(cfg config.EmbeddingsConfig) (TextEmbedder, error) {
	var (
		inner TextEmbedder
		err   error
	)
	switch cfg.Provider {
	case config.EmbeddingsOllama:
		inner = NewOllamaEmbedder(OllamaConfig{
			Host:       cfg.OllamaHost,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		})
	case config.EmbeddingsOpenAI:
		apiKey := os.Getenv(cfg.APIKeyEnv)
		inner, err = NewOpenAIEmbedder(apiKey, cfg.Model, cfg.Dimensions)
		if err != nil {
			return nil, err
		}
	case config.EmbeddingsStatic:
		inner = NewStaticEmbedder()
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", cfg.Provider)
	}

	return NewCachedEmbedder(inner, cfg.CacheSize)
}
