package summarize

import (
	"fmt"
	"os"

	"github.com/lumina-index/lumina/internal/config"
	"github.com/lumina-index/lumina/internal/pipeline"
)

// NewFromConfig builds the configured summarization provider.
func NewFromConfig(cfg config.SummarizerConfig) (pipeline.Summarizer, error) {
	switch cfg.Provider {
	case config.SummarizerOpenAI:
		var opts []Option
		if cfg.Model != "" {
			opts = append(opts, WithModel(cfg.Model))
		}
		if cfg.Timeout > 0 {
			opts = append(opts, WithTimeout(cfg.Timeout))
		}
		return NewOpenAISummarizer(os.Getenv(cfg.APIKeyEnv), opts...)
	case config.SummarizerStatic:
		return NewStaticSummarizer(), nil
	default:
		return nil, fmt.Errorf("unknown summarizer provider %q", cfg.Provider)
	}
}
