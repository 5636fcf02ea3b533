package embed

import (
	"context"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	luminaerr "github.com/lumina-index/lumina/internal/errors"
)

const (
	DefaultOpenAIModel      = "text-embedding-3-small"
	DefaultOpenAIDimensions = 1536
)

// OpenAIEmbedder generates vectors through the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client openai.Client
	model  string
	dims   int
	retry  luminaerr.RetryConfig
}

var _ TextEmbedder = (*OpenAIEmbedder)(nil)

func NewOpenAIEmbedder(apiKey, model string, dims int) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, luminaerr.ValidationError("embedder API key is empty")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	if dims <= 0 {
		dims = DefaultOpenAIDimensions
	}

	return &OpenAIEmbedder{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		dims:   dims,
		retry:  luminaerr.DefaultRetryConfig(),
	}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return make([]float32, e.dims), nil
	}

	return luminaerr.RetryWithResult(ctx, e.retry, func() ([]float32, error) {
		resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Model: openai.EmbeddingModel(e.model),
			Input: openai.EmbeddingNewParamsInputUnion{
				OfString: openai.String(text),
			},
			Dimensions: openai.Int(int64(e.dims)),
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Data) == 0 {
			return nil, luminaerr.New(luminaerr.ErrCodeEmbedFailed, "no embedding returned", nil)
		}

		vec := make([]float32, len(resp.Data[0].Embedding))
		for i, v := range resp.Data[0].Embedding {
			vec[i] = float32(v)
		}
		return vec, nil
	})
}

func (e *OpenAIEmbedder) Dimensions() int { return e.dims }

func (e *OpenAIEmbedder) ModelName() string { return e.model }
