package embed

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumina-index/lumina/internal/config"
	luminaerr "github.com/lumina-index/lumina/internal/errors"
	"github.com/lumina-index/lumina/internal/model"
)

func TestStaticEmbedderDeterministic(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()

	a, err := e.Embed(ctx, "deployment checklist for the api service")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "deployment checklist for the api service")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, StaticDimensions)
}

func TestStaticEmbedderNormalized(t *testing.T) {
	e := NewStaticEmbedder()

	vec, err := e.Embed(context.Background(), "rollback procedure after a failed deployment")
	require.NoError(t, err)

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
}

func TestStaticEmbedderEmptyText(t *testing.T) {
	e := NewStaticEmbedder()

	vec, err := e.Embed(context.Background(), "   ")
	require.NoError(t, err)

	assert.Len(t, vec, StaticDimensions)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestStaticEmbedderDistinguishesText(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()

	a, err := e.Embed(ctx, "database migration runbook")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "sourdough bread recipe")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

type countingEmbedder struct {
	calls int
	dims  int
}

func (c *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	c.calls++
	vec := make([]float32, c.dims)
	if len(text) > 0 {
		vec[0] = 1
	}
	return vec, nil
}

func (c *countingEmbedder) Dimensions() int { return c.dims }

func (c *countingEmbedder) ModelName() string { return "counting-test" }

func TestCachedEmbedderHitsCache(t *testing.T) {
	inner := &countingEmbedder{dims: 4}
	cached, err := NewCachedEmbedder(inner, 16)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := cached.Embed(ctx, "same text")
	require.NoError(t, err)
	second, err := cached.Embed(ctx, "same text")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 1, cached.Len())

	_, err = cached.Embed(ctx, "different text")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedEmbedderReturnsCopies(t *testing.T) {
	inner := &countingEmbedder{dims: 4}
	cached, err := NewCachedEmbedder(inner, 16)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := cached.Embed(ctx, "shared")
	require.NoError(t, err)
	first[0] = 99

	second, err := cached.Embed(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, float32(1), second[0])
}

func TestRecordEmbedderPopulatesFields(t *testing.T) {
	inner := &countingEmbedder{dims: 4}
	re := NewRecordEmbedder(inner)

	rec := &model.FileRecord{
		Path:    "/tmp/doc.md",
		Title:   "Doc",
		Summary: "a short summary",
	}
	require.NoError(t, re.Embed(context.Background(), rec))

	assert.Len(t, rec.Embedding, 4)
	assert.Equal(t, "counting-test", rec.EmbeddingModel)
	assert.Equal(t, 4, rec.EmbeddingDims)
}

func TestRecordEmbedderPrefersSummaryOverContent(t *testing.T) {
	e := NewStaticEmbedder()
	re := NewRecordEmbedder(e)
	ctx := context.Background()

	withSummary := &model.FileRecord{
		Path:    "/tmp/a.md",
		Content: "full raw body text that should be ignored",
		Summary: "a concise summary",
	}
	require.NoError(t, re.Embed(ctx, withSummary))

	fromSummary, err := e.Embed(ctx, "a concise summary")
	require.NoError(t, err)
	assert.Equal(t, fromSummary, withSummary.Embedding)
}

func TestRecordEmbedderTruncatesLongContent(t *testing.T) {
	e := NewStaticEmbedder()
	re := NewRecordEmbedder(e)
	ctx := context.Background()

	long := strings.Repeat("alpha beta gamma ", 1000)
	rec := &model.FileRecord{Path: "/tmp/long.txt", Content: long}
	require.NoError(t, re.Embed(ctx, rec))

	truncated, err := e.Embed(ctx, long[:4000])
	require.NoError(t, err)
	assert.Equal(t, truncated, rec.Embedding)
}

type wrongDimsEmbedder struct{}

func (wrongDimsEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 2, 3}, nil
}

func (wrongDimsEmbedder) Dimensions() int { return 8 }

func (wrongDimsEmbedder) ModelName() string { return "wrong-dims" }

func TestRecordEmbedderDimensionMismatch(t *testing.T) {
	re := NewRecordEmbedder(wrongDimsEmbedder{})

	rec := &model.FileRecord{Path: "/tmp/x.txt", Content: "body"}
	err := re.Embed(context.Background(), rec)
	require.Error(t, err)

	var le *luminaerr.Error
	require.True(t, errors.As(err, &le))
	assert.Equal(t, luminaerr.ErrCodeDimensionMismatch, le.Code)
}

func TestNewFromConfigStatic(t *testing.T) {
	e, err := NewFromConfig(config.EmbeddingsConfig{
		Provider:   config.EmbeddingsStatic,
		Dimensions: StaticDimensions,
		CacheSize:  8,
	})
	require.NoError(t, err)
	assert.Equal(t, StaticDimensions, e.Dimensions())
	assert.Equal(t, "static-hash-v1", e.ModelName())
}

func TestNewFromConfigUnknownProvider(t *testing.T) {
	_, err := NewFromConfig(config.EmbeddingsConfig{Provider: "carrier-pigeon"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")
}

func TestNewOpenAIEmbedderRequiresKey(t *testing.T) {
	_, err := NewOpenAIEmbedder("", "text-embedding-3-small", 1536)
	require.Error(t, err)
}
