// Package embed turns text into fixed-dimension vectors through pluggable
// backends.
package embed

import (
	"context"
	"fmt"
	"strings"

	luminaerr "github.com/lumina-index/lumina/internal/errors"
	"github.com/lumina-index/lumina/internal/model"
	"github.com/lumina-index/lumina/internal/pipeline"
)

// TextEmbedder converts one text into one vector. All vectors from the same
// embedder have Dimensions() entries.
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	ModelName() string
}

// RecordEmbedder adapts a TextEmbedder to the pipeline's record interface.
// The embedded text is the summary when present, falling back to content,
// so the vector reflects what the file is about rather than its raw bytes.
type RecordEmbedder struct {
	inner TextEmbedder
}

var _ pipeline.Embedder = (*RecordEmbedder)(nil)

func NewRecordEmbedder(inner TextEmbedder) *RecordEmbedder {
	return &RecordEmbedder{inner: inner}
}

func (r *RecordEmbedder) Embed(ctx context.Context, rec *model.FileRecord) error {
	text := embeddingText(rec)
	if text == "" {
		return luminaerr.New(luminaerr.ErrCodeEmbedFailed, "record has no embeddable text", nil)
	}

	vec, err := r.inner.Embed(ctx, text)
	if err != nil {
		return luminaerr.New(luminaerr.ErrCodeEmbedFailed, "embedding request failed", err)
	}
	if dims := r.inner.Dimensions(); dims > 0 && len(vec) != dims {
		return luminaerr.New(luminaerr.ErrCodeDimensionMismatch,
			fmt.Sprintf("embedder returned %d dimensions, expected %d", len(vec), dims), nil)
	}

	rec.Embedding = vec
	rec.EmbeddingModel = r.inner.ModelName()
	rec.EmbeddingDims = len(vec)
	return nil
}

func (r *RecordEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := r.inner.Embed(ctx, text)
	if err != nil {
		return nil, luminaerr.New(luminaerr.ErrCodeEmbedFailed, "query embedding failed", err)
	}
	return vec, nil
}

func embeddingText(rec *model.FileRecord) string {
	var parts []string
	if rec.Title != "" {
		parts = append(parts, rec.Title)
	}
	if rec.Summary != "" {
		parts = append(parts, rec.Summary)
	} else if rec.Content != "" {
		content := rec.Content
		if len(content) > 4000 {
			content = content[:4000]
		}
		parts = append(parts, content)
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}
