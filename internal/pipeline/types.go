// Package pipeline drives a file record through parse, summarize, and embed
// stages, persisting after every transition and publishing progress events.
package pipeline

import (
	"context"

	"github.com/lumina-index/lumina/internal/model"
)

// Parser extracts text content from a file, filling Content, ContentHash,
// and ContentType on the record.
type Parser interface {
	// Parse reads the file at rec.Path and populates the extraction fields.
	Parse(ctx context.Context, rec *model.FileRecord) error
	// Supports reports whether this parser can handle the record's file type.
	Supports(rec *model.FileRecord) bool
}

// Summarizer fills Summary, Title, and Keywords from parsed content.
type Summarizer interface {
	Summarize(ctx context.Context, rec *model.FileRecord) error
}

// Embedder fills Embedding, EmbeddingModel, and EmbeddingDims from the
// record's content and summary.
type Embedder interface {
	Embed(ctx context.Context, rec *model.FileRecord) error
	// EmbedQuery produces a vector for ad-hoc query text using the same
	// model as Embed, so distances are comparable.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}
