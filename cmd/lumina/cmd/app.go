package cmd

import (
	"fmt"
	"os"

	"github.com/lumina-index/lumina/internal/config"
	"github.com/lumina-index/lumina/internal/embed"
	"github.com/lumina-index/lumina/internal/hub"
	"github.com/lumina-index/lumina/internal/model"
	"github.com/lumina-index/lumina/internal/parse"
	"github.com/lumina-index/lumina/internal/pipeline"
	"github.com/lumina-index/lumina/internal/search"
	"github.com/lumina-index/lumina/internal/store"
	"github.com/lumina-index/lumina/internal/summarize"
)

// app bundles the wired components a command needs. Close releases the
// store lock; it must run before the process exits.
type app struct {
	cfg      *config.Config
	store    *store.Store
	hub      *hub.Hub[model.Update]
	embedder *embed.RecordEmbedder
	pipeline *pipeline.Pipeline
	searcher *search.Searcher
}

func openApp(opts *rootOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.DataDir, store.Options{TextIndex: cfg.Store.TextIndex})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	textEmbedder, err := embed.NewFromConfig(cfg.Embeddings)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	recordEmbedder := embed.NewRecordEmbedder(textEmbedder)

	summarizer, err := summarize.NewFromConfig(cfg.Summarizer)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	updates := hub.New[model.Update](64)
	parser := parse.NewTextParser(cfg.Pipeline.MaxFileSize)

	pipe := pipeline.New(st, updates, parser, summarizer, recordEmbedder, pipeline.Config{
		Workers:      cfg.Pipeline.Workers,
		StageTimeout: cfg.Pipeline.StageTimeout,
		MaxFileSize:  cfg.Pipeline.MaxFileSize,
	})

	searcher := search.New(st, recordEmbedder, search.Config{
		KeywordWeight:  cfg.Search.KeywordWeight,
		SemanticWeight: cfg.Search.SemanticWeight,
		MaxResults:     cfg.Search.MaxResults,
	})

	return &app{
		cfg:      cfg,
		store:    st,
		hub:      updates,
		embedder: recordEmbedder,
		pipeline: pipe,
		searcher: searcher,
	}, nil
}

func (a *app) Close() error {
	a.hub.Close()
	return a.store.Close()
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
