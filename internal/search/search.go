// Package search combines keyword and semantic retrieval into one ranked
// result list.
package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	luminaerr "github.com/lumina-index/lumina/internal/errors"
	"github.com/lumina-index/lumina/internal/model"
	"github.com/lumina-index/lumina/internal/store"
)

// QueryEmbedder produces a query vector comparable to stored embeddings.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Config holds fusion weights. Weights must sum to 1.
type Config struct {
	KeywordWeight  float64
	SemanticWeight float64
	MaxResults     int
}

// DefaultConfig weights both sources equally.
func DefaultConfig() Config {
	return Config{KeywordWeight: 0.5, SemanticWeight: 0.5, MaxResults: 20}
}

// Options narrows a single query.
type Options struct {
	// Limit caps returned results; zero falls back to Config.MaxResults.
	Limit int
	// Directory restricts results to files under the given path prefix.
	Directory string
	// KeywordOnly skips the semantic leg even when an embedder is available.
	KeywordOnly bool
}

// Result is one ranked hit with its per-source scores preserved.
type Result struct {
	File *model.FileRecord
	// Score is the fused relevance in [0, 1], higher is better.
	Score float64
	// KeywordScore is the raw text relevance, zero when the file matched
	// only semantically.
	KeywordScore float64
	// SemanticScore is 1 - cosine distance scaled to [0, 1], zero when the
	// file matched only by keyword.
	SemanticScore float64
}

// Searcher answers hybrid queries against a store. When the embedder is nil
// or failing, it degrades to keyword-only results instead of erroring.
type Searcher struct {
	store    *store.Store
	embedder QueryEmbedder
	cfg      Config
	logger   *slog.Logger
}

func New(st *store.Store, embedder QueryEmbedder, cfg Config) *Searcher {
	if cfg.KeywordWeight == 0 && cfg.SemanticWeight == 0 {
		cfg = DefaultConfig()
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 20
	}
	return &Searcher{
		store:    st,
		embedder: embedder,
		cfg:      cfg,
		logger:   slog.Default(),
	}
}

// Search runs both retrieval legs concurrently and fuses the results.
// Identical inputs against an unchanged index return identical rankings.
func (s *Searcher) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, luminaerr.ValidationError("query is empty")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = s.cfg.MaxResults
	}
	// Over-fetch per source so the fused cut still has candidates that
	// ranked low in one leg but high in the other.
	fetch := limit * 2

	var (
		keyword  []store.KeywordResult
		semantic []store.SimilarResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		keyword, err = s.store.SearchKeyword(gctx, query, fetch)
		return err
	})
	if s.embedder != nil && !opts.KeywordOnly {
		g.Go(func() error {
			vec, err := s.embedder.EmbedQuery(gctx, query)
			if err != nil {
				// Semantic leg is best-effort; keyword results still serve.
				s.logger.Warn("search_semantic_unavailable",
					slog.String("error", err.Error()))
				return nil
			}
			semantic, err = s.store.SearchSimilar(gctx, vec, fetch)
			if err != nil {
				s.logger.Warn("search_semantic_failed",
					slog.String("error", err.Error()))
				semantic = nil
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if opts.Directory != "" {
		keyword, semantic = filterByDirectory(keyword, semantic, opts.Directory)
	}

	fused := s.fuse(keyword, semantic)
	if len(fused) > limit {
		fused = fused[:limit]
	}
	return fused, nil
}

// fuse min-max normalizes each source's scores to [0, 1] and combines them
// with the configured weights. When one source returned nothing at all, its
// weight shifts to the other so a degraded search still spans [0, 1].
func (s *Searcher) fuse(keyword []store.KeywordResult, semantic []store.SimilarResult) []Result {
	kwWeight, semWeight := s.cfg.KeywordWeight, s.cfg.SemanticWeight
	if len(semantic) == 0 {
		kwWeight, semWeight = 1, 0
	} else if len(keyword) == 0 {
		kwWeight, semWeight = 0, 1
	}

	merged := make(map[string]*Result, len(keyword)+len(semantic))

	kwNorm := normalizeKeyword(keyword)
	for i, kr := range keyword {
		merged[kr.File.Path] = &Result{
			File:         kr.File,
			KeywordScore: kwNorm[i],
		}
	}

	semNorm := normalizeSemantic(semantic)
	for i, sr := range semantic {
		if r, ok := merged[sr.File.Path]; ok {
			r.SemanticScore = semNorm[i]
			continue
		}
		merged[sr.File.Path] = &Result{
			File:          sr.File,
			SemanticScore: semNorm[i],
		}
	}

	results := make([]Result, 0, len(merged))
	for _, r := range merged {
		r.Score = kwWeight*r.KeywordScore + semWeight*r.SemanticScore
		results = append(results, *r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].KeywordScore != results[j].KeywordScore {
			return results[i].KeywordScore > results[j].KeywordScore
		}
		if !results[i].File.Modified.Equal(results[j].File.Modified) {
			return results[i].File.Modified.After(results[j].File.Modified)
		}
		return results[i].File.Path < results[j].File.Path
	})
	return results
}

// normalizeKeyword maps raw scores onto [0, 1] within the result set. A
// single hit, or a set with no spread, normalizes to 1.
func normalizeKeyword(results []store.KeywordResult) []float64 {
	if len(results) == 0 {
		return nil
	}
	min, max := results[0].Score, results[0].Score
	for _, r := range results[1:] {
		if r.Score < min {
			min = r.Score
		}
		if r.Score > max {
			max = r.Score
		}
	}

	norm := make([]float64, len(results))
	for i, r := range results {
		if max == min {
			norm[i] = 1
		} else {
			norm[i] = (r.Score - min) / (max - min)
		}
		// Keep matched files above the fusion floor.
		if norm[i] == 0 {
			norm[i] = 1e-9
		}
	}
	return norm
}

// normalizeSemantic converts cosine distances to similarities and min-max
// normalizes within the set.
func normalizeSemantic(results []store.SimilarResult) []float64 {
	if len(results) == 0 {
		return nil
	}
	sims := make([]float64, len(results))
	for i, r := range results {
		// Cosine distance spans [0, 2].
		sims[i] = 1 - float64(r.Distance)/2
	}

	min, max := sims[0], sims[0]
	for _, s := range sims[1:] {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}

	norm := make([]float64, len(sims))
	for i, s := range sims {
		if max == min {
			norm[i] = 1
		} else {
			norm[i] = (s - min) / (max - min)
		}
		if norm[i] == 0 {
			norm[i] = 1e-9
		}
	}
	return norm
}

// filterByDirectory drops hits outside the prefix before ranking, so the
// fused scores reflect only the surviving candidates.
func filterByDirectory(keyword []store.KeywordResult, semantic []store.SimilarResult, dir string) ([]store.KeywordResult, []store.SimilarResult) {
	prefix := strings.TrimSuffix(dir, "/") + "/"

	kw := keyword[:0]
	for _, r := range keyword {
		if strings.HasPrefix(r.File.Path, prefix) {
			kw = append(kw, r)
		}
	}
	sem := semantic[:0]
	for _, r := range semantic {
		if strings.HasPrefix(r.File.Path, prefix) {
			sem = append(sem, r)
		}
	}
	return kw, sem
}
