package store

import (
	"context"
	"sort"
	"strings"

	luminaerr "github.com/lumina-index/lumina/internal/errors"
	"github.com/lumina-index/lumina/internal/model"
)

// KeywordResult pairs a record with its relevance score. Higher is better.
type KeywordResult struct {
	File  *model.FileRecord
	Score float64
}

// keywordTagBoost is added per exact match in file_keywords so curated tags
// outrank incidental body matches.
const keywordTagBoost = 1.0

// SearchKeyword ranks records against a free-text query using the full-text
// backend, boosted by exact matches on extracted keyword tags. Results come
// back in descending score order; ties break toward the more recently
// modified file.
func (s *Store) SearchKeyword(ctx context.Context, query string, limit int) ([]KeywordResult, error) {
	if limit <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, luminaerr.New(luminaerr.ErrCodeStoreClosed, "store is closed", nil)
	}

	hits, err := s.text.Search(ctx, query, limit)
	if err != nil {
		return nil, luminaerr.StoreError("text search", err)
	}

	scores := make(map[int64]float64, len(hits))
	for _, h := range hits {
		scores[h.FileID] = h.Score
	}

	tagged, err := s.matchKeywordTags(ctx, query)
	if err != nil {
		return nil, err
	}
	for fileID, matches := range tagged {
		scores[fileID] += float64(matches) * keywordTagBoost
	}

	results := make([]KeywordResult, 0, len(scores))
	for fileID, score := range scores {
		rec, err := s.getFileWhere(ctx, `f.id = ?`, fileID)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			continue
		}
		results = append(results, KeywordResult{File: rec, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].File.Modified.After(results[j].File.Modified)
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// matchKeywordTags counts, per file, how many query terms appear verbatim in
// file_keywords. Matching is case-insensitive.
func (s *Store) matchKeywordTags(ctx context.Context, query string) (map[int64]int, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(terms))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(terms))
	for i, t := range terms {
		args[i] = t
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT file_id, COUNT(*) FROM file_keywords
		 WHERE lower(keyword) IN (`+placeholders+`)
		 GROUP BY file_id`, args...)
	if err != nil {
		return nil, luminaerr.StoreError("match keyword tags", err)
	}
	defer rows.Close()

	matches := make(map[int64]int)
	for rows.Next() {
		var fileID int64
		var n int
		if err := rows.Scan(&fileID, &n); err != nil {
			return nil, luminaerr.StoreError("scan keyword match", err)
		}
		matches[fileID] = n
	}
	return matches, rows.Err()
}
