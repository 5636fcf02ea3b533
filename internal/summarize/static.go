package summarize

import (
	"context"
	"sort"
	"strings"
	"unicode"

	luminaerr "github.com/lumina-index/lumina/internal/errors"
	"github.com/lumina-index/lumina/internal/model"
	"github.com/lumina-index/lumina/internal/pipeline"
)

// StaticSummarizer derives summary, title, and keywords from the content
// itself without any model call. It backs offline use and tests.
type StaticSummarizer struct{}

var _ pipeline.Summarizer = (*StaticSummarizer)(nil)

func NewStaticSummarizer() *StaticSummarizer {
	return &StaticSummarizer{}
}

func (s *StaticSummarizer) Summarize(_ context.Context, rec *model.FileRecord) error {
	content := strings.TrimSpace(rec.Content)
	if content == "" {
		return luminaerr.New(luminaerr.ErrCodeSummarizeFailed, "record has no content", nil)
	}

	rec.Title = deriveTitle(content, rec.Filename)
	rec.Summary = excerpt(content, 300)
	rec.Keywords = frequentWords(content, maxKeywords)
	return nil
}

// deriveTitle prefers the first markdown heading, then the first non-empty
// line, then the filename.
func deriveTitle(content, filename string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		title := strings.TrimSpace(strings.TrimLeft(line, "# "))
		if title == "" {
			continue
		}
		if len(title) > 80 {
			title = title[:80]
		}
		return title
	}
	return filename
}

// excerpt returns the leading content cut at a word boundary.
func excerpt(content string, limit int) string {
	flat := strings.Join(strings.Fields(content), " ")
	if len(flat) <= limit {
		return flat
	}
	cut := strings.LastIndex(flat[:limit], " ")
	if cut <= 0 {
		cut = limit
	}
	return flat[:cut]
}

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "with": {}, "this": {}, "that": {},
	"from": {}, "have": {}, "was": {}, "were": {}, "will": {}, "what": {},
	"when": {}, "where": {}, "which": {}, "their": {}, "they": {}, "them": {},
	"then": {}, "than": {}, "its": {}, "into": {}, "also": {}, "been": {},
	"has": {}, "had": {}, "more": {}, "some": {}, "such": {}, "only": {},
	"other": {}, "about": {}, "these": {}, "there": {}, "each": {}, "between": {},
}

// frequentWords picks the most common non-stopword terms, ties broken
// alphabetically so output is deterministic.
func frequentWords(content string, limit int) []string {
	counts := make(map[string]int)
	for _, field := range strings.FieldsFunc(strings.ToLower(content), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(field) < 3 {
			continue
		}
		if _, stop := stopWords[field]; stop {
			continue
		}
		counts[field]++
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})

	if len(words) > limit {
		words = words[:limit]
	}
	return words
}
