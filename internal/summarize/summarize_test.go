package summarize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumina-index/lumina/internal/model"
)

func TestStaticSummarizerDerivesFields(t *testing.T) {
	s := NewStaticSummarizer()
	rec := &model.FileRecord{
		Filename: "guide.md",
		Content:  "# Deployment Guide\n\nDeploy the service with the deploy script. The deploy script validates configuration before rollout.",
	}

	require.NoError(t, s.Summarize(context.Background(), rec))

	assert.Equal(t, "Deployment Guide", rec.Title)
	assert.NotEmpty(t, rec.Summary)
	assert.Contains(t, rec.Keywords, "deploy")
}

func TestStaticSummarizerFallsBackToFilename(t *testing.T) {
	s := NewStaticSummarizer()
	rec := &model.FileRecord{
		Filename: "data.txt",
		Content:  "### \n\n",
	}

	err := s.Summarize(context.Background(), rec)
	if err == nil {
		assert.Equal(t, "data.txt", rec.Title)
	}
}

func TestStaticSummarizerEmptyContent(t *testing.T) {
	s := NewStaticSummarizer()
	rec := &model.FileRecord{Filename: "empty.txt"}

	require.Error(t, s.Summarize(context.Background(), rec))
}

func TestStaticSummarizerIsDeterministic(t *testing.T) {
	s := NewStaticSummarizer()
	content := "alpha beta gamma alpha beta alpha delta epsilon zeta keywords repeat often"

	first := &model.FileRecord{Filename: "a.txt", Content: content}
	second := &model.FileRecord{Filename: "a.txt", Content: content}
	require.NoError(t, s.Summarize(context.Background(), first))
	require.NoError(t, s.Summarize(context.Background(), second))

	assert.Equal(t, first.Keywords, second.Keywords)
	assert.Equal(t, first.Summary, second.Summary)
}

func TestCleanKeywords(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "lowercases and trims",
			in:   []string{" Kubernetes ", "DEPLOY"},
			want: []string{"kubernetes", "deploy"},
		},
		{
			name: "drops duplicates and empties",
			in:   []string{"go", "", "Go", "go"},
			want: []string{"go"},
		},
		{
			name: "caps at ten",
			in:   []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"},
			want: []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanKeywords(tt.in))
		})
	}
}

func TestExcerptCutsAtWordBoundary(t *testing.T) {
	out := excerpt("one two three four five", 12)
	assert.Equal(t, "one two", out)

	out = excerpt("short", 300)
	assert.Equal(t, "short", out)
}

func TestNewOpenAISummarizerRequiresKey(t *testing.T) {
	_, err := NewOpenAISummarizer("")
	require.Error(t, err)

	s, err := NewOpenAISummarizer("sk-test", WithModel("gpt-4o"))
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", s.model)
}
