package parse

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumina-index/lumina/internal/model"
)

func record(t *testing.T, dir, name string, content []byte) *model.FileRecord {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	rec, err := model.FileRecordFromPath(path)
	require.NoError(t, err)
	return rec
}

func TestSupports(t *testing.T) {
	p := NewTextParser(0)

	tests := []struct {
		ext  string
		want bool
	}{
		{".md", true},
		{".txt", true},
		{".yaml", true},
		{".json", true},
		{".exe", false},
		{".png", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			rec := &model.FileRecord{Extension: tt.ext}
			assert.Equal(t, tt.want, p.Supports(rec))
		})
	}
}

func TestParseFillsExtractionFields(t *testing.T) {
	p := NewTextParser(0)
	dir := t.TempDir()
	rec := record(t, dir, "readme.md", []byte("# Title\n\nBody text."))

	require.NoError(t, p.Parse(context.Background(), rec))

	assert.Equal(t, "# Title\n\nBody text.", rec.Content)
	assert.Equal(t, "text/markdown", rec.ContentType)
	assert.Len(t, rec.ContentHash, 64, "hex sha-256")
}

func TestParseHashIsDeterministic(t *testing.T) {
	p := NewTextParser(0)
	dir := t.TempDir()

	a := record(t, dir, "a.txt", []byte("identical bytes"))
	b := record(t, dir, "b.txt", []byte("identical bytes"))
	c := record(t, dir, "c.txt", []byte("different bytes"))

	require.NoError(t, p.Parse(context.Background(), a))
	require.NoError(t, p.Parse(context.Background(), b))
	require.NoError(t, p.Parse(context.Background(), c))

	assert.Equal(t, a.ContentHash, b.ContentHash)
	assert.NotEqual(t, a.ContentHash, c.ContentHash)
}

func TestParseNormalizesLineEndings(t *testing.T) {
	p := NewTextParser(0)
	dir := t.TempDir()
	rec := record(t, dir, "crlf.txt", []byte("line one\r\nline two\r\n"))

	require.NoError(t, p.Parse(context.Background(), rec))
	assert.Equal(t, "line one\nline two\n", rec.Content)
}

func TestParseRejectsBinary(t *testing.T) {
	p := NewTextParser(0)
	dir := t.TempDir()
	rec := record(t, dir, "sneaky.txt", []byte{0x89, 0x50, 0x00, 0x47})

	err := p.Parse(context.Background(), rec)
	require.Error(t, err)
}

func TestParseEnforcesMaxSize(t *testing.T) {
	p := NewTextParser(8)
	dir := t.TempDir()
	rec := record(t, dir, "big.txt", []byte("this exceeds eight bytes"))

	err := p.Parse(context.Background(), rec)
	require.Error(t, err)
}

func TestParseMissingFile(t *testing.T) {
	p := NewTextParser(0)
	rec := &model.FileRecord{Path: "/no/such/file.txt", Extension: ".txt"}

	err := p.Parse(context.Background(), rec)
	require.Error(t, err)
}
