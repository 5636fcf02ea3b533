package discover

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumina-index/lumina/internal/model"
)

func collect(t *testing.T, root string, opts Options) []*model.FileRecord {
	t.Helper()
	d := New()
	results, err := d.Discover(context.Background(), root, opts)
	require.NoError(t, err)

	var files []*model.FileRecord
	for r := range results {
		require.NoError(t, r.Err)
		files = append(files, r.File)
	}
	return files
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDiscoverEmptyDirectory(t *testing.T) {
	files := collect(t, t.TempDir(), Options{Recursive: true})
	assert.Empty(t, files)
}

func TestDiscoverFindsFilesWithMetadata(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one.txt", "hello")
	writeFile(t, dir, "two.md", "# doc")

	files := collect(t, dir, Options{Recursive: true})
	require.Len(t, files, 2)

	byName := map[string]*model.FileRecord{}
	for _, f := range files {
		byName[f.Filename] = f
	}

	one := byName["one.txt"]
	require.NotNil(t, one)
	assert.Equal(t, ".txt", one.Extension)
	assert.Equal(t, int64(5), one.Size)
	assert.Equal(t, model.StatusDiscovered, one.Status)
	assert.True(t, filepath.IsAbs(one.Path))
}

func TestDiscoverRecursion(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "top.txt", "top")
	writeFile(t, dir, filepath.Join("sub", "nested.txt"), "nested")

	recursive := collect(t, dir, Options{Recursive: true})
	assert.Len(t, recursive, 2)

	flat := collect(t, dir, Options{Recursive: false})
	require.Len(t, flat, 1)
	assert.Equal(t, "top.txt", flat[0].Filename)
}

func TestDiscoverSkipsHidden(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "visible.txt", "yes")
	writeFile(t, dir, ".hidden.txt", "no")
	writeFile(t, dir, filepath.Join(".git", "config"), "no")

	files := collect(t, dir, Options{Recursive: true})
	require.Len(t, files, 1)
	assert.Equal(t, "visible.txt", files[0].Filename)
}

func TestDiscoverPatternFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.md", "# notes")
	writeFile(t, dir, "data.csv", "a,b")

	files := collect(t, dir, Options{Recursive: true, Pattern: "*.md"})
	require.Len(t, files, 1)
	assert.Equal(t, "notes.md", files[0].Filename)
}

func TestDiscoverSizeCap(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "small.txt", "ok")
	writeFile(t, dir, "big.txt", "this file exceeds the tiny cap")

	files := collect(t, dir, Options{Recursive: true, MaxFileSize: 10})
	require.Len(t, files, 1)
	assert.Equal(t, "small.txt", files[0].Filename)
}

func TestDiscoverRejectsNonDirectory(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "file.txt", "x")

	d := New()
	_, err := d.Discover(context.Background(), path, Options{})
	require.Error(t, err)

	_, err = d.Discover(context.Background(), filepath.Join(dir, "missing"), Options{})
	require.Error(t, err)
}

func TestDiscoverCancellation(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 200; i++ {
		writeFile(t, dir, filepath.Join("sub", "f"+string(rune('a'+i%26))+".txt"), "x")
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := New()
	results, err := d.Discover(ctx, dir, Options{Recursive: true})
	require.NoError(t, err)

	cancel()
	// Channel must close promptly after cancellation.
	for range results {
	}
}
