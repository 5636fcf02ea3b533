package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the CLI with offline providers against a throwaway data dir
// and returns stdout.
func execute(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LUMINA_EMBEDDINGS_PROVIDER", "static")
	t.Setenv("LUMINA_SUMMARIZER_PROVIDER", "static")

	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(append(args, "--data-dir", dataDir, "--log-level", "error"))

	err := root.Execute()
	return buf.String(), err
}

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestVersionFlag(t *testing.T) {
	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetArgs([]string{"--version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "lumina version")
}

func TestSearchRequiresQuery(t *testing.T) {
	_, err := execute(t, t.TempDir(), "search")
	require.Error(t, err)
}

func TestIndexRejectsMissingPath(t *testing.T) {
	_, err := execute(t, t.TempDir(), "index", filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
}

func TestIndexThenSearch(t *testing.T) {
	dataDir := t.TempDir()
	docs := t.TempDir()
	writeDoc(t, docs, "deploy.md", "# Deploy Guide\n\nDeployment checklist for the api service.")
	writeDoc(t, docs, "recipes.md", "# Recipes\n\nSourdough bread and pasta dough.")

	out, err := execute(t, dataDir, "index", docs)
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 2 files")

	out, err = execute(t, dataDir, "search", "deployment checklist", "--keyword-only")
	require.NoError(t, err)
	assert.Contains(t, out, "deploy.md")
}

func TestIndexSecondRunSkipsUnchanged(t *testing.T) {
	dataDir := t.TempDir()
	docs := t.TempDir()
	writeDoc(t, docs, "note.txt", "release notes for version two")

	_, err := execute(t, dataDir, "index", docs)
	require.NoError(t, err)

	out, err := execute(t, dataDir, "index", docs)
	require.NoError(t, err)
	assert.Contains(t, out, "1 unchanged")
}

func TestIndexSingleFile(t *testing.T) {
	dataDir := t.TempDir()
	docs := t.TempDir()
	path := writeDoc(t, docs, "single.md", "# Single\n\nOne file only.")

	out, err := execute(t, dataDir, "index", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed: ")
	assert.Contains(t, out, "single.md")
}

func TestSearchJSONOutput(t *testing.T) {
	dataDir := t.TempDir()
	docs := t.TempDir()
	writeDoc(t, docs, "runbook.md", "# Runbook\n\nRollback procedure after a failed deployment.")

	_, err := execute(t, dataDir, "index", docs)
	require.NoError(t, err)

	out, err := execute(t, dataDir, "search", "rollback", "--format", "json", "--keyword-only")
	require.NoError(t, err)

	var results []searchResultJSON
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Path, "runbook.md")
	assert.Greater(t, results[0].Score, 0.0)
}

func TestDirsLifecycle(t *testing.T) {
	dataDir := t.TempDir()
	docs := t.TempDir()

	out, err := execute(t, dataDir, "dirs", "add", docs, "--pattern", "*.md")
	require.NoError(t, err)
	assert.Contains(t, out, "Registered")

	out, err = execute(t, dataDir, "dirs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, docs)
	assert.Contains(t, out, "*.md")

	out, err = execute(t, dataDir, "dirs", "remove", docs)
	require.NoError(t, err)
	assert.Contains(t, out, "Removed")

	out, err = execute(t, dataDir, "dirs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No directories registered")

	_, err = execute(t, dataDir, "dirs", "remove", docs)
	require.Error(t, err)
}
