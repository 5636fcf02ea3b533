package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumina-index/lumina/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("", Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testRecord(path string) *model.FileRecord {
	now := time.Now().UTC()
	return &model.FileRecord{
		Path:        path,
		Filename:    "notes.md",
		Extension:   ".md",
		Size:        42,
		Created:     now.Add(-time.Hour),
		Modified:    now,
		Accessed:    now,
		ContentType: "text/markdown",
		Content:     "release planning notes for the storage migration",
		ContentHash: "abc123",
		Summary:     "Notes about migrating storage",
		Title:       "Storage migration",
		Keywords:    []string{"storage", "migration"},
		Status:      model.StatusParsed,
	}
}

func TestUpsertFileAssignsStableID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := testRecord("/tmp/notes.md")
	id1, err := s.UpsertFile(ctx, rec)
	require.NoError(t, err)
	require.Positive(t, id1)

	rec.Content = "updated content"
	rec.ContentHash = "def456"
	id2, err := s.UpsertFile(ctx, rec)
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "same path must keep the same identity")

	got, err := s.GetFileByPath(ctx, rec.Path)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "updated content", got.Content)
	assert.Equal(t, "def456", got.ContentHash)
	assert.Equal(t, []string{"migration", "storage"}, got.Keywords)
}

func TestGetFileByPathAbsent(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetFileByPath(context.Background(), "/no/such/file")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetFileByHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	older := testRecord("/tmp/a.md")
	older.ContentHash = "samehash"
	older.Modified = time.Now().UTC().Add(-time.Hour)
	_, err := s.UpsertFile(ctx, older)
	require.NoError(t, err)

	newer := testRecord("/tmp/b.md")
	newer.ContentHash = "samehash"
	newer.Modified = time.Now().UTC()
	_, err = s.UpsertFile(ctx, newer)
	require.NoError(t, err)

	got, err := s.GetFileByHash(ctx, "samehash")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "/tmp/b.md", got.Path, "most recently modified match wins")

	absent, err := s.GetFileByHash(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, absent)
}

func TestDeleteFileRemovesAllTraces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := testRecord("/tmp/doomed.md")
	id, err := s.UpsertFile(ctx, rec)
	require.NoError(t, err)
	require.NoError(t, s.UpsertFileEmbeddings(ctx, id, []float32{1, 0, 0}, "test-model"))

	prior, err := s.DeleteFile(ctx, rec.Path)
	require.NoError(t, err)
	require.NotNil(t, prior)
	assert.Equal(t, id, prior.ID)

	got, err := s.GetFileByPath(ctx, rec.Path)
	require.NoError(t, err)
	assert.Nil(t, got)

	kw, err := s.SearchKeyword(ctx, "storage migration", 10)
	require.NoError(t, err)
	assert.Empty(t, kw)

	sim, err := s.SearchSimilar(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	assert.Empty(t, sim)
}

func TestDeleteFileAbsent(t *testing.T) {
	s := newTestStore(t)

	prior, err := s.DeleteFile(context.Background(), "/no/such/file")
	require.NoError(t, err)
	assert.Nil(t, prior)
}

func TestSearchKeywordRanksTagMatches(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tagged := testRecord("/tmp/tagged.md")
	tagged.Content = "general project discussion"
	tagged.Keywords = []string{"kubernetes"}
	_, err := s.UpsertFile(ctx, tagged)
	require.NoError(t, err)

	body := testRecord("/tmp/body.md")
	body.Content = "kubernetes cluster upgrade runbook"
	body.Keywords = nil
	_, err = s.UpsertFile(ctx, body)
	require.NoError(t, err)

	results, err := s.SearchKeyword(ctx, "kubernetes", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "/tmp/tagged.md", results[0].File.Path,
		"curated tag match outranks body match")
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSearchKeywordEmptyQuery(t *testing.T) {
	s := newTestStore(t)

	results, err := s.SearchKeyword(context.Background(), "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchSimilarOrdersByDistance(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	vectors := map[string][]float32{
		"/tmp/close.md":   {1, 0.1, 0},
		"/tmp/closer.md":  {1, 0, 0},
		"/tmp/distant.md": {0, 1, 0},
	}
	for path, vec := range vectors {
		rec := testRecord(path)
		id, err := s.UpsertFile(ctx, rec)
		require.NoError(t, err)
		require.NoError(t, s.UpsertFileEmbeddings(ctx, id, vec, "test-model"))
	}

	results, err := s.SearchSimilar(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "/tmp/closer.md", results[0].File.Path)
	assert.Equal(t, "/tmp/close.md", results[1].File.Path)
	assert.LessOrEqual(t, results[0].Distance, results[1].Distance)
}

func TestSearchSimilarDimensionMismatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := testRecord("/tmp/vec.md")
	id, err := s.UpsertFile(ctx, rec)
	require.NoError(t, err)
	require.NoError(t, s.UpsertFileEmbeddings(ctx, id, []float32{1, 0, 0}, "test-model"))

	_, err = s.SearchSimilar(ctx, []float32{1, 0}, 5)
	require.Error(t, err)
}

func TestEmbeddingsSurviveReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir, Options{})
	require.NoError(t, err)

	ctx := context.Background()
	rec := testRecord("/tmp/persist.md")
	id, err := s.UpsertFile(ctx, rec)
	require.NoError(t, err)
	require.NoError(t, s.UpsertFileEmbeddings(ctx, id, []float32{0.5, 0.5, 0}, "test-model"))
	require.NoError(t, s.Close())

	s, err = Open(dir, Options{})
	require.NoError(t, err)
	defer s.Close()

	results, err := s.SearchSimilar(ctx, []float32{0.5, 0.5, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "/tmp/persist.md", results[0].File.Path)
	assert.Equal(t, "test-model", results[0].File.EmbeddingModel)
	assert.Equal(t, 3, results[0].File.EmbeddingDims)
}

func TestSecondOpenOnSameDirFails(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir, Options{})
	require.NoError(t, err)
	defer s1.Close()

	_, err = Open(dir, Options{})
	require.Error(t, err, "data directory is single-process")
}

func TestUpdateFileTimestamp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := testRecord("/tmp/touch.md")
	_, err := s.UpsertFile(ctx, rec)
	require.NoError(t, err)
	before := rec.UpdatedAt

	time.Sleep(5 * time.Millisecond)

	touched, err := s.UpdateFileTimestamp(ctx, rec.Path)
	require.NoError(t, err)
	assert.True(t, touched)

	got, err := s.GetFileByPath(ctx, rec.Path)
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.After(before))
	assert.Equal(t, rec.ContentHash, got.ContentHash, "touch must not change content")

	touched, err = s.UpdateFileTimestamp(ctx, "/no/such/file")
	require.NoError(t, err)
	assert.False(t, touched)
}

func TestWatchedDirectoryLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	added, err := s.AddWatchedDirectory(ctx, &model.WatchedDirectory{
		Path:        "/tmp/watchme",
		Recursive:   true,
		FilePattern: "*.md",
	})
	require.NoError(t, err)
	require.NotNil(t, added)
	assert.True(t, added.Active)
	assert.Positive(t, added.ID)

	// Adding the same path again is idempotent.
	again, err := s.AddWatchedDirectory(ctx, &model.WatchedDirectory{Path: "/tmp/watchme"})
	require.NoError(t, err)
	assert.Equal(t, added.ID, again.ID)

	active, err := s.GetWatchedDirectories(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)

	prior, err := s.DeleteWatchedDirectory(ctx, "/tmp/watchme")
	require.NoError(t, err)
	require.NotNil(t, prior)
	assert.True(t, prior.Active)

	active, err = s.GetWatchedDirectories(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := s.GetWatchedDirectories(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].Active, "deletion is soft")

	// A second delete has nothing to deactivate.
	prior, err = s.DeleteWatchedDirectory(ctx, "/tmp/watchme")
	require.NoError(t, err)
	assert.Nil(t, prior)
}

func TestDeleteWatchedDirectoryByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	added, err := s.AddWatchedDirectory(ctx, &model.WatchedDirectory{
		Path:      "/tmp/by-id",
		Recursive: true,
	})
	require.NoError(t, err)

	prior, err := s.DeleteWatchedDirectoryByID(ctx, added.ID)
	require.NoError(t, err)
	require.NotNil(t, prior)
	assert.Equal(t, "/tmp/by-id", prior.Path)
	assert.True(t, prior.Active, "returned registration reflects pre-deletion state")

	active, err := s.GetWatchedDirectories(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	// Inactive and unknown ids both report nothing to deactivate.
	prior, err = s.DeleteWatchedDirectoryByID(ctx, added.ID)
	require.NoError(t, err)
	assert.Nil(t, prior)

	prior, err = s.DeleteWatchedDirectoryByID(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, prior)
}

func TestOperationsAfterCloseFail(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "close is idempotent")

	_, err := s.GetFileByPath(context.Background(), "/x")
	require.Error(t, err)

	_, err = s.SearchKeyword(context.Background(), "query", 5)
	require.Error(t, err)
}

func TestBleveBackend(t *testing.T) {
	s, err := Open("", Options{TextIndex: "bleve"})
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	rec := testRecord("/tmp/bleve.md")
	rec.Content = "distributed consensus with raft"
	_, err = s.UpsertFile(ctx, rec)
	require.NoError(t, err)

	results, err := s.SearchKeyword(ctx, "raft consensus", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "/tmp/bleve.md", results[0].File.Path)
}
