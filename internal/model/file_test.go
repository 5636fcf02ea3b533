package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileRecordFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.TXT")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	rec, err := FileRecordFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, path, rec.Path)
	assert.Equal(t, "sample.TXT", rec.Filename)
	assert.Equal(t, ".txt", rec.Extension)
	assert.Equal(t, int64(11), rec.Size)
	assert.Equal(t, StatusDiscovered, rec.Status)
	assert.Empty(t, rec.Content)
	assert.WithinDuration(t, time.Now(), rec.Modified, time.Minute)
}

func TestFileRecordFromPath_Missing(t *testing.T) {
	_, err := FileRecordFromPath(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
}

func TestChangedSince(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		newRec  FileRecord
		prev    *FileRecord
		changed bool
	}{
		{
			name:    "no previous record",
			newRec:  FileRecord{ContentHash: "h1"},
			prev:    nil,
			changed: true,
		},
		{
			name:    "hash differs",
			newRec:  FileRecord{ContentHash: "h2", Modified: base},
			prev:    &FileRecord{ContentHash: "h1", Modified: base},
			changed: true,
		},
		{
			name:    "same hash wins over later modtime",
			newRec:  FileRecord{ContentHash: "h1", Modified: base.Add(time.Hour)},
			prev:    &FileRecord{ContentHash: "h1", Modified: base},
			changed: false,
		},
		{
			name:    "no hash, later modtime",
			newRec:  FileRecord{Modified: base.Add(time.Second)},
			prev:    &FileRecord{ContentHash: "h1", Modified: base},
			changed: true,
		},
		{
			name:    "no hash, equal modtime",
			newRec:  FileRecord{Modified: base},
			prev:    &FileRecord{Modified: base},
			changed: false,
		},
		{
			name:    "no signal at all",
			newRec:  FileRecord{},
			prev:    &FileRecord{},
			changed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.changed, tt.newRec.ChangedSince(tt.prev))
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusComplete.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusDiscovered.Terminal())
	assert.False(t, StatusParsed.Terminal())
	assert.False(t, StatusSummarized.Terminal())
}

func TestFail(t *testing.T) {
	rec := FileRecord{Status: StatusParsed}
	rec.Fail("summarizer exploded")

	assert.Equal(t, StatusFailed, rec.Status)
	assert.Equal(t, "summarizer exploded", rec.ProcessingError)
}
