// Package model defines the core data types shared across the indexing
// pipeline, store, and search layers.
package model

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Status is the processing state of a FileRecord. It moves strictly forward
// through the pipeline; FAILED is reachable from any non-terminal state, and
// a detected content change restarts the machine from DISCOVERED.
type Status string

const (
	// StatusDiscovered means the file was found but has no extracted content yet.
	StatusDiscovered Status = "DISCOVERED"
	// StatusParsed means content extraction completed.
	StatusParsed Status = "PARSED"
	// StatusSummarized means summary, title, and keywords were generated.
	StatusSummarized Status = "SUMMARIZED"
	// StatusComplete means the embedding was stored and processing finished.
	StatusComplete Status = "COMPLETE"
	// StatusFailed means a pipeline stage failed; ProcessingError holds the cause.
	StatusFailed Status = "FAILED"
)

// Terminal reports whether the status ends a processing attempt.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// FileRecord is the persisted representation of one indexed file and its
// processing state. Path is the natural key.
type FileRecord struct {
	ID int64

	// Filesystem metadata, populated at discovery time.
	Path      string // absolute path
	Filename  string
	Extension string // includes the leading dot
	Size      int64
	Created   time.Time
	Modified  time.Time
	Accessed  time.Time

	// Extraction results (parse stage).
	ContentType string
	Content     string
	ContentHash string // authoritative change signal, takes precedence over Modified

	// AI-derived fields (summarize stage).
	Summary  string
	Title    string
	Keywords []string

	// Embedding (embed stage). Vector length must equal EmbeddingDims
	// whenever both are present.
	Embedding      []float32
	EmbeddingModel string
	EmbeddingDims  int

	// Per-stage completion timestamps.
	ParsedAt     *time.Time
	SummarizedAt *time.Time
	EmbeddedAt   *time.Time

	Status          Status
	ProcessingError string

	// UpdatedAt is bookkeeping only, touched on every store write.
	UpdatedAt time.Time
}

// NewFileRecord builds a DISCOVERED record from filesystem metadata.
// Content fields stay empty until the parse stage runs.
func NewFileRecord(path string, info os.FileInfo) *FileRecord {
	mod := info.ModTime()
	return &FileRecord{
		Path:      path,
		Filename:  filepath.Base(path),
		Extension: strings.ToLower(filepath.Ext(path)),
		Size:      info.Size(),
		Created:   mod,
		Modified:  mod,
		Accessed:  mod,
		Status:    StatusDiscovered,
	}
}

// FileRecordFromPath stats the path and builds a DISCOVERED record.
func FileRecordFromPath(path string) (*FileRecord, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	return NewFileRecord(abs, info), nil
}

// ChangedSince reports whether the record represents newer content than prev.
// The content hash is the authoritative signal when both sides have one;
// otherwise a strictly later modification time counts as changed. Absence of
// any signal means not changed.
func (f *FileRecord) ChangedSince(prev *FileRecord) bool {
	if prev == nil {
		return true
	}
	if f.ContentHash != "" && prev.ContentHash != "" {
		return f.ContentHash != prev.ContentHash
	}
	return f.Modified.After(prev.Modified)
}

// Fail marks the record failed with the given error message.
func (f *FileRecord) Fail(msg string) {
	f.Status = StatusFailed
	f.ProcessingError = msg
}

// WatchedDirectory is a root path under continuous filesystem observation.
// Rows are soft-deleted: Active flips to false, the row stays for audit.
type WatchedDirectory struct {
	ID          int64
	Path        string
	Recursive   bool
	FilePattern string // optional glob matched against the base name
	Active      bool
	CreatedAt   time.Time
}
