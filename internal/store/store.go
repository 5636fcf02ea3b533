// Package store provides embedded persistence for Lumina: file metadata and
// keywords in SQLite, a full-text index (FTS5 or Bleve), and fixed-length
// embedding vectors served through an in-memory HNSW graph.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	luminaerr "github.com/lumina-index/lumina/internal/errors"
)

// Options configures a Store.
type Options struct {
	// TextIndex selects the keyword index backend (config.TextIndexFTS5 or
	// config.TextIndexBleve). Empty means FTS5.
	TextIndex string
}

// Store is the single source of truth for file records, watched directories,
// keyword search, and vector similarity. All mutating operations run under a
// write lock and a transaction; readers proceed concurrently.
type Store struct {
	mu      sync.RWMutex
	db      *sql.DB
	dataDir string
	lock    *flock.Flock
	text    textIndex
	vectors *vectorIndex
	closed  bool
}

// Open creates or opens the store rooted at dataDir. An empty dataDir opens
// an in-memory store for testing. On-disk stores take an exclusive file lock
// so at most one process writes the index.
func Open(dataDir string, opts Options) (*Store, error) {
	var dsn string
	var fileLock *flock.Flock

	if dataDir == "" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}

		fileLock = flock.New(filepath.Join(dataDir, "lumina.lock"))
		locked, err := fileLock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire store lock: %w", err)
		}
		if !locked {
			return nil, luminaerr.New(luminaerr.ErrCodeStoreConflict,
				fmt.Sprintf("another process holds the index at %s", dataDir), nil)
		}

		dbPath := filepath.Join(dataDir, "lumina.db")
		if err := validateIntegrity(dbPath); err != nil {
			_ = fileLock.Unlock()
			return nil, luminaerr.New(luminaerr.ErrCodeStoreCorrupt,
				fmt.Sprintf("index at %s is corrupted: %v", dbPath, err), err)
		}
		dsn = dbPath + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		if fileLock != nil {
			_ = fileLock.Unlock()
		}
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single writer connection prevents lock contention; readers share it
	// cooperatively through database/sql.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// DSN params may be ignored by modernc.org/sqlite, so set pragmas
	// explicitly on the connection.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			if fileLock != nil {
				_ = fileLock.Unlock()
			}
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	s := &Store{
		db:      db,
		dataDir: dataDir,
		lock:    fileLock,
		vectors: newVectorIndex(),
	}

	if err := s.initSchema(); err != nil {
		_ = s.closeResources()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	text, err := newTextIndex(opts.TextIndex, dataDir, db)
	if err != nil {
		_ = s.closeResources()
		return nil, fmt.Errorf("open text index: %w", err)
	}
	s.text = text

	if err := s.loadEmbeddings(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("load embeddings: %w", err)
	}

	return s, nil
}

// validateIntegrity runs a quick integrity check on an existing database.
// A missing file is fine; it will be created.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check returned %q", result)
	}
	return nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_path TEXT NOT NULL UNIQUE,
		filename TEXT NOT NULL,
		extension TEXT NOT NULL DEFAULT '',
		file_size INTEGER NOT NULL DEFAULT 0,
		created_at TEXT,
		modified_at TEXT,
		accessed_at TEXT,
		content_type TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		content_hash TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		parsed_at TEXT,
		summarized_at TEXT,
		embedded_at TEXT,
		status TEXT NOT NULL DEFAULT 'DISCOVERED',
		processing_error TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_files_content_hash ON files(content_hash);
	CREATE INDEX IF NOT EXISTS idx_files_status ON files(status);

	CREATE TABLE IF NOT EXISTS file_keywords (
		file_id INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
		keyword TEXT NOT NULL,
		PRIMARY KEY (file_id, keyword)
	);

	CREATE TABLE IF NOT EXISTS file_embeddings (
		file_id INTEGER PRIMARY KEY REFERENCES files(id) ON DELETE CASCADE,
		model TEXT NOT NULL,
		dimensions INTEGER NOT NULL,
		vector BLOB NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS watched_directories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL,
		recursive INTEGER NOT NULL DEFAULT 1,
		file_pattern TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE VIRTUAL TABLE IF NOT EXISTS files_fts USING fts5(
		filename, content, summary, title,
		tokenize='unicode61'
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// loadEmbeddings rebuilds the in-memory HNSW graph from persisted vectors.
func (s *Store) loadEmbeddings() error {
	rows, err := s.db.Query(`SELECT file_id, vector FROM file_embeddings`)
	if err != nil {
		return err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var fileID int64
		var blob []byte
		if err := rows.Scan(&fileID, &blob); err != nil {
			return err
		}
		vec, err := decodeVector(blob)
		if err != nil {
			slog.Warn("store_embedding_decode_failed",
				slog.Int64("file_id", fileID),
				slog.String("error", err.Error()))
			continue
		}
		if err := s.vectors.add(fileID, vec); err != nil {
			slog.Warn("store_embedding_load_skipped",
				slog.Int64("file_id", fileID),
				slog.String("error", err.Error()))
			continue
		}
		count++
	}
	if count > 0 {
		slog.Debug("store_embeddings_loaded", slog.Int("count", count))
	}
	return rows.Err()
}

// begin starts a write transaction. Callers must hold the write lock.
func (s *Store) begin(ctx context.Context) (*sql.Tx, error) {
	if s.closed {
		return nil, luminaerr.New(luminaerr.ErrCodeStoreClosed, "store is closed", nil)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, luminaerr.StoreError("begin transaction", err)
	}
	return tx, nil
}

func (s *Store) closeResources() error {
	var firstErr error
	if s.text != nil {
		if err := s.text.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.db != nil {
		if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			slog.Debug("store_checkpoint_failed", slog.String("error", err.Error()))
		}
		if err := s.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close releases the database, text index, and file lock. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.closeResources()
}

// now returns the canonical timestamp used for bookkeeping columns.
func now() time.Time {
	return time.Now().UTC()
}
