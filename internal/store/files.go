package store

import (
	"context"
	"database/sql"
	"time"

	luminaerr "github.com/lumina-index/lumina/internal/errors"
	"github.com/lumina-index/lumina/internal/model"
)

// fileColumns is the SELECT list shared by every record query. The embedding
// join fills vector fields when present.
const fileColumns = `
	f.id, f.file_path, f.filename, f.extension, f.file_size,
	f.created_at, f.modified_at, f.accessed_at,
	f.content_type, f.content, f.content_hash,
	f.summary, f.title,
	f.parsed_at, f.summarized_at, f.embedded_at,
	f.status, f.processing_error, f.updated_at,
	e.vector, e.model, e.dimensions`

const fileSelect = `SELECT ` + fileColumns + `
	FROM files f
	LEFT JOIN file_embeddings e ON e.file_id = f.id`

// UpsertFile inserts or updates the record keyed by path and returns the
// assigned identifier. Calling it repeatedly with the same path is safe: the
// identity is stable, content fields are last-write-wins. Metadata, keywords,
// and the full-text entry commit in one transaction.
func (s *Store) UpsertFile(ctx context.Context, rec *model.FileRecord) (int64, error) {
	if rec == nil || rec.Path == "" {
		return 0, luminaerr.New(luminaerr.ErrCodeMissingPath, "file record requires a path", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	rec.UpdatedAt = now()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO files (
			file_path, filename, extension, file_size,
			created_at, modified_at, accessed_at,
			content_type, content, content_hash,
			summary, title,
			parsed_at, summarized_at, embedded_at,
			status, processing_error, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			filename = excluded.filename,
			extension = excluded.extension,
			file_size = excluded.file_size,
			created_at = excluded.created_at,
			modified_at = excluded.modified_at,
			accessed_at = excluded.accessed_at,
			content_type = excluded.content_type,
			content = excluded.content,
			content_hash = excluded.content_hash,
			summary = excluded.summary,
			title = excluded.title,
			parsed_at = excluded.parsed_at,
			summarized_at = excluded.summarized_at,
			embedded_at = excluded.embedded_at,
			status = excluded.status,
			processing_error = excluded.processing_error,
			updated_at = excluded.updated_at`,
		rec.Path, rec.Filename, rec.Extension, rec.Size,
		encodeTime(rec.Created), encodeTime(rec.Modified), encodeTime(rec.Accessed),
		rec.ContentType, rec.Content, rec.ContentHash,
		rec.Summary, rec.Title,
		encodeTimePtr(rec.ParsedAt), encodeTimePtr(rec.SummarizedAt), encodeTimePtr(rec.EmbeddedAt),
		string(rec.Status), rec.ProcessingError, encodeTime(rec.UpdatedAt),
	)
	if err != nil {
		return 0, luminaerr.StoreError("upsert file", err)
	}

	var id int64
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM files WHERE file_path = ?`, rec.Path).Scan(&id); err != nil {
		return 0, luminaerr.StoreError("resolve file id", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM file_keywords WHERE file_id = ?`, id); err != nil {
		return 0, luminaerr.StoreError("clear keywords", err)
	}
	for _, kw := range rec.Keywords {
		if kw == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO file_keywords (file_id, keyword) VALUES (?, ?)`,
			id, kw); err != nil {
			return 0, luminaerr.StoreError("insert keyword", err)
		}
	}

	doc := textDocument{
		Filename: rec.Filename,
		Content:  rec.Content,
		Summary:  rec.Summary,
		Title:    rec.Title,
	}
	if err := s.text.Index(ctx, tx, id, doc); err != nil {
		return 0, luminaerr.StoreError("index text", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, luminaerr.StoreError("commit upsert", err)
	}

	rec.ID = id
	return id, nil
}

// GetFileByPath returns the record at path, or (nil, nil) when absent.
func (s *Store) GetFileByPath(ctx context.Context, path string) (*model.FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, luminaerr.New(luminaerr.ErrCodeStoreClosed, "store is closed", nil)
	}
	return s.getFileWhere(ctx, `f.file_path = ?`, path)
}

// GetFileByHash returns the most recently modified record with the given
// content hash, or (nil, nil) when absent.
func (s *Store) GetFileByHash(ctx context.Context, hash string) (*model.FileRecord, error) {
	if hash == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, luminaerr.New(luminaerr.ErrCodeStoreClosed, "store is closed", nil)
	}
	return s.getFileWhere(ctx, `f.content_hash = ? ORDER BY f.modified_at DESC`, hash)
}

// DeleteFile removes the record, its keywords, full-text entry, and vector
// in one transaction, returning the record as it was immediately before
// deletion. Absent paths return (nil, nil).
func (s *Store) DeleteFile(ctx context.Context, path string) (*model.FileRecord, error) {
	if path == "" {
		return nil, luminaerr.New(luminaerr.ErrCodeMissingPath, "path is required", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, luminaerr.New(luminaerr.ErrCodeStoreClosed, "store is closed", nil)
	}

	prior, err := s.getFileWhere(ctx, `f.file_path = ?`, path)
	if err != nil {
		return nil, err
	}
	if prior == nil {
		return nil, nil
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.text.Delete(ctx, tx, prior.ID); err != nil {
		return nil, luminaerr.StoreError("delete text entry", err)
	}
	// Keywords and embeddings cascade from the files row.
	if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, prior.ID); err != nil {
		return nil, luminaerr.StoreError("delete file", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, luminaerr.StoreError("commit delete", err)
	}

	s.vectors.remove(prior.ID)
	return prior, nil
}

// UpdateFileTimestamp touches the bookkeeping timestamp without changing
// content. Returns whether a row was affected.
func (s *Store) UpdateFileTimestamp(ctx context.Context, path string) (bool, error) {
	if path == "" {
		return false, luminaerr.New(luminaerr.ErrCodeMissingPath, "path is required", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, luminaerr.New(luminaerr.ErrCodeStoreClosed, "store is closed", nil)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE files SET updated_at = ? WHERE file_path = ?`,
		encodeTime(now()), path)
	if err != nil {
		return false, luminaerr.StoreError("update timestamp", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, luminaerr.StoreError("rows affected", err)
	}
	return affected > 0, nil
}

// getFileWhere fetches a single record matching the condition. Callers hold
// at least the read lock.
func (s *Store) getFileWhere(ctx context.Context, cond string, args ...any) (*model.FileRecord, error) {
	row := s.db.QueryRowContext(ctx, fileSelect+` WHERE `+cond+` LIMIT 1`, args...)

	rec, err := scanFileRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, luminaerr.StoreError("scan file record", err)
	}

	if err := s.loadKeywords(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) loadKeywords(ctx context.Context, rec *model.FileRecord) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT keyword FROM file_keywords WHERE file_id = ? ORDER BY keyword`, rec.ID)
	if err != nil {
		return luminaerr.StoreError("load keywords", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kw string
		if err := rows.Scan(&kw); err != nil {
			return luminaerr.StoreError("scan keyword", err)
		}
		rec.Keywords = append(rec.Keywords, kw)
	}
	return rows.Err()
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanFileRecord(row rowScanner) (*model.FileRecord, error) {
	var (
		rec                              model.FileRecord
		created, modified, accessed     sql.NullString
		parsedAt, summarizedAt          sql.NullString
		embeddedAt, updatedAt           sql.NullString
		status                          string
		vector                          []byte
		embeddingModel                  sql.NullString
		embeddingDims                   sql.NullInt64
	)

	err := row.Scan(
		&rec.ID, &rec.Path, &rec.Filename, &rec.Extension, &rec.Size,
		&created, &modified, &accessed,
		&rec.ContentType, &rec.Content, &rec.ContentHash,
		&rec.Summary, &rec.Title,
		&parsedAt, &summarizedAt, &embeddedAt,
		&status, &rec.ProcessingError, &updatedAt,
		&vector, &embeddingModel, &embeddingDims,
	)
	if err != nil {
		return nil, err
	}

	rec.Status = model.Status(status)
	rec.Created = decodeTime(created)
	rec.Modified = decodeTime(modified)
	rec.Accessed = decodeTime(accessed)
	rec.ParsedAt = decodeTimePtr(parsedAt)
	rec.SummarizedAt = decodeTimePtr(summarizedAt)
	rec.EmbeddedAt = decodeTimePtr(embeddedAt)
	rec.UpdatedAt = decodeTime(updatedAt)

	if len(vector) > 0 {
		vec, decErr := decodeVector(vector)
		if decErr != nil {
			return nil, decErr
		}
		rec.Embedding = vec
	}
	if embeddingModel.Valid {
		rec.EmbeddingModel = embeddingModel.String
	}
	if embeddingDims.Valid {
		rec.EmbeddingDims = int(embeddingDims.Int64)
	}

	return &rec, nil
}

// Timestamps are stored as RFC 3339 strings so scanning stays independent of
// driver-specific time handling.

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func encodeTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}

func decodeTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

func decodeTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := decodeTime(s)
	return &t
}
