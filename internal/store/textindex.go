package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// textDocument is the searchable projection of a file record.
type textDocument struct {
	Filename string
	Content  string
	Summary  string
	Title    string
}

type textHit struct {
	FileID int64
	Score  float64
}

// textIndex abstracts the full-text backend. The FTS5 implementation writes
// inside the caller's transaction so text entries commit atomically with
// metadata; the bleve implementation ignores the transaction and applies the
// write after commit.
type textIndex interface {
	Index(ctx context.Context, tx *sql.Tx, fileID int64, doc textDocument) error
	Delete(ctx context.Context, tx *sql.Tx, fileID int64) error
	Search(ctx context.Context, query string, limit int) ([]textHit, error)
	Close() error
}

func newTextIndex(backend, dataDir string, db *sql.DB) (textIndex, error) {
	switch backend {
	case "", "fts5":
		return &fts5Index{db: db}, nil
	case "bleve":
		return newBleveIndex(dataDir)
	default:
		return nil, fmt.Errorf("unknown text index backend %q", backend)
	}
}

// fts5Index backs text search with the files_fts virtual table created by
// initSchema. rowid mirrors files.id.
type fts5Index struct {
	db *sql.DB
}

var _ textIndex = (*fts5Index)(nil)

func (f *fts5Index) Index(ctx context.Context, tx *sql.Tx, fileID int64, doc textDocument) error {
	// FTS5 virtual tables do not support upsert; delete then insert.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM files_fts WHERE rowid = ?`, fileID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO files_fts (rowid, filename, content, summary, title) VALUES (?, ?, ?, ?, ?)`,
		fileID, doc.Filename, doc.Content, doc.Summary, doc.Title)
	return err
}

func (f *fts5Index) Delete(ctx context.Context, tx *sql.Tx, fileID int64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM files_fts WHERE rowid = ?`, fileID)
	return err
}

func (f *fts5Index) Search(ctx context.Context, query string, limit int) ([]textHit, error) {
	match := sanitizeFTSQuery(query)
	if match == "" {
		return nil, nil
	}

	// bm25() returns lower-is-better; negate so higher means more relevant.
	rows, err := f.db.QueryContext(ctx, `
		SELECT rowid, -bm25(files_fts) AS score
		FROM files_fts
		WHERE files_fts MATCH ?
		ORDER BY score DESC
		LIMIT ?`, match, limit)
	if err != nil {
		// Malformed MATCH expressions surface as syntax errors; treat the
		// query as matching nothing rather than failing the search.
		if strings.Contains(err.Error(), "fts5") || strings.Contains(err.Error(), "syntax error") {
			return nil, nil
		}
		return nil, err
	}
	defer rows.Close()

	var hits []textHit
	for rows.Next() {
		var h textHit
		if err := rows.Scan(&h.FileID, &h.Score); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (f *fts5Index) Close() error { return nil }

// sanitizeFTSQuery reduces free text to quoted alphanumeric tokens so user
// input cannot inject FTS5 operators.
func sanitizeFTSQuery(query string) string {
	tokens := strings.FieldsFunc(query, func(r rune) bool {
		return !isWordRune(r)
	})
	if len(tokens) == 0 {
		return ""
	}

	quoted := make([]string, 0, len(tokens))
	for _, t := range tokens {
		quoted = append(quoted, `"`+t+`"`)
	}
	return strings.Join(quoted, " ")
}

func isWordRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_':
		return true
	default:
		return false
	}
}
