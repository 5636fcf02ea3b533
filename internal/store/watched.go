package store

import (
	"context"
	"database/sql"

	luminaerr "github.com/lumina-index/lumina/internal/errors"
	"github.com/lumina-index/lumina/internal/model"
)

// AddWatchedDirectory registers a directory for watching. If an active
// registration for the path already exists it is returned unchanged; an
// inactive one is reactivated with the new settings.
func (s *Store) AddWatchedDirectory(ctx context.Context, dir *model.WatchedDirectory) (*model.WatchedDirectory, error) {
	if dir == nil || dir.Path == "" {
		return nil, luminaerr.New(luminaerr.ErrCodeMissingPath, "directory path is required", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, luminaerr.New(luminaerr.ErrCodeStoreClosed, "store is closed", nil)
	}

	existing, err := s.getWatchedByPath(ctx, dir.Path)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Active {
		return existing, nil
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	createdAt := now()
	if existing != nil {
		_, err = tx.ExecContext(ctx, `
			UPDATE watched_directories
			SET recursive = ?, file_pattern = ?, active = 1
			WHERE id = ?`,
			dir.Recursive, dir.FilePattern, existing.ID)
	} else {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO watched_directories (path, recursive, file_pattern, active, created_at)
			VALUES (?, ?, ?, 1, ?)`,
			dir.Path, dir.Recursive, dir.FilePattern, encodeTime(createdAt))
	}
	if err != nil {
		return nil, luminaerr.StoreError("add watched directory", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, luminaerr.StoreError("commit watched directory", err)
	}

	return s.getWatchedByPath(ctx, dir.Path)
}

// GetWatchedDirectories lists registrations, optionally restricted to active
// ones, ordered by path.
func (s *Store) GetWatchedDirectories(ctx context.Context, activeOnly bool) ([]*model.WatchedDirectory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, luminaerr.New(luminaerr.ErrCodeStoreClosed, "store is closed", nil)
	}

	q := `SELECT id, path, recursive, file_pattern, active, created_at
		FROM watched_directories`
	if activeOnly {
		q += ` WHERE active = 1`
	}
	q += ` ORDER BY path`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, luminaerr.StoreError("list watched directories", err)
	}
	defer rows.Close()

	var dirs []*model.WatchedDirectory
	for rows.Next() {
		dir, err := scanWatchedDirectory(rows)
		if err != nil {
			return nil, luminaerr.StoreError("scan watched directory", err)
		}
		dirs = append(dirs, dir)
	}
	return dirs, rows.Err()
}

// DeleteWatchedDirectory deactivates the registration without removing the
// row, so indexed records under it survive. Returns the registration as it
// was before deactivation, or (nil, nil) when no active registration exists.
func (s *Store) DeleteWatchedDirectory(ctx context.Context, path string) (*model.WatchedDirectory, error) {
	if path == "" {
		return nil, luminaerr.New(luminaerr.ErrCodeMissingPath, "directory path is required", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, luminaerr.New(luminaerr.ErrCodeStoreClosed, "store is closed", nil)
	}

	prior, err := s.getWatchedByPath(ctx, path)
	if err != nil {
		return nil, err
	}
	if prior == nil || !prior.Active {
		return nil, nil
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE watched_directories SET active = 0 WHERE id = ?`, prior.ID); err != nil {
		return nil, luminaerr.StoreError("deactivate watched directory", err)
	}
	return prior, nil
}

// DeleteWatchedDirectoryByID deactivates a registration by its assigned id.
// Same soft-delete semantics as DeleteWatchedDirectory.
func (s *Store) DeleteWatchedDirectoryByID(ctx context.Context, id int64) (*model.WatchedDirectory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, luminaerr.New(luminaerr.ErrCodeStoreClosed, "store is closed", nil)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, path, recursive, file_pattern, active, created_at
		FROM watched_directories
		WHERE id = ?`, id)
	prior, err := scanWatchedDirectory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, luminaerr.StoreError("get watched directory", err)
	}
	if !prior.Active {
		return nil, nil
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE watched_directories SET active = 0 WHERE id = ?`, id); err != nil {
		return nil, luminaerr.StoreError("deactivate watched directory", err)
	}
	return prior, nil
}

func (s *Store) getWatchedByPath(ctx context.Context, path string) (*model.WatchedDirectory, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, path, recursive, file_pattern, active, created_at
		FROM watched_directories
		WHERE path = ?`, path)

	dir, err := scanWatchedDirectory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, luminaerr.StoreError("get watched directory", err)
	}
	return dir, nil
}

func scanWatchedDirectory(row rowScanner) (*model.WatchedDirectory, error) {
	var (
		dir       model.WatchedDirectory
		createdAt sql.NullString
	)
	if err := row.Scan(&dir.ID, &dir.Path, &dir.Recursive, &dir.FilePattern, &dir.Active, &createdAt); err != nil {
		return nil, err
	}
	dir.CreatedAt = decodeTime(createdAt)
	return &dir, nil
}
