// Package discover enumerates indexable files under a root path.
package discover

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lumina-index/lumina/internal/model"
)

// DefaultMaxFileSize is the size cap applied when Options leaves it unset.
const DefaultMaxFileSize = 10 * 1024 * 1024

// Options controls a discovery walk.
type Options struct {
	// Recursive descends into subdirectories. Non-recursive walks only the
	// root's direct children.
	Recursive bool
	// Pattern is an optional glob matched against base names (e.g. "*.md").
	Pattern string
	// MaxFileSize skips files larger than this many bytes. Zero means
	// DefaultMaxFileSize.
	MaxFileSize int64
}

// Result is one discovered file or a walk error. Exactly one field is set.
type Result struct {
	File *model.FileRecord
	Err  error
}

// Discoverer walks directories and produces DISCOVERED file records from
// filesystem metadata. It reads no file content.
type Discoverer struct{}

// New creates a Discoverer.
func New() *Discoverer {
	return &Discoverer{}
}

// Discover streams file records found under root. The channel closes when
// the walk finishes or ctx is cancelled. Hidden files and directories
// (dot-prefixed) are skipped.
func (d *Discoverer) Discover(ctx context.Context, root string, opts Options) (<-chan Result, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", absRoot)
	}

	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	results := make(chan Result, 64)
	go func() {
		defer close(results)
		d.walk(ctx, absRoot, opts, maxSize, results)
	}()
	return results, nil
}

func (d *Discoverer) walk(ctx context.Context, root string, opts Options, maxSize int64, results chan<- Result) {
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			// Unreadable entries are reported but never abort the walk.
			slog.Warn("discover_entry_error",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return nil
		}

		name := entry.Name()
		if entry.IsDir() {
			if path == root {
				return nil
			}
			if strings.HasPrefix(name, ".") || !opts.Recursive {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}
		if opts.Pattern != "" {
			matched, matchErr := filepath.Match(opts.Pattern, name)
			if matchErr != nil {
				return fmt.Errorf("invalid pattern %q: %w", opts.Pattern, matchErr)
			}
			if !matched {
				return nil
			}
		}

		info, statErr := entry.Info()
		if statErr != nil {
			slog.Warn("discover_stat_failed",
				slog.String("path", path),
				slog.String("error", statErr.Error()))
			return nil
		}
		if info.Size() > maxSize {
			slog.Debug("discover_file_too_large",
				slog.String("path", path),
				slog.Int64("size", info.Size()))
			return nil
		}

		select {
		case results <- Result{File: model.NewFileRecord(path, info)}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		select {
		case results <- Result{Err: err}:
		case <-ctx.Done():
		}
	}
}
