package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	luminaerr "github.com/lumina-index/lumina/internal/errors"
	"github.com/lumina-index/lumina/internal/model"
	"github.com/lumina-index/lumina/internal/pipeline"
	"github.com/lumina-index/lumina/internal/store"
)

// Config tunes the watcher.
type Config struct {
	// Debounce is the quiet window before coalesced events fire.
	Debounce time.Duration
	// QueueSize bounds events awaiting pipeline processing. A full queue
	// drops the oldest entry first.
	QueueSize int
}

func (c Config) withDefaults() Config {
	if c.Debounce <= 0 {
		c.Debounce = 200 * time.Millisecond
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	return c
}

// Watcher observes registered directories and feeds changes through the
// pipeline: creates and writes reindex the file, removals delete its record.
// Registrations persist in the store and survive restarts.
type Watcher struct {
	store    *store.Store
	pipeline *pipeline.Pipeline
	fsw      *fsnotify.Watcher
	debounce *Debouncer
	cfg      Config
	logger   *slog.Logger

	queue chan Event

	mu      sync.RWMutex
	watched map[string]*model.WatchedDirectory
	stopped bool

	stopCh  chan struct{}
	wg      sync.WaitGroup
	dropped atomic.Uint64
}

func New(st *store.Store, p *pipeline.Pipeline, cfg Config) (*Watcher, error) {
	cfg = cfg.withDefaults()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create filesystem watcher: %w", err)
	}

	return &Watcher{
		store:    st,
		pipeline: p,
		fsw:      fsw,
		debounce: NewDebouncer(cfg.Debounce),
		cfg:      cfg,
		logger:   slog.Default(),
		queue:    make(chan Event, cfg.QueueSize),
		watched:  make(map[string]*model.WatchedDirectory),
		stopCh:   make(chan struct{}),
	}, nil
}

// Start launches the event loops. It returns immediately; Stop shuts the
// loops down.
func (w *Watcher) Start(ctx context.Context) {
	w.wg.Add(3)
	go w.fsnotifyLoop(ctx)
	go w.forwardLoop(ctx)
	go w.workerLoop(ctx)
}

// InitializeFromDatabase resumes watching every active registration.
func (w *Watcher) InitializeFromDatabase(ctx context.Context) error {
	dirs, err := w.store.GetWatchedDirectories(ctx, true)
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		if err := w.attach(dir); err != nil {
			w.logger.Warn("watch_resume_failed",
				slog.String("path", dir.Path),
				slog.String("error", err.Error()))
			continue
		}
		w.logger.Info("watch_resumed", slog.String("path", dir.Path))
	}
	return nil
}

// Watch registers a directory and begins observing it. Watching an already
// watched path updates nothing and returns the existing registration.
func (w *Watcher) Watch(ctx context.Context, path string, recursive bool, pattern string) (*model.WatchedDirectory, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, luminaerr.ValidationError(fmt.Sprintf("invalid path %q", path))
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, luminaerr.New(luminaerr.ErrCodeMissingPath,
			fmt.Sprintf("cannot watch %s", abs), err)
	}
	if !info.IsDir() {
		return nil, luminaerr.ValidationError(fmt.Sprintf("%s is not a directory", abs))
	}

	dir, err := w.store.AddWatchedDirectory(ctx, &model.WatchedDirectory{
		Path:        abs,
		Recursive:   recursive,
		FilePattern: pattern,
	})
	if err != nil {
		return nil, err
	}

	if err := w.attach(dir); err != nil {
		return nil, err
	}
	w.logger.Info("watch_added",
		slog.String("path", abs),
		slog.Bool("recursive", recursive))
	return dir, nil
}

// Unwatch deactivates the registration and detaches filesystem watches.
// Indexed records under the directory are left intact. Returns the prior
// registration, or (nil, nil) when the path was not watched.
func (w *Watcher) Unwatch(ctx context.Context, path string) (*model.WatchedDirectory, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, luminaerr.ValidationError(fmt.Sprintf("invalid path %q", path))
	}

	prior, err := w.store.DeleteWatchedDirectory(ctx, abs)
	if err != nil {
		return nil, err
	}
	if prior == nil {
		return nil, nil
	}

	w.detach(abs)
	w.logger.Info("watch_removed", slog.String("path", abs))
	return prior, nil
}

// WatchedDirectories lists active registrations.
func (w *Watcher) WatchedDirectories(ctx context.Context) ([]*model.WatchedDirectory, error) {
	return w.store.GetWatchedDirectories(ctx, true)
}

// attach adds fsnotify watches for the registration's directory tree.
func (w *Watcher) attach(dir *model.WatchedDirectory) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return luminaerr.New(luminaerr.ErrCodeStoreClosed, "watcher is stopped", nil)
	}
	if _, ok := w.watched[dir.Path]; ok {
		return nil
	}

	if dir.Recursive {
		err := filepath.WalkDir(dir.Path, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if !entry.IsDir() {
				return nil
			}
			if isHidden(entry.Name()) && path != dir.Path {
				return filepath.SkipDir
			}
			return w.fsw.Add(path)
		})
		if err != nil {
			return fmt.Errorf("watch tree %s: %w", dir.Path, err)
		}
	} else {
		if err := w.fsw.Add(dir.Path); err != nil {
			return fmt.Errorf("watch %s: %w", dir.Path, err)
		}
	}

	w.watched[dir.Path] = dir
	return nil
}

func (w *Watcher) detach(root string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.watched, root)
	for _, watched := range w.fsw.WatchList() {
		if watched == root || strings.HasPrefix(watched, root+string(filepath.Separator)) {
			_ = w.fsw.Remove(watched)
		}
	}
}

func (w *Watcher) fsnotifyLoop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleFsEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch_fsnotify_error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handleFsEvent(event fsnotify.Event) {
	path := event.Name

	isDir := false
	if info, err := os.Stat(path); err == nil {
		isDir = info.IsDir()
	}

	if isDir {
		// New directories under a recursive registration join the watch.
		if event.Op&fsnotify.Create != 0 {
			if reg := w.registrationFor(path); reg != nil && reg.Recursive && !isHidden(filepath.Base(path)) {
				_ = w.fsw.Add(path)
			}
		}
		return
	}

	if !w.accepts(path) {
		return
	}

	var op Op
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
	case event.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		return
	}

	w.debounce.Add(Event{Path: path, Op: op, Timestamp: time.Now().UTC()})
}

// accepts reports whether some active registration covers the file path.
func (w *Watcher) accepts(path string) bool {
	base := filepath.Base(path)
	if isHidden(base) {
		return false
	}

	reg := w.registrationFor(path)
	if reg == nil {
		return false
	}
	if !reg.Recursive && filepath.Dir(path) != reg.Path {
		return false
	}
	if reg.FilePattern != "" {
		ok, err := filepath.Match(reg.FilePattern, base)
		if err != nil || !ok {
			return false
		}
	}
	return true
}

// registrationFor returns the deepest registration whose tree contains path.
func (w *Watcher) registrationFor(path string) *model.WatchedDirectory {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var best *model.WatchedDirectory
	for root, reg := range w.watched {
		if path != root && !strings.HasPrefix(path, root+string(filepath.Separator)) {
			continue
		}
		if best == nil || len(root) > len(best.Path) {
			best = reg
		}
	}
	return best
}

// forwardLoop moves debounced batches onto the bounded work queue, evicting
// the oldest entry when full.
func (w *Watcher) forwardLoop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.debounce.Output():
			if !ok {
				return
			}
			for _, event := range batch {
				w.enqueue(event)
			}
		}
	}
}

func (w *Watcher) enqueue(event Event) {
	for {
		select {
		case w.queue <- event:
			return
		default:
		}
		select {
		case old := <-w.queue:
			count := w.dropped.Add(1)
			w.logger.Warn("watch_queue_overflow",
				slog.String("dropped_path", old.Path),
				slog.Uint64("total_dropped", count))
		default:
		}
	}
}

func (w *Watcher) workerLoop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-w.queue:
			w.process(ctx, event)
		case <-w.stopCh:
			w.drainQueue(ctx)
			return
		}
	}
}

// drainQueue processes whatever was already queued when the stop signal
// arrived, so a clean shutdown loses no accepted work.
func (w *Watcher) drainQueue(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		select {
		case event := <-w.queue:
			w.process(ctx, event)
		default:
			return
		}
	}
}

func (w *Watcher) process(ctx context.Context, event Event) {
	switch event.Op {
	case OpCreate, OpModify:
		if _, err := w.pipeline.ProcessFile(ctx, event.Path); err != nil {
			w.logger.Warn("watch_process_failed",
				slog.String("path", event.Path),
				slog.String("op", event.Op.String()),
				slog.String("error", err.Error()))
		}
	case OpDelete, OpRename:
		if _, err := w.pipeline.Delete(ctx, event.Path); err != nil {
			w.logger.Warn("watch_delete_failed",
				slog.String("path", event.Path),
				slog.String("error", err.Error()))
		}
	}
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// DroppedEvents returns how many queued events were evicted under pressure.
func (w *Watcher) DroppedEvents() uint64 {
	return w.dropped.Load()
}

// Stop shuts down the loops and the filesystem watcher. Idempotent. Events
// already on the queue are processed before the worker exits.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	w.mu.Unlock()

	close(w.stopCh)
	w.debounce.Stop()
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}
