package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lumina-index/lumina/internal/discover"
	luminaerr "github.com/lumina-index/lumina/internal/errors"
	"github.com/lumina-index/lumina/internal/hub"
	"github.com/lumina-index/lumina/internal/model"
	"github.com/lumina-index/lumina/internal/store"
)

// Config tunes pipeline execution.
type Config struct {
	// Workers bounds concurrent per-file processing in ProcessDirectory.
	Workers int
	// StageTimeout bounds each capability invocation. Zero means no limit.
	StageTimeout time.Duration
	// MaxFileSize skips larger files during directory discovery.
	MaxFileSize int64
}

// Result is the outcome of processing one file.
type Result struct {
	File *model.FileRecord
	// Skipped means the stored record was already current and no stages ran.
	Skipped bool
}

// Report aggregates a directory run. Individual failures land in Errors;
// they never abort the batch.
type Report struct {
	Processed int
	Skipped   int
	Failed    int
	Errors    []error
}

// Pipeline owns the parse, summarize, and embed stages. The record is
// persisted after every status transition, so a crash mid-file loses at most
// the stage in flight.
type Pipeline struct {
	store      *store.Store
	hub        *hub.Hub[model.Update]
	parser     Parser
	summarizer Summarizer
	embedder   Embedder
	discoverer *discover.Discoverer
	cfg        Config
	logger     *slog.Logger
}

// New wires a pipeline. The hub may be nil when no subscriber cares about
// progress events.
func New(st *store.Store, h *hub.Hub[model.Update], parser Parser, summarizer Summarizer, embedder Embedder, cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Pipeline{
		store:      st,
		hub:        h,
		parser:     parser,
		summarizer: summarizer,
		embedder:   embedder,
		discoverer: discover.New(),
		cfg:        cfg,
		logger:     slog.Default(),
	}
}

// IsSupported reports whether the pipeline's parser handles the record.
func (p *Pipeline) IsSupported(rec *model.FileRecord) bool {
	return p.parser.Supports(rec)
}

// ProcessFile runs one file through every stage. An unchanged file that
// already completed is skipped with its bookkeeping timestamp refreshed.
// Stage failures persist the FAILED status before the error is returned.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (*Result, error) {
	if path == "" {
		return nil, luminaerr.New(luminaerr.ErrCodeMissingPath, "path is required", nil)
	}

	rec, err := model.FileRecordFromPath(path)
	if err != nil {
		return nil, luminaerr.New(luminaerr.ErrCodeInvalidInput,
			fmt.Sprintf("cannot stat %s", path), err)
	}

	prior, err := p.store.GetFileByPath(ctx, rec.Path)
	if err != nil {
		return nil, err
	}

	// Cheap skip on metadata alone: completed record, no newer mtime.
	if prior != nil && prior.Status == model.StatusComplete && !rec.ChangedSince(prior) {
		return p.skip(ctx, prior)
	}

	p.publish(model.UpdateDiscovered, rec)
	// Known paths are not persisted until a stage produces new state, so a
	// skip after parsing leaves the stored record untouched.
	if prior == nil {
		if _, err := p.store.UpsertFile(ctx, rec); err != nil {
			return nil, err
		}
	}

	// Parse stage.
	p.publish(model.UpdateParsing, rec)
	if err := p.runStage(ctx, func(c context.Context) error {
		return p.parser.Parse(c, rec)
	}); err != nil {
		return nil, p.fail(ctx, rec, luminaerr.ErrCodeParseFailed, "parse", err)
	}
	now := time.Now().UTC()
	rec.Status = model.StatusParsed
	rec.ParsedAt = &now

	// The hash is authoritative: an mtime bump with identical content is
	// still a skip, but only after parsing reveals the hash.
	if prior != nil && prior.Status == model.StatusComplete && !rec.ChangedSince(prior) {
		return p.skip(ctx, prior)
	}

	p.publish(model.UpdateParsed, rec)
	if _, err := p.store.UpsertFile(ctx, rec); err != nil {
		return nil, err
	}

	// Summarize stage.
	p.publish(model.UpdateSummarizing, rec)
	if err := p.runStage(ctx, func(c context.Context) error {
		return p.summarizer.Summarize(c, rec)
	}); err != nil {
		return nil, p.fail(ctx, rec, luminaerr.ErrCodeSummarizeFailed, "summarize", err)
	}
	now = time.Now().UTC()
	rec.Status = model.StatusSummarized
	rec.SummarizedAt = &now
	p.publish(model.UpdateSummarized, rec)
	if _, err := p.store.UpsertFile(ctx, rec); err != nil {
		return nil, err
	}

	// Embed stage.
	p.publish(model.UpdateEmbedding, rec)
	if err := p.runStage(ctx, func(c context.Context) error {
		return p.embedder.Embed(c, rec)
	}); err != nil {
		return nil, p.fail(ctx, rec, luminaerr.ErrCodeEmbedFailed, "embed", err)
	}
	now = time.Now().UTC()
	rec.EmbeddedAt = &now
	rec.Status = model.StatusComplete
	rec.ProcessingError = ""
	p.publish(model.UpdateEmbedded, rec)

	id, err := p.store.UpsertFile(ctx, rec)
	if err != nil {
		return nil, err
	}
	if len(rec.Embedding) > 0 {
		if err := p.store.UpsertFileEmbeddings(ctx, id, rec.Embedding, rec.EmbeddingModel); err != nil {
			return nil, err
		}
	}

	p.publish(model.UpdateComplete, rec)
	p.logger.Debug("pipeline_file_complete",
		slog.String("path", rec.Path),
		slog.Int64("file_id", id))
	return &Result{File: rec}, nil
}

// ProcessDirectory discovers files under root and processes each supported
// one. Per-file failures are recorded in the report and never stop the batch.
func (p *Pipeline) ProcessDirectory(ctx context.Context, root string, opts discover.Options) (*Report, error) {
	if opts.MaxFileSize == 0 {
		opts.MaxFileSize = p.cfg.MaxFileSize
	}

	results, err := p.discoverer.Discover(ctx, root, opts)
	if err != nil {
		return nil, err
	}

	var (
		mu     sync.Mutex
		report Report
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)

	for res := range results {
		if res.Err != nil {
			mu.Lock()
			report.Failed++
			report.Errors = append(report.Errors, res.Err)
			mu.Unlock()
			continue
		}
		if !p.parser.Supports(res.File) {
			continue
		}

		path := res.File.Path
		g.Go(func() error {
			out, err := p.ProcessFile(gctx, path)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Failed++
				report.Errors = append(report.Errors, fmt.Errorf("%s: %w", path, err))
				p.logger.Warn("pipeline_file_failed",
					slog.String("path", path),
					slog.String("error", err.Error()))
			case out.Skipped:
				report.Skipped++
			default:
				report.Processed++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return &report, err
	}
	if err := ctx.Err(); err != nil {
		return &report, err
	}

	p.logger.Info("pipeline_directory_done",
		slog.String("root", root),
		slog.Int("processed", report.Processed),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed))
	return &report, nil
}

func (p *Pipeline) skip(ctx context.Context, prior *model.FileRecord) (*Result, error) {
	if _, err := p.store.UpdateFileTimestamp(ctx, prior.Path); err != nil {
		return nil, err
	}
	return &Result{File: prior, Skipped: true}, nil
}

// fail persists the FAILED status before surfacing the stage error, so the
// failure is queryable after the process exits.
func (p *Pipeline) fail(ctx context.Context, rec *model.FileRecord, code, stage string, cause error) error {
	rec.Fail(cause.Error())
	p.publish(model.UpdateFailed, rec)

	if _, err := p.store.UpsertFile(ctx, rec); err != nil {
		p.logger.Error("pipeline_failure_persist_failed",
			slog.String("path", rec.Path),
			slog.String("error", err.Error()))
	}

	return luminaerr.StageError(code, stage, cause)
}

func (p *Pipeline) runStage(ctx context.Context, fn func(context.Context) error) error {
	if p.cfg.StageTimeout <= 0 {
		return fn(ctx)
	}
	stageCtx, cancel := context.WithTimeout(ctx, p.cfg.StageTimeout)
	defer cancel()
	return fn(stageCtx)
}

func (p *Pipeline) publish(kind model.UpdateKind, rec *model.FileRecord) {
	if p.hub == nil {
		return
	}
	p.hub.Publish(model.NewUpdate(kind, rec))
}

// Delete removes a file from the index and announces the removal. Unknown
// paths are a no-op.
func (p *Pipeline) Delete(ctx context.Context, path string) (*model.FileRecord, error) {
	prior, err := p.store.DeleteFile(ctx, path)
	if err != nil {
		return nil, err
	}
	if prior != nil && p.hub != nil {
		p.hub.Publish(model.Update{
			Kind:      model.UpdateDeleted,
			Path:      prior.Path,
			Status:    prior.Status,
			Timestamp: time.Now().UTC(),
		})
	}
	return prior, nil
}
