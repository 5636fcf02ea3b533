package cmd

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lumina-index/lumina/internal/watch"
)

type watchOptions struct {
	recursive bool
	pattern   string
	quiet     bool
}

func newWatchCmd(root *rootOptions) *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch [path...]",
		Short: "Watch directories and index changes as they happen",
		Long: `Watch registers the given directories (plus any previously registered
ones) and keeps the index current: created and modified files are
re-processed, deleted files are removed. Runs until interrupted.

Examples:
  lumina watch ./docs
  lumina watch ./notes --pattern "*.md"
  lumina watch            # resume previously registered directories`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, root, args, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.recursive, "recursive", "r", true, "Watch subdirectories too")
	cmd.Flags().StringVarP(&opts.pattern, "pattern", "p", "", "Only react to files matching this glob")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress per-file progress output")

	return cmd
}

func runWatch(cmd *cobra.Command, root *rootOptions, paths []string, opts watchOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(root)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	watcher, err := watch.New(a.store, a.pipeline, watch.Config{
		Debounce:  a.cfg.Watcher.Debounce,
		QueueSize: a.cfg.Watcher.QueueSize,
	})
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	watcher.Start(ctx)
	defer func() { _ = watcher.Stop() }()

	if err := watcher.InitializeFromDatabase(ctx); err != nil {
		return fmt.Errorf("resume watched directories: %w", err)
	}
	for _, path := range paths {
		dir, err := watcher.Watch(ctx, path, opts.recursive, opts.pattern)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Watching %s\n", dir.Path)
	}

	dirs, err := watcher.WatchedDirectories(ctx)
	if err != nil {
		return err
	}
	if len(dirs) == 0 {
		return fmt.Errorf("nothing to watch; pass a directory or register one with 'lumina dirs add'")
	}

	if !opts.quiet {
		sub := a.hub.Subscribe()
		if sub != nil {
			defer sub.Cancel()
			go func() {
				for update := range sub.C {
					fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", update.Kind, update.Path)
				}
			}()
		}
	}

	slog.Info("watch_running", slog.Int("directories", len(dirs)))
	<-ctx.Done()
	slog.Info("watch_stopping")
	return nil
}
