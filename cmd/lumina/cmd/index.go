package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lumina-index/lumina/internal/discover"
)

type indexOptions struct {
	recursive bool
	pattern   string
}

func newIndexCmd(root *rootOptions) *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index <path>",
		Short: "Index a directory or single file",
		Long: `Index runs the full processing pipeline over a path: discovery,
content extraction, summarization, and embedding. Files whose content is
unchanged since the last run are skipped.

Examples:
  lumina index ./docs
  lumina index ./notes --pattern "*.md"
  lumina index ./report.md`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, root, args[0], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.recursive, "recursive", "r", true, "Descend into subdirectories")
	cmd.Flags().StringVarP(&opts.pattern, "pattern", "p", "", "Only index files matching this glob (e.g. \"*.md\")")

	return cmd
}

func runIndex(cmd *cobra.Command, root *rootOptions, path string, opts indexOptions) error {
	ctx := cmd.Context()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	a, err := openApp(root)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if isRegularFile(abs) {
		result, err := a.pipeline.ProcessFile(ctx, abs)
		if err != nil {
			return err
		}
		if result.Skipped {
			fmt.Fprintf(cmd.OutOrStdout(), "Unchanged: %s\n", result.File.Path)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed: %s\n", result.File.Path)
		}
		return nil
	}

	slog.Info("index_started", slog.String("root", abs), slog.Bool("recursive", opts.recursive))

	report, err := a.pipeline.ProcessDirectory(ctx, abs, discover.Options{
		Recursive:   opts.recursive,
		Pattern:     opts.pattern,
		MaxFileSize: a.cfg.Pipeline.MaxFileSize,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d files (%d unchanged, %d failed)\n",
		report.Processed, report.Skipped, report.Failed)
	for _, procErr := range report.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "  error: %v\n", procErr)
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d files failed to index", report.Failed)
	}
	return nil
}
