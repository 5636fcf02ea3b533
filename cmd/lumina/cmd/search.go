package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lumina-index/lumina/internal/search"
)

type searchOptions struct {
	limit       int
	directory   string
	keywordOnly bool
	format      string
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed files",
		Long: `Search runs a hybrid query: full-text keyword matching fused with
semantic similarity over file embeddings.

Examples:
  lumina search "deployment checklist"
  lumina search "error handling" --limit 5 --dir ./docs
  lumina search "rollback" --keyword-only --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, root, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.directory, "dir", "d", "", "Restrict results to files under this directory")
	cmd.Flags().BoolVar(&opts.keywordOnly, "keyword-only", false, "Skip semantic search")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

// searchResultJSON is the stable shape emitted by --format json.
type searchResultJSON struct {
	Path          string    `json:"path"`
	Title         string    `json:"title,omitempty"`
	Summary       string    `json:"summary,omitempty"`
	Modified      time.Time `json:"modified"`
	Score         float64   `json:"score"`
	KeywordScore  float64   `json:"keyword_score"`
	SemanticScore float64   `json:"semantic_score"`
}

func runSearch(cmd *cobra.Command, root *rootOptions, query string, opts searchOptions) error {
	a, err := openApp(root)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	results, err := a.searcher.Search(cmd.Context(), query, search.Options{
		Limit:       opts.limit,
		Directory:   opts.directory,
		KeywordOnly: opts.keywordOnly,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if opts.format == "json" {
		payload := make([]searchResultJSON, 0, len(results))
		for _, r := range results {
			payload = append(payload, searchResultJSON{
				Path:          r.File.Path,
				Title:         r.File.Title,
				Summary:       r.File.Summary,
				Modified:      r.File.Modified,
				Score:         r.Score,
				KeywordScore:  r.KeywordScore,
				SemanticScore: r.SemanticScore,
			})
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}

	if len(results) == 0 {
		fmt.Fprintf(out, "No results for %q\n", query)
		return nil
	}

	for i, r := range results {
		fmt.Fprintf(out, "%2d. %s  (score %.3f)\n", i+1, r.File.Path, r.Score)
		if r.File.Title != "" {
			fmt.Fprintf(out, "    %s\n", r.File.Title)
		}
		if r.File.Summary != "" {
			fmt.Fprintf(out, "    %s\n", firstLine(r.File.Summary))
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
