// Package cmd provides the CLI commands for Lumina.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lumina-index/lumina/internal/config"
	"github.com/lumina-index/lumina/internal/logging"
)

// Version is set at build time via -ldflags.
var Version = "dev"

type rootOptions struct {
	configPath string
	dataDir    string
	logLevel   string
	logFile    string
}

// NewRootCmd creates the root command for the lumina CLI.
func NewRootCmd() *cobra.Command {
	var opts rootOptions
	var loggingCleanup func()

	cmd := &cobra.Command{
		Use:   "lumina",
		Short: "Incremental file indexer with hybrid search",
		Long: `Lumina watches directories, extracts and summarizes file content,
and serves hybrid keyword + semantic search over the result.

Files are re-processed only when their content actually changes.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Missing .env is fine; explicit environment wins either way.
			_ = godotenv.Load()

			logCfg := logging.Config{
				Level:         opts.logLevel,
				FilePath:      opts.logFile,
				WriteToStderr: opts.logFile == "",
			}
			cleanup, err := logging.SetupDefault(logCfg)
			if err != nil {
				return fmt.Errorf("setup logging: %w", err)
			}
			loggingCleanup = cleanup
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if loggingCleanup != nil {
				loggingCleanup()
				loggingCleanup = nil
			}
		},
	}

	cmd.SetVersionTemplate("lumina version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to config file (YAML)")
	cmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "Override the index data directory")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "Write logs to a file instead of stderr")

	cmd.AddCommand(newIndexCmd(&opts))
	cmd.AddCommand(newSearchCmd(&opts))
	cmd.AddCommand(newWatchCmd(&opts))
	cmd.AddCommand(newDirsCmd(&opts))

	return cmd
}

// loadConfig resolves configuration for a command run, applying root-level
// flag overrides on top of file and environment values.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.dataDir != "" {
		cfg.DataDir = opts.dataDir
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	slog.Debug("config_loaded",
		slog.String("data_dir", cfg.DataDir),
		slog.String("text_index", cfg.Store.TextIndex),
		slog.String("embeddings_provider", cfg.Embeddings.Provider))
	return cfg, nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
