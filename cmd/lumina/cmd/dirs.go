package cmd

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lumina-index/lumina/internal/model"
)

func newDirsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dirs",
		Short: "Manage the registered watch directories",
		Long: `Dirs manages the directories the watcher resumes on startup.
Registrations persist in the index; 'lumina watch' picks them up.`,
	}

	cmd.AddCommand(newDirsAddCmd(root))
	cmd.AddCommand(newDirsListCmd(root))
	cmd.AddCommand(newDirsRemoveCmd(root))

	return cmd
}

func newDirsAddCmd(root *rootOptions) *cobra.Command {
	var recursive bool
	var pattern string

	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Register a directory for watching",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			abs, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}

			a, err := openApp(root)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			dir, err := a.store.AddWatchedDirectory(cmd.Context(), &model.WatchedDirectory{
				Path:        abs,
				Recursive:   recursive,
				FilePattern: pattern,
				Active:      true,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s\n", dir.Path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", true, "Watch subdirectories too")
	cmd.Flags().StringVarP(&pattern, "pattern", "p", "", "Only react to files matching this glob")

	return cmd
}

func newDirsListCmd(root *rootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(root)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			dirs, err := a.store.GetWatchedDirectories(cmd.Context(), !all)
			if err != nil {
				return err
			}
			if len(dirs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No directories registered")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PATH\tRECURSIVE\tPATTERN\tACTIVE")
			for _, dir := range dirs {
				pattern := dir.FilePattern
				if pattern == "" {
					pattern = "*"
				}
				fmt.Fprintf(w, "%s\t%t\t%s\t%t\n", dir.Path, dir.Recursive, pattern, dir.Active)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include deactivated registrations")

	return cmd
}

func newDirsRemoveCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <path>",
		Short: "Deactivate a registered directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			abs, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}

			a, err := openApp(root)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			dir, err := a.store.DeleteWatchedDirectory(cmd.Context(), abs)
			if err != nil {
				return err
			}
			if dir == nil {
				return fmt.Errorf("%s is not registered", abs)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", dir.Path)
			return nil
		},
	}
}
