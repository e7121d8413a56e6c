package main

import (
	"bufio"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/inodb/featureindex/internal/feature"
	"github.com/inodb/featureindex/internal/output"
)

func newFilesCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "files",
		Short: "List indexed files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()

			files, err := a.db.Files(cmd.Context())
			if err != nil {
				return err
			}
			switch format {
			case "json":
				return output.WriteJSON(cmd.OutOrStdout(), files)
			case "tab":
				w := bufio.NewWriter(cmd.OutOrStdout())
				w.WriteString("#ID\tFormat\tReference\tSize\tIndexed\tPath\n")
				for _, f := range files {
					fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\n",
						f.ID, f.Format, f.ReferenceID, formatSize(f.Size),
						f.IndexedAt.Local().Format(time.DateTime), f.Path)
				}
				return w.Flush()
			default:
				return fmt.Errorf("%w: unknown output format %q", errUsage, format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "tab", "Output format: tab, json")
	return cmd
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <file-id>...",
		Short: "Remove indexed files",
		Long:  "Remove files and their entries from the index and from every project.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseFileIDs(args)
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()

			for _, id := range ids {
				removed, err := a.db.RemoveFile(cmd.Context(), id)
				if err != nil {
					return err
				}
				a.ix.Remove(id)
				if !removed {
					fmt.Fprintf(cmd.ErrOrStderr(), "file %d is not indexed\n", id)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d\n", id)
			}
			return nil
		},
	}
}

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage project membership",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <project-id> <file-id>...",
		Short: "Add files to a project",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd, args, func(a *app, p feature.ProjectID, ids []feature.FileID) error {
				return a.db.AddToProject(cmd.Context(), p, ids...)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "remove <project-id> <file-id>...",
		Short: "Remove files from a project",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd, args, func(a *app, p feature.ProjectID, ids []feature.FileID) error {
				return a.db.RemoveFromProject(cmd.Context(), p, ids...)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list <project-id>",
		Short: "List the files of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd, args, func(a *app, p feature.ProjectID, _ []feature.FileID) error {
				ids, err := a.db.ProjectFiles(cmd.Context(), p)
				if err != nil {
					return err
				}
				lines := make([]string, len(ids))
				for i, id := range ids {
					lines[i] = strconv.FormatInt(int64(id), 10)
				}
				return output.WriteLines(cmd.OutOrStdout(), lines)
			})
		},
	})
	return cmd
}

// withProject parses "<project-id> [file-id...]" and runs fn against an
// opened app.
func withProject(cmd *cobra.Command, args []string, fn func(*app, feature.ProjectID, []feature.FileID) error) error {
	p, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid project ID %q", errUsage, args[0])
	}
	ids, err := parseFileIDs(args[1:])
	if err != nil {
		return err
	}
	a, err := openApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a, feature.ProjectID(p), ids)
}

func parseFileIDs(args []string) ([]feature.FileID, error) {
	ids := make([]feature.FileID, len(args))
	for i, s := range args {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("%w: invalid file ID %q", errUsage, s)
		}
		ids[i] = feature.FileID(v)
	}
	return ids, nil
}
