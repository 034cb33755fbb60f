package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/ragindex/internal/app"
)

var statusCmd = &cobra.Command{
	Use:   "status <project-id>",
	Short: "Show whether a project is indexed and how many records it holds",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		a, err := openApp()
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		st, err := a.Status(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		}
		printStatus(cmd.OutOrStdout(), st)
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <project-id> [file...]",
	Short: "Remove files from a project, or the whole project with --all",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		projectID, files := args[0], args[1:]
		if all == (len(files) > 0) {
			return fmt.Errorf("give file paths or --all, not both")
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		out := cmd.OutOrStdout()
		if all {
			if err := a.Pipeline.DeleteProject(cmd.Context(), projectID); err != nil {
				return err
			}
			fmt.Fprintf(out, "Deleted project %s\n", projectID)
			return nil
		}
		for _, f := range files {
			n, err := a.Pipeline.RemoveFile(cmd.Context(), projectID, f)
			if err != nil {
				return fmt.Errorf("removing %s: %w", f, err)
			}
			fmt.Fprintf(out, "Removed %s (%d records)\n", f, n)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("json", false, "output status as JSON")
	removeCmd.Flags().Bool("all", false, "delete every record of the project")
	rootCmd.AddCommand(statusCmd, removeCmd)
}

func printStatus(w io.Writer, st *app.ProjectStatus) {
	fmt.Fprintf(w, "Project:    %s\n", st.ProjectID)
	if !st.Exists {
		fmt.Fprintln(w, "Indexed:    no")
	} else {
		fmt.Fprintf(w, "Indexed:    yes (%d records)\n", st.DocumentCount)
	}
	if st.LastIndexedAt != nil {
		fmt.Fprintf(w, "Last write: %s\n", st.LastIndexedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "Indexing:   %v\n", st.IsIndexing)
	fmt.Fprintf(w, "Embedder:   %s / %s (%d dims)\n", st.Provider, st.Model, st.Dimension)
	fmt.Fprintf(w, "Storage:    vectors=%s keywords=%s\n", st.VectorBackend, st.KeywordIndex)
}
