package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/ragindex/internal/searcher"
)

var searchCmd = &cobra.Command{
	Use:   "search <project-id> <query...>",
	Short: "Search a project with hybrid semantic and keyword ranking",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runSearch,
}

func init() {
	f := searchCmd.Flags()
	f.Int("limit", 0, "maximum number of results (default from config)")
	f.String("mode", "hybrid", "search mode: hybrid, vector, keyword")
	f.Float64("min-score", -1, "minimum normalized score (default from config)")
	f.Bool("global", false, "also search the global collection")
	f.Bool("json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	projectID := args[0]
	query := strings.Join(args[1:], " ")

	limit, _ := cmd.Flags().GetInt("limit")
	mode, _ := cmd.Flags().GetString("mode")
	minScore, _ := cmd.Flags().GetFloat64("min-score")
	global, _ := cmd.Flags().GetBool("global")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	opts := a.Config.Search.Defaults
	if err := applyMode(&opts, mode); err != nil {
		return err
	}
	if limit > 0 {
		opts.Limit = limit
	}
	if minScore >= 0 {
		opts.MinScore = minScore
	}
	opts.IncludeGlobal = opts.IncludeGlobal || global

	ctx, stop := signalContext(cmd)
	defer stop()

	resp, err := a.Searcher.Search(ctx, projectID, query, &opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	printResults(cmd.OutOrStdout(), resp)
	return nil
}

func applyMode(opts *searcher.Options, mode string) error {
	switch mode {
	case "hybrid", "":
		opts.UseVector, opts.UseKeyword = true, true
	case "vector":
		opts.UseVector, opts.UseKeyword = true, false
	case "keyword":
		opts.UseVector, opts.UseKeyword = false, true
	default:
		return fmt.Errorf("invalid mode %q: use hybrid, vector or keyword", mode)
	}
	return nil
}

func printResults(w io.Writer, resp *searcher.Response) {
	st := resp.Stats
	if st.VectorError != "" {
		fmt.Fprintf(w, "warning: semantic search unavailable: %s\n", st.VectorError)
	}
	if st.KeywordError != "" {
		fmt.Fprintf(w, "warning: keyword search unavailable: %s\n", st.KeywordError)
	}
	if len(resp.Results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	for i, r := range resp.Results {
		md := r.Metadata
		fmt.Fprintf(w, "%d. %s:%d-%d  (score %.3f)\n", i+1, md.FilePath, md.StartLine, md.EndLine, r.Score)
		if md.ParentHeading != "" {
			fmt.Fprintf(w, "   %s\n", md.ParentHeading)
		}
		fmt.Fprintf(w, "   %s\n\n", snippet(r.Content, 200))
	}
	fmt.Fprintf(w, "%d results (%d semantic, %d keyword) in %dms\n",
		len(resp.Results), st.VectorResultCount, st.KeywordResultCount, st.SearchTimeMs)
}

// snippet flattens whitespace and truncates to n runes
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
