package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/ragindex/internal/app"
	"github.com/dshills/ragindex/internal/chunker"
	"github.com/dshills/ragindex/internal/indexer"
	"github.com/dshills/ragindex/internal/walker"
)

type indexFlags struct {
	include  []string
	exclude  []string
	strategy string
	global   bool
	quiet    bool
}

var (
	indexOpts   indexFlags
	reindexOpts indexFlags
)

var indexCmd = &cobra.Command{
	Use:   "index <project-id> <dir>",
	Short: "Index the documents under a directory",
	Long: `Walks dir, keeps files matching the include globs and not matching the
exclude globs, and indexes them into the project. Files already indexed are
replaced. With --global the files go to the shared global collection and
only <dir> is given.`,
	Args: indexArgs(&indexOpts),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIndex(cmd, args, indexOpts, false)
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex <project-id> <dir>",
	Short: "Clear a project and index a directory from scratch",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIndex(cmd, args, reindexOpts, true)
	},
}

func init() {
	for _, c := range []struct {
		cmd  *cobra.Command
		opts *indexFlags
	}{{indexCmd, &indexOpts}, {reindexCmd, &reindexOpts}} {
		f := c.cmd.Flags()
		f.StringSliceVar(&c.opts.include, "include", nil, "include globs (default from config)")
		f.StringSliceVar(&c.opts.exclude, "exclude", nil, "exclude globs (default from config)")
		f.StringVar(&c.opts.strategy, "strategy", "", "chunking strategy: heading, paragraph, code-aware, hybrid")
		f.BoolVarP(&c.opts.quiet, "quiet", "q", false, "print one line per file instead of a progress bar")
		rootCmd.AddCommand(c.cmd)
	}
	indexCmd.Flags().BoolVar(&indexOpts.global, "global", false, "index into the shared global collection")
}

func indexArgs(opts *indexFlags) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if opts.global {
			return cobra.ExactArgs(1)(cmd, args)
		}
		return cobra.ExactArgs(2)(cmd, args)
	}
}

func runIndex(cmd *cobra.Command, args []string, flags indexFlags, reindex bool) error {
	var projectID, dir string
	if flags.global {
		dir = args[0]
	} else {
		projectID, dir = args[0], args[1]
	}

	progress := newReporter(cmd.ErrOrStderr(), flags.quiet)
	a, err := openApp(app.WithFileProgress(func(r indexer.FileResult) {
		progress.Done(r.FilePath, r.Err)
	}))
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, stop := signalContext(cmd)
	defer stop()

	include, exclude := flags.include, flags.exclude
	if len(include) == 0 {
		include = a.Config.Indexing.Include
	}
	if len(exclude) == 0 {
		exclude = a.Config.Indexing.Exclude
	}
	files, err := walker.Walk(ctx, walker.Config{Root: dir, Include: include, Exclude: exclude})
	if err != nil {
		return err
	}

	opts := a.Config.Chunking
	if flags.strategy != "" {
		if opts.Strategy, err = chunker.ParseStrategy(flags.strategy); err != nil {
			return err
		}
	}

	inputs := make([]indexer.FileInput, len(files))
	for i, f := range files {
		inputs[i] = indexer.FileInput{Path: f.RelPath, Content: f.Content}
	}

	description := "Indexing " + projectID
	if flags.global {
		description = "Indexing global docs"
	} else if reindex {
		description = "Reindexing " + projectID
	}
	progress.Start(len(inputs), description)

	var result *indexer.BatchResult
	switch {
	case flags.global:
		result, err = indexGlobal(ctx, a, inputs, &opts, progress)
	case reindex:
		result, err = a.Pipeline.ReindexProject(ctx, projectID, inputs, &opts)
	default:
		result, err = a.Pipeline.IndexBatch(ctx, projectID, inputs, &opts)
	}
	progress.Finish()

	if result != nil {
		printBatchResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), result)
	}
	return err
}

// indexGlobal writes files into the global collection one at a time
func indexGlobal(ctx context.Context, a *app.App, files []indexer.FileInput, opts *chunker.Options, progress reporter) (*indexer.BatchResult, error) {
	start := time.Now()
	result := &indexer.BatchResult{TotalFiles: len(files), Errors: []indexer.FileError{}}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		res, err := a.Pipeline.IndexGlobalFile(ctx, f.Path, f.Content, opts)
		progress.Done(f.Path, err)
		if errors.Is(err, indexer.ErrStore) {
			return nil, err
		}
		if err != nil {
			result.Errors = append(result.Errors, indexer.FileError{FilePath: f.Path, Error: err.Error(), Err: err})
			continue
		}
		result.IndexedFiles++
		result.TotalChunks += res.ChunksIndexed
	}
	result.Duration = time.Since(start)
	result.DurationMs = result.Duration.Milliseconds()
	return result, nil
}

func printBatchResult(out, errOut io.Writer, r *indexer.BatchResult) {
	fmt.Fprintf(out, "Indexed %d/%d files, %d chunks in %s\n",
		r.IndexedFiles, r.TotalFiles, r.TotalChunks, r.Duration.Round(time.Millisecond))
	for _, fe := range r.Errors {
		fmt.Fprintf(errOut, "  failed %s: %s\n", fe.FilePath, fe.Error)
	}
}
