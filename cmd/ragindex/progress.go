package main

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// reporter shows batch progress on stderr
type reporter interface {
	Start(total int, description string)
	Done(filePath string, err error)
	Finish()
}

// newReporter returns a line reporter under CI or when quiet is set, a progress bar otherwise
func newReporter(w io.Writer, quiet bool) reporter {
	if quiet || os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return &lineReporter{w: w}
	}
	return &barReporter{w: w}
}

type barReporter struct {
	mu  sync.Mutex
	w   io.Writer
	bar *progressbar.ProgressBar
}

func (r *barReporter) Start(total int, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(r.w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *barReporter) Done(filePath string, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar != nil {
		r.bar.Describe(filePath)
		_ = r.bar.Add(1)
	}
}

func (r *barReporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}

// lineReporter prints one line per file, suitable for CI logs
type lineReporter struct {
	mu    sync.Mutex
	w     io.Writer
	total int
	done  int
}

func (r *lineReporter) Start(total int, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total = total
	fmt.Fprintf(r.w, "%s: %d files\n", description, total)
}

func (r *lineReporter) Done(filePath string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done++
	if err != nil {
		fmt.Fprintf(r.w, "[%d/%d] %s: %v\n", r.done, r.total, filePath, err)
		return
	}
	fmt.Fprintf(r.w, "[%d/%d] %s\n", r.done, r.total, filePath)
}

func (r *lineReporter) Finish() {}
