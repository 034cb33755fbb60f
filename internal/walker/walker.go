// Package walker collects the documents under a directory for batch indexing.
package walker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultMaxFileSize is the largest file read (1 MB)
const DefaultMaxFileSize int64 = 1 << 20

// ErrInvalidPattern is returned for a malformed include or exclude glob
var ErrInvalidPattern = errors.New("invalid glob pattern")

// Config controls Walk
type Config struct {
	Root        string
	Include     []string // doublestar globs; empty includes everything
	Exclude     []string
	MaxFileSize int64 // 0 uses DefaultMaxFileSize
}

// File is one document found under Root
type File struct {
	Path    string // on disk
	RelPath string // slash-separated, relative to Root; used as the record file path
	Content string
}

// Validate checks every pattern
func (c Config) Validate() error {
	for _, p := range append(append([]string{}, c.Include...), c.Exclude...) {
		if !doublestar.ValidatePattern(filepath.ToSlash(p)) {
			return fmt.Errorf("%w: %q", ErrInvalidPattern, p)
		}
	}
	return nil
}

// Walk returns the text files under cfg.Root that pass the filters, sorted by
// RelPath. Unreadable entries, binary files and files over the size limit are
// skipped.
func Walk(ctx context.Context, cfg Config) ([]File, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("walker: resolve root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("walker: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("walker: %s is not a directory", root)
	}

	maxSize := cfg.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	var files []File
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if excludesDir(rel, cfg.Exclude) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !MatchesInclude(rel, cfg.Include) || MatchesExclude(rel, cfg.Exclude) {
			return nil
		}

		fi, err := d.Info()
		if err != nil || fi.Size() > maxSize {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil || isBinary(data) {
			return nil
		}

		files = append(files, File{Path: path, RelPath: rel, Content: string(data)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walker: traversal: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

// MatchesInclude reports whether rel matches any include pattern.
// No patterns includes everything.
func MatchesInclude(rel string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	return matchesAny(rel, patterns)
}

// MatchesExclude reports whether rel matches any exclude pattern
func MatchesExclude(rel string, patterns []string) bool {
	return len(patterns) > 0 && matchesAny(rel, patterns)
}

// matchesAny tries each pattern against the full relative path and the base name
func matchesAny(rel string, patterns []string) bool {
	rel = filepath.ToSlash(rel)
	base := rel
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		base = rel[i+1:]
	}
	for _, p := range patterns {
		p = filepath.ToSlash(p)
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(p, base); ok {
			return true
		}
	}
	return false
}

// excludesDir prunes a directory when a pattern excludes it or everything in it
func excludesDir(rel string, patterns []string) bool {
	for _, p := range patterns {
		p = filepath.ToSlash(p)
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(p, rel+"/"); ok {
			return true
		}
	}
	return false
}

// isBinary treats content with a NUL byte in the first 512 bytes as binary
func isBinary(data []byte) bool {
	if len(data) > 512 {
		data = data[:512]
	}
	return bytes.IndexByte(data, 0) >= 0
}
