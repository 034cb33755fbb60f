package walker

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	docIncludes = []string{"**/*.md", "**/*.markdown", "**/*.txt"}
	depExcludes = []string{"**/node_modules/**", "**/vendor/**", "**/.git/**"}
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func relPaths(files []File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.RelPath
	}
	return out
}

func TestWalk_Filters(t *testing.T) {
	root := writeTree(t, map[string]string{
		"README.md":                     "# Readme",
		"docs/guide.md":                 "# Guide\n\ntext",
		"docs/notes.txt":                "plain notes",
		"docs/deep/nested/ops.markdown": "# Ops",
		"docs/diagram.png":              "\x89PNG\x00\x00binary",
		"main.go":                       "package main",
		"node_modules/pkg/README.md":     "# dependency",
		"vendor/lib/doc.md":             "# vendored",
		".git/HEAD.md":                  "ref",
		"big.md":                        strings.Repeat("x", 200),
	})

	files, err := Walk(context.Background(), Config{
		Root:        root,
		Include:     docIncludes,
		Exclude:     depExcludes,
		MaxFileSize: 100,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"README.md",
		"docs/deep/nested/ops.markdown",
		"docs/guide.md",
		"docs/notes.txt",
	}, relPaths(files))

	for _, f := range files {
		if f.RelPath == "docs/guide.md" {
			assert.Equal(t, "# Guide\n\ntext", f.Content)
			assert.Equal(t, filepath.Join(root, "docs", "guide.md"), f.Path)
		}
	}
}

func TestWalk_NoPatterns(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.md":     "a",
		"b/c.go":   "package b",
		"b/d.bin":  "\x00\x01",
		"b/e.yaml": "k: v",
	})

	files, err := Walk(context.Background(), Config{Root: root})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "b/c.go", "b/e.yaml"}, relPaths(files), "binary files are skipped")
}

func TestWalk_Errors(t *testing.T) {
	_, err := Walk(context.Background(), Config{Root: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)

	root := writeTree(t, map[string]string{"file.md": "x"})
	_, err = Walk(context.Background(), Config{Root: filepath.Join(root, "file.md")})
	assert.Error(t, err, "root must be a directory")

	_, err = Walk(context.Background(), Config{Root: root, Include: []string{"[unclosed"}})
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestWalk_Cancelled(t *testing.T) {
	root := writeTree(t, map[string]string{"a.md": "a", "b.md": "b"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Walk(ctx, Config{Root: root})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMatches(t *testing.T) {
	tests := []struct {
		rel      string
		patterns []string
		want     bool
	}{
		{"docs/a.md", []string{"**/*.md"}, true},
		{"a.md", []string{"**/*.md"}, true},
		{"docs/a.md", []string{"*.md"}, true},
		{"docs/a.txt", []string{"*.md"}, false},
		{"docs/api/v1.md", []string{"docs/**"}, true},
		{"src/docs/x.md", []string{"docs/**"}, false},
		{"node_modules/x/README.md", []string{"**/node_modules/**"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.rel+" "+tt.patterns[0], func(t *testing.T) {
			assert.Equal(t, tt.want, matchesAny(tt.rel, tt.patterns))
		})
	}

	assert.True(t, MatchesInclude("anything", nil))
	assert.False(t, MatchesExclude("anything", nil))
}
