package indexer

import (
	"context"
	"fmt"
	"testing"

	"github.com/dshills/ragindex/internal/storage"
)

func benchPipeline(b *testing.B, workers int) *Pipeline {
	b.Helper()
	store, err := storage.NewSQLiteStore(":memory:")
	if err != nil {
		b.Fatalf("open store: %v", err)
	}
	b.Cleanup(func() { _ = store.Close() })

	p, err := New(newMockEmbedder(), store, store, Config{Workers: workers, Retry: fastRetry()})
	if err != nil {
		b.Fatalf("new pipeline: %v", err)
	}
	return p
}

func benchFiles(n, sections int) []FileInput {
	files := make([]FileInput, n)
	for i := range files {
		files[i] = FileInput{
			Path:    fmt.Sprintf("docs/file%03d.md", i),
			Content: makeDoc(fmt.Sprintf("File %d", i), sections),
		}
	}
	return files
}

// BenchmarkIndexFile measures one file through chunk, embed and replace
func BenchmarkIndexFile(b *testing.B) {
	p := benchPipeline(b, 1)
	doc := makeDoc("Bench", 20)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.IndexFile(ctx, "bench", "bench.md", doc, smallChunks); err != nil {
			b.Fatalf("index: %v", err)
		}
	}
}

// BenchmarkIndexBatch compares worker counts over the same batch
func BenchmarkIndexBatch(b *testing.B) {
	files := benchFiles(50, 5)
	for _, workers := range []int{1, 4, 10} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			p := benchPipeline(b, workers)
			ctx := context.Background()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				res, err := p.IndexBatch(ctx, "bench", files, smallChunks)
				if err != nil {
					b.Fatalf("batch: %v", err)
				}
				if len(res.Errors) > 0 {
					b.Fatalf("unexpected file errors: %v", res.Errors)
				}
			}
		})
	}
}
