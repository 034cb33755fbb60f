// Package indexer turns documentation files into stored, searchable records.
//
// A Pipeline chunks a file, embeds every chunk and then swaps the file's
// records in the vector store (and the keyword index, when that is a separate
// store). Record ids are derived from (project, file, chunk index), so
// re-indexing an unchanged file rewrites the same ids, and the swap removes
// trailing chunks left over from a longer previous version.
//
// # Basic Usage
//
//	p, err := indexer.New(emb, store, store, indexer.Config{Workers: 8})
//	if err != nil {
//	    return err
//	}
//
//	res, err := p.IndexBatch(ctx, "42", []indexer.FileInput{
//	    {Path: "docs/intro.md", Content: intro},
//	    {Path: "docs/api.md", Content: api},
//	}, nil)
//	if err != nil {
//	    return err // store failure, cancellation, or nothing could be embedded
//	}
//	for _, fe := range res.Errors {
//	    log.Printf("%s: %s", fe.FilePath, fe.Error)
//	}
//
// # Failure Handling
//
// Embedding happens before any write, so a file whose embedding fails leaves
// its previous records untouched. Rate-limited provider calls are retried
// with exponential backoff; other provider errors fail the file at once. In a
// batch, per-file failures are collected in BatchResult.Errors while the rest
// of the batch commits. A store failure aborts the batch with an error.
//
// # Concurrency
//
// Batches run at most Config.Workers files at a time. Cancelling the context
// stops scheduling new files; files already started run to completion so that
// no file is left half written. GetStatus reports IsIndexing while a batch or
// reindex for the project is in flight.
package indexer
