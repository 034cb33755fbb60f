// Package mcp implements the Model Context Protocol (MCP) server for ragindex.
//
// The server exposes six tools:
//   - index_file: chunk, embed and store one document
//   - index_batch: index many documents with bounded concurrency
//   - reindex_project: clear a project and index documents from scratch
//   - remove_file: delete every record of one document
//   - get_status: report record count, indexing flag and providers
//   - search: hybrid semantic + keyword search fused with RRF
//
// # Protocol Overview
//
// MCP is JSON-RPC 2.0 over stdio. stdout carries protocol messages only;
// logs go to stderr.
//
//	ragindex serve --config ragindex.yml
//
// # Tool: index_batch
//
//	Request:
//	{
//	  "name": "index_batch",
//	  "arguments": {
//	    "projectId": "handbook",
//	    "files": [
//	      {"filePath": "ops/deploy.md", "content": "# Deploy\n..."},
//	      {"filePath": "ops/rollback.md", "content": "# Rollback\n..."}
//	    ],
//	    "chunking": {"strategy": "heading", "maxChunkSize": 1500}
//	  }
//	}
//
//	Response:
//	{
//	  "totalFiles": 2,
//	  "indexedFiles": 1,
//	  "totalChunks": 4,
//	  "errors": [{"filePath": "ops/rollback.md", "error": "embedding failed: ..."}],
//	  "durationMs": 812
//	}
//
// A failing file never aborts the batch. If no file could be embedded the
// call fails with -32005 and the per-file detail in the error data.
//
// # Tool: search
//
//	Request:
//	{
//	  "name": "search",
//	  "arguments": {
//	    "projectId": "handbook",
//	    "query": "how do I roll back a release",
//	    "limit": 5,
//	    "includeGlobal": true
//	  }
//	}
//
// Omitted options take the server's configured defaults. When one of the
// two search methods fails the response still succeeds and Stats records
// which method was unavailable.
//
// # Error Handling
//
// Handlers return *MCPError:
//   - -32602: Invalid params (missing/invalid arguments, bad options)
//   - -32603: Internal error (storage)
//   - -32002: Indexing in progress (reindex_project without force)
//   - -32004: Empty query
//   - -32005: Embedding provider failed or rate limited
//   - -32800: Request cancelled
package mcp
