package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/ragindex/internal/chunker"
	"github.com/dshills/ragindex/internal/embedder"
	"github.com/dshills/ragindex/internal/indexer"
	"github.com/dshills/ragindex/internal/searcher"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
	ErrorCodeEmbeddingFailed    = -32005 // Embedding provider failed or is rate limited
	ErrorCodeCancelled          = -32800 // Request cancelled by the client
)

// handleIndexFile handles the index_file tool invocation
func (s *Server) handleIndexFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	projectID, err := requireString(args, "projectId")
	if err != nil {
		return nil, err
	}
	filePath, err := requireString(args, "filePath")
	if err != nil {
		return nil, err
	}
	content, ok := args["content"].(string)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "content parameter is required", map[string]interface{}{
			"param":  "content",
			"reason": "missing or not a string",
		})
	}
	opts, err := s.chunkOptions(args)
	if err != nil {
		return nil, err
	}

	result, err := s.app.Pipeline.IndexFile(ctx, projectID, filePath, content, opts)
	if err != nil {
		return nil, toMCPError("indexing failed", err, nil)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"projectId":     projectID,
		"filePath":      filePath,
		"chunksIndexed": result.ChunksIndexed,
	})), nil
}

// handleIndexBatch handles the index_batch tool invocation
func (s *Server) handleIndexBatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, files, opts, err := s.batchArgs(request)
	if err != nil {
		return nil, err
	}

	result, err := s.app.Pipeline.IndexBatch(ctx, projectID, files, opts)
	return batchResult(result, err)
}

// handleReindexProject handles the reindex_project tool invocation
func (s *Server) handleReindexProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, files, opts, err := s.batchArgs(request)
	if err != nil {
		return nil, err
	}

	// Advisory only: the pipeline does not lock projects
	args, _ := request.Params.Arguments.(map[string]interface{})
	if !getBoolDefault(args, "force", false) && s.app.Pipeline.Tracker().IsIndexing(projectID) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "project is being indexed", map[string]interface{}{
			"projectId": projectID,
			"hint":      "retry later or pass force=true",
		})
	}

	result, err := s.app.Pipeline.ReindexProject(ctx, projectID, files, opts)
	return batchResult(result, err)
}

// handleRemoveFile handles the remove_file tool invocation
func (s *Server) handleRemoveFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	projectID, err := requireString(args, "projectId")
	if err != nil {
		return nil, err
	}
	filePath, err := requireString(args, "filePath")
	if err != nil {
		return nil, err
	}

	removed, err := s.app.Pipeline.RemoveFile(ctx, projectID, filePath)
	if err != nil {
		return nil, toMCPError("remove failed", err, nil)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"projectId":      projectID,
		"filePath":       filePath,
		"recordsRemoved": removed,
	})), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	projectID, err := requireString(args, "projectId")
	if err != nil {
		return nil, err
	}

	status, err := s.app.Status(ctx, projectID)
	if err != nil {
		return nil, toMCPError("failed to get status", err, nil)
	}
	return mcp.NewToolResultText(formatJSON(status)), nil
}

// handleSearch handles the search tool invocation
func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	projectID, err := requireString(args, "projectId")
	if err != nil {
		return nil, err
	}
	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	d := s.search
	limit := getIntDefault(args, "limit", d.Limit)
	if limit < 1 || limit > searcher.MaxLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("limit must be between 1 and %d", searcher.MaxLimit), map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	opts := searcher.Options{
		VectorWeight:  getFloatDefault(args, "vectorWeight", d.VectorWeight),
		KeywordWeight: getFloatDefault(args, "keywordWeight", d.KeywordWeight),
		MinScore:      getFloatDefault(args, "minScore", d.MinScore),
		Limit:         limit,
		UseVector:     getBoolDefault(args, "useVector", d.UseVector),
		UseKeyword:    getBoolDefault(args, "useKeyword", d.UseKeyword),
		RRFK:          getFloatDefault(args, "rrfK", d.RRFK),
		IncludeGlobal: getBoolDefault(args, "includeGlobal", d.IncludeGlobal),
		UseCache:      getBoolDefault(args, "useCache", d.UseCache),
	}

	resp, err := s.app.Searcher.Search(ctx, projectID, query, &opts)
	if err != nil {
		return nil, toMCPError("search failed", err, nil)
	}
	return mcp.NewToolResultText(formatJSON(resp)), nil
}

// Helper functions

func (s *Server) batchArgs(request mcp.CallToolRequest) (string, []indexer.FileInput, *chunker.Options, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return "", nil, nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	projectID, err := requireString(args, "projectId")
	if err != nil {
		return "", nil, nil, err
	}

	raw, ok := args["files"]
	if !ok || raw == nil {
		return "", nil, nil, newMCPError(ErrorCodeInvalidParams, "files parameter is required", map[string]interface{}{
			"param":  "files",
			"reason": "missing",
		})
	}
	var files []indexer.FileInput
	if err := decodeArg(raw, &files); err != nil {
		return "", nil, nil, newMCPError(ErrorCodeInvalidParams, "invalid files", map[string]interface{}{
			"param":  "files",
			"reason": err.Error(),
		})
	}

	opts, err := s.chunkOptions(args)
	if err != nil {
		return "", nil, nil, err
	}
	return projectID, files, opts, nil
}

// batchResult reports partial failures as a normal result. A batch in which
// nothing could be embedded is an error that still carries the per-file detail.
func batchResult(result *indexer.BatchResult, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		var data interface{}
		if result != nil {
			data = result
		}
		return nil, toMCPError("indexing failed", err, data)
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// chunkingArgs overlays request fields on the server's chunk options
type chunkingArgs struct {
	MaxChunkSize       *int    `json:"maxChunkSize"`
	MinChunkSize       *int    `json:"minChunkSize"`
	OverlapSize        *int    `json:"overlapSize"`
	Strategy           *string `json:"strategy"`
	SeparateCodeBlocks *bool   `json:"separateCodeBlocks"`
}

func (s *Server) chunkOptions(args map[string]interface{}) (*chunker.Options, error) {
	opts := s.chunking
	raw, ok := args["chunking"]
	if !ok || raw == nil {
		return &opts, nil
	}

	var c chunkingArgs
	if err := decodeArg(raw, &c); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid chunking options", map[string]interface{}{
			"param":  "chunking",
			"reason": err.Error(),
		})
	}
	if c.MaxChunkSize != nil {
		opts.MaxChunkSize = *c.MaxChunkSize
	}
	if c.MinChunkSize != nil {
		opts.MinChunkSize = *c.MinChunkSize
	}
	if c.OverlapSize != nil {
		opts.OverlapSize = *c.OverlapSize
	}
	if c.SeparateCodeBlocks != nil {
		opts.SeparateCodeBlocks = *c.SeparateCodeBlocks
	}
	if c.Strategy != nil {
		strategy, err := chunker.ParseStrategy(*c.Strategy)
		if err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid chunking strategy", map[string]interface{}{
				"param": "chunking.strategy",
				"value": *c.Strategy,
			})
		}
		opts.Strategy = strategy
	}
	if err := opts.Validate(); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid chunking options", map[string]interface{}{
			"param":  "chunking",
			"reason": err.Error(),
		})
	}
	return &opts, nil
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// toMCPError maps domain errors onto MCP error codes
func toMCPError(message string, err error, data interface{}) error {
	code := ErrorCodeInternalError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = ErrorCodeCancelled
	case errors.Is(err, searcher.ErrEmptyQuery):
		code = ErrorCodeEmptyQuery
	case errors.Is(err, indexer.ErrInvalidInput),
		errors.Is(err, searcher.ErrInvalidOptions),
		errors.Is(err, searcher.ErrNoSearchMethod),
		errors.Is(err, chunker.ErrInvalidOptions):
		code = ErrorCodeInvalidParams
	case errors.Is(err, indexer.ErrEmbedding),
		errors.Is(err, indexer.ErrNothingEmbedded),
		errors.Is(err, embedder.ErrRateLimited),
		errors.Is(err, embedder.ErrProviderUnavailable):
		code = ErrorCodeEmbeddingFailed
	}

	payload := map[string]interface{}{"error": err.Error()}
	if data != nil {
		payload["result"] = data
	}
	return newMCPError(code, message, payload)
}

// requireString extracts a non-blank string parameter
func requireString(args map[string]interface{}, key string) (string, error) {
	val, ok := args[key].(string)
	if !ok || strings.TrimSpace(val) == "" {
		return "", newMCPError(ErrorCodeInvalidParams, key+" parameter is required", map[string]interface{}{
			"param":  key,
			"reason": "missing or empty",
		})
	}
	return val, nil
}

// decodeArg converts a decoded JSON argument into a typed value
func decodeArg(raw interface{}, dst interface{}) error {
	b, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

// formatJSON formats a value as indented JSON
func formatJSON(data interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getFloatDefault extracts a number parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	switch val := args[key].(type) {
	case float64:
		return val
	case int:
		return float64(val)
	}
	return defaultValue
}
