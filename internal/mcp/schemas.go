package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func projectIDProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Project identifier; each project has its own collection",
	}
}

func chunkingProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"description": "Optional chunking overrides; omitted fields use the server defaults",
		"properties": map[string]interface{}{
			"maxChunkSize": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum chunk size in characters",
				"minimum":     1,
			},
			"minChunkSize": map[string]interface{}{
				"type":        "integer",
				"description": "Chunks smaller than this are merged with a neighbour",
				"minimum":     0,
			},
			"overlapSize": map[string]interface{}{
				"type":        "integer",
				"description": "Characters repeated from the previous chunk when a block is split",
				"minimum":     0,
			},
			"strategy": map[string]interface{}{
				"type":        "string",
				"description": "Splitting strategy",
				"enum":        []string{"heading", "paragraph", "code-aware", "hybrid"},
			},
			"separateCodeBlocks": map[string]interface{}{
				"type":        "boolean",
				"description": "Keep fenced code blocks in their own chunks",
			},
		},
	}
}

func filesProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"description": "Files to index",
		"items": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"filePath": map[string]interface{}{
					"type":        "string",
					"description": "Path of the file relative to the project root",
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Full text of the file",
				},
			},
			"required": []string{"filePath", "content"},
		},
	}
}

// indexFileTool returns the tool definition for index_file
func indexFileTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_file",
		Description: "Chunk, embed and store one document, replacing any records it had before",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"projectId": projectIDProperty(),
				"filePath": map[string]interface{}{
					"type":        "string",
					"description": "Path of the file relative to the project root",
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Full text of the file",
				},
				"chunking": chunkingProperty(),
			},
			Required: []string{"projectId", "filePath", "content"},
		},
	}
}

// indexBatchTool returns the tool definition for index_batch
func indexBatchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_batch",
		Description: "Index many documents concurrently; per-file failures are reported without aborting the batch",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"projectId": projectIDProperty(),
				"files":     filesProperty(),
				"chunking":  chunkingProperty(),
			},
			Required: []string{"projectId", "files"},
		},
	}
}

// reindexProjectTool returns the tool definition for reindex_project
func reindexProjectTool() mcp.Tool {
	return mcp.Tool{
		Name:        "reindex_project",
		Description: "Clear every record of a project and index the given documents from scratch",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"projectId": projectIDProperty(),
				"files":     filesProperty(),
				"chunking":  chunkingProperty(),
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "Start even if another indexing call for this project is running",
					"default":     false,
				},
			},
			Required: []string{"projectId", "files"},
		},
	}
}

// removeFileTool returns the tool definition for remove_file
func removeFileTool() mcp.Tool {
	return mcp.Tool{
		Name:        "remove_file",
		Description: "Delete every record of one file from a project",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"projectId": projectIDProperty(),
				"filePath": map[string]interface{}{
					"type":        "string",
					"description": "Path of the file to remove",
				},
			},
			Required: []string{"projectId", "filePath"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report whether a project is indexed, its record count and whether indexing is running",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"projectId": projectIDProperty(),
			},
			Required: []string{"projectId"},
		},
	}
}

// searchTool returns the tool definition for search
func searchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search",
		Description: "Hybrid semantic and keyword search over a project's documents, fused with reciprocal rank fusion",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"projectId": projectIDProperty(),
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"vectorWeight": map[string]interface{}{
					"type":        "number",
					"description": "Weight of the semantic ranking",
					"minimum":     0.0,
				},
				"keywordWeight": map[string]interface{}{
					"type":        "number",
					"description": "Weight of the keyword ranking",
					"minimum":     0.0,
				},
				"minScore": map[string]interface{}{
					"type":        "number",
					"description": "Minimum normalized score (0.0-1.0)",
					"minimum":     0.0,
					"maximum":     1.0,
				},
				"useVector": map[string]interface{}{
					"type":        "boolean",
					"description": "Run the semantic search",
				},
				"useKeyword": map[string]interface{}{
					"type":        "boolean",
					"description": "Run the keyword search",
				},
				"rrfK": map[string]interface{}{
					"type":        "number",
					"description": "Reciprocal rank fusion constant",
					"minimum":     0.0,
				},
				"includeGlobal": map[string]interface{}{
					"type":        "boolean",
					"description": "Also search the shared global collection",
					"default":     false,
				},
				"useCache": map[string]interface{}{
					"type":        "boolean",
					"description": "Serve repeated queries from the result cache",
					"default":     false,
				},
			},
			Required: []string{"projectId", "query"},
		},
	}
}
