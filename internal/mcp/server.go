package mcp

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/ragindex/internal/app"
	"github.com/dshills/ragindex/internal/chunker"
	"github.com/dshills/ragindex/internal/searcher"
)

const (
	// ServerName is the MCP server name
	ServerName = "ragindex"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	app      *app.App
	chunking chunker.Options
	search   searcher.Options
}

// NewServer registers the tools against a wired application.
// The caller keeps ownership of a and closes it after Serve returns.
func NewServer(a *app.App) (*Server, error) {
	if a == nil || a.Pipeline == nil || a.Searcher == nil {
		return nil, errors.New("mcp: application is not wired")
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		mcp:      mcpServer,
		app:      a,
		chunking: a.Config.Chunking,
		search:   a.Config.Search.Defaults,
	}
	s.registerTools()
	return s, nil
}

// Serve speaks MCP over stdin/stdout until ctx is cancelled or stdin closes
func (s *Server) Serve(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.app.Logger.Handler(), slog.LevelError))

	s.app.Logger.Info("MCP server listening on stdio", "name", ServerName, "version", ServerVersion)
	err := stdio.Listen(ctx, stdin, stdout)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexFileTool(), s.handleIndexFile)
	s.mcp.AddTool(indexBatchTool(), s.handleIndexBatch)
	s.mcp.AddTool(reindexProjectTool(), s.handleReindexProject)
	s.mcp.AddTool(removeFileTool(), s.handleRemoveFile)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	s.mcp.AddTool(searchTool(), s.handleSearch)
}
