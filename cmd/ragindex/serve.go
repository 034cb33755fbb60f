package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/ragindex/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server on stdio",
	Long: `Starts a Model Context Protocol server on stdin/stdout exposing the
index_file, index_batch, reindex_project, remove_file, get_status and
search tools.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		srv, err := mcp.NewServer(a)
		if err != nil {
			return fmt.Errorf("creating MCP server: %w", err)
		}

		ctx, stop := signalContext(cmd)
		defer stop()

		if err := srv.Serve(ctx, os.Stdin, os.Stdout); err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		a.Logger.Info("server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
