package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/ragindex/internal/app"
	"github.com/dshills/ragindex/internal/config"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "ragindex",
	Short: "Hybrid semantic and keyword search over project documents",
	Long: `ragindex chunks documents, embeds the chunks and stores them per project
so they can be found again by meaning and by keyword. It runs as an MCP
server on stdio or indexes and searches directly from the command line.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default ./"+config.DefaultPath+" when present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging on stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openApp loads configuration and wires the application. Logs go to stderr;
// stdout is reserved for command output and the MCP protocol.
func openApp(opts ...app.Option) (*app.App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger := app.NewLogger(cfg.Log, os.Stderr, verbose)
	return app.New(cfg, logger, opts...)
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
