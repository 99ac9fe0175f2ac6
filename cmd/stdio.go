package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	mcpSdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/koopa0/websearch-mcp/internal/config"
)

var stdioCmd = &cobra.Command{
	Use:   "stdio",
	Short: "Serve MCP over stdio",
	Long: `Serve a single MCP session over stdin/stdout.

Use this mode for clients that spawn the server as a subprocess
(Claude Desktop, Cursor). Logs go to stderr; stdout carries JSON-RPC
only.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(stdioCmd)
}

// runStdio serves one MCP session on the stdio transport.
func runStdio(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	logger.Info("starting MCP server", "version", AppVersion, "transport", "stdio")

	mcpServer, err := newMCPServer(cfg, logger)
	if err != nil {
		return err
	}

	if err := mcpServer.Run(ctx, &mcpSdk.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}

	logger.Info("MCP server shut down gracefully")
	return nil
}
