// Package cmd implements the websearch-mcp command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "websearch-mcp",
	Short: "MCP web search server",
	Long: `websearch-mcp exposes DuckDuckGo search to MCP clients.

It serves five search tools (text, news, images, videos, books) over
the HTTP+SSE transport, multiplexing any number of concurrent client
sessions, or over stdio for clients that spawn the server directly.

Run without arguments to start the HTTP/SSE server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
