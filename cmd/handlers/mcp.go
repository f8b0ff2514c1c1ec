package handlers

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"newsfacts/internal/mcpserver"
)

// NewMCPCmd serves the cached facts over MCP on stdio
func NewMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve cached facts to MCP clients over stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout.

Tools:
  get_facts     cached facts for a date range (default yesterday..today)
  list_periods  cached periods, newest first

The server only reads the cache. Logs go to stderr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(cmd.Context())
		},
	}
}

func runMCP(ctx context.Context) error {
	b, err := newReadBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	b.log.Info("MCP server starting on stdio")
	return mcpserver.New(b.reader, Version).Run(ctx, &mcp.StdioTransport{})
}
