// ABOUTME: MCP server subcommand
// ABOUTME: Serves the sponsordesk tools, resources and prompts over stdio
package cli

import (
	"context"

	"github.com/harperreed/sponsordesk/handlers"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MCPCommand starts the MCP server on stdio
func (a *App) MCPCommand(ctx context.Context) error {
	a.logger().Info("starting MCP server")

	server := handlers.NewServer(handlers.Deps{
		DB:        a.DB,
		Pipeline:  a.Pipeline,
		Contracts: a.Contracts,
		Sweeper:   a.Scheduler,
		BaseURL:   a.Config.Server.BaseURL,
	}, a.Version)

	return server.Run(ctx, &mcp.StdioTransport{})
}
