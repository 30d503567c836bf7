package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/gspace/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start a Model Context Protocol server that exposes Gmail, Calendar,
Drive, Sheets and Docs as tools for AI assistants.

By default, the server communicates over stdio using JSON-RPC.
Use --port to start an HTTP server instead, for example to test with the
MCP Inspector.

Sign in with 'gspace auth login' first; the server never prompts.

Examples:
  # Stdio mode
  gspace mcp serve

  # HTTP mode
  gspace mcp serve --port 8080

Desktop assistant configuration:
  {
    "mcpServers": {
      "gspace": {
        "command": "/path/to/gspace",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	gs, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer gs.Close()

	ports := &mcp.Ports{Workspace: gs}
	if tokenManager != nil {
		ports.Tokens = tokenManager
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(ctx, addr)
	}

	return server.Run(ctx)
}
