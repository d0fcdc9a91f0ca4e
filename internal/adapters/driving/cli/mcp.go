package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragdesk/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Model Context Protocol server",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve MCP over stdio or HTTP",
	Long: `Exposes the backend to MCP clients: an ask tool, topic search and
document resources. Serves over stdio unless --port is given.

Example client configuration:
  {"command": "ragdesk", "args": ["mcp", "serve"]}`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

var mcpPort int

func init() {
	mcpServeCmd.Flags().IntVar(&mcpPort, "port", 0, "serve streamable HTTP on this port instead of stdio")

	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	chat := mcpChatService
	if chat == nil {
		chat = chatService
	}

	server, err := mcp.NewServer(&mcp.Ports{
		Chat:     chat,
		Document: documentService,
		Topic:    topicService,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if mcpPort > 0 {
		addr := fmt.Sprintf("127.0.0.1:%d", mcpPort)
		cmd.PrintErrf("MCP listening on http://%s\n", addr)
		return server.RunHTTP(ctx, addr)
	}
	return server.Run(ctx)
}
