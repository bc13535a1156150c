package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/DJA-prog/serialmacro/internal/cli"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts the engine as an MCP server so agents can list, run and stop macros
and answer their prompts.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		simulate, _ := cmd.Flags().GetString("simulate")
		debug, _ := cmd.Flags().GetBool("debug")
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("sse-port")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return cli.ServeMCP(ctx, cli.MCPOptions{
			Settings:  settings,
			Simulate:  simulate,
			Transport: transport,
			Port:      port,
			Debug:     debug,
		})
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("sse-port", 8081, "Port to listen on (only for SSE)")
}
