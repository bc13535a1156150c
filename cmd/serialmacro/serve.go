package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/DJA-prog/serialmacro/internal/cli"
	"github.com/DJA-prog/serialmacro/internal/config"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts the engine as an HTTP API: start and stop macros, answer prompts,
follow events over SSE and scrape Prometheus metrics on /metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		simulate, _ := cmd.Flags().GetString("simulate")
		debug, _ := cmd.Flags().GetBool("debug")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return cli.Serve(ctx, cli.ServeOptions{Settings: settings, Simulate: simulate, Debug: debug})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	bind(serveCmd.Flags(), config.KeyHTTPAddr, "addr")
}
