package cli

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/DJA-prog/serialmacro"
	"github.com/DJA-prog/serialmacro/pkg/adapters/mcp"
	"github.com/DJA-prog/serialmacro/pkg/domain"
	"github.com/DJA-prog/serialmacro/pkg/observability"
)

// ServeMCP runs the engine as an MCP server over stdio or SSE.
func ServeMCP(ctx context.Context, opts MCPOptions) error {
	s := opts.Settings
	logger := createLogger(s, opts.Debug)

	transport, err := openTransport(s, opts.Simulate, logger)
	if err != nil {
		return err
	}
	defer transport.Close()

	store, err := setupPersistence(ctx, s, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	hooks := append(store.hooks, observability.LogHooks(logger))
	engineOpts := append(store.options, serialmacro.WithLifecycleHooks(domain.ComposeHooks(hooks...)))

	eng, err := createEngine(s, transport, logger, engineOpts...)
	if err != nil {
		return err
	}
	defer eng.Close()

	srv := mcp.NewServer(eng, eng.Mailbox(), logger)

	switch opts.Transport {
	case "", "stdio":
		// Stdout carries JSON-RPC.
		log.SetOutput(os.Stderr)
		logger.Info("Starting MCP server (stdio)")
		return srv.ServeStdio()
	case "sse":
		return srv.ServeSSE(ctx, opts.Port)
	default:
		return fmt.Errorf("unknown transport %q (supported: stdio, sse)", opts.Transport)
	}
}
