package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/DJA-prog/serialmacro"
	httpAdapter "github.com/DJA-prog/serialmacro/pkg/adapters/http"
	"github.com/DJA-prog/serialmacro/pkg/domain"
	"github.com/DJA-prog/serialmacro/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// shutdownTimeout gives outstanding requests a deadline for completion.
const shutdownTimeout = 5 * time.Second

// Serve exposes the engine over HTTP until ctx is done.
func Serve(ctx context.Context, opts ServeOptions) error {
	s := opts.Settings
	logger := createLogger(s, opts.Debug)

	transport, err := openTransport(s, opts.Simulate, logger)
	if err != nil {
		return err
	}
	defer transport.Close()
	if transport.Peer != "" {
		logger.Warn("Virtual port ready", "peer", transport.Peer)
	}

	store, err := setupPersistence(ctx, s, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(reg)

	hooks := append(store.hooks, metrics.Hooks(), observability.LogHooks(logger))
	engineOpts := append(store.options, serialmacro.WithLifecycleHooks(domain.ComposeHooks(hooks...)))

	eng, err := createEngine(s, transport, logger, engineOpts...)
	if err != nil {
		return err
	}
	defer eng.Close()

	srv := &http.Server{
		Addr: s.HTTP.Addr,
		Handler: httpAdapter.NewHandler(eng, eng.Mailbox(),
			httpAdapter.WithLogger(logger),
			httpAdapter.WithEventSource(eng.Mailbox().Events()),
			httpAdapter.WithMetrics(reg),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Warn("HTTP server listening", "addr", srv.Addr, "transport", eng.Name)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		eng.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown did not complete in %v: %w", shutdownTimeout, err)
		}
		logger.Warn("HTTP server stopped")
		return nil
	}
}
