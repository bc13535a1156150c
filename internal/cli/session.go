package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/DJA-prog/serialmacro"
	"github.com/DJA-prog/serialmacro/internal/presentation/tui"
	"github.com/DJA-prog/serialmacro/pkg/domain"
	"github.com/DJA-prog/serialmacro/pkg/observability"
	"github.com/DJA-prog/serialmacro/pkg/runner"
)

// ErrRunFailed is returned when the macro ends in the Failed state.
var ErrRunFailed = errors.New("macro failed")

// RunSession runs one macro against the configured transport from the console.
func RunSession(ctx context.Context, opts RunOptions) error {
	s := opts.Settings
	logger := createLogger(s, opts.Debug)
	quiet := opts.JSON || opts.Headless

	if !quiet {
		tui.PrintBanner(os.Stdout, strings.TrimSpace(serialmacro.Version))
	}

	transport, err := openTransport(s, opts.Simulate, logger)
	if err != nil {
		return err
	}
	defer transport.Close()
	if transport.Peer != "" {
		if quiet {
			logger.Warn("Virtual port ready", "peer", transport.Peer)
		} else {
			fmt.Println(tui.Notice(os.Stdout, "Virtual port ready: "+transport.Peer))
		}
	}

	store, err := setupPersistence(ctx, s, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	hooks := store.hooks
	if opts.Debug {
		hooks = append(hooks, observability.LogHooks(logger))
	}
	engineOpts := append(store.options, serialmacro.WithLifecycleHooks(domain.ComposeHooks(hooks...)))

	eng, err := createEngine(s, transport, logger, engineOpts...)
	if err != nil {
		return err
	}
	defer eng.Close()

	m, err := resolveMacro(eng, opts.Macro)
	if err != nil {
		return err
	}

	r := runner.NewRunner(
		runner.WithEngine(eng),
		runner.WithLogger(logger),
		runner.WithHeadless(opts.Headless),
		runner.WithInputHandler(createHandler(opts)),
		runner.WithTraffic(transport),
	)

	rec, err := r.RunMacro(ctx, m)
	if err != nil {
		return err
	}
	logCompletion(rec, quiet)
	return handleResult(rec)
}

// createHandler selects the IO strategy for the session.
func createHandler(opts RunOptions) runner.IOHandler {
	if opts.JSON {
		return runner.NewJSONHandler(os.Stdin, os.Stdout)
	}
	var handlerOpts []runner.TextHandlerOption
	if !opts.Headless {
		handlerOpts = append(handlerOpts, runner.WithTextHandlerRenderer(tui.NewRenderer(80)))
	}
	if f := tui.TrafficFormatter(opts.Settings.Display.RevealHiddenChars); f != nil {
		handlerOpts = append(handlerOpts, runner.WithTextHandlerFormatter(f))
	}
	return runner.NewTextHandler(os.Stdin, os.Stdout, handlerOpts...)
}

func logCompletion(rec domain.RunRecord, quiet bool) {
	if quiet {
		return
	}
	st := rec.Stats
	switch rec.State {
	case domain.RunCompleted:
		printSystemMessage("'%s' completed: %d steps, %d commands, %d matches, %d timeouts.",
			rec.Macro, st.StepsExecuted, st.CommandsSent, st.Matches, st.Timeouts)
	case domain.RunCancelled:
		printSystemMessage("'%s' cancelled at step %d: %s", rec.Macro, rec.StepIndex+1, rec.Reason)
	case domain.RunFailed:
		printSystemMessage("'%s' failed at step %d: %s", rec.Macro, rec.StepIndex+1, rec.Reason)
	}
}

// handleResult maps the terminal state to the process outcome. A cancelled run is not an error.
func handleResult(rec domain.RunRecord) error {
	if rec.State == domain.RunFailed {
		return fmt.Errorf("%w: %s", ErrRunFailed, rec.Reason)
	}
	return nil
}
