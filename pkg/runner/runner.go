package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/DJA-prog/serialmacro"
	"github.com/DJA-prog/serialmacro/pkg/domain"
	"github.com/DJA-prog/serialmacro/pkg/ports"
)

// settleGrace is how long the runner waits for the terminal event after the run has settled.
const settleGrace = 200 * time.Millisecond

// Runner drives one macro run from a terminal or pipe.
// It forwards prompts to an IOHandler, shows events and traffic, and turns
// interrupts into a stop request.
type Runner struct {
	// Handler is the strategy for IO. Defaults to a TextHandler on Stdin/Stdout.
	Handler IOHandler

	// Logger is used for internal debug logging.
	// If nil, a no-op logger is used.
	Logger *slog.Logger

	// Headless answers requests with their default reply.
	Headless bool

	// InterruptSource stops the run when it fires, in addition to SIGINT/SIGTERM.
	InterruptSource <-chan struct{}

	engine  *serialmacro.Engine
	traffic ports.Transport
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts the named macro and drives it to a terminal state.
func (r *Runner) Run(ctx context.Context, name string) (domain.RunRecord, error) {
	if r.engine == nil {
		return domain.RunRecord{}, errors.New("runner has no engine")
	}
	return r.drive(ctx, func() (string, error) { return r.engine.Start(ctx, name) })
}

// RunMacro drives m to a terminal state.
func (r *Runner) RunMacro(ctx context.Context, m domain.Macro) (domain.RunRecord, error) {
	if r.engine == nil {
		return domain.RunRecord{}, errors.New("runner has no engine")
	}
	return r.drive(ctx, func() (string, error) { return r.engine.StartMacro(ctx, m) })
}

func (r *Runner) drive(ctx context.Context, start func() (string, error)) (domain.RunRecord, error) {
	handler := r.resolveHandler()
	signals := NewSignalManager()
	defer signals.Stop()

	if r.traffic != nil {
		unsubscribe := r.traffic.Subscribe(func(line string) {
			_ = handler.Traffic(context.Background(), Received, line)
		})
		defer unsubscribe()
	}

	runID, err := start()
	if err != nil {
		return domain.RunRecord{}, err
	}
	logger := r.Logger.With("run", runID)
	mb := r.engine.Mailbox()

	var (
		rec     domain.RunRecord
		waitErr error
	)
	settled := make(chan struct{})
	go func() {
		rec, waitErr = r.engine.Wait(context.Background())
		close(settled)
	}()

	promptCtx, cancelPrompts := context.WithCancel(context.Background())
	defer cancelPrompts()

	var (
		sigDone     = signals.Context().Done()
		intr        = r.InterruptSource
		ctxDone     = ctx.Done()
		requests    = mb.Requests()
		events      = mb.Events()
		grace       <-chan time.Time
		isSettled   bool
		sawTerminal bool
	)

	stop := func(why string) {
		logger.Debug("stopping run", "cause", why)
		_ = handler.SystemOutput(ctx, "Stopping macro...")
		r.engine.Stop()
		cancelPrompts()
		sigDone, intr, ctxDone = nil, nil, nil
	}

	for {
		select {
		case <-sigDone:
			stop("signal")
		case <-intr:
			stop("interrupt")
		case <-ctxDone:
			stop("context")

		case req, ok := <-requests:
			if !ok {
				requests = nil
				continue
			}
			if req.RunID != runID {
				continue
			}
			if r.Headless {
				if err := mb.Reply(req.ID, req.DefaultReply()); err != nil {
					logger.Debug("default reply rejected", "id", req.ID, "err", err)
				}
				continue
			}
			go r.answer(promptCtx, handler, req, logger)

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if err := handler.Event(ctx, ev); err != nil {
				logger.Debug("event output failed", "err", err)
			}
			if ev.RunID == runID && ev.Type.Terminal() {
				sawTerminal = true
				if isSettled {
					return rec, waitErr
				}
			}

		case <-settled:
			isSettled = true
			settled = nil
			if sawTerminal {
				return rec, waitErr
			}
			grace = time.After(settleGrace)

		case <-grace:
			return rec, waitErr
		}
	}
}

// answer prompts until the mailbox accepts a reply, the prompt is abandoned, or input ends.
func (r *Runner) answer(ctx context.Context, handler IOHandler, req domain.Request, logger *slog.Logger) {
	mb := r.engine.Mailbox()
	for {
		reply, err := handler.Prompt(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Input closed or broken: nobody can answer, so the run cannot go on.
			logger.Debug("prompt failed", "id", req.ID, "err", err)
			r.engine.Stop()
			return
		}
		err = mb.Reply(req.ID, reply)
		if err == nil {
			return
		}
		if errors.Is(err, domain.ErrInvalidReply) {
			_ = handler.SystemOutput(ctx, err.Error())
			continue
		}
		// Already answered or withdrawn.
		logger.Debug("reply rejected", "id", req.ID, "err", err)
		return
	}
}

// resolveHandler ensures a valid IOHandler is set.
func (r *Runner) resolveHandler() IOHandler {
	if r.Handler == nil {
		// Memoize to prevent creating new pumps on subsequent runs
		r.Handler = NewTextHandler(os.Stdin, os.Stdout)
	}
	return r.Handler
}
