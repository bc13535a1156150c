package runner

import (
	"log/slog"

	"github.com/DJA-prog/serialmacro"
	"github.com/DJA-prog/serialmacro/pkg/ports"
)

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithEngine configures the engine whose runs are driven.
func WithEngine(engine *serialmacro.Engine) Option {
	return func(r *Runner) {
		r.engine = engine
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.Logger = logger
	}
}

// WithInputHandler configures a custom IOHandler.
func WithInputHandler(handler IOHandler) Option {
	return func(r *Runner) {
		r.Handler = handler
	}
}

// WithHeadless answers every request with its default reply instead of prompting.
func WithHeadless(headless bool) Option {
	return func(r *Runner) {
		r.Headless = headless
	}
}

// WithTraffic shows lines received on t through the handler.
func WithTraffic(t ports.Transport) Option {
	return func(r *Runner) {
		r.traffic = t
	}
}

// WithInterruptSource sets a channel that signals the runner to stop the current run.
func WithInterruptSource(ch <-chan struct{}) Option {
	return func(r *Runner) {
		r.InterruptSource = ch
	}
}
