package observability

import (
	"context"
	"log/slog"

	"github.com/DJA-prog/serialmacro/pkg/domain"
)

// LogHooks writes every executor event to logger.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepStarted: func(ctx context.Context, e *domain.Event) {
			logger.DebugContext(ctx, "step_started", "run", e.RunID, "step", e.StepIndex, "kind", e.StepKind)
		},
		OnStepResult: func(ctx context.Context, e *domain.Event) {
			logger.DebugContext(ctx, "step_result",
				"run", e.RunID,
				"step", e.StepIndex,
				"kind", e.StepKind,
				"result", e.Result,
				"elapsed", e.Elapsed,
			)
		},
		OnCommandSent: func(ctx context.Context, e *domain.Event) {
			logger.DebugContext(ctx, "command_sent", "run", e.RunID, "step", e.StepIndex, "command", e.Command)
		},
		OnRunFinished: func(ctx context.Context, e *domain.Event) {
			attrs := []any{"run", e.RunID, "macro", e.Macro, "step", e.StepIndex}
			if e.Reason != "" {
				attrs = append(attrs, "reason", e.Reason)
			}
			if e.Type == domain.EventMacroFailed {
				logger.WarnContext(ctx, string(e.Type), attrs...)
				return
			}
			logger.InfoContext(ctx, string(e.Type), attrs...)
		},
		OnRequest: func(ctx context.Context, r *domain.Request) {
			logger.DebugContext(ctx, "request", "run", r.RunID, "id", r.ID, "kind", r.Kind)
		},
	}
}
