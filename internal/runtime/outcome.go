package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/DJA-prog/serialmacro/pkg/domain"
)

const (
	reasonStopped       = "stopped"
	reasonExit          = "exit requested by macro"
	reasonDialogEnded   = "ended from dialog"
	reasonMenuCancelled = "menu cancelled"
	reasonNoCommand     = "no command entered"
)

// cancelError ends a run as Cancelled without being a failure.
type cancelError struct{ reason string }

func (c *cancelError) Error() string { return "cancelled: " + c.reason }

func cancelled(reason string) error { return &cancelError{reason: reason} }

// classify maps a step error onto the terminal state it causes.
func classify(err error) (domain.RunState, string) {
	var ce *cancelError
	switch {
	case errors.As(err, &ce):
		return domain.RunCancelled, ce.reason
	case errors.Is(err, domain.ErrStopped):
		return domain.RunCancelled, reasonStopped
	case errors.Is(err, domain.ErrUIUnavailable):
		return domain.RunCancelled, err.Error()
	default:
		return domain.RunFailed, err.Error()
	}
}

// applyOutcome performs one branch of an Output step. It is shared by the success and fail paths.
func (e *Executor) applyOutcome(ctx context.Context, ec *ExecutionContext, st domain.Output, o domain.Outcome) error {
	switch o = o.Normalize(); o.Kind {
	case domain.OutcomeContinue, domain.OutcomeIgnore:
		return nil

	case domain.OutcomeExitMacro:
		return cancelled(reasonExit)

	case domain.OutcomeCustomCommand:
		return e.send(ctx, ec, o.Command)

	case domain.OutcomeDialogForCommand:
		reply, err := e.ask(ctx, ec, domain.Request{
			Kind:    domain.RequestText,
			Message: fmt.Sprintf("Waiting for %q. Enter a command to send:", st.Expected),
		})
		if err != nil {
			return err
		}
		cmd := strings.TrimSpace(reply.Text)
		if reply.Action != domain.ReplySubmit || cmd == "" {
			return cancelled(reasonNoCommand)
		}
		return e.send(ctx, ec, cmd)

	case domain.OutcomeDialogAndWait:
		reply, err := e.ask(ctx, ec, domain.Request{
			Kind:    domain.RequestDialog,
			Message: fmt.Sprintf("Waiting for %q. Continue the macro?", st.Expected),
			Default: domain.DialogContinue,
		})
		if err != nil {
			return err
		}
		return continueOrEnd(reply, reasonDialogEnded)
	}
	return fmt.Errorf("%w: unknown outcome %q", domain.ErrInvalidStep, o.Kind)
}

func continueOrEnd(reply domain.Reply, reason string) error {
	if reply.Action == domain.ReplyContinue {
		return nil
	}
	return cancelled(reason)
}

func chosen(reply domain.Reply, options []string) (string, bool) {
	if reply.Action != domain.ReplyChoose || reply.Choice < 0 || reply.Choice >= len(options) {
		return "", false
	}
	return options[reply.Choice], true
}
