package runner

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/DJA-prog/serialmacro/pkg/domain"
)

// Direction marks which way a traffic line travelled.
type Direction string

const (
	// Sent is a command written to the device.
	Sent Direction = "out"
	// Received is a line read from the device.
	Received Direction = "in"
)

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (CLI/TUI) and JSON (Structured) modes.
type IOHandler interface {
	// Prompt presents a request and blocks for the user's answer.
	// It must return promptly with ctx.Err() once ctx is done.
	Prompt(ctx context.Context, req domain.Request) (domain.Reply, error)

	// Event presents a run notification.
	Event(ctx context.Context, ev domain.Event) error

	// Traffic presents one line exchanged with the device.
	Traffic(ctx context.Context, dir Direction, line string) error

	// SystemOutput presents a meta-message to the user (e.g. status updates).
	SystemOutput(ctx context.Context, msg string) error
}

// ContentRenderer transforms dialog text before it is shown (e.g. markdown to ANSI).
type ContentRenderer func(string) (string, error)

// ParseReply interprets a typed answer to req.
//
// Dialogs accept c/continue and e/end; an empty answer picks the default.
// Menus accept an option number or the option text; q/quit cancels, and
// multi-choice menus also accept 0/c/continue/done to move on.
// Text requests submit the sanitized line; an empty line cancels.
func ParseReply(req domain.Request, text string) (domain.Reply, error) {
	text = strings.TrimSpace(text)
	lower := strings.ToLower(text)

	switch req.Kind {
	case domain.RequestDialog:
		switch lower {
		case "":
			return req.DefaultReply(), nil
		case "c", "continue", "y", "yes":
			return domain.ContinueReply(), nil
		case "e", "end", "n", "no":
			return domain.EndReply(), nil
		}
		return domain.Reply{}, fmt.Errorf("answer continue or end")

	case domain.RequestSingleChoice, domain.RequestMultiChoice:
		switch lower {
		case "q", "quit", "cancel":
			return domain.CancelReply(), nil
		case "":
			if req.Kind == domain.RequestMultiChoice {
				return domain.ContinueReply(), nil
			}
			return domain.Reply{}, fmt.Errorf("pick an option or q to cancel")
		}
		if req.Kind == domain.RequestMultiChoice {
			switch lower {
			case "0", "c", "continue", "done":
				return domain.ContinueReply(), nil
			}
		}
		if n, err := strconv.Atoi(text); err == nil {
			if n < 1 || n > len(req.Options) {
				return domain.Reply{}, fmt.Errorf("option %d out of range 1-%d", n, len(req.Options))
			}
			return domain.ChooseReply(n - 1), nil
		}
		for i, opt := range req.Options {
			if opt == text {
				return domain.ChooseReply(i), nil
			}
		}
		return domain.Reply{}, fmt.Errorf("unknown option %q", text)

	case domain.RequestText:
		clean, err := SanitizeInput(text)
		if err != nil {
			return domain.Reply{}, err
		}
		if strings.TrimSpace(clean) == "" {
			return domain.CancelReply(), nil
		}
		return domain.SubmitReply(clean), nil
	}
	return domain.Reply{}, fmt.Errorf("%w: %s", domain.ErrUnknownRequest, req.Kind)
}
