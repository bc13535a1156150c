package domain

import "fmt"

// OutcomeKind names the action taken after an Output step resolves.
type OutcomeKind string

const (
	OutcomeContinue         OutcomeKind = "continue"
	OutcomeIgnore           OutcomeKind = "ignore"
	OutcomeExitMacro        OutcomeKind = "exit"
	OutcomeCustomCommand    OutcomeKind = "custom_command"
	OutcomeDialogForCommand OutcomeKind = "dialog_for_command"
	OutcomeDialogAndWait    OutcomeKind = "dialog_and_wait"
)

// Outcome is what the executor does on one branch of an Output step.
// Command is only meaningful for OutcomeCustomCommand. The zero value behaves as Continue.
type Outcome struct {
	Kind    OutcomeKind `json:"kind"`
	Command string      `json:"command,omitempty"`
}

// Continue returns the default outcome.
func Continue() Outcome { return Outcome{Kind: OutcomeContinue} }

// Ignore advances without side effects.
func Ignore() Outcome { return Outcome{Kind: OutcomeIgnore} }

// ExitMacro ends the run as Cancelled.
func ExitMacro() Outcome { return Outcome{Kind: OutcomeExitMacro} }

// CustomCommand sends cmd and advances.
func CustomCommand(cmd string) Outcome { return Outcome{Kind: OutcomeCustomCommand, Command: cmd} }

// DialogForCommand asks a human for a command to send.
func DialogForCommand() Outcome { return Outcome{Kind: OutcomeDialogForCommand} }

// DialogAndWait asks a human whether to continue.
func DialogAndWait() Outcome { return Outcome{Kind: OutcomeDialogAndWait} }

// Normalize maps the zero value to Continue.
func (o Outcome) Normalize() Outcome {
	if o.Kind == "" {
		return Continue()
	}
	return o
}

func (o Outcome) String() string {
	if o.Kind == OutcomeCustomCommand {
		return fmt.Sprintf("%s(%s)", o.Kind, o.Command)
	}
	return string(o.Normalize().Kind)
}

// Validate rejects unknown kinds and custom commands without a command.
func (o Outcome) Validate() error {
	switch o.Normalize().Kind {
	case OutcomeContinue, OutcomeIgnore, OutcomeExitMacro, OutcomeDialogForCommand, OutcomeDialogAndWait:
		return nil
	case OutcomeCustomCommand:
		if o.Command == "" {
			return fmt.Errorf("%w: custom command outcome without command", ErrInvalidStep)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown outcome %q", ErrInvalidStep, o.Kind)
}
