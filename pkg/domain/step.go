package domain

import (
	"fmt"
	"time"
)

// StepKind names the variant of a Step.
type StepKind string

const (
	StepInput      StepKind = "input"
	StepDelay      StepKind = "delay"
	StepDialogWait StepKind = "dialog_wait"
	StepOutput     StepKind = "output"
	StepMenuSingle StepKind = "menu_single"
	StepMenuMulti  StepKind = "menu_multi"
)

// Macro is a named, ordered sequence of steps. An empty sequence is valid.
type Macro struct {
	Name  string `json:"name"`
	Steps []Step `json:"steps"`
}

// Step is one unit of macro behavior.
// The set of implementations is closed: Input, Delay, DialogWait, Output, MenuSingle and MenuMulti.
type Step interface {
	Kind() StepKind
	isStep()
}

// Input writes a command to the transport.
type Input struct {
	Command string `json:"command"`
}

// Delay pauses the run.
type Delay struct {
	Wait time.Duration `json:"wait"`
}

// DialogChoice is the answer to a DialogWait prompt.
type DialogChoice string

const (
	DialogContinue DialogChoice = "continue"
	DialogEnd      DialogChoice = "end"
)

// DialogWait pauses the run until a human chooses to continue or end it.
type DialogWait struct {
	Message string       `json:"message"`
	Default DialogChoice `json:"default,omitempty"`
}

// MatchMode selects how an Output step compares received lines.
type MatchMode string

const (
	// MatchSubstring succeeds when a trimmed line contains the expected text.
	MatchSubstring MatchMode = "substring"
	// MatchFullLine succeeds when a trimmed line equals the expected text.
	MatchFullLine MatchMode = "full_line"
)

// Normalize maps the zero value to MatchSubstring.
func (m MatchMode) Normalize() MatchMode {
	if m == "" {
		return MatchSubstring
	}
	return m
}

// Output waits for a response and branches on whether it arrived in time.
type Output struct {
	Expected  string        `json:"expected"`
	Timeout   time.Duration `json:"timeout"`
	Mode      MatchMode     `json:"match_mode"`
	OnSuccess Outcome       `json:"on_success"`
	OnFail    Outcome       `json:"on_fail"`
}

// MenuSingle lets a human pick one command to send.
type MenuSingle struct {
	Options []string `json:"options"`
}

// MenuMulti lets a human send any number of commands before continuing.
type MenuMulti struct {
	Options []string `json:"options"`
}

func (Input) Kind() StepKind      { return StepInput }
func (Delay) Kind() StepKind      { return StepDelay }
func (DialogWait) Kind() StepKind { return StepDialogWait }
func (Output) Kind() StepKind     { return StepOutput }
func (MenuSingle) Kind() StepKind { return StepMenuSingle }
func (MenuMulti) Kind() StepKind  { return StepMenuMulti }

func (Input) isStep()      {}
func (Delay) isStep()      {}
func (DialogWait) isStep() {}
func (Output) isStep()     {}
func (MenuSingle) isStep() {}
func (MenuMulti) isStep()  {}

// ClearsBuffer reports whether the step discards previously received lines before it runs.
func ClearsBuffer(s Step) bool {
	return s.Kind() != StepOutput
}

// ValidateStep checks a single step against the limits the executor relies on.
// Every error wraps ErrInvalidStep.
func ValidateStep(s Step) error {
	switch st := s.(type) {
	case Input:
		if st.Command == "" {
			return fmt.Errorf("%w: input command is empty", ErrInvalidStep)
		}
	case Delay:
		if st.Wait < 0 || st.Wait > MaxDelayMS*time.Millisecond {
			return fmt.Errorf("%w: delay %dms outside [0,%d]", ErrInvalidStep, st.Wait.Milliseconds(), MaxDelayMS)
		}
	case DialogWait:
		if st.Default != "" && st.Default != DialogContinue && st.Default != DialogEnd {
			return fmt.Errorf("%w: dialog default %q", ErrInvalidStep, st.Default)
		}
	case Output:
		if st.Timeout < 0 {
			return fmt.Errorf("%w: negative output timeout", ErrInvalidStep)
		}
		if mode := st.Mode.Normalize(); mode != MatchSubstring && mode != MatchFullLine {
			return fmt.Errorf("%w: match mode %q", ErrInvalidStep, st.Mode)
		}
		if err := st.OnSuccess.Validate(); err != nil {
			return fmt.Errorf("success: %w", err)
		}
		if err := st.OnFail.Validate(); err != nil {
			return fmt.Errorf("fail: %w", err)
		}
	case MenuSingle:
		if len(st.Options) == 0 {
			return fmt.Errorf("%w: menu_single has no options", ErrInvalidStep)
		}
	case MenuMulti:
		if len(st.Options) == 0 {
			return fmt.Errorf("%w: menu_multi has no options", ErrInvalidStep)
		}
	case nil:
		return fmt.Errorf("%w: nil step", ErrInvalidStep)
	default:
		return fmt.Errorf("%w: unsupported step %T", ErrInvalidStep, s)
	}
	return nil
}

// Validate checks every step and returns the first problem found.
func (m Macro) Validate() error {
	for i, s := range m.Steps {
		if err := ValidateStep(s); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}
