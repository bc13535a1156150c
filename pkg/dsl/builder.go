package dsl

import (
	"fmt"
	"time"

	"github.com/DJA-prog/serialmacro/pkg/domain"
	"github.com/DJA-prog/serialmacro/pkg/loader"
	"github.com/hashicorp/go-multierror"
)

// Builder accumulates the steps of one macro.
type Builder struct {
	name  string
	steps []domain.Step
}

// New starts a macro called name.
func New(name string) *Builder {
	return &Builder{name: name}
}

func (b *Builder) add(s domain.Step) *Builder {
	b.steps = append(b.steps, s)
	return b
}

// Send appends an input step.
func (b *Builder) Send(command string) *Builder {
	return b.add(domain.Input{Command: command})
}

// Pause appends a delay step.
func (b *Builder) Pause(d time.Duration) *Builder {
	return b.add(domain.Delay{Wait: d})
}

// Ask appends a dialog that continues by default.
func (b *Builder) Ask(message string) *Builder {
	return b.add(domain.DialogWait{Message: message})
}

// AskOrEnd appends a dialog whose default answer ends the run.
func (b *Builder) AskOrEnd(message string) *Builder {
	return b.add(domain.DialogWait{Message: message, Default: domain.DialogEnd})
}

// Menu appends a single-choice menu.
func (b *Builder) Menu(options ...string) *Builder {
	return b.add(domain.MenuSingle{Options: options})
}

// MultiMenu appends a menu that sends commands until the operator continues.
func (b *Builder) MultiMenu(options ...string) *Builder {
	return b.add(domain.MenuMulti{Options: options})
}

// Expect appends an output step matching expected as a substring within the default timeout.
// Refine it with the returned OutputBuilder.
func (b *Builder) Expect(expected string) *OutputBuilder {
	b.add(domain.Output{
		Expected:  expected,
		Timeout:   loader.DefaultOutputTimeout,
		Mode:      domain.MatchSubstring,
		OnSuccess: domain.Continue(),
		OnFail:    domain.Continue(),
	})
	return &OutputBuilder{Builder: b, index: len(b.steps) - 1}
}

// Build validates every step and returns the macro. All problems are reported together.
func (b *Builder) Build() (domain.Macro, error) {
	var result *multierror.Error
	for i, s := range b.steps {
		if err := domain.ValidateStep(s); err != nil {
			result = multierror.Append(result, fmt.Errorf("step %d: %w", i+1, err))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return domain.Macro{}, err
	}

	steps := make([]domain.Step, len(b.steps))
	copy(steps, b.steps)
	return domain.Macro{Name: b.name, Steps: steps}, nil
}

// MustBuild is Build for macros known to be valid. It panics on error.
func (b *Builder) MustBuild() domain.Macro {
	m, err := b.Build()
	if err != nil {
		panic(err)
	}
	return m
}
