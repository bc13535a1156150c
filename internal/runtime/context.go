package runtime

import (
	"time"

	"github.com/DJA-prog/serialmacro/pkg/domain"
)

// ExecutionContext is the mutable state of one run. It is owned by the executor goroutine.
type ExecutionContext struct {
	RunID     string
	Macro     domain.Macro
	StepIndex int
	Buffer    *SessionBuffer
	Stop      *StopController
	Stats     domain.RunStats
	StartedAt time.Time

	// anchor is where the next Output step's timeout starts; zero means "when the step begins".
	anchor time.Time
}

func newExecutionContext(runID string, macro domain.Macro, stop *StopController, bufferLimit int) *ExecutionContext {
	return &ExecutionContext{
		RunID:     runID,
		Macro:     macro,
		Buffer:    NewSessionBuffer(bufferLimit),
		Stop:      stop,
		StartedAt: time.Now(),
	}
}

// clear empties the buffer at the start of a buffer-clearing step.
func (ec *ExecutionContext) clear() time.Time {
	return ec.Buffer.Clear()
}

// outputDeadline consumes the anchor and returns when an Output step with timeout must give up.
func (ec *ExecutionContext) outputDeadline(timeout time.Duration) time.Time {
	start := ec.anchor
	ec.anchor = time.Time{}
	if start.IsZero() {
		start = time.Now()
	}
	return start.Add(timeout)
}
