package domain

import (
	"context"
	"time"
)

// EventType defines the category of a run notification.
type EventType string

const (
	EventStepStarted    EventType = "step_started"
	EventStepResult     EventType = "step_result"
	EventCommandSent    EventType = "command_sent"
	EventMacroCompleted EventType = "macro_completed"
	EventMacroCancelled EventType = "macro_cancelled"
	EventMacroFailed    EventType = "macro_failed"
)

// Terminal reports whether the event ends a run.
func (t EventType) Terminal() bool {
	return t == EventMacroCompleted || t == EventMacroCancelled || t == EventMacroFailed
}

// StepResult classifies how a step finished.
type StepResult string

const (
	ResultDone    StepResult = "done"
	ResultSuccess StepResult = "success"
	ResultFail    StepResult = "fail"
)

// Event is a status notification emitted by the executor. It never influences the run.
type Event struct {
	Timestamp time.Time     `json:"timestamp"`
	Type      EventType     `json:"type"`
	RunID     string        `json:"run_id"`
	Macro     string        `json:"macro"`
	StepIndex int           `json:"step_index"`
	StepKind  StepKind      `json:"step_kind,omitempty"`
	Result    StepResult    `json:"result,omitempty"`
	Command   string        `json:"command,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Elapsed   time.Duration `json:"elapsed,omitempty"`
}

// LifecycleHooks defines callbacks for run observability.
// Hooks run synchronously on the executor goroutine and must not block.
type LifecycleHooks struct {
	OnStepStarted func(context.Context, *Event)
	OnStepResult  func(context.Context, *Event)
	OnCommandSent func(context.Context, *Event)
	OnRunFinished func(context.Context, *Event)
	OnRequest     func(context.Context, *Request)
}

// Dispatch routes an event to the matching hook.
func (h LifecycleHooks) Dispatch(ctx context.Context, e *Event) {
	var fn func(context.Context, *Event)
	switch {
	case e.Type == EventStepStarted:
		fn = h.OnStepStarted
	case e.Type == EventStepResult:
		fn = h.OnStepResult
	case e.Type == EventCommandSent:
		fn = h.OnCommandSent
	case e.Type.Terminal():
		fn = h.OnRunFinished
	}
	if fn != nil {
		fn(ctx, e)
	}
}

// ComposeHooks returns hooks that call each set in order.
func ComposeHooks(sets ...LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnStepStarted: chainEvent(sets, func(h LifecycleHooks) func(context.Context, *Event) { return h.OnStepStarted }),
		OnStepResult:  chainEvent(sets, func(h LifecycleHooks) func(context.Context, *Event) { return h.OnStepResult }),
		OnCommandSent: chainEvent(sets, func(h LifecycleHooks) func(context.Context, *Event) { return h.OnCommandSent }),
		OnRunFinished: chainEvent(sets, func(h LifecycleHooks) func(context.Context, *Event) { return h.OnRunFinished }),
		OnRequest: func(ctx context.Context, r *Request) {
			for _, h := range sets {
				if h.OnRequest != nil {
					h.OnRequest(ctx, r)
				}
			}
		},
	}
}

func chainEvent(sets []LifecycleHooks, pick func(LifecycleHooks) func(context.Context, *Event)) func(context.Context, *Event) {
	var fns []func(context.Context, *Event)
	for _, h := range sets {
		if fn := pick(h); fn != nil {
			fns = append(fns, fn)
		}
	}
	if len(fns) == 0 {
		return nil
	}
	return func(ctx context.Context, e *Event) {
		for _, fn := range fns {
			fn(ctx, e)
		}
	}
}
