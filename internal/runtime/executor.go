package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/DJA-prog/serialmacro/pkg/domain"
	"github.com/DJA-prog/serialmacro/pkg/ports"
	"github.com/google/uuid"
)

// DefaultPollInterval bounds how long a suspended step can take to notice a stop or a new line.
const DefaultPollInterval = 50 * time.Millisecond

// Executor runs macros against one transport, one run at a time.
type Executor struct {
	transport    ports.Transport
	bridge       ports.UIBridge
	stop         *StopController
	logger       *slog.Logger
	hooks        domain.LifecycleHooks
	lineEnding   domain.LineEnding
	pollInterval time.Duration
	bufferLimit  int
	newRunID     func() string

	mu     sync.Mutex
	state  domain.RunState
	record domain.RunRecord
	done   chan struct{}
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) ExecutorOption {
	return func(e *Executor) {
		e.hooks = hooks
	}
}

// WithLineEnding sets the terminator appended to every command.
func WithLineEnding(le domain.LineEnding) ExecutorOption {
	return func(e *Executor) {
		e.lineEnding = le
	}
}

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.pollInterval = d
		}
	}
}

// WithBufferLimit bounds the session buffer.
func WithBufferLimit(n int) ExecutorOption {
	return func(e *Executor) {
		e.bufferLimit = n
	}
}

// WithRunIDGenerator replaces the UUID run ID generator.
func WithRunIDGenerator(fn func() string) ExecutorOption {
	return func(e *Executor) {
		e.newRunID = fn
	}
}

// NewExecutor creates an idle executor. stop may be nil, in which case the executor owns one.
func NewExecutor(transport ports.Transport, bridge ports.UIBridge, stop *StopController, opts ...ExecutorOption) *Executor {
	if stop == nil {
		stop = NewStopController()
	}
	e := &Executor{
		transport:    transport,
		bridge:       bridge,
		stop:         stop,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		lineEnding:   domain.DefaultLineEnding,
		pollInterval: DefaultPollInterval,
		bufferLimit:  DefaultBufferLimit,
		newRunID:     uuid.NewString,
		state:        domain.RunIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start begins running macro asynchronously and returns the run ID.
// The run is detached from ctx cancellation; use RequestStop to end it early.
// Returns domain.ErrRunActive if a run is in progress and domain.ErrInvalidStep for a malformed macro.
func (e *Executor) Start(ctx context.Context, macro domain.Macro) (string, error) {
	if err := macro.Validate(); err != nil {
		return "", err
	}

	e.mu.Lock()
	if e.state == domain.RunRunning {
		e.mu.Unlock()
		return "", domain.ErrRunActive
	}
	e.stop.Reset()
	ec := newExecutionContext(e.newRunID(), macro, e.stop, e.bufferLimit)
	e.state = domain.RunRunning
	e.record = domain.RunRecord{
		ID:        ec.RunID,
		Macro:     macro.Name,
		State:     domain.RunRunning,
		StartedAt: ec.StartedAt,
	}
	e.done = make(chan struct{})
	e.mu.Unlock()

	runCtx := context.WithoutCancel(ctx)
	logger := e.logger.With("run", ec.RunID, "macro", macro.Name)
	logger.Info("macro started", "steps", len(macro.Steps))

	go e.run(runCtx, ec, logger)
	return ec.RunID, nil
}

// RequestStop asks the current run to stop at its next suspension point. It is idempotent.
func (e *Executor) RequestStop() {
	e.stop.RequestStop()
}

// State returns the lifecycle state of the most recent run.
func (e *Executor) State() domain.RunState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Snapshot returns a copy of the most recent run's record.
func (e *Executor) Snapshot() domain.RunRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.record
}

// Wait blocks until the current run is terminal or ctx is done.
func (e *Executor) Wait(ctx context.Context) (domain.RunRecord, error) {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done == nil {
		return domain.RunRecord{}, domain.ErrRunNotFound
	}

	select {
	case <-done:
		return e.Snapshot(), nil
	case <-ctx.Done():
		return e.Snapshot(), ctx.Err()
	}
}

func (e *Executor) run(ctx context.Context, ec *ExecutionContext, logger *slog.Logger) {
	unsubscribe := e.transport.Subscribe(ec.Buffer.Append)
	state, reason := e.execute(ctx, ec, logger)
	unsubscribe()
	e.finish(ctx, ec, logger, state, reason)
}

// execute walks the steps. Every step-level condition becomes a terminal state; nothing escapes.
func (e *Executor) execute(ctx context.Context, ec *ExecutionContext, logger *slog.Logger) (state domain.RunState, reason string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("executor panic", "panic", r)
			state, reason = domain.RunFailed, fmt.Sprintf("internal fault: %v", r)
		}
	}()

	for i, step := range ec.Macro.Steps {
		if ec.Stop.Stopped() {
			return domain.RunCancelled, reasonStopped
		}
		ec.StepIndex = i
		e.sync(ec)

		e.emit(ctx, ec, domain.Event{Type: domain.EventStepStarted, StepKind: step.Kind()})
		logger.Debug("step started", "index", i, "kind", step.Kind())

		if domain.ClearsBuffer(step) {
			cleared := ec.clear()
			ec.anchor = time.Time{}
			if step.Kind() == domain.StepInput {
				ec.anchor = cleared
			}
		}

		result, err := e.dispatch(ctx, ec, step)
		ec.Stats.StepsExecuted++
		if err != nil {
			final, why := classify(err)
			logger.Debug("step ended run", "index", i, "state", final, "reason", why)
			return final, why
		}

		// Output reports its own result before applying an outcome.
		if step.Kind() != domain.StepOutput {
			e.emit(ctx, ec, domain.Event{Type: domain.EventStepResult, StepKind: step.Kind(), Result: result})
		}
	}
	return domain.RunCompleted, ""
}

func (e *Executor) dispatch(ctx context.Context, ec *ExecutionContext, step domain.Step) (domain.StepResult, error) {
	switch st := step.(type) {
	case domain.Input:
		return domain.ResultDone, e.send(ctx, ec, st.Command)

	case domain.Delay:
		if !ec.Stop.Sleep(st.Wait) {
			return "", domain.ErrStopped
		}
		return domain.ResultDone, nil

	case domain.DialogWait:
		reply, err := e.ask(ctx, ec, domain.Request{
			Kind:    domain.RequestDialog,
			Message: st.Message,
			Default: st.Default,
		})
		if err != nil {
			return "", err
		}
		return domain.ResultDone, continueOrEnd(reply, reasonDialogEnded)

	case domain.Output:
		return e.output(ctx, ec, st)

	case domain.MenuSingle:
		reply, err := e.ask(ctx, ec, domain.Request{Kind: domain.RequestSingleChoice, Options: st.Options})
		if err != nil {
			return "", err
		}
		cmd, ok := chosen(reply, st.Options)
		if !ok {
			return "", cancelled(reasonMenuCancelled)
		}
		return domain.ResultDone, e.send(ctx, ec, cmd)

	case domain.MenuMulti:
		for {
			reply, err := e.ask(ctx, ec, domain.Request{Kind: domain.RequestMultiChoice, Options: st.Options})
			if err != nil {
				return "", err
			}
			if reply.Action == domain.ReplyContinue {
				return domain.ResultDone, nil
			}
			cmd, ok := chosen(reply, st.Options)
			if !ok {
				return "", cancelled(reasonMenuCancelled)
			}
			if err := e.send(ctx, ec, cmd); err != nil {
				return "", err
			}
		}
	}
	return "", fmt.Errorf("%w: unsupported step %T", domain.ErrInvalidStep, step)
}

// output polls the buffer until a match, the deadline, or a stop.
func (e *Executor) output(ctx context.Context, ec *ExecutionContext, st domain.Output) (domain.StepResult, error) {
	began := time.Now()
	deadline := ec.outputDeadline(st.Timeout)

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()
	stopped := ec.Stop.Done()

	matched := false
	for {
		if ec.Stop.Stopped() {
			return "", domain.ErrStopped
		}
		if ec.Buffer.Match(st.Expected, st.Mode.Normalize()) {
			matched = true
			break
		}
		if !time.Now().Before(deadline) {
			break
		}
		select {
		case <-stopped:
		case <-ec.Buffer.Changed():
		case <-ticker.C:
		case <-timer.C:
		}
	}

	result, outcome := domain.ResultFail, st.OnFail
	if matched {
		result, outcome = domain.ResultSuccess, st.OnSuccess
		ec.Stats.Matches++
	} else {
		ec.Stats.Timeouts++
	}

	e.emit(ctx, ec, domain.Event{
		Type:     domain.EventStepResult,
		StepKind: domain.StepOutput,
		Result:   result,
		Elapsed:  time.Since(began),
	})
	return result, e.applyOutcome(ctx, ec, st, outcome)
}

// send writes cmd plus the line ending. A stop observed earlier suppresses the write.
func (e *Executor) send(ctx context.Context, ec *ExecutionContext, cmd string) error {
	if ec.Stop.Stopped() {
		return domain.ErrStopped
	}
	payload := append([]byte(cmd), e.lineEnding.Bytes()...)
	n, err := e.transport.Write(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransportWrite, err)
	}
	ec.Stats.CommandsSent++
	ec.Stats.BytesWritten += int64(n)
	e.emit(ctx, ec, domain.Event{Type: domain.EventCommandSent, Command: cmd})
	return nil
}

// ask posts a request and waits for the reply, giving up promptly on stop.
func (e *Executor) ask(ctx context.Context, ec *ExecutionContext, req domain.Request) (domain.Reply, error) {
	if ec.Stop.Stopped() {
		return domain.Reply{}, domain.ErrStopped
	}
	req.RunID = ec.RunID
	req.StepIndex = ec.StepIndex
	req.CreatedAt = time.Now()

	ec.Stats.Requests++
	if e.hooks.OnRequest != nil {
		e.hooks.OnRequest(ctx, &req)
	}

	waitCtx, cancel := ec.Stop.Context(ctx)
	defer cancel()

	id, err := e.bridge.Post(waitCtx, req)
	if err != nil {
		return domain.Reply{}, fmt.Errorf("%w: %v", domain.ErrUIUnavailable, err)
	}
	reply, err := e.bridge.Await(waitCtx, id)
	if ec.Stop.Stopped() {
		return domain.Reply{}, domain.ErrStopped
	}
	if err != nil {
		if errors.Is(err, domain.ErrUIUnavailable) {
			return domain.Reply{}, err
		}
		return domain.Reply{}, fmt.Errorf("%w: %v", domain.ErrUIUnavailable, err)
	}
	return reply, nil
}

// emit publishes a status event. Non-terminal events are dropped once a stop was requested.
func (e *Executor) emit(ctx context.Context, ec *ExecutionContext, ev domain.Event) {
	if !ev.Type.Terminal() && ec.Stop.Stopped() {
		return
	}
	ev.Timestamp = time.Now()
	ev.RunID = ec.RunID
	ev.Macro = ec.Macro.Name
	ev.StepIndex = ec.StepIndex

	e.hooks.Dispatch(ctx, &ev)
	e.bridge.Notify(ctx, ev)
}

func (e *Executor) sync(ec *ExecutionContext) {
	e.mu.Lock()
	e.record.StepIndex = ec.StepIndex
	e.record.Stats = ec.Stats
	e.mu.Unlock()
}

func (e *Executor) finish(ctx context.Context, ec *ExecutionContext, logger *slog.Logger, state domain.RunState, reason string) {
	ev := domain.Event{Reason: reason}
	switch state {
	case domain.RunCompleted:
		ev.Type = domain.EventMacroCompleted
		logger.Info("macro completed", "steps", ec.Stats.StepsExecuted)
	case domain.RunFailed:
		ev.Type = domain.EventMacroFailed
		logger.Error("macro failed", "step", ec.StepIndex, "reason", reason)
	default:
		ev.Type = domain.EventMacroCancelled
		logger.Info("macro cancelled", "step", ec.StepIndex, "reason", reason)
	}
	e.emit(ctx, ec, ev)

	e.mu.Lock()
	e.state = state
	e.record.State = state
	e.record.StepIndex = ec.StepIndex
	e.record.Stats = ec.Stats
	e.record.Reason = reason
	e.record.FinishedAt = time.Now()
	close(e.done)
	e.mu.Unlock()
}
