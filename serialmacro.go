package serialmacro

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/DJA-prog/serialmacro/internal/runtime"
	"github.com/DJA-prog/serialmacro/pkg/adapters/memory"
	"github.com/DJA-prog/serialmacro/pkg/bridge"
	"github.com/DJA-prog/serialmacro/pkg/domain"
	"github.com/DJA-prog/serialmacro/pkg/loader"
	"github.com/DJA-prog/serialmacro/pkg/ports"
	"github.com/DJA-prog/serialmacro/pkg/session"
)

// DefaultTransportName keys the transport lock when the transport cannot name itself.
const DefaultTransportName = "default"

// Engine is the high-level entry point for the library.
// It binds one transport to an executor, a prompt mailbox and run history.
type Engine struct {
	exec      *runtime.Executor
	transport ports.Transport
	mailbox   *bridge.Mailbox
	macros    ports.MacroSource
	sessions  *session.Manager
	store     ports.RunStore
	locker    ports.TransportLocker
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	execOpts  []runtime.ExecutorOption
	Name      string

	mu      sync.Mutex
	current string
	settled chan struct{}
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMacros sets the macro source used by Start. Defaults to the built-in library.
func WithMacros(src ports.MacroSource) Option {
	return func(e *Engine) {
		e.macros = src
	}
}

// WithStore sets where run records are kept. Defaults to memory.
func WithStore(store ports.RunStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker shares the transport lock with other processes.
func WithLocker(locker ports.TransportLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithMailbox replaces the engine-owned prompt mailbox.
func WithMailbox(m *bridge.Mailbox) Option {
	return func(e *Engine) {
		e.mailbox = m
	}
}

// WithTransportName overrides the name used to lock and label the transport.
func WithTransportName(name string) Option {
	return func(e *Engine) {
		e.Name = name
	}
}

// WithLineEnding sets the terminator appended to every command.
func WithLineEnding(le domain.LineEnding) Option {
	return func(e *Engine) {
		e.execOpts = append(e.execOpts, runtime.WithLineEnding(le))
	}
}

// WithPollInterval sets how often a waiting output step re-checks the buffer.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.execOpts = append(e.execOpts, runtime.WithPollInterval(d))
	}
}

// WithBufferLimit bounds the number of received lines kept per run.
func WithBufferLimit(n int) Option {
	return func(e *Engine) {
		e.execOpts = append(e.execOpts, runtime.WithBufferLimit(n))
	}
}

// New initializes an Engine for transport.
func New(transport ports.Transport, opts ...Option) (*Engine, error) {
	if transport == nil {
		return nil, errors.New("transport is required")
	}
	eng := &Engine{transport: transport}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.Name == "" {
		eng.Name = DefaultTransportName
		if named, ok := transport.(interface{ Name() string }); ok && named.Name() != "" {
			eng.Name = named.Name()
		}
	}
	if eng.logger == nil {
		eng.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	eng.logger = eng.logger.With("transport", eng.Name)

	if eng.macros == nil {
		entries, err := loader.LoadBuiltins()
		if err != nil {
			return nil, fmt.Errorf("failed to load built-in macros: %w", err)
		}
		eng.macros = loader.NewLibrary(entries...)
	}
	if eng.store == nil {
		eng.store = memory.NewStore()
	}
	if eng.mailbox == nil {
		eng.mailbox = bridge.New(bridge.WithLogger(eng.logger))
	}

	sessionOpts := []session.Option{session.WithLogger(eng.logger)}
	if eng.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(eng.locker))
	}
	eng.sessions = session.NewManager(eng.store, sessionOpts...)

	execOpts := []runtime.ExecutorOption{
		runtime.WithLogger(eng.logger),
		runtime.WithLifecycleHooks(eng.hooks),
	}
	execOpts = append(execOpts, eng.execOpts...)
	eng.exec = runtime.NewExecutor(transport, eng.mailbox, nil, execOpts...)

	return eng, nil
}

// Start looks up the named macro and begins running it.
func (e *Engine) Start(ctx context.Context, name string) (string, error) {
	m, err := e.macros.Macro(name)
	if err != nil {
		return "", err
	}
	return e.StartMacro(ctx, m)
}

// StartMacro begins running m and returns the run ID.
// Returns domain.ErrRunActive if the transport is busy, here or in another process.
func (e *Engine) StartMacro(ctx context.Context, m domain.Macro) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}
	release, err := e.sessions.Begin(ctx, e.Name)
	if err != nil {
		return "", err
	}

	runID, err := e.exec.Start(ctx, m)
	if err != nil {
		release()
		return "", err
	}

	rec := e.exec.Snapshot()
	rec.Transport = e.Name
	if err := e.sessions.Record(ctx, &rec); err != nil {
		e.logger.Warn("failed to record run start", "run", runID, "err", err)
	}

	settled := make(chan struct{})
	e.mu.Lock()
	e.current = runID
	e.settled = settled
	e.mu.Unlock()

	go e.settle(context.WithoutCancel(ctx), runID, release, settled)
	return runID, nil
}

// settle persists the final record and frees the transport once the run ends.
func (e *Engine) settle(ctx context.Context, runID string, release func(), settled chan struct{}) {
	defer close(settled)
	defer release()

	rec, err := e.exec.Wait(ctx)
	if err != nil {
		e.logger.Error("failed waiting for run", "run", runID, "err", err)
		return
	}
	rec.Transport = e.Name
	if err := e.sessions.Record(ctx, &rec); err != nil {
		e.logger.Warn("failed to record run result", "run", runID, "err", err)
	}
}

// Run starts the named macro and blocks until it ends.
// Cancelling ctx stops the run.
func (e *Engine) Run(ctx context.Context, name string) (domain.RunRecord, error) {
	if _, err := e.Start(ctx, name); err != nil {
		return domain.RunRecord{}, err
	}
	stop := context.AfterFunc(ctx, e.Stop)
	defer stop()
	return e.Wait(context.WithoutCancel(ctx))
}

// Stop requests the current run to stop. It is idempotent.
func (e *Engine) Stop() {
	e.exec.RequestStop()
}

// Wait blocks until the current run has ended and its record is stored.
func (e *Engine) Wait(ctx context.Context) (domain.RunRecord, error) {
	e.mu.Lock()
	settled := e.settled
	e.mu.Unlock()
	if settled == nil {
		return domain.RunRecord{}, domain.ErrRunNotFound
	}

	select {
	case <-settled:
	case <-ctx.Done():
		return e.Snapshot(), ctx.Err()
	}
	return e.Snapshot(), nil
}

// State returns the lifecycle state of the most recent run.
func (e *Engine) State() domain.RunState {
	return e.exec.State()
}

// Snapshot returns the live record of the most recent run.
func (e *Engine) Snapshot() domain.RunRecord {
	rec := e.exec.Snapshot()
	if rec.ID != "" {
		rec.Transport = e.Name
	}
	return rec
}

// RunRecord returns the record for id, preferring live progress for the current run.
func (e *Engine) RunRecord(ctx context.Context, id string) (*domain.RunRecord, error) {
	e.mu.Lock()
	current := e.current
	e.mu.Unlock()
	if id == current {
		rec := e.Snapshot()
		return &rec, nil
	}
	return e.sessions.Load(ctx, id)
}

// Runs lists stored run records, most recent first.
func (e *Engine) Runs(ctx context.Context) ([]*domain.RunRecord, error) {
	return e.sessions.List(ctx)
}

// Macro returns the named macro definition.
func (e *Engine) Macro(name string) (domain.Macro, error) {
	return e.macros.Macro(name)
}

// Macros lists the names of available macros.
func (e *Engine) Macros() ([]string, error) {
	return e.macros.Names()
}

// Mailbox returns the prompt mailbox front ends read requests from and reply to.
func (e *Engine) Mailbox() *bridge.Mailbox {
	return e.mailbox
}

// Close stops any run and closes the mailbox. The transport is left open.
func (e *Engine) Close() error {
	e.Stop()
	return e.mailbox.Close()
}
