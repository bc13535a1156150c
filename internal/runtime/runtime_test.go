package runtime_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DJA-prog/serialmacro/internal/runtime"
	"github.com/DJA-prog/serialmacro/pkg/adapters/serial"
	"github.com/DJA-prog/serialmacro/pkg/bridge"
	"github.com/DJA-prog/serialmacro/pkg/domain"
	"github.com/stretchr/testify/require"
)

type eventLog struct {
	mu     sync.Mutex
	events []domain.Event
}

func (l *eventLog) collect(ch <-chan domain.Event) {
	for ev := range ch {
		l.mu.Lock()
		l.events = append(l.events, ev)
		l.mu.Unlock()
	}
}

func (l *eventLog) all() []domain.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.Event(nil), l.events...)
}

func (l *eventLog) types() []domain.EventType {
	var out []domain.EventType
	for _, ev := range l.all() {
		out = append(out, ev.Type)
	}
	return out
}

func (l *eventLog) terminals() []domain.Event {
	var out []domain.Event
	for _, ev := range l.all() {
		if ev.Type.Terminal() {
			out = append(out, ev)
		}
	}
	return out
}

type harness struct {
	sim    *serial.Simulator
	mb     *bridge.Mailbox
	exec   *runtime.Executor
	events *eventLog
}

func newHarness(t *testing.T, rules ...serial.Rule) *harness {
	t.Helper()
	h := &harness{
		sim:    serial.NewSimulator(rules...),
		mb:     bridge.New(),
		events: &eventLog{},
	}
	h.exec = runtime.NewExecutor(h.sim, h.mb, runtime.NewStopController(), runtime.WithPollInterval(10*time.Millisecond))
	go h.events.collect(h.mb.Events())
	t.Cleanup(func() {
		h.exec.RequestStop()
		_ = h.mb.Close()
		_ = h.sim.Close()
	})
	return h
}

func (h *harness) start(t *testing.T, steps ...domain.Step) {
	t.Helper()
	_, err := h.exec.Start(context.Background(), domain.Macro{Name: t.Name(), Steps: steps})
	require.NoError(t, err)
}

func (h *harness) wait(t *testing.T, within time.Duration) domain.RunRecord {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), within)
	defer cancel()
	rec, err := h.exec.Wait(ctx)
	require.NoError(t, err, "run did not finish within %s", within)
	require.Eventually(t, func() bool { return len(h.events.terminals()) > 0 }, time.Second, 5*time.Millisecond)
	return rec
}

func (h *harness) run(t *testing.T, steps ...domain.Step) domain.RunRecord {
	t.Helper()
	h.start(t, steps...)
	return h.wait(t, 5*time.Second)
}

func (h *harness) nextRequest(t *testing.T) domain.Request {
	t.Helper()
	select {
	case req := <-h.mb.Requests():
		return req
	case <-time.After(2 * time.Second):
		t.Fatal("no ui request was posted")
		return domain.Request{}
	}
}

func (h *harness) answer(t *testing.T, reply domain.Reply) domain.Request {
	t.Helper()
	req := h.nextRequest(t)
	require.NoError(t, h.mb.Reply(req.ID, reply))
	return req
}

func output(expected string, timeout time.Duration, mode domain.MatchMode, success, fail domain.Outcome) domain.Output {
	return domain.Output{Expected: expected, Timeout: timeout, Mode: mode, OnSuccess: success, OnFail: fail}
}
