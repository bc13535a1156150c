package runtime_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DJA-prog/serialmacro/internal/runtime"
	"github.com/DJA-prog/serialmacro/pkg/adapters/serial"
	"github.com/DJA-prog/serialmacro/pkg/bridge"
	"github.com/DJA-prog/serialmacro/pkg/domain"
	"github.com/DJA-prog/serialmacro/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor_EmptyMacroCompletes(t *testing.T) {
	h := newHarness(t)

	rec := h.run(t)

	assert.Equal(t, domain.RunCompleted, rec.State)
	assert.Empty(t, h.sim.Written())
	assert.Equal(t, []domain.EventType{domain.EventMacroCompleted}, h.events.types())
}

func TestExecutor_ModemHandshake(t *testing.T) {
	h := newHarness(t, serial.Rule{Command: "AT", Reply: []string{"OK"}, Delay: 30 * time.Millisecond})

	rec := h.run(t,
		domain.Input{Command: "AT"},
		output("OK", time.Second, domain.MatchSubstring, domain.Continue(), domain.ExitMacro()),
	)

	assert.Equal(t, domain.RunCompleted, rec.State)
	assert.Equal(t, []string{"AT"}, h.sim.Written())
	assert.Equal(t, 1, rec.Stats.Matches)
	assert.Equal(t, 2, rec.Stats.StepsExecuted)
}

func TestExecutor_FailBranchSendsCustomCommand(t *testing.T) {
	h := newHarness(t)

	rec := h.run(t,
		domain.Input{Command: "AT+CPIN?"},
		output("READY", 500*time.Millisecond, domain.MatchSubstring, domain.Continue(), domain.CustomCommand("AT+CPIN=1234")),
	)

	assert.Equal(t, domain.RunCompleted, rec.State)
	assert.Equal(t, []string{"AT+CPIN?", "AT+CPIN=1234"}, h.sim.Written())
	assert.Equal(t, 1, rec.Stats.Timeouts)
}

func TestExecutor_MatchModes(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		mode   domain.MatchMode
		result domain.StepResult
	}{
		{"substring trims whitespace", "  OK  ", domain.MatchSubstring, domain.ResultSuccess},
		{"full line rejects extra text", "OK extra", domain.MatchFullLine, domain.ResultFail},
		{"full line trims whitespace", "\tOK ", domain.MatchFullLine, domain.ResultSuccess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, serial.Rule{Command: "AT", Reply: []string{tt.reply}})

			rec := h.run(t,
				domain.Input{Command: "AT"},
				output("OK", 200*time.Millisecond, tt.mode, domain.Continue(), domain.Continue()),
			)

			assert.Equal(t, domain.RunCompleted, rec.State, "default fail outcome continues")
			var got domain.StepResult
			for _, ev := range h.events.all() {
				if ev.Type == domain.EventStepResult && ev.StepKind == domain.StepOutput {
					got = ev.Result
				}
			}
			assert.Equal(t, tt.result, got)
		})
	}
}

func TestExecutor_LinesBeforeClearAreInvisible(t *testing.T) {
	h := newHarness(t)

	h.start(t,
		domain.DialogWait{Message: "power on the modem"},
		domain.DialogWait{Message: "ready?"},
		output("OK", 100*time.Millisecond, domain.MatchSubstring, domain.Continue(), domain.ExitMacro()),
	)

	first := h.nextRequest(t)
	h.sim.Emit("OK")
	require.NoError(t, h.mb.Reply(first.ID, domain.ContinueReply()))
	h.answer(t, domain.ContinueReply())

	rec := h.wait(t, 2*time.Second)
	assert.Equal(t, domain.RunCancelled, rec.State, "OK arrived before the second dialog cleared the buffer")
	assert.Equal(t, "exit requested by macro", rec.Reason)
}

func TestExecutor_LinesAfterClearAreVisible(t *testing.T) {
	h := newHarness(t)

	h.start(t,
		domain.DialogWait{Message: "ready?"},
		output("OK", 100*time.Millisecond, domain.MatchSubstring, domain.Continue(), domain.ExitMacro()),
	)

	req := h.nextRequest(t)
	h.sim.Emit("OK")
	require.NoError(t, h.mb.Reply(req.ID, domain.ContinueReply()))

	rec := h.wait(t, 2*time.Second)
	assert.Equal(t, domain.RunCompleted, rec.State)
}

func TestExecutor_OutputZeroValueDefaults(t *testing.T) {
	h := newHarness(t, serial.Rule{Command: "AT", Reply: []string{"OK"}})

	rec := h.run(t, domain.Input{Command: "AT"}, domain.Output{Expected: "OK"})

	assert.Equal(t, domain.RunCompleted, rec.State)
	assert.Equal(t, 1, rec.Stats.Matches+rec.Stats.Timeouts)
}

func TestExecutor_OutputAfterDelayTimesFromStepStart(t *testing.T) {
	// The reply lands 400ms after AT. Counting 300ms from the delay's clear would miss it;
	// counting from when the output step begins (200ms) does not.
	h := newHarness(t, serial.Rule{Command: "AT", Reply: []string{"OK"}, Delay: 400 * time.Millisecond})

	rec := h.run(t,
		domain.Input{Command: "AT"},
		domain.Delay{Wait: 200 * time.Millisecond},
		output("OK", 300*time.Millisecond, domain.MatchSubstring, domain.Continue(), domain.ExitMacro()),
	)

	assert.Equal(t, domain.RunCompleted, rec.State)
	assert.Equal(t, 1, rec.Stats.Matches)
}

func TestExecutor_OutputAfterInputTimesFromSend(t *testing.T) {
	h := newHarness(t, serial.Rule{Command: "AT", Reply: []string{"OK"}, Delay: 400 * time.Millisecond})

	rec := h.run(t,
		domain.Input{Command: "AT"},
		output("OK", 150*time.Millisecond, domain.MatchSubstring, domain.Continue(), domain.ExitMacro()),
	)

	assert.Equal(t, domain.RunCancelled, rec.State)
	assert.Equal(t, 1, rec.Stats.Timeouts)
}

func TestExecutor_StopDuringLongDelay(t *testing.T) {
	h := newHarness(t)

	h.start(t, domain.Delay{Wait: 60 * time.Second}, domain.Input{Command: "AT"})
	require.Eventually(t, func() bool {
		return len(h.events.all()) == 1 && h.events.all()[0].Type == domain.EventStepStarted
	}, time.Second, 5*time.Millisecond)

	began := time.Now()
	h.exec.RequestStop()
	rec := h.wait(t, time.Second)

	assert.Less(t, time.Since(began), 500*time.Millisecond)
	assert.Equal(t, domain.RunCancelled, rec.State)
	assert.Empty(t, h.sim.Written())
	assert.Equal(t, []domain.EventType{domain.EventStepStarted, domain.EventMacroCancelled}, h.events.types())
}

func TestExecutor_StopWhileAwaitingUI(t *testing.T) {
	h := newHarness(t)

	h.start(t, domain.MenuSingle{Options: []string{"ATZ"}}, domain.Input{Command: "AT"})
	req := h.nextRequest(t)

	h.exec.RequestStop()
	rec := h.wait(t, time.Second)

	assert.Equal(t, domain.RunCancelled, rec.State)
	assert.Equal(t, "stopped", rec.Reason)
	assert.Empty(t, h.sim.Written())
	assert.Empty(t, h.mb.Pending())
	assert.Error(t, h.mb.Reply(req.ID, domain.ChooseReply(0)), "a withdrawn request cannot be answered")
	assert.Len(t, h.events.terminals(), 1)
}

func TestExecutor_DialogAndWaitEnd(t *testing.T) {
	h := newHarness(t)

	h.start(t,
		output("READY", 10*time.Millisecond, domain.MatchSubstring, domain.Continue(), domain.DialogAndWait()),
		domain.Input{Command: "AT"},
		domain.Delay{Wait: 10 * time.Millisecond},
	)
	req := h.answer(t, domain.EndReply())
	assert.Equal(t, domain.RequestDialog, req.Kind)

	rec := h.wait(t, time.Second)
	assert.Equal(t, domain.RunCancelled, rec.State)
	assert.Empty(t, h.sim.Written())
	for _, ev := range h.events.all() {
		assert.Zero(t, ev.StepIndex, "no notifications for later steps, got %+v", ev)
	}
	assert.Len(t, h.events.terminals(), 1)
}

func TestExecutor_DialogForCommand(t *testing.T) {
	h := newHarness(t)

	h.start(t, output("READY", 10*time.Millisecond, domain.MatchSubstring, domain.Continue(), domain.DialogForCommand()))
	req := h.answer(t, domain.SubmitReply("  AT+CFUN=1 "))
	assert.Equal(t, domain.RequestText, req.Kind)

	rec := h.wait(t, time.Second)
	assert.Equal(t, domain.RunCompleted, rec.State)
	assert.Equal(t, []string{"AT+CFUN=1"}, h.sim.Written())
}

func TestExecutor_DialogForCommandCancelled(t *testing.T) {
	h := newHarness(t)

	h.start(t, output("READY", 10*time.Millisecond, domain.MatchSubstring, domain.Continue(), domain.DialogForCommand()))
	h.answer(t, domain.CancelReply())

	rec := h.wait(t, time.Second)
	assert.Equal(t, domain.RunCancelled, rec.State)
	assert.Empty(t, h.sim.Written())
}

func TestExecutor_Menus(t *testing.T) {
	t.Run("single choice is sent", func(t *testing.T) {
		h := newHarness(t)
		h.start(t, domain.MenuSingle{Options: []string{"ATI", "ATZ"}})
		h.answer(t, domain.ChooseReply(1))

		rec := h.wait(t, time.Second)
		assert.Equal(t, domain.RunCompleted, rec.State)
		assert.Equal(t, []string{"ATZ"}, h.sim.Written())
	})

	t.Run("single cancel", func(t *testing.T) {
		h := newHarness(t)
		h.start(t, domain.MenuSingle{Options: []string{"ATI"}}, domain.Input{Command: "AT"})
		h.answer(t, domain.CancelReply())

		rec := h.wait(t, time.Second)
		assert.Equal(t, domain.RunCancelled, rec.State)
		assert.Empty(t, h.sim.Written())
	})

	t.Run("multi sends each choice until continue", func(t *testing.T) {
		h := newHarness(t)
		h.start(t, domain.MenuMulti{Options: []string{"ATI", "ATZ", "AT+GMR"}}, domain.Input{Command: "AT"})
		h.answer(t, domain.ChooseReply(2))
		h.answer(t, domain.ChooseReply(0))
		h.answer(t, domain.ContinueReply())

		rec := h.wait(t, time.Second)
		assert.Equal(t, domain.RunCompleted, rec.State)
		assert.Equal(t, []string{"AT+GMR", "ATI", "AT"}, h.sim.Written())
		assert.Equal(t, 3, rec.Stats.Requests)
	})

	t.Run("multi dismissed", func(t *testing.T) {
		h := newHarness(t)
		h.start(t, domain.MenuMulti{Options: []string{"ATI"}}, domain.Input{Command: "AT"})
		h.answer(t, domain.ChooseReply(0))
		h.answer(t, domain.CancelReply())

		rec := h.wait(t, time.Second)
		assert.Equal(t, domain.RunCancelled, rec.State)
		assert.Equal(t, []string{"ATI"}, h.sim.Written())
	})
}

func TestExecutor_UIUnavailableCancels(t *testing.T) {
	h := newHarness(t)

	h.start(t, domain.DialogWait{Message: "continue?"}, domain.Input{Command: "AT"})
	h.nextRequest(t)
	require.NoError(t, h.mb.Close())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	rec, err := h.exec.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCancelled, rec.State)
	assert.Contains(t, rec.Reason, domain.ErrUIUnavailable.Error())
	assert.Empty(t, h.sim.Written())
}

func TestExecutor_TransportWriteFails(t *testing.T) {
	h := newHarness(t)
	h.sim.FailWrites(errors.New("device unplugged"))

	rec := h.run(t, domain.Input{Command: "AT"}, domain.Input{Command: "ATI"})

	assert.Equal(t, domain.RunFailed, rec.State)
	assert.Contains(t, rec.Reason, "device unplugged")
	assert.Zero(t, rec.StepIndex, "no further steps after a failed write")

	terminals := h.events.terminals()
	require.Len(t, terminals, 1)
	assert.Equal(t, domain.EventMacroFailed, terminals[0].Type)
	assert.Contains(t, terminals[0].Reason, domain.ErrTransportWrite.Error())
}

func TestExecutor_RejectsConcurrentStart(t *testing.T) {
	h := newHarness(t)
	h.start(t, domain.Delay{Wait: time.Minute})

	_, err := h.exec.Start(context.Background(), domain.Macro{Name: "second"})
	assert.ErrorIs(t, err, domain.ErrRunActive)

	h.exec.RequestStop()
	h.wait(t, time.Second)
}

func TestExecutor_RejectsInvalidMacro(t *testing.T) {
	h := newHarness(t)
	_, err := h.exec.Start(context.Background(), domain.Macro{Steps: []domain.Step{domain.Delay{Wait: 2 * time.Minute}}})
	assert.ErrorIs(t, err, domain.ErrInvalidStep)
	assert.Equal(t, domain.RunIdle, h.exec.State())
}

func TestExecutor_SequentialRunsDoNotDeadlock(t *testing.T) {
	h := newHarness(t, serial.Rule{Command: "AT", Reply: []string{"OK"}})
	macro := []domain.Step{
		domain.Input{Command: "AT"},
		output("OK", time.Second, domain.MatchFullLine, domain.Continue(), domain.ExitMacro()),
	}

	for i := 0; i < 20; i++ {
		rec := h.run(t, macro...)
		require.Equal(t, domain.RunCompleted, rec.State, "run %d", i)
		// A late stop request must not leak into the next run.
		h.exec.RequestStop()
	}
	assert.Len(t, h.sim.Written(), 20)
}

func TestExecutor_LineEnding(t *testing.T) {
	rec := &recordingTransport{}
	mb := bridge.New()
	defer mb.Close()
	exec := runtime.NewExecutor(rec, mb, nil, runtime.WithLineEnding(domain.LineEndingCRLN))

	_, err := exec.Start(context.Background(), domain.Macro{Steps: []domain.Step{domain.Input{Command: "AT"}}})
	require.NoError(t, err)
	out, err := exec.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "AT\r\n", string(rec.data))
	assert.EqualValues(t, 4, out.Stats.BytesWritten)
}

func TestExecutor_PanicBecomesFailed(t *testing.T) {
	mb := bridge.New()
	defer mb.Close()
	exec := runtime.NewExecutor(&recordingTransport{panicOnWrite: true}, mb, nil)

	_, err := exec.Start(context.Background(), domain.Macro{Steps: []domain.Step{domain.Input{Command: "AT"}}})
	require.NoError(t, err)
	rec, err := exec.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.RunFailed, rec.State)
	assert.Contains(t, rec.Reason, "internal fault")
}

func TestExecutor_LifecycleHooks(t *testing.T) {
	var started, results, finished int
	hooks := domain.LifecycleHooks{
		OnStepStarted: func(context.Context, *domain.Event) { started++ },
		OnStepResult:  func(context.Context, *domain.Event) { results++ },
		OnRunFinished: func(context.Context, *domain.Event) { finished++ },
	}
	mb := bridge.New()
	defer mb.Close()
	exec := runtime.NewExecutor(serial.NewSimulator(), mb, nil, runtime.WithLifecycleHooks(hooks))

	_, err := exec.Start(context.Background(), domain.Macro{Steps: []domain.Step{
		domain.Input{Command: "AT"},
		domain.Delay{Wait: time.Millisecond},
	}})
	require.NoError(t, err)
	_, err = exec.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, started)
	assert.Equal(t, 2, results)
	assert.Equal(t, 1, finished)
}

type recordingTransport struct {
	serial.Hub
	data         []byte
	panicOnWrite bool
}

func (r *recordingTransport) Write(p []byte) (int, error) {
	if r.panicOnWrite {
		panic("driver bug")
	}
	r.data = append(r.data, p...)
	return len(p), nil
}

var _ ports.Transport = (*recordingTransport)(nil)
