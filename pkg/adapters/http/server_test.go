package http_test

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DJA-prog/serialmacro"
	adapter "github.com/DJA-prog/serialmacro/pkg/adapters/http"
	"github.com/DJA-prog/serialmacro/pkg/adapters/serial"
	"github.com/DJA-prog/serialmacro/pkg/domain"
	"github.com/DJA-prog/serialmacro/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	eng *serialmacro.Engine
	sim *serial.Simulator
	srv *httptest.Server
}

func newFixture(t *testing.T, rules ...serial.Rule) *fixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	sim := serial.NewSimulator(rules...)
	eng, err := serialmacro.New(sim,
		serialmacro.WithPollInterval(10*time.Millisecond),
		serialmacro.WithLifecycleHooks(metrics.Hooks()),
	)
	require.NoError(t, err)

	handler := adapter.NewHandler(eng, eng.Mailbox(),
		adapter.WithEventSource(eng.Mailbox().Events()),
		adapter.WithMetrics(reg),
	)
	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		_ = eng.Close()
		_ = sim.Close()
	})
	return &fixture{eng: eng, sim: sim, srv: srv}
}

func (f *fixture) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (f *fixture) waitIdle(t *testing.T) domain.RunRecord {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rec, err := f.eng.Wait(ctx)
	require.NoError(t, err)
	return rec
}

func TestServer_HealthAndInfo(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	info := decode[map[string]string](t, f.do(t, "GET", "/info", ""))
	assert.Equal(t, strings.TrimSpace(serialmacro.Version), info["version"])
}

func TestServer_Macros(t *testing.T) {
	f := newFixture(t)

	list := decode[[]adapter.MacroSummary](t, f.do(t, "GET", "/macros", ""))
	assert.Contains(t, list, adapter.MacroSummary{Name: "modem-check", Steps: 4})

	resp := f.do(t, "GET", "/macros/modem-check", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "name: modem-check")

	assert.Equal(t, http.StatusNotFound, f.do(t, "GET", "/macros/nope", "").StatusCode)
}

func TestServer_RunLifecycle(t *testing.T) {
	f := newFixture(t,
		serial.Rule{Command: "AT", Reply: []string{"OK"}},
		serial.Rule{Command: "ATI", Reply: []string{"OK"}},
	)

	resp := f.do(t, "POST", "/runs", `{"macro":"modem-check"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	started := decode[adapter.StartRunResponse](t, resp)
	require.NotEmpty(t, started.RunID)

	f.waitIdle(t)

	rec := decode[domain.RunRecord](t, f.do(t, "GET", "/runs/"+started.RunID, ""))
	assert.Equal(t, domain.RunCompleted, rec.State)

	runs := decode[[]domain.RunRecord](t, f.do(t, "GET", "/runs", ""))
	require.Len(t, runs, 1)
	assert.Equal(t, started.RunID, runs[0].ID)

	assert.Equal(t, http.StatusNotFound, f.do(t, "GET", "/runs/missing", "").StatusCode)

	metrics := f.do(t, "GET", "/metrics", "")
	body, _ := io.ReadAll(metrics.Body)
	assert.Contains(t, string(body), `serialmacro_runs_total{result="completed"} 1`)
}

func TestServer_StartErrors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{`, http.StatusBadRequest},
		{"nothing to run", `{}`, http.StatusBadRequest},
		{"unknown macro", `{"macro":"nope"}`, http.StatusNotFound},
		{"invalid definition", `{"definition":"name: x\nsteps:\n  - delay: -5\n"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.do(t, "POST", "/runs", tt.body).StatusCode)
		})
	}
}

func TestServer_ConflictAndStop(t *testing.T) {
	f := newFixture(t)
	def := `{"definition":"name: long\nsteps:\n  - delay: 30000\n"}`

	require.Equal(t, http.StatusAccepted, f.do(t, "POST", "/runs", def).StatusCode)
	assert.Equal(t, http.StatusConflict, f.do(t, "POST", "/runs", def).StatusCode)

	current := decode[domain.RunRecord](t, f.do(t, "GET", "/runs/current", ""))
	assert.Equal(t, domain.RunRunning, current.State)

	assert.Equal(t, http.StatusAccepted, f.do(t, "POST", "/runs/stop", "").StatusCode)
	assert.Equal(t, domain.RunCancelled, f.waitIdle(t).State)
}

func TestServer_AnswerPrompt(t *testing.T) {
	f := newFixture(t)
	def := fmt.Sprintf(`{"definition":%q}`, "name: menu\nsteps:\n  - menu_single:\n      options: [\"AT+CSQ\", \"AT+COPS?\"]\n")
	require.Equal(t, http.StatusAccepted, f.do(t, "POST", "/runs", def).StatusCode)

	var prompts []domain.Request
	require.Eventually(t, func() bool {
		prompts = decode[[]domain.Request](t, f.do(t, "GET", "/prompts", ""))
		return len(prompts) == 1
	}, 2*time.Second, 20*time.Millisecond)
	id := prompts[0].ID
	assert.Equal(t, domain.RequestSingleChoice, prompts[0].Kind)

	assert.Equal(t, http.StatusBadRequest, f.do(t, "POST", "/prompts/"+id, `{"action":"submit","text":"x"}`).StatusCode)
	assert.Equal(t, http.StatusNoContent, f.do(t, "POST", "/prompts/"+id, `{"action":"choose","choice":1}`).StatusCode)
	assert.Equal(t, http.StatusConflict, f.do(t, "POST", "/prompts/"+id, `{"action":"choose","choice":0}`).StatusCode)
	assert.Equal(t, http.StatusNotFound, f.do(t, "POST", "/prompts/unknown", `{"action":"cancel"}`).StatusCode)

	assert.Equal(t, domain.RunCompleted, f.waitIdle(t).State)
	assert.Equal(t, []string{"AT+COPS?"}, f.sim.Written())
}

func TestServer_PromptWithdrawnByStop(t *testing.T) {
	f := newFixture(t)
	def := fmt.Sprintf(`{"definition":%q}`, "name: ask\nsteps:\n  - dialog_wait: { message: power on the modem }\n")
	require.Equal(t, http.StatusAccepted, f.do(t, "POST", "/runs", def).StatusCode)

	var prompts []domain.Request
	require.Eventually(t, func() bool {
		prompts = decode[[]domain.Request](t, f.do(t, "GET", "/prompts", ""))
		return len(prompts) == 1
	}, 2*time.Second, 20*time.Millisecond)

	assert.Equal(t, http.StatusAccepted, f.do(t, "POST", "/runs/stop", "").StatusCode)
	assert.Equal(t, domain.RunCancelled, f.waitIdle(t).State)

	resp := f.do(t, "POST", "/prompts/"+prompts[0].ID, `{"action":"continue"}`)
	assert.Equal(t, http.StatusGone, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "withdrawn")
}

func TestServer_EventStream(t *testing.T) {
	f := newFixture(t, serial.Rule{Command: "AT", Reply: []string{"OK"}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", f.srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 128)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	expectLine := func(want string) {
		t.Helper()
		deadline := time.After(3 * time.Second)
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					t.Fatalf("stream closed before %q", want)
				}
				if line == want {
					return
				}
			case <-deadline:
				t.Fatalf("did not see %q", want)
			}
		}
	}
	expectLine("data: connected")

	def := fmt.Sprintf(`{"definition":%q}`, "name: ping\nsteps:\n  - input: AT\n")
	require.Equal(t, http.StatusAccepted, f.do(t, "POST", "/runs", def).StatusCode)

	expectLine("event: command_sent")
	expectLine("event: macro_completed")
}
