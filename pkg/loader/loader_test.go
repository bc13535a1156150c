package loader_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DJA-prog/serialmacro/pkg/domain"
	"github.com/DJA-prog/serialmacro/pkg/loader"
	"github.com/DJA-prog/serialmacro/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullMacro = `
name: full
steps:
  - input: AT
  - delay: 250
  - dialog_wait: { message: "Insert SIM", default: end }
  - output:
      expected: READY
      timeout: 500
      substring_match: false
      success: Ignore
      fail: { input: "AT+CPIN=1234" }
  - output:
      expected: OK
  - menu_single: { options: [ATI, ATZ] }
  - menu_multi: { options: [AT+CSQ] }
`

func TestParse_AllStepKinds(t *testing.T) {
	m, err := loader.Parse([]byte(fullMacro))
	require.NoError(t, err)

	assert.Equal(t, "full", m.Name)
	assert.Equal(t, []domain.Step{
		domain.Input{Command: "AT"},
		domain.Delay{Wait: 250 * time.Millisecond},
		domain.DialogWait{Message: "Insert SIM", Default: domain.DialogEnd},
		domain.Output{
			Expected:  "READY",
			Timeout:   500 * time.Millisecond,
			Mode:      domain.MatchFullLine,
			OnSuccess: domain.Ignore(),
			OnFail:    domain.CustomCommand("AT+CPIN=1234"),
		},
		domain.Output{
			Expected:  "OK",
			Timeout:   loader.DefaultOutputTimeout,
			Mode:      domain.MatchSubstring,
			OnSuccess: domain.Continue(),
			OnFail:    domain.Continue(),
		},
		domain.MenuSingle{Options: []string{"ATI", "ATZ"}},
		domain.MenuMulti{Options: []string{"AT+CSQ"}},
	}, m.Steps)
}

func TestParse_EmptyMacroIsValid(t *testing.T) {
	m, err := loader.Parse([]byte("name: nothing\nsteps: []\n"))
	require.NoError(t, err)
	assert.Empty(t, m.Steps)
}

func TestParseOutcome(t *testing.T) {
	tests := []struct {
		in   any
		want domain.Outcome
	}{
		{nil, domain.Continue()},
		{"Continue", domain.Continue()},
		{"CONTINUE", domain.Continue()},
		{"Ignore", domain.Ignore()},
		{"Exit", domain.ExitMacro()},
		{"EXIT", domain.ExitMacro()},
		{"exit_macro", domain.ExitMacro()},
		{"DIALOG", domain.DialogForCommand()},
		{"DialogForCommand", domain.DialogForCommand()},
		{"dialog_and_wait", domain.DialogAndWait()},
		{map[string]any{"input": "ATZ"}, domain.CustomCommand("ATZ")},
	}

	for _, tt := range tests {
		got, err := loader.ParseOutcome(tt.in)
		require.NoError(t, err, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}

	for _, bad := range []any{"retry", map[string]any{"input": ""}, map[string]any{"cmd": "AT"}, 42} {
		_, err := loader.ParseOutcome(bad)
		assert.ErrorIs(t, err, domain.ErrInvalidStep, "%v", bad)
	}
}

func TestParse_ReportsEveryInvalidStep(t *testing.T) {
	_, err := loader.Parse([]byte(`
name: broken
steps:
  - input: AT
  - delay: 70000
  - teleport: now
  - output: { expected: OK, fail: Retry }
  - menu_single: { options: [] }
  - { input: AT, delay: 10 }
`))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidStep)
	for _, want := range []string{"step 2", "step 3", "step 4", "step 5", "step 6"} {
		assert.Contains(t, err.Error(), want)
	}
	assert.NotContains(t, err.Error(), "step 1:")
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := loader.Parse([]byte("steps:\n  - output: { expected: OK, timout: 10 }\n"))
	assert.ErrorIs(t, err, domain.ErrInvalidStep)
}

func TestMarshal_RoundTrip(t *testing.T) {
	m, err := loader.Parse([]byte(fullMacro))
	require.NoError(t, err)

	data, err := loader.Marshal(m)
	require.NoError(t, err)

	again, err := loader.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, m, again)
}

func TestLoadDir_NameFallbackAndPrecedence(t *testing.T) {
	project := t.TempDir()
	user := t.TempDir()

	write := func(dir, name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	write(project, "reset.yaml", "steps:\n  - input: ATZ\n")
	write(project, "modem-check.yml", "name: modem-check\nsteps: []\n")
	write(project, "notes.txt", "ignored")
	write(user, "reset.yaml", "name: reset\nsteps:\n  - input: AT&F\n  - input: ATZ\n")

	lib, err := loader.LoadLibrary(project, user, filepath.Join(user, "missing"))
	require.NoError(t, err)

	reset, err := lib.Macro("reset")
	require.NoError(t, err)
	assert.Len(t, reset.Steps, 1, "project directory wins")

	check, err := lib.Macro("modem-check")
	require.NoError(t, err)
	assert.Empty(t, check.Steps, "user macro shadows the builtin")

	tests.MacroSourceContractTest(t, lib, map[string]int{
		"reset":          1,
		"modem-check":    0,
		"sim-unlock":     5,
		"network-survey": 4,
	})
}

func TestLoadDir_InvalidFileFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("steps:\n  - delay: -1\n"), 0o644))

	_, err := loader.LoadDir(dir)
	assert.ErrorIs(t, err, domain.ErrInvalidStep)
	assert.Contains(t, err.Error(), "bad.yaml")
}

func TestBuiltinsAreValid(t *testing.T) {
	entries, err := loader.LoadBuiltins()
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	for _, e := range entries {
		assert.NoError(t, e.Macro.Validate(), e.Macro.Name)
		assert.Equal(t, "builtin", e.Source)
	}
}

func TestSearchPaths(t *testing.T) {
	assert.Equal(t, []string{
		filepath.Join("proj", ".serialmacro", "macros"),
		filepath.Join("cfg", "macros"),
	}, loader.SearchPaths("proj", "cfg"))
	assert.Empty(t, loader.SearchPaths("", ""))
}
