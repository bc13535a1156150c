package tui_test

import (
	"bytes"
	"testing"

	"github.com/DJA-prog/serialmacro/internal/presentation/tui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevealHidden(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"OK", "OK"},
		{"AT I", "AT·I"},
		{"a\tb", "a→   b"},
		{"OK\r", "OK␍"},
		{"OK\r\n", "OK␍⏎\n"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tui.RevealHidden(tt.in), "input %q", tt.in)
	}
}

func TestTrafficFormatter(t *testing.T) {
	assert.Nil(t, tui.TrafficFormatter(false))
	f := tui.TrafficFormatter(true)
	require.NotNil(t, f)
	assert.Equal(t, "+CSQ:·20", f("+CSQ: 20"))
}

func TestRenderer_PlainTextSurvives(t *testing.T) {
	render := tui.NewRenderer(80)
	out, err := render("Insert the SIM card")
	require.NoError(t, err)
	assert.Contains(t, out, "Insert the SIM card")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf, "1.2.3")
	assert.Contains(t, buf.String(), "v1.2.3")
	assert.Contains(t, tui.Notice(&buf, "peer: /dev/pts/4"), "/dev/pts/4")
}
