package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/DJA-prog/serialmacro/internal/config"
	"github.com/DJA-prog/serialmacro/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	s, err := config.Load(config.New(), "")
	require.NoError(t, err)

	assert.Equal(t, 115200, s.Serial.BaudRate)
	assert.Equal(t, ":8080", s.HTTP.Addr)
	assert.Equal(t, "info", s.Log.Level)
	assert.False(t, s.Display.RevealHiddenChars)
	le, err := s.LineEnding()
	require.NoError(t, err)
	assert.Equal(t, domain.LineEndingLN, le)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "settings.yaml", `
serial:
  port: /dev/ttyUSB0
  baud_rate: 9600
  tx_line_ending: crln
display:
  reveal_hidden_chars: true
`)
	t.Setenv("SERIALMACRO_SERIAL_BAUD_RATE", "57600")
	t.Setenv("SERIALMACRO_REDIS_ADDR", "localhost:6379")

	s, err := config.Load(config.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB0", s.Serial.Port)
	assert.Equal(t, 57600, s.Serial.BaudRate, "environment overrides the file")
	assert.Equal(t, "localhost:6379", s.Redis.Addr)
	assert.True(t, s.Display.RevealHiddenChars)
	le, err := s.LineEnding()
	require.NoError(t, err)
	assert.Equal(t, domain.LineEndingCRLN, le)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"bad line ending", "serial:\n  tx_line_ending: LF2\n"},
		{"zero baud", "serial:\n  baud_rate: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, "settings.yaml", tt.content)
			_, err := config.Load(config.New(), path)
			assert.Error(t, err)
		})
	}

	_, err := config.Load(config.New(), filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err, "an explicit settings path must exist")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ".env", "SERIALMACRO_HTTP_ADDR=:9999\n")
	t.Setenv("SERIALMACRO_HTTP_ADDR", "")
	os.Unsetenv("SERIALMACRO_HTTP_ADDR")

	require.NoError(t, config.LoadDotEnv(path, filepath.Join(dir, "absent.env")))

	s, err := config.Load(config.New(), writeFile(t, dir, "settings.yaml", "{}\n"))
	require.NoError(t, err)
	assert.Equal(t, ":9999", s.HTTP.Addr)
}

func TestMacroDirs(t *testing.T) {
	s := &config.Settings{Macros: config.MacroSettings{Dir: "/opt/macros"}}
	dirs := s.MacroDirs()
	require.NotEmpty(t, dirs)
	assert.Equal(t, "/opt/macros", dirs[0])
	assert.Contains(t, dirs[1], filepath.Join(".serialmacro", "macros"))
}
