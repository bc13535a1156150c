// Package config resolves settings from defaults, a settings file, .env files and SERIALMACRO_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/DJA-prog/serialmacro/pkg/domain"
	"github.com/DJA-prog/serialmacro/pkg/loader"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SERIALMACRO_SERIAL_PORT.
const EnvPrefix = "SERIALMACRO"

// Keys shared by the settings file, environment and command flags.
const (
	KeySerialPort    = "serial.port"
	KeySerialBaud    = "serial.baud_rate"
	KeyLineEnding    = "serial.tx_line_ending"
	KeySerialVirtual = "serial.virtual"
	KeyReveal        = "display.reveal_hidden_chars"
	KeyMacrosDir     = "macros.dir"
	KeyHTTPAddr      = "http.addr"
	KeyRedisAddr     = "redis.addr"
	KeyRedisPassword = "redis.password"
	KeyRedisDB       = "redis.db"
	KeyEventLog      = "event_log.path"
	KeyHistoryDir    = "history.dir"
	KeyLogLevel      = "log.level"
)

// Settings is the resolved configuration.
type Settings struct {
	Serial   SerialSettings   `mapstructure:"serial"`
	Display  DisplaySettings  `mapstructure:"display"`
	Macros   MacroSettings    `mapstructure:"macros"`
	HTTP     HTTPSettings     `mapstructure:"http"`
	Redis    RedisSettings    `mapstructure:"redis"`
	EventLog EventLogSettings `mapstructure:"event_log"`
	History  HistorySettings  `mapstructure:"history"`
	Log      LogSettings      `mapstructure:"log"`
}

type SerialSettings struct {
	Port         string `mapstructure:"port"`
	BaudRate     int    `mapstructure:"baud_rate"`
	TxLineEnding string `mapstructure:"tx_line_ending"`
	Virtual      bool   `mapstructure:"virtual"`
}

type DisplaySettings struct {
	RevealHiddenChars bool `mapstructure:"reveal_hidden_chars"`
}

type MacroSettings struct {
	Dir string `mapstructure:"dir"`
}

type HTTPSettings struct {
	Addr string `mapstructure:"addr"`
}

type RedisSettings struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type EventLogSettings struct {
	Path string `mapstructure:"path"`
}

// HistorySettings locates the run history kept when Redis is not configured.
type HistorySettings struct {
	Dir string `mapstructure:"dir"`
}

type LogSettings struct {
	Level string `mapstructure:"level"`
}

// LineEnding returns the parsed TX line ending.
func (s *Settings) LineEnding() (domain.LineEnding, error) {
	return domain.ParseLineEnding(s.Serial.TxLineEnding)
}

// Dir is the per-user configuration directory, $XDG_CONFIG_HOME/serialmacro on Linux.
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "serialmacro")
}

// New returns a viper instance with defaults and environment binding in place.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeySerialPort, "")
	v.SetDefault(KeySerialBaud, 115200)
	v.SetDefault(KeyLineEnding, string(domain.DefaultLineEnding))
	v.SetDefault(KeySerialVirtual, false)
	v.SetDefault(KeyReveal, false)
	v.SetDefault(KeyMacrosDir, "")
	v.SetDefault(KeyHTTPAddr, ":8080")
	v.SetDefault(KeyRedisAddr, "")
	v.SetDefault(KeyRedisPassword, "")
	v.SetDefault(KeyRedisDB, 0)
	v.SetDefault(KeyEventLog, "")
	v.SetDefault(KeyHistoryDir, "")
	v.SetDefault(KeyLogLevel, "info")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadDotEnv loads .env files into the process environment. Missing files are ignored
// and variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the settings file into v and decodes the result. With an empty path,
// settings.yaml is looked up in the working directory and Dir(); not finding one is fine.
func Load(v *viper.Viper, path string) (*Settings, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("settings")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir := Dir(); dir != "" {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read settings: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if _, err := s.LineEnding(); err != nil {
		return nil, fmt.Errorf("%s: %w", KeyLineEnding, err)
	}
	if s.Serial.BaudRate <= 0 {
		return nil, fmt.Errorf("%s must be positive, got %d", KeySerialBaud, s.Serial.BaudRate)
	}
	return &s, nil
}

// HistoryDir is where run records are written, $XDG_CONFIG_HOME/serialmacro/runs by default.
func (s *Settings) HistoryDir() string {
	if s.History.Dir != "" {
		return s.History.Dir
	}
	if dir := Dir(); dir != "" {
		return filepath.Join(dir, "runs")
	}
	return filepath.Join(".serialmacro", "runs")
}

// MacroDirs lists the directories macros are loaded from, in precedence order.
func (s *Settings) MacroDirs() []string {
	var dirs []string
	if s.Macros.Dir != "" {
		dirs = append(dirs, s.Macros.Dir)
	}
	wd, _ := os.Getwd()
	return append(dirs, loader.SearchPaths(wd, Dir())...)
}
