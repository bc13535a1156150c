package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/DJA-prog/serialmacro"
	"github.com/DJA-prog/serialmacro/internal/config"
	"github.com/DJA-prog/serialmacro/internal/logging"
	"github.com/DJA-prog/serialmacro/pkg/domain"
	"github.com/DJA-prog/serialmacro/pkg/loader"
	"github.com/DJA-prog/serialmacro/pkg/ports"
)

// createLogger configures the application logger.
// Without --debug only warnings reach stderr so the console stays readable.
func createLogger(s *config.Settings, debug bool) *slog.Logger {
	if debug {
		return logging.New(slog.LevelDebug)
	}
	level, err := logging.ParseLevel(s.Log.Level)
	if err != nil || level < slog.LevelWarn {
		level = slog.LevelWarn
	}
	return logging.New(level)
}

// createEngine initializes an engine with standard CLI conventions.
func createEngine(s *config.Settings, transport ports.Transport, logger *slog.Logger, extra ...serialmacro.Option) (*serialmacro.Engine, error) {
	lib, err := loader.LoadLibrary(s.MacroDirs()...)
	if err != nil {
		return nil, fmt.Errorf("error loading macros: %w", err)
	}
	le, err := s.LineEnding()
	if err != nil {
		return nil, err
	}

	opts := []serialmacro.Option{
		serialmacro.WithLogger(logger),
		serialmacro.WithMacros(lib),
		serialmacro.WithLineEnding(le),
	}
	opts = append(opts, extra...)

	eng, err := serialmacro.New(transport, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return eng, nil
}

// resolveMacro treats arg as a file when it looks like one, otherwise as a macro name.
func resolveMacro(eng *serialmacro.Engine, arg string) (domain.Macro, error) {
	ext := strings.ToLower(filepath.Ext(arg))
	if ext == ".yaml" || ext == ".yml" {
		if _, err := os.Stat(arg); err == nil {
			entry, err := loader.LoadFile(arg)
			if err != nil {
				return domain.Macro{}, err
			}
			return entry.Macro, nil
		}
	}
	return eng.Macro(arg)
}

// printSystemMessage prints a standardized system message to stdout.
func printSystemMessage(format string, args ...any) {
	fmt.Printf(">>> %s\n", fmt.Sprintf(format, args...))
}
