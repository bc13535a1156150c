package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/DJA-prog/serialmacro/internal/config"
	"github.com/DJA-prog/serialmacro/pkg/loader"
	"github.com/hashicorp/go-multierror"
)

// Validate checks macro files, or every macro on the search path when paths is empty.
// All problems are reported together.
func Validate(w io.Writer, s *config.Settings, paths []string) error {
	var result *multierror.Error

	if len(paths) == 0 {
		for _, dir := range s.MacroDirs() {
			entries, err := loader.LoadDir(dir)
			if err != nil {
				result = multierror.Append(result, err)
				continue
			}
			for _, e := range entries {
				fmt.Fprintf(w, "ok  %s (%d steps) %s\n", e.Macro.Name, len(e.Macro.Steps), e.Source)
			}
		}
		return result.ErrorOrNil()
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		e, err := loader.LoadFile(path)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		fmt.Fprintf(w, "ok  %s (%d steps) %s\n", e.Macro.Name, len(e.Macro.Steps), e.Source)
	}
	return result.ErrorOrNil()
}

// List writes the available macros and where each comes from.
func List(w io.Writer, s *config.Settings) error {
	lib, err := loader.LoadLibrary(s.MacroDirs()...)
	if err != nil {
		return err
	}
	for _, e := range lib.Entries() {
		fmt.Fprintf(w, "%-24s %3d steps  %s\n", e.Macro.Name, len(e.Macro.Steps), e.Source)
	}
	return nil
}
