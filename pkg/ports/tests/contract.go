package tests

import (
	"errors"
	"testing"

	"github.com/DJA-prog/serialmacro/pkg/domain"
	"github.com/DJA-prog/serialmacro/pkg/ports"
)

// MacroSourceContractTest is a reusable test suite that verifies if an adapter complies with ports.MacroSource.
// want maps every macro name the source must resolve to its expected step count.
func MacroSourceContractTest(t *testing.T, src ports.MacroSource, want map[string]int) {
	t.Helper()

	t.Run("Macro_Success", func(t *testing.T) {
		for name, steps := range want {
			m, err := src.Macro(name)
			if err != nil {
				t.Fatalf("unexpected error getting macro %s: %v", name, err)
			}
			if m.Name != name {
				t.Errorf("name mismatch: got %q, want %q", m.Name, name)
			}
			if len(m.Steps) != steps {
				t.Errorf("step count for %s: got %d, want %d", name, len(m.Steps), steps)
			}
		}
	})

	t.Run("Macro_NotFound", func(t *testing.T) {
		_, err := src.Macro("non-existent-macro")
		if !errors.Is(err, domain.ErrMacroNotFound) {
			t.Errorf("expected ErrMacroNotFound, got %v", err)
		}
	})

	t.Run("Names", func(t *testing.T) {
		names, err := src.Names()
		if err != nil {
			t.Fatalf("unexpected error listing macros: %v", err)
		}

		lookup := make(map[string]bool)
		for _, n := range names {
			lookup[n] = true
		}
		for name := range want {
			if !lookup[name] {
				t.Errorf("macro %s missing from list", name)
			}
		}
	})
}
