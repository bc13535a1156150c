package ports

import "github.com/DJA-prog/serialmacro/pkg/domain"

// MacroSource resolves macros by name.
type MacroSource interface {
	// Macro returns the macro called name, or domain.ErrMacroNotFound.
	Macro(name string) (domain.Macro, error)

	// Names lists every macro the source can resolve, sorted.
	Names() ([]string, error)
}
