package loader

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/DJA-prog/serialmacro/pkg/domain"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// Entry is a loaded macro and where it came from.
type Entry struct {
	Macro  domain.Macro
	Source string
}

// Library is an in-memory ports.MacroSource.
type Library struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewLibrary builds a library from entries. On duplicate names the first entry wins.
func NewLibrary(entries ...Entry) *Library {
	l := &Library{entries: make(map[string]Entry)}
	for _, e := range entries {
		l.Add(e)
	}
	return l
}

// Add registers e unless a macro with the same name is already present.
func (l *Library) Add(e Entry) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.entries[e.Macro.Name]; exists {
		return false
	}
	l.entries[e.Macro.Name] = e
	return true
}

// Macro implements ports.MacroSource.
func (l *Library) Macro(name string) (domain.Macro, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[name]
	if !ok {
		return domain.Macro{}, fmt.Errorf("%w: %s", domain.ErrMacroNotFound, name)
	}
	return e.Macro, nil
}

// Names implements ports.MacroSource.
func (l *Library) Names() ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.entries))
	for n := range l.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Entries returns every entry sorted by name.
func (l *Library) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Macro.Name < out[j].Macro.Name })
	return out
}

// LoadFile reads a single macro. A missing name falls back to the file's base name.
func LoadFile(path string) (Entry, error) {
	if strings.TrimSpace(path) == "" {
		return Entry{}, fmt.Errorf("macro path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, fmt.Errorf("read macro %s: %w", path, err)
	}
	return parseEntry(data, path)
}

// LoadDir reads every .yaml and .yml file in dir. A missing directory yields no entries.
func LoadDir(dir string) ([]Entry, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read macros dir %s: %w", dir, err)
	}

	out := make([]Entry, 0, len(entries))
	for _, de := range entries {
		if de.IsDir() || !isMacroFile(de.Name()) {
			continue
		}
		e, err := LoadFile(filepath.Join(dir, de.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Macro.Name < out[j].Macro.Name })
	return out, nil
}

// LoadBuiltins returns the macros bundled with the binary.
func LoadBuiltins() ([]Entry, error) {
	des, err := fs.ReadDir(builtinFS, "builtin")
	if err != nil {
		return nil, fmt.Errorf("read builtin macros: %w", err)
	}
	out := make([]Entry, 0, len(des))
	for _, de := range des {
		if de.IsDir() {
			continue
		}
		path := "builtin/" + de.Name()
		data, err := builtinFS.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read builtin macro %s: %w", de.Name(), err)
		}
		e, err := parseEntry(data, path)
		if err != nil {
			return nil, err
		}
		e.Source = "builtin"
		out = append(out, e)
	}
	return out, nil
}

// SearchPaths returns macro directories in precedence order.
func SearchPaths(projectDir, configDir string) []string {
	paths := make([]string, 0, 2)
	if projectDir != "" {
		paths = append(paths, filepath.Join(projectDir, ".serialmacro", "macros"))
	}
	if configDir != "" {
		paths = append(paths, filepath.Join(configDir, "macros"))
	}
	return paths
}

// LoadLibrary loads dirs in order, then the builtins, with first-hit precedence by name.
func LoadLibrary(dirs ...string) (*Library, error) {
	lib := NewLibrary()
	for _, dir := range dirs {
		entries, err := LoadDir(dir)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			lib.Add(e)
		}
	}

	builtins, err := LoadBuiltins()
	if err != nil {
		return nil, err
	}
	for _, e := range builtins {
		lib.Add(e)
	}
	return lib, nil
}

func parseEntry(data []byte, path string) (Entry, error) {
	m, err := Parse(data)
	if err != nil {
		return Entry{}, fmt.Errorf("parse macro %s: %w", path, err)
	}
	if m.Name == "" {
		m.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return Entry{Macro: m, Source: path}, nil
}

func isMacroFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
