// Package macro loads Starlark macro libraries for the reference expander.
// A library is a .star file; each exported function is a macro that receives the
// call body as a token tree and returns the expansion.
package macro

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.starlark.net/starlark"

	starctx "github.com/leapstack-labs/procmacro/internal/starlark"
)

// ErrNoLibrary is returned when a library name is empty.
var ErrNoLibrary = errors.New("no macro library given")

// Loader scans a directory for .star macro libraries.
type Loader struct {
	dir string
}

// NewLoader creates a loader for dir. A missing directory holds no libraries.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// LoadedModule is an executed macro library with frozen globals.
type LoadedModule struct {
	Namespace string              // file name without .star
	Path      string              // path of the .star file
	Exports   starlark.StringDict // globals not starting with _
}

// Macro returns the exported function name.
func (m *LoadedModule) Macro(name string) (starlark.Callable, error) {
	value, ok := m.Exports[name]
	if !ok {
		return nil, fmt.Errorf("macro %q not found in %s", name, filepath.Base(m.Path))
	}
	fn, ok := value.(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("%s.%s is a %s, not a function", m.Namespace, name, value.Type())
	}
	return fn, nil
}

// Names returns the exported names in sorted order.
func (m *LoadedModule) Names() []string {
	names := make([]string, 0, len(m.Exports))
	for name := range m.Exports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load executes every library in the directory. All failures are reported together.
func (l *Loader) Load() ([]*LoadedModule, error) {
	files, err := l.files()
	if err != nil {
		return nil, err
	}

	var modules []*LoadedModule
	var errs []error
	for _, file := range files {
		module, err := LoadFile(file)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		modules = append(modules, module)
	}
	return modules, errors.Join(errs...)
}

// Parse reads the signatures of every library without executing them.
func (l *Loader) Parse() ([]*ParsedNamespace, error) {
	files, err := l.files()
	if err != nil {
		return nil, err
	}

	var namespaces []*ParsedNamespace
	for _, file := range files {
		content, err := os.ReadFile(file) //nolint:gosec // G304: path comes from a glob within the macros directory
		if err != nil {
			return nil, &LoadError{File: file, Err: err}
		}
		ns, err := ParseStarlarkFile(file, content)
		if err != nil {
			return nil, err
		}
		namespaces = append(namespaces, ns)
	}
	return namespaces, nil
}

func (l *Loader) files() ([]string, error) {
	info, err := os.Stat(l.dir)
	switch {
	case os.IsNotExist(err):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to access macros directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("macros path is not a directory: %s", l.dir)
	}

	files, err := filepath.Glob(filepath.Join(l.dir, "*.star"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan macros directory: %w", err)
	}
	return files, nil
}

// LoadFile executes one library with the tt module predeclared. Its globals are
// frozen so the module can serve concurrent calls.
func LoadFile(path string) (*LoadedModule, error) {
	namespace := strings.TrimSuffix(filepath.Base(path), ".star")
	if err := validateNamespace(namespace); err != nil {
		return nil, &LoadError{File: path, Err: err}
	}

	content, err := os.ReadFile(path) //nolint:gosec // G304: path names a macro library chosen by the caller
	if err != nil {
		return nil, &LoadError{File: path, Err: err}
	}

	thread := &starlark.Thread{
		Name:  "load:" + namespace,
		Print: func(*starlark.Thread, string) {},
	}
	globals, err := starlark.ExecFile(thread, path, content, starctx.Predeclared()) //nolint:staticcheck // SA1019: ExecFileOptions needs explicit syntax options
	if err != nil {
		return nil, &LoadError{File: path, Err: err}
	}
	globals.Freeze()

	exports := make(starlark.StringDict, len(globals))
	for name, value := range globals {
		if !strings.HasPrefix(name, "_") {
			exports[name] = value
		}
	}
	return &LoadedModule{Namespace: namespace, Path: path, Exports: exports}, nil
}

// validateNamespace accepts identifier-like names: a letter or underscore followed
// by letters, digits or underscores.
func validateNamespace(name string) error {
	if name == "" {
		return errors.New("namespace cannot be empty")
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return fmt.Errorf("invalid namespace %q: want a letter or underscore followed by letters, digits or underscores", name)
		}
	}
	return nil
}

// LoadError reports a macro library that could not be loaded.
type LoadError struct {
	File string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %v", filepath.Base(e.File), e.Err)
}

// Unwrap returns the underlying failure.
func (e *LoadError) Unwrap() error {
	return e.Err
}
