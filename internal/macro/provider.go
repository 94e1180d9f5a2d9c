package macro

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.starlark.net/starlark"

	"github.com/leapstack-labs/procmacro/internal/expandsrv"
	starctx "github.com/leapstack-labs/procmacro/internal/starlark"
	"github.com/leapstack-labs/procmacro/pkg/tt"
)

// StarlarkProvider resolves macros from Starlark libraries. The lib of a request
// names a .star file, relative to the provider's directory unless absolute. Loaded
// libraries are cached until the file's modification time changes.
type StarlarkProvider struct {
	dir     string
	threads *starctx.ThreadPool

	mu    sync.Mutex
	cache map[string]cachedModule
}

type cachedModule struct {
	modTime time.Time
	module  *LoadedModule
}

var _ expandsrv.Provider = (*StarlarkProvider)(nil)

// NewStarlarkProvider creates a provider resolving libraries under dir.
func NewStarlarkProvider(dir string) *StarlarkProvider {
	return &StarlarkProvider{
		dir:     dir,
		threads: starctx.NewThreadPool(0, 0, nil),
		cache:   make(map[string]cachedModule),
	}
}

// WithLogger routes print() output of macros to logger.
func (p *StarlarkProvider) WithLogger(logger *slog.Logger) *StarlarkProvider {
	p.threads = starctx.NewThreadPool(0, 0, logger)
	return p
}

// Lookup implements expandsrv.Provider.
func (p *StarlarkProvider) Lookup(lib, name string) (expandsrv.MacroFunc, error) {
	module, err := p.module(lib)
	if err != nil {
		return nil, err
	}

	fn, err := module.Macro(name)
	if err != nil {
		return nil, err
	}

	return func(body *tt.Subtree) (*tt.Subtree, error) {
		return p.call(module.Namespace+"."+name, fn, body)
	}, nil
}

func (p *StarlarkProvider) resolve(lib string) string {
	path := lib
	if filepath.Ext(path) != ".star" {
		path += ".star"
	}
	if !filepath.IsAbs(path) && p.dir != "" {
		path = filepath.Join(p.dir, path)
	}
	return filepath.Clean(path)
}

func (p *StarlarkProvider) module(lib string) (*LoadedModule, error) {
	if lib == "" {
		return nil, ErrNoLibrary
	}
	path := p.resolve(lib)

	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{File: path, Err: err}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if cached, ok := p.cache[path]; ok && cached.modTime.Equal(info.ModTime()) {
		return cached.module, nil
	}

	module, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	p.cache[path] = cachedModule{modTime: info.ModTime(), module: module}
	return module, nil
}

// call runs fn with the body in its wire form and decodes the result. A macro may
// return a subtree, a list of token trees or None.
func (p *StarlarkProvider) call(name string, fn starlark.Callable, body *tt.Subtree) (*tt.Subtree, error) {
	arg, err := toStarlark(body)
	if err != nil {
		return nil, fmt.Errorf("convert body: %w", err)
	}

	result, err := p.threads.Call(name, fn, starlark.Tuple{arg})
	if err != nil {
		return nil, err
	}
	return fromStarlark(result)
}

func toStarlark(body *tt.Subtree) (starlark.Value, error) {
	if body == nil {
		body = &tt.Subtree{}
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return starctx.DecodeJSON(data)
}

func fromStarlark(v starlark.Value) (*tt.Subtree, error) {
	switch v.(type) {
	case starlark.NoneType:
		return nil, nil
	case *starlark.List, starlark.Tuple:
		data, err := starctx.EncodeJSON(v)
		if err != nil {
			return nil, fmt.Errorf("convert result: %w", err)
		}
		var trees []json.RawMessage
		if err := json.Unmarshal(data, &trees); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		return decodeSubtree(map[string]any{"delimiter": nil, "token_trees": trees})
	case *starlark.Dict:
		data, err := starctx.EncodeJSON(v)
		if err != nil {
			return nil, fmt.Errorf("convert result: %w", err)
		}
		return decodeSubtree(json.RawMessage(data))
	default:
		return nil, fmt.Errorf("macro returned %s, want a subtree or a list of token trees", v.Type())
	}
}

func decodeSubtree(v any) (*tt.Subtree, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var sub tt.Subtree
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &sub, nil
}
