// Package expandsrv implements the expander side of the protocol: it reads expansion
// requests line by line, runs the requested macro and writes the response.
package expandsrv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"

	"github.com/leapstack-labs/procmacro/internal/protocol"
	"github.com/leapstack-labs/procmacro/pkg/tt"
)

// MacroFunc expands a macro body into a new token tree.
type MacroFunc func(body *tt.Subtree) (*tt.Subtree, error)

// Provider resolves a macro by library path and name.
type Provider interface {
	Lookup(lib, name string) (MacroFunc, error)
}

// Macros is a Provider backed by a fixed set of macros that ignores the library path.
type Macros map[string]MacroFunc

// Lookup implements Provider.
func (m Macros) Lookup(_, name string) (MacroFunc, error) {
	fn, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("unknown macro %q", name)
	}
	return fn, nil
}

// Serve answers requests from r on w until r is exhausted or ctx is done. Requests
// that are valid JSON but not understood are answered with an Error response; a
// stream that is not JSON ends the session with an error.
func Serve(ctx context.Context, r io.Reader, w io.Writer, provider Provider, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	dec := protocol.NewDecoder(r)
	enc := protocol.NewEncoder(w)

	logger.Debug("expander serving", "version", protocol.ExpanderVersion)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		raw, err := dec.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Debug("client disconnected")
				return nil
			}
			return fmt.Errorf("read request: %w", err)
		}

		resp := handle(raw, provider, logger)
		if err := enc.EncodeResponse(resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
}

func handle(raw []byte, provider Provider, logger *slog.Logger) protocol.Response {
	req, err := protocol.UnmarshalRequest(raw)
	if err != nil {
		logger.Warn("bad request", "error", err)
		return errorResponse(err.Error())
	}

	switch r := req.(type) {
	case protocol.ExpansionMacroRequest:
		logger.Debug("expanding", "macro", r.Task.MacroName, "lib", r.Task.Lib)
		expansion, err := expand(r.Task, provider)
		if err != nil {
			return errorResponse(err.Error())
		}
		return protocol.ExpansionMacroResponse{Result: protocol.ExpansionResult{Expansion: expansion}}
	default:
		return errorResponse(fmt.Sprintf("unsupported request %T", req))
	}
}

// expand runs one macro. A panicking macro is reported as an error.
func expand(task protocol.ExpansionTask, provider Provider) (result *tt.Subtree, err error) {
	fn, err := provider.Lookup(task.Lib, task.MacroName)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &PanicError{Macro: task.MacroName, Value: r, Stack: debug.Stack()}
		}
	}()

	result, err = fn(task.MacroBody)
	if err == nil && result == nil {
		result = &tt.Subtree{TokenTrees: []tt.TokenTree{}}
	}
	return result, err
}

// PanicError reports a macro that panicked.
type PanicError struct {
	Macro string
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("proc macro %s panicked: %v", e.Macro, e.Value)
}

func errorResponse(message string) protocol.Response {
	return protocol.ErrorResponse{Error: protocol.ResponseError{Message: message}}
}
