package proc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/leapstack-labs/procmacro/internal/expansion"
	"github.com/leapstack-labs/procmacro/internal/protocol"
	"github.com/leapstack-labs/procmacro/pkg/tt"
)

// Expander expands procedural macro calls through an expander server. All failures
// are returned as *expansion.ProcMacroError except cancellation, which returns
// ctx.Err() unchanged.
type Expander struct {
	server   func() *Server
	recorder expansion.Recorder
	logger   *slog.Logger
}

var _ expansion.Expander = (*Expander)(nil)

// NewExpander creates an expander bound to server. A nil server yields
// ExecutableNotFound for every call.
func NewExpander(server *Server, logger *slog.Logger) *Expander {
	return newExpander(func() *Server { return server }, logger)
}

func newExpander(server func() *Server, logger *slog.Logger) *Expander {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Expander{server: server, logger: logger}
}

// WithRecorder makes the expander report every outcome to r.
func (e *Expander) WithRecorder(r expansion.Recorder) *Expander {
	e.recorder = r
	return e
}

// ExpandMacroAsText parses the call body, expands it and reconstructs the expansion
// text with ranges mapped back into the call body.
func (e *Expander) ExpandMacroAsText(ctx context.Context, call expansion.MacroCall) (*expansion.Result, error) {
	startedAt := time.Now()
	res, err := e.expandMacroAsText(ctx, call)
	e.record(ctx, call, res, err, startedAt)
	return res, err
}

func (e *Expander) expandMacroAsText(ctx context.Context, call expansion.MacroCall) (*expansion.Result, error) {
	if call.Body == nil {
		return nil, &expansion.ProcMacroError{Kind: expansion.MacroCallSyntax}
	}
	mapped := tt.Parse(*call.Body)

	expanded, err := e.ExpandWithErr(ctx, mapped.Subtree, call.Name, call.Lib)
	if err != nil {
		return nil, err
	}

	text, ranges := tt.Render(expanded, mapped.TokenMap)
	return &expansion.Result{Text: text, Ranges: ranges}, nil
}

// ExpandWithErr sends an already parsed macro body to the expander and returns the
// expanded token tree.
func (e *Expander) ExpandWithErr(ctx context.Context, body *tt.Subtree, macroName, lib string) (*tt.Subtree, error) {
	server := e.server()
	if server == nil {
		return nil, &expansion.ProcMacroError{Kind: expansion.ExecutableNotFound}
	}

	resp, err := server.Send(ctx, protocol.ExpansionMacroRequest{Task: protocol.ExpansionTask{
		MacroBody: body,
		MacroName: macroName,
		Lib:       lib,
	}})
	if err != nil {
		return nil, e.classify(server, err)
	}

	switch r := resp.(type) {
	case protocol.ExpansionMacroResponse:
		return r.Result.Expansion, nil
	case protocol.ErrorResponse:
		return nil, &expansion.ProcMacroError{Kind: expansion.Expansion, Message: r.Error.Message}
	default:
		return nil, &expansion.ProcMacroError{Kind: expansion.ExceptionThrown, Cause: errors.New("unexpected response")}
	}
}

// classify maps a transport failure to exactly one error kind.
func (e *Expander) classify(server *Server, err error) error {
	var createErr *ProcessCreationError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, ErrTimeout):
		return &expansion.ProcMacroError{Kind: expansion.Timeout, Cause: err}
	case errors.As(err, &createErr):
		server.warnCantRun(err)
		return &expansion.ProcMacroError{Kind: expansion.CantRunExpander, Cause: err}
	default:
		return &expansion.ProcMacroError{Kind: expansion.ExceptionThrown, Cause: err}
	}
}

func (e *Expander) record(ctx context.Context, call expansion.MacroCall, res *expansion.Result, err error, startedAt time.Time) {
	rec := expansion.NewRecord(call, res, err, startedAt)
	switch rec.Status {
	case expansion.StatusOK:
		e.logger.Debug("macro expanded", "macro", call.Name, "lib", call.Lib, "duration", rec.Duration)
	case expansion.StatusError:
		e.logger.Debug("macro expansion failed", "macro", call.Name, "lib", call.Lib, "kind", rec.ErrorKind, "error", err)
	}

	if e.recorder == nil {
		return
	}
	if rerr := e.recorder.RecordExpansion(context.WithoutCancel(ctx), rec); rerr != nil {
		e.logger.Warn("failed to record expansion", "macro", call.Name, "error", rerr)
	}
}
