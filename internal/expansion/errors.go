// Package expansion defines the shared contract between macro expanders and their callers:
// the macro call, the expansion result and the error taxonomy.
package expansion

import (
	"errors"
	"fmt"
	"strings"
)

// MacroExpansionError is implemented by every expansion failure a caller can receive,
// procedural or declarative. Callers switch on the concrete type.
type MacroExpansionError interface {
	error
	isMacroExpansionError()
}

// ProcMacroErrorKind classifies procedural macro failures.
type ProcMacroErrorKind int

// Procedural macro failure kinds. Each failure mode maps to exactly one kind.
const (
	// MacroCallSyntax means the macro call body is not available.
	MacroCallSyntax ProcMacroErrorKind = iota
	// ExecutableNotFound means no expander executable is configured or it does not exist.
	ExecutableNotFound
	// CantRunExpander means the expander process could not be started.
	CantRunExpander
	// Timeout means the round trip exceeded its time budget.
	Timeout
	// ExceptionThrown means the channel to the worker failed and the worker was killed.
	ExceptionThrown
	// Expansion means the expander reported an error for this macro.
	Expansion
)

func (k ProcMacroErrorKind) String() string {
	switch k {
	case MacroCallSyntax:
		return "MacroCallSyntax"
	case ExecutableNotFound:
		return "ExecutableNotFound"
	case CantRunExpander:
		return "CantRunExpander"
	case Timeout:
		return "Timeout"
	case ExceptionThrown:
		return "ExceptionThrown"
	case Expansion:
		return "Expansion"
	default:
		return fmt.Sprintf("ProcMacroErrorKind(%d)", int(k))
	}
}

// ProcMacroError is a procedural macro expansion failure.
type ProcMacroError struct {
	Kind    ProcMacroErrorKind
	Message string // expander message for Expansion
	Cause   error  // underlying failure for ExceptionThrown and CantRunExpander
}

func (*ProcMacroError) isMacroExpansionError() {}

// Error implements the error interface.
func (e *ProcMacroError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	default:
		return e.Kind.String()
	}
}

// Unwrap returns the underlying cause.
func (e *ProcMacroError) Unwrap() error {
	return e.Cause
}

// Is matches any ProcMacroError of the same kind, so the Err* sentinels work with errors.Is.
func (e *ProcMacroError) Is(target error) bool {
	t, ok := target.(*ProcMacroError)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrMacroCallSyntax    = &ProcMacroError{Kind: MacroCallSyntax}
	ErrExecutableNotFound = &ProcMacroError{Kind: ExecutableNotFound}
	ErrCantRunExpander    = &ProcMacroError{Kind: CantRunExpander}
	ErrTimeout            = &ProcMacroError{Kind: Timeout}
	ErrExceptionThrown    = &ProcMacroError{Kind: ExceptionThrown}
	ErrExpansion          = &ProcMacroError{Kind: Expansion}
)

// DeclMacroErrorKind classifies declarative macro failures.
type DeclMacroErrorKind int

// Declarative macro failure kinds.
const (
	// DefSyntax means the macro definition could not be parsed.
	DefSyntax DeclMacroErrorKind = iota
	// Matching means no macro rule matched the call.
	Matching
)

func (k DeclMacroErrorKind) String() string {
	if k == Matching {
		return "Matching"
	}
	return "DefSyntax"
}

// MatchingError describes why one macro rule did not match.
type MatchingError struct {
	Offset int    // offset in the macro call body
	Reason string // e.g. "ExtraInput", "UnmatchedToken(...)"
}

func (m MatchingError) String() string {
	return fmt.Sprintf("%s at %d", m.Reason, m.Offset)
}

// DeclMacroError is a declarative macro expansion failure, produced by a DeclExpander.
type DeclMacroError struct {
	Kind   DeclMacroErrorKind
	Errors []MatchingError
}

func (*DeclMacroError) isMacroExpansionError() {}

// Error implements the error interface.
func (e *DeclMacroError) Error() string {
	if e.Kind != Matching || len(e.Errors) == 0 {
		return e.Kind.String()
	}
	reasons := make([]string, len(e.Errors))
	for i, m := range e.Errors {
		reasons[i] = m.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, strings.Join(reasons, "; "))
}

// KindOf returns a stable name for the failure kind of err, or "" when err is not a
// MacroExpansionError. Used for logging and the expansion journal.
func KindOf(err error) string {
	var pe *ProcMacroError
	if errors.As(err, &pe) {
		return pe.Kind.String()
	}
	var de *DeclMacroError
	if errors.As(err, &de) {
		return de.Kind.String()
	}
	return ""
}
