package expansion

import (
	"context"

	"github.com/leapstack-labs/procmacro/pkg/tt"
)

// MacroCall is one macro invocation to expand.
type MacroCall struct {
	Name string  // declared macro name
	Lib  string  // path to the compiled macro library
	Body *string // macro call body text; nil when syntactically unavailable
}

// Result is expanded text plus the mapping of its ranges back to the call body.
type Result struct {
	Text   string
	Ranges tt.RangeMap
}

// Expander expands a macro call into text.
type Expander interface {
	ExpandMacroAsText(ctx context.Context, call MacroCall) (*Result, error)
}

// DefKind tells procedural macros from declarative ones.
type DefKind int

// Macro definition kinds.
const (
	ProcMacro DefKind = iota
	DeclMacro
)

// MacroDef is a resolved macro definition.
type MacroDef struct {
	Name string
	Kind DefKind
	Lib  string // artifact path, procedural macros only
}

// BangMacroExpander routes a macro call to the procedural or declarative expander
// depending on how the macro was defined. Either side may be nil.
type BangMacroExpander struct {
	Proc Expander
	Decl Expander
}

// Expand expands body as a call of def.
func (b *BangMacroExpander) Expand(ctx context.Context, def MacroDef, body *string) (*Result, error) {
	call := MacroCall{Name: def.Name, Lib: def.Lib, Body: body}
	switch def.Kind {
	case DeclMacro:
		if b.Decl == nil {
			return nil, &DeclMacroError{Kind: DefSyntax}
		}
		return b.Decl.ExpandMacroAsText(ctx, call)
	default:
		if b.Proc == nil {
			return nil, &ProcMacroError{Kind: ExecutableNotFound}
		}
		return b.Proc.ExpandMacroAsText(ctx, call)
	}
}
