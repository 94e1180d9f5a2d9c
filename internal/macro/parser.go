package macro

import (
	"path/filepath"
	"strings"

	"go.starlark.net/syntax"
)

// Param is one parameter of a macro function.
type Param struct {
	Name    string `json:"name"`
	Default string `json:"default,omitempty"` // source text of the default, if any
	Star    string `json:"star,omitempty"`    // "*" or "**" for variadic parameters
}

func (p Param) String() string {
	switch {
	case p.Star != "":
		return p.Star + p.Name
	case p.Default != "":
		return p.Name + "=" + p.Default
	default:
		return p.Name
	}
}

// ParsedFunction is a function found by static parsing of a macro library.
type ParsedFunction struct {
	Name      string  `json:"name"`
	Params    []Param `json:"params"`
	Docstring string  `json:"docstring,omitempty"`
	Line      int     `json:"line"`
}

// ParsedNamespace is a parsed macro library.
type ParsedNamespace struct {
	Name      string            `json:"name"` // file name without .star
	FilePath  string            `json:"file_path"`
	Functions []*ParsedFunction `json:"functions"`
}

// Macros returns the functions that can be called with a macro body alone.
func (ns *ParsedNamespace) Macros() []*ParsedFunction {
	var out []*ParsedFunction
	for _, fn := range ns.Functions {
		if fn.IsMacro() {
			out = append(out, fn)
		}
	}
	return out
}

// ParseStarlarkFile extracts the exported functions of a library without executing it.
func ParseStarlarkFile(filename string, content []byte) (*ParsedNamespace, error) {
	f, err := syntax.Parse(filename, content, 0)
	if err != nil {
		return nil, &ParseError{File: filename, Message: err.Error()}
	}

	ns := &ParsedNamespace{
		Name:     strings.TrimSuffix(filepath.Base(filename), ".star"),
		FilePath: filename,
	}
	for _, stmt := range f.Stmts {
		def, ok := stmt.(*syntax.DefStmt)
		if !ok || strings.HasPrefix(def.Name.Name, "_") {
			continue
		}
		ns.Functions = append(ns.Functions, &ParsedFunction{
			Name:      def.Name.Name,
			Params:    params(def.Params),
			Docstring: docstring(def.Body),
			Line:      int(def.Name.NamePos.Line),
		})
	}
	return ns, nil
}

func params(exprs []syntax.Expr) []Param {
	var out []Param
	for _, e := range exprs {
		switch p := e.(type) {
		case *syntax.Ident:
			out = append(out, Param{Name: p.Name})
		case *syntax.BinaryExpr:
			if ident, ok := p.X.(*syntax.Ident); ok && p.Op == syntax.EQ {
				out = append(out, Param{Name: ident.Name, Default: exprText(p.Y)})
			}
		case *syntax.UnaryExpr:
			// A bare "*" separates keyword-only parameters and has no operand.
			name := ""
			if ident, ok := p.X.(*syntax.Ident); ok {
				name = ident.Name
			}
			out = append(out, Param{Name: name, Star: p.Op.String()})
		}
	}
	return out
}

func docstring(body []syntax.Stmt) string {
	if len(body) == 0 {
		return ""
	}
	stmt, ok := body[0].(*syntax.ExprStmt)
	if !ok {
		return ""
	}
	lit, ok := stmt.X.(*syntax.Literal)
	if !ok || lit.Token != syntax.STRING {
		return ""
	}
	s, _ := lit.Value.(string)
	return strings.TrimSpace(s)
}

func exprText(expr syntax.Expr) string {
	switch e := expr.(type) {
	case *syntax.Literal:
		return e.Raw
	case *syntax.Ident:
		return e.Name
	case *syntax.ListExpr:
		return "[]"
	case *syntax.DictExpr:
		return "{}"
	case *syntax.TupleExpr:
		return "()"
	case *syntax.UnaryExpr:
		if e.Op == syntax.MINUS {
			return "-" + exprText(e.X)
		}
		return exprText(e.X)
	default:
		return "..."
	}
}

// IsMacro reports whether the function accepts a single positional body argument:
// the first parameter takes it and every other one is optional.
func (f *ParsedFunction) IsMacro() bool {
	if len(f.Params) == 0 {
		return false
	}
	first := f.Params[0]
	if first.Star == "**" || (first.Star == "*" && first.Name == "") {
		return false
	}
	for _, p := range f.Params[1:] {
		if p.Star == "" && p.Default == "" {
			return false
		}
	}
	return true
}

// Signature returns the function as it would be declared, e.g. unit(body, name="Unit").
func (f *ParsedFunction) Signature() string {
	parts := make([]string, len(f.Params))
	for i, p := range f.Params {
		parts[i] = p.String()
	}
	return f.Name + "(" + strings.Join(parts, ", ") + ")"
}

// Summary returns the first line of the docstring.
func (f *ParsedFunction) Summary() string {
	line, _, _ := strings.Cut(f.Docstring, "\n")
	return strings.TrimSpace(line)
}

// ParseError is a syntax error in a macro library.
type ParseError struct {
	File    string
	Message string
}

func (e *ParseError) Error() string {
	return "parse " + filepath.Base(e.File) + ": " + e.Message
}
