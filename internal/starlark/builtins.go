package starlark

import (
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/leapstack-labs/procmacro/pkg/tt"
)

// Macros see token trees in their wire form: a subtree is a dict with "delimiter"
// and "token_trees", each tree a single-key dict {"Leaf": ...} or {"Subtree": ...}.
// The tt module builds such values for tokens the macro synthesizes.

// TTModule is the predeclared "tt" module available to macro files.
var TTModule = &starlarkstruct.Module{
	Name: "tt",
	Members: starlark.StringDict{
		"UNSPECIFIED": starlark.MakeInt64(int64(tt.UnspecifiedID)),
		"ident":       starlark.NewBuiltin("tt.ident", ttIdent),
		"literal":     starlark.NewBuiltin("tt.literal", ttLiteral),
		"punct":       starlark.NewBuiltin("tt.punct", ttPunct),
		"group":       starlark.NewBuiltin("tt.group", ttGroup),
		"subtree":     starlark.NewBuiltin("tt.subtree", ttSubtree),
		"text":        starlark.NewBuiltin("tt.text", ttText),
	},
}

// Predeclared returns the globals available to every macro file.
func Predeclared() starlark.StringDict {
	return starlark.StringDict{
		"tt": TTModule,
	}
}

func leafDict(kind string, fields map[string]starlark.Value) starlark.Value {
	payload := starlark.NewDict(len(fields))
	for k, v := range fields {
		_ = payload.SetKey(starlark.String(k), v)
	}
	variant := starlark.NewDict(1)
	_ = variant.SetKey(starlark.String(kind), payload)
	leaf := starlark.NewDict(1)
	_ = leaf.SetKey(starlark.String("Leaf"), variant)
	return leaf
}

func unspecified() starlark.Value {
	return starlark.MakeInt64(int64(tt.UnspecifiedID))
}

// tt.ident(text)
func ttIdent(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var text string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &text); err != nil {
		return nil, err
	}
	return leafDict("Ident", map[string]starlark.Value{
		"text": starlark.String(text),
		"id":   unspecified(),
	}), nil
}

// tt.literal(text)
func ttLiteral(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var text string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &text); err != nil {
		return nil, err
	}
	return leafDict("Literal", map[string]starlark.Value{
		"text": starlark.String(text),
		"id":   unspecified(),
	}), nil
}

// tt.punct(char, joint=False)
func ttPunct(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var char string
	joint := false
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "char", &char, "joint?", &joint); err != nil {
		return nil, err
	}
	if len([]rune(char)) != 1 {
		return nil, fmt.Errorf("%s: expected a single character, got %q", fn.Name(), char)
	}
	spacing := tt.Alone
	if joint {
		spacing = tt.Joint
	}
	return leafDict("Punct", map[string]starlark.Value{
		"char":    starlark.String(char),
		"spacing": starlark.String(spacing.String()),
		"id":      unspecified(),
	}), nil
}

var delimiterKinds = map[string]tt.DelimiterKind{
	"(": tt.Parenthesis,
	"{": tt.Brace,
	"[": tt.Bracket,
}

// tt.group(delimiter, trees) returns a delimited subtree tree. delimiter is one of
// "(", "{" or "[".
func ttGroup(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var open string
	var trees *starlark.List
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "delimiter", &open, "trees", &trees); err != nil {
		return nil, err
	}
	kind, ok := delimiterKinds[open]
	if !ok {
		return nil, fmt.Errorf("%s: unknown delimiter %q", fn.Name(), open)
	}

	delim := starlark.NewDict(2)
	_ = delim.SetKey(starlark.String("id"), unspecified())
	_ = delim.SetKey(starlark.String("kind"), starlark.String(kind.String()))

	sub := subtreeDict(delim, trees)
	tree := starlark.NewDict(1)
	_ = tree.SetKey(starlark.String("Subtree"), sub)
	return tree, nil
}

// tt.subtree(trees) returns an undelimited subtree, the shape a macro returns.
func ttSubtree(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var trees *starlark.List
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &trees); err != nil {
		return nil, err
	}
	return subtreeDict(starlark.None, trees), nil
}

func subtreeDict(delim starlark.Value, trees *starlark.List) *starlark.Dict {
	sub := starlark.NewDict(2)
	_ = sub.SetKey(starlark.String("delimiter"), delim)
	_ = sub.SetKey(starlark.String("token_trees"), trees)
	return sub
}

// tt.text(tree) returns the text of a leaf tree, or None for a subtree.
func ttText(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var tree *starlark.Dict
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &tree); err != nil {
		return nil, err
	}
	leaf, found, err := tree.Get(starlark.String("Leaf"))
	if err != nil || !found {
		return starlark.None, err
	}
	variant, ok := leaf.(*starlark.Dict)
	if !ok {
		return nil, fmt.Errorf("%s: malformed leaf", fn.Name())
	}
	for _, item := range variant.Items() {
		payload, ok := item[1].(*starlark.Dict)
		if !ok {
			continue
		}
		for _, key := range []string{"text", "char"} {
			if v, found, _ := payload.Get(starlark.String(key)); found {
				return v, nil
			}
		}
	}
	return starlark.None, nil
}
