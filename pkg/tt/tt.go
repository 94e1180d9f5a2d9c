// Package tt defines the token-tree model exchanged with procedural macro expanders.
//
// A token tree is the lexical shape of a macro input or output: leaves (literals,
// identifiers and single punctuation characters) grouped into delimited subtrees.
// Every leaf and delimiter carries a TokenID that indexes a TokenMap recording where
// the token came from in the original source text.
package tt

import "fmt"

// TokenID identifies a leaf or delimiter. IDs assigned by Parse are dense and 0-based.
type TokenID = int

// UnspecifiedID marks tokens synthesized by an expander. It never has a TokenMap entry.
const UnspecifiedID TokenID = 1<<32 - 1

// Spacing tells whether a punctuation character is followed directly by another
// punctuation character of the same operator (Joint) or ends a token (Alone).
type Spacing int

// Spacing values.
const (
	Alone Spacing = iota
	Joint
)

// String returns the wire name of the spacing.
func (s Spacing) String() string {
	switch s {
	case Alone:
		return "Alone"
	case Joint:
		return "Joint"
	default:
		return fmt.Sprintf("Spacing(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Spacing) MarshalText() ([]byte, error) {
	switch s {
	case Alone, Joint:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("invalid spacing %d", int(s))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Spacing) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Alone":
		*s = Alone
	case "Joint":
		*s = Joint
	default:
		return fmt.Errorf("unknown spacing %q", text)
	}
	return nil
}

// DelimiterKind is the bracket pair of a delimited subtree.
type DelimiterKind int

// Delimiter kinds. A subtree without a delimiter is an undelimited group.
const (
	Parenthesis DelimiterKind = iota
	Brace
	Bracket
)

// String returns the wire name of the delimiter kind.
func (k DelimiterKind) String() string {
	switch k {
	case Parenthesis:
		return "Parenthesis"
	case Brace:
		return "Brace"
	case Bracket:
		return "Bracket"
	default:
		return fmt.Sprintf("DelimiterKind(%d)", int(k))
	}
}

// OpenText returns the opening bracket.
func (k DelimiterKind) OpenText() string {
	switch k {
	case Brace:
		return "{"
	case Bracket:
		return "["
	default:
		return "("
	}
}

// CloseText returns the closing bracket.
func (k DelimiterKind) CloseText() string {
	switch k {
	case Brace:
		return "}"
	case Bracket:
		return "]"
	default:
		return ")"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k DelimiterKind) MarshalText() ([]byte, error) {
	switch k {
	case Parenthesis, Brace, Bracket:
		return []byte(k.String()), nil
	default:
		return nil, fmt.Errorf("invalid delimiter kind %d", int(k))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *DelimiterKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Parenthesis":
		*k = Parenthesis
	case "Brace":
		*k = Brace
	case "Bracket":
		*k = Bracket
	default:
		return fmt.Errorf("unknown delimiter kind %q", text)
	}
	return nil
}

// delimiterKindForOpen maps an opening bracket to its kind.
func delimiterKindForOpen(ch byte) (DelimiterKind, bool) {
	switch ch {
	case '(':
		return Parenthesis, true
	case '{':
		return Brace, true
	case '[':
		return Bracket, true
	}
	return 0, false
}

// Delimiter is the bracket pair surrounding a subtree.
type Delimiter struct {
	ID   TokenID       `json:"id"`
	Kind DelimiterKind `json:"kind"`
}

// Subtree is an ordered group of token trees, optionally delimited.
type Subtree struct {
	Delimiter  *Delimiter  `json:"delimiter"`
	TokenTrees []TokenTree `json:"token_trees"`
}

// TokenTree is either a LeafTree or a SubtreeTree.
type TokenTree interface {
	isTokenTree()
}

// LeafTree is a token tree holding a single leaf.
type LeafTree struct {
	Leaf Leaf
}

// SubtreeTree is a token tree holding a nested subtree.
type SubtreeTree struct {
	Subtree *Subtree
}

func (LeafTree) isTokenTree()    {}
func (SubtreeTree) isTokenTree() {}

// Leaf is one of Literal, Ident or Punct.
type Leaf interface {
	// TokenID returns the id of the leaf.
	TokenID() TokenID
	// Text returns the source text of the leaf.
	Text() string
	isLeaf()
}

// Literal is a numeric, string, char or byte literal, kept verbatim.
type Literal struct {
	Value string `json:"text"`
	ID    TokenID `json:"id"`
}

// Ident is an identifier or keyword.
type Ident struct {
	Value string `json:"text"`
	ID    TokenID `json:"id"`
}

// Punct is a single punctuation character.
type Punct struct {
	Char    string  `json:"char"`
	Spacing Spacing `json:"spacing"`
	ID      TokenID `json:"id"`
}

func (l Literal) TokenID() TokenID { return l.ID }
func (l Literal) Text() string     { return l.Value }
func (Literal) isLeaf()            {}

func (i Ident) TokenID() TokenID { return i.ID }
func (i Ident) Text() string     { return i.Value }
func (Ident) isLeaf()            {}

func (p Punct) TokenID() TokenID { return p.ID }
func (p Punct) Text() string     { return p.Char }
func (Punct) isLeaf()            {}

// Walk visits every delimiter and leaf of the subtree in source order.
// Delimiters are reported before their children. Walk stops early when fn returns false.
func (s *Subtree) Walk(fn func(id TokenID, leaf Leaf) bool) bool {
	if s == nil {
		return true
	}
	if s.Delimiter != nil {
		if !fn(s.Delimiter.ID, nil) {
			return false
		}
	}
	for _, tree := range s.TokenTrees {
		switch t := tree.(type) {
		case LeafTree:
			if !fn(t.Leaf.TokenID(), t.Leaf) {
				return false
			}
		case SubtreeTree:
			if !t.Subtree.Walk(fn) {
				return false
			}
		}
	}
	return true
}

// Equal reports whether two subtrees have the same structure, texts, spacings and ids.
func (s *Subtree) Equal(other *Subtree) bool {
	if s == nil || other == nil {
		return s == other
	}
	if (s.Delimiter == nil) != (other.Delimiter == nil) {
		return false
	}
	if s.Delimiter != nil && *s.Delimiter != *other.Delimiter {
		return false
	}
	if len(s.TokenTrees) != len(other.TokenTrees) {
		return false
	}
	for i, tree := range s.TokenTrees {
		switch a := tree.(type) {
		case LeafTree:
			b, ok := other.TokenTrees[i].(LeafTree)
			if !ok || a.Leaf != b.Leaf {
				return false
			}
		case SubtreeTree:
			b, ok := other.TokenTrees[i].(SubtreeTree)
			if !ok || !a.Subtree.Equal(b.Subtree) {
				return false
			}
		default:
			return false
		}
	}
	return true
}
