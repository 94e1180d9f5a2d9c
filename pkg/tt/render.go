package tt

import (
	"fmt"
	"strings"
)

// ToMappedText reconstructs source text from the subtree and maps every emitted token
// whose id is known to the token map back to its source offset.
func (m *MappedSubtree) ToMappedText() (string, RangeMap) {
	return Render(m.Subtree, m.TokenMap)
}

// Render reconstructs text from subtree. Identifiers and literals are followed by a space,
// punctuation by a space only when Alone, delimiters by nothing. Re-parsing the result
// gives back the same tree shape. Tokens whose id is absent
// from tokenMap were synthesized by the expander and are emitted without a mapping.
//
// Render panics when a mapped literal or identifier differs in length from its source
// range, since that means the tree and the token map do not belong together.
func Render(subtree *Subtree, tokenMap *TokenMap) (string, RangeMap) {
	r := &renderer{tokenMap: tokenMap}
	r.subtree(subtree)
	return r.out.String(), r.ranges
}

type renderer struct {
	tokenMap *TokenMap
	out      strings.Builder
	ranges   RangeMap
}

func (r *renderer) subtree(s *Subtree) {
	if s == nil {
		return
	}
	var delim DelimiterRange
	var mapped bool
	if s.Delimiter != nil {
		delim, mapped = r.tokenMap.Delimiter(s.Delimiter.ID)
		r.emit(s.Delimiter.Kind.OpenText(), delim.Open, mapped)
	}
	for _, tree := range s.TokenTrees {
		switch t := tree.(type) {
		case LeafTree:
			r.leaf(t.Leaf)
		case SubtreeTree:
			r.subtree(t.Subtree)
		}
	}
	if s.Delimiter != nil {
		r.emit(s.Delimiter.Kind.CloseText(), delim.Close, mapped && delim.Close >= 0)
	}
}

func (r *renderer) leaf(leaf Leaf) {
	src, mapped := r.tokenMap.Token(leaf.TokenID())

	switch l := leaf.(type) {
	case Literal, Ident:
		// Without the space "1 as" would read back as the suffixed literal "1as".
		r.checkLength(l, src, mapped)
		r.emit(l.Text(), src.Start, mapped)
		r.out.WriteByte(' ')
	case Punct:
		r.emit(l.Char, src.Start, mapped)
		if l.Spacing == Alone {
			r.out.WriteByte(' ')
		}
	}
}

func (r *renderer) checkLength(leaf Leaf, src TokenRange, mapped bool) {
	if mapped && src.Len() != len(leaf.Text()) {
		panic(fmt.Sprintf("token %d: text %q has length %d, source range [%d, %d) has length %d",
			leaf.TokenID(), leaf.Text(), len(leaf.Text()), src.Start, src.End, src.Len()))
	}
}

func (r *renderer) emit(text string, srcOffset int, mapped bool) {
	if mapped {
		r.ranges.MergeAdd(MappedTextRange{
			SrcOffset: srcOffset,
			DstOffset: r.out.Len(),
			Length:    len(text),
		})
	}
	r.out.WriteString(text)
}
