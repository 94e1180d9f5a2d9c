package tt

import (
	"fmt"
	"strings"
)

// DebugString returns an indented dump of the subtree, one token per line.
//
//	SUBTREE $
//	  PUNCH   . [alone] 0
//	  SUBTREE () 1
//	    IDENT   foo 2
func (s *Subtree) DebugString() string {
	var sb strings.Builder
	s.writeDebug(&sb, 0)
	return sb.String()
}

func (s *Subtree) writeDebug(sb *strings.Builder, level int) {
	sb.WriteString(strings.Repeat("  ", level))
	if s.Delimiter == nil {
		sb.WriteString("SUBTREE $")
	} else {
		fmt.Fprintf(sb, "SUBTREE %s%s %d", s.Delimiter.Kind.OpenText(), s.Delimiter.Kind.CloseText(), s.Delimiter.ID)
	}
	for _, tree := range s.TokenTrees {
		sb.WriteByte('\n')
		switch t := tree.(type) {
		case LeafTree:
			sb.WriteString(strings.Repeat("  ", level+1))
			switch leaf := t.Leaf.(type) {
			case Literal:
				fmt.Fprintf(sb, "LITERAL %s %d", leaf.Value, leaf.ID)
			case Punct:
				fmt.Fprintf(sb, "PUNCH   %s [%s] %d", leaf.Char, strings.ToLower(leaf.Spacing.String()), leaf.ID)
			case Ident:
				fmt.Fprintf(sb, "IDENT   %s %d", leaf.Value, leaf.ID)
			}
		case SubtreeTree:
			t.Subtree.writeDebug(sb, level+1)
		}
	}
}
