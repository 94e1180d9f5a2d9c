package tt

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMappedText_Spacing(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"foo(bar, 1)", "foo (bar , 1 )"},
		{"a::b", "a :: b "},
		{"x += 1", "x += 1 "},
		{"1 as u8", "1 as u8 "},
		{`"a" b`, `"a" b `},
		{"#[derive(Debug)]", "# [derive (Debug )]"},
		{"'a: loop {}", "'a : loop {}"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			text, _ := Parse(tt.input).ToMappedText()
			assert.Equal(t, tt.expected, text)
		})
	}
}

func TestToMappedText_Ranges(t *testing.T) {
	text, ranges := Parse("foo(bar, 1)").ToMappedText()
	require.Equal(t, "foo (bar , 1 )", text)

	expected := []MappedTextRange{
		{SrcOffset: 0, DstOffset: 0, Length: 3},
		{SrcOffset: 3, DstOffset: 4, Length: 4},
		{SrcOffset: 7, DstOffset: 9, Length: 1},
		{SrcOffset: 9, DstOffset: 11, Length: 1},
		{SrcOffset: 10, DstOffset: 13, Length: 1},
	}
	assert.Equal(t, expected, ranges.Ranges())
}

func TestToMappedText_MappedTextMatchesSource(t *testing.T) {
	inputs := []string{
		"fn main() { println!(\"hi {}\", 1 + 2.5); }",
		"impl<'a, T: Clone> Foo<'a> for Bar<T> where T: Copy {}",
		"let v = vec![1, 2, 3].iter().map(|x| x * 2).collect::<Vec<_>>();",
		"(unclosed [ still",
		"r#\"raw\"# b'x' 0xff_u8 1e10",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			text, ranges := Parse(input).ToMappedText()
			prevDst := -1
			for _, r := range ranges.Ranges() {
				assert.Equal(t, input[r.SrcOffset:r.SrcEndOffset()], text[r.DstOffset:r.DstEndOffset()],
					"range %+v", r)
				assert.Greater(t, r.DstOffset, prevDst, "destination offsets increase")
				prevDst = r.DstOffset
			}
		})
	}
}

func TestRender_SynthesizedTokensAreUnmapped(t *testing.T) {
	mapped := Parse("x")
	sub := &Subtree{TokenTrees: []TokenTree{
		LeafTree{Leaf: Ident{Value: "let", ID: UnspecifiedID}},
		LeafTree{Leaf: Ident{Value: "x", ID: 0}},
		LeafTree{Leaf: Punct{Char: ";", Spacing: Alone, ID: UnspecifiedID}},
	}}

	text, ranges := Render(sub, mapped.TokenMap)
	assert.Equal(t, "let x ; ", text)
	assert.Equal(t, []MappedTextRange{{SrcOffset: 0, DstOffset: 4, Length: 1}}, ranges.Ranges())
}

func TestRender_KindMismatchIsUnmapped(t *testing.T) {
	tokenMap := NewTokenMap(DelimiterRange{Open: 0, Close: 1}, TokenRange{Start: 2, End: 3})
	sub := &Subtree{
		Delimiter: &Delimiter{ID: 1, Kind: Brace},
		TokenTrees: []TokenTree{
			LeafTree{Leaf: Punct{Char: "+", Spacing: Joint, ID: 0}},
		},
	}

	text, ranges := Render(sub, tokenMap)
	assert.Equal(t, "{+}", text)
	assert.True(t, ranges.IsEmpty())
}

func TestRender_LengthMismatchPanics(t *testing.T) {
	tokenMap := NewTokenMap(TokenRange{Start: 0, End: 2})
	sub := &Subtree{TokenTrees: []TokenTree{LeafTree{Leaf: Ident{Value: "abc", ID: 0}}}}

	assert.Panics(t, func() {
		Render(sub, tokenMap)
	})
}

func TestRender_DuplicatedInput(t *testing.T) {
	mapped := Parse("a")
	leaf := LeafTree{Leaf: Ident{Value: "a", ID: 0}}
	sub := &Subtree{TokenTrees: []TokenTree{leaf, leaf}}

	text, ranges := Render(sub, mapped.TokenMap)
	assert.Equal(t, "a a ", text)
	assert.Equal(t, []int{0, 2}, ranges.MapOffsetFromCallBodyToExpansion(0))
}

func TestRender_ReparsesToSameTree(t *testing.T) {
	inputs := []string{
		"let y = 1 as u8;",
		`"a" b`,
		"1 2",
		"1.5 2. 3e10 0xff_u8",
		"fn foo() {}",
		"x - -1",
		"a: &'a str",
		"'outer: loop { break 'outer; }",
		"impl<'a, T: Clone> Foo<'a> for Bar<T> {}",
		"{[(nested [deeper])]}",
		"a >>= b && !c || d..=e",
		"1..2 1.max(2)",
		"b'x' 'c' r#\"raw\"# b\"bytes\"",
		"(unclosed [ still",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			first := Parse(input)
			text, _ := first.ToMappedText()
			second := Parse(text)
			assert.Equal(t, treeShape(first.Subtree), treeShape(second.Subtree), "rendered as %q", text)
		})
	}
}

// treeShape dumps a subtree like DebugString but without token ids.
func treeShape(s *Subtree) string {
	var sb strings.Builder
	var walk func(s *Subtree)
	walk = func(s *Subtree) {
		if s.Delimiter != nil {
			sb.WriteString(s.Delimiter.Kind.OpenText())
		}
		for _, tree := range s.TokenTrees {
			switch t := tree.(type) {
			case LeafTree:
				switch leaf := t.Leaf.(type) {
				case Punct:
					fmt.Fprintf(&sb, "P(%s,%s)", leaf.Char, leaf.Spacing)
				case Literal:
					fmt.Fprintf(&sb, "L(%s)", leaf.Value)
				case Ident:
					fmt.Fprintf(&sb, "I(%s)", leaf.Value)
				}
			case SubtreeTree:
				walk(t.Subtree)
			}
		}
		if s.Delimiter != nil {
			sb.WriteString(s.Delimiter.Kind.CloseText())
		}
	}
	walk(s)
	return sb.String()
}
