package tt

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_JSONGolden(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:  "single dot",
			input: ".",
			expected: `{"delimiter": null, "token_trees": [
				{"Leaf": {"Punct": {"char": ".", "spacing": "Alone", "id": 0}}}
			]}`,
		},
		{
			name:  "two dots",
			input: "..",
			expected: `{"delimiter": null, "token_trees": [
				{"Leaf": {"Punct": {"char": ".", "spacing": "Joint", "id": 0}}},
				{"Leaf": {"Punct": {"char": ".", "spacing": "Alone", "id": 1}}}
			]}`,
		},
		{
			name:  "dot before ident",
			input: ".foo",
			expected: `{"delimiter": null, "token_trees": [
				{"Leaf": {"Punct": {"char": ".", "spacing": "Alone", "id": 0}}},
				{"Leaf": {"Ident": {"text": "foo", "id": 1}}}
			]}`,
		},
		{
			name:  "three colons",
			input: ":::",
			expected: `{"delimiter": null, "token_trees": [
				{"Leaf": {"Punct": {"char": ":", "spacing": "Joint", "id": 0}}},
				{"Leaf": {"Punct": {"char": ":", "spacing": "Joint", "id": 1}}},
				{"Leaf": {"Punct": {"char": ":", "spacing": "Alone", "id": 2}}}
			]}`,
		},
		{
			name:  "mixed",
			input: `. asd .. "asd" ...`,
			expected: `{"delimiter": null, "token_trees": [
				{"Leaf": {"Punct": {"char": ".", "spacing": "Alone", "id": 0}}},
				{"Leaf": {"Ident": {"text": "asd", "id": 1}}},
				{"Leaf": {"Punct": {"char": ".", "spacing": "Joint", "id": 2}}},
				{"Leaf": {"Punct": {"char": ".", "spacing": "Alone", "id": 3}}},
				{"Leaf": {"Literal": {"text": "\"asd\"", "id": 4}}},
				{"Leaf": {"Punct": {"char": ".", "spacing": "Joint", "id": 5}}},
				{"Leaf": {"Punct": {"char": ".", "spacing": "Joint", "id": 6}}},
				{"Leaf": {"Punct": {"char": ".", "spacing": "Alone", "id": 7}}}
			]}`,
		},
		{
			name:     "empty braces",
			input:    "{}",
			expected: `{"delimiter": {"id": 0, "kind": "Brace"}, "token_trees": []}`,
		},
		{
			name:     "empty brackets",
			input:    "[]",
			expected: `{"delimiter": {"id": 0, "kind": "Bracket"}, "token_trees": []}`,
		},
		{
			name:     "empty parens",
			input:    "()",
			expected: `{"delimiter": {"id": 0, "kind": "Parenthesis"}, "token_trees": []}`,
		},
		{
			name:  "dots in parens",
			input: "(..)",
			expected: `{"delimiter": {"id": 0, "kind": "Parenthesis"}, "token_trees": [
				{"Leaf": {"Punct": {"char": ".", "spacing": "Joint", "id": 1}}},
				{"Leaf": {"Punct": {"char": ".", "spacing": "Joint", "id": 2}}}
			]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := Parse(tt.input)
			data, err := json.Marshal(mapped.Subtree)
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, string(data))
		})
	}
}

func TestParse_Debug(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "float",
			input:    "1.0",
			expected: "SUBTREE $\n  LITERAL 1.0 0",
		},
		{
			name:     "trailing dot float",
			input:    "1. ",
			expected: "SUBTREE $\n  LITERAL 1. 0",
		},
		{
			name:     "method call on integer",
			input:    "1.foo",
			expected: "SUBTREE $\n  LITERAL 1 0\n  PUNCH   . [alone] 1\n  IDENT   foo 2",
		},
		{
			name:     "range",
			input:    "1..2",
			expected: "SUBTREE $\n  LITERAL 1 0\n  PUNCH   . [joint] 1\n  PUNCH   . [alone] 2\n  LITERAL 2 3",
		},
		{
			name:     "lifetime",
			input:    "&'a",
			expected: "SUBTREE $\n  PUNCH   & [joint] 0\n  PUNCH   ' [joint] 1\n  IDENT   a 2",
		},
		{
			name:     "operator before open bracket",
			input:    "#[x]",
			expected: "SUBTREE $\n  PUNCH   # [alone] 0\n  SUBTREE [] 1\n    IDENT   x 2",
		},
		{
			name:     "comments are skipped",
			input:    "a // line\n/* block */ b",
			expected: "SUBTREE $\n  IDENT   a 0\n  IDENT   b 1",
		},
		{
			name:     "stray close bracket",
			input:    "a)",
			expected: "SUBTREE $\n  IDENT   a 0\n  PUNCH   ) [alone] 1",
		},
		{
			name:     "nested",
			input:    "{ (x) }",
			expected: "SUBTREE {} 0\n  SUBTREE () 1\n    IDENT   x 2",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "SUBTREE $",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Parse(tt.input).Subtree.DebugString())
		})
	}
}

func TestParse_UnbalancedDelimiter(t *testing.T) {
	mapped := Parse("(a [b")

	expected := "SUBTREE $\n" +
		"  PUNCH   ( [alone] 0\n" +
		"  IDENT   a 1\n" +
		"  PUNCH   [ [alone] 2\n" +
		"  IDENT   b 3"
	assert.Equal(t, expected, mapped.Subtree.DebugString())

	require.Equal(t, 4, mapped.TokenMap.Len(), "ids stay dense")
	r, ok := mapped.TokenMap.Token(0)
	require.True(t, ok, "unclosed delimiter becomes a token range")
	assert.Equal(t, TokenRange{Start: 0, End: 1}, r)
	r, ok = mapped.TokenMap.Token(2)
	require.True(t, ok)
	assert.Equal(t, TokenRange{Start: 3, End: 4}, r)
}

func TestParse_TokenMap(t *testing.T) {
	mapped := Parse("foo(bar, 1)")

	entries := mapped.TokenMap.Entries()
	require.Len(t, entries, 5)
	assert.Equal(t, TokenRange{Start: 0, End: 3}, entries[0])
	assert.Equal(t, DelimiterRange{Open: 3, Close: 10}, entries[1])
	assert.Equal(t, TokenRange{Start: 4, End: 7}, entries[2])
	assert.Equal(t, TokenRange{Start: 7, End: 8}, entries[3])
	assert.Equal(t, TokenRange{Start: 9, End: 10}, entries[4])
}

func TestParse_EveryIDHasOneEntry(t *testing.T) {
	inputs := []string{
		"fn main() { println!(\"hi {}\", 1 + 2.5); }",
		"struct S<'a> { x: &'a [u8; 4] }",
		"a => b ..= c -> d",
		"{ unclosed ( nested",
		"x.0.1 1.2e3 0x1F",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			mapped := Parse(input)
			seen := map[TokenID]bool{}
			mapped.Subtree.Walk(func(id TokenID, leaf Leaf) bool {
				assert.False(t, seen[id], "id %d used twice", id)
				seen[id] = true
				entry, ok := mapped.TokenMap.Get(id)
				require.True(t, ok, "id %d has no entry", id)
				if leaf != nil {
					r, isToken := entry.(TokenRange)
					require.True(t, isToken, "leaf %d maps to %T", id, entry)
					assert.Equal(t, leaf.Text(), input[r.Start:r.End], "leaf %d text", id)
				}
				return true
			})
			assert.Len(t, seen, mapped.TokenMap.Len(), "ids are dense")
		})
	}
}

func TestParse_SingleLeafIsWrapped(t *testing.T) {
	mapped := Parse("x")
	assert.Nil(t, mapped.Subtree.Delimiter)
	require.Len(t, mapped.Subtree.TokenTrees, 1)
	assert.Equal(t, LeafTree{Leaf: Ident{Value: "x", ID: 0}}, mapped.Subtree.TokenTrees[0])
}
