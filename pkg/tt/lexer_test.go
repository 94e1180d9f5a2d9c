package tt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize_Basic(t *testing.T) {
	tokens := Tokenize("foo(bar, 1)")

	expected := []struct {
		kind Kind
		text string
	}{
		{KindIdent, "foo"},
		{KindOpen, "("},
		{KindIdent, "bar"},
		{KindPunct, ","},
		{KindWhitespace, " "},
		{KindInteger, "1"},
		{KindClose, ")"},
		{KindEOF, ""},
	}

	require.Len(t, tokens, len(expected), "wrong number of tokens")
	for i, exp := range expected {
		assert.Equal(t, exp.kind, tokens[i].Kind, "token[%d] kind", i)
		assert.Equal(t, exp.text, tokens[i].Text, "token[%d] text", i)
	}
	assert.Equal(t, 11, tokens[len(tokens)-1].Offset, "EOF offset")
}

func TestTokenize_Kinds(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  Kind
	}{
		{"raw identifier", "r#match", KindIdent},
		{"keyword", "fn", KindIdent},
		{"lifetime", "'static", KindQuoteIdent},
		{"char", "'c'", KindLiteral},
		{"escaped char", `'\n'`, KindLiteral},
		{"byte", "b'x'", KindLiteral},
		{"string with escape", `"a\"b"`, KindLiteral},
		{"byte string", `b"abc"`, KindLiteral},
		{"c string", `c"abc"`, KindLiteral},
		{"raw string", `r#"a "quoted" b"#`, KindLiteral},
		{"raw byte string", `br"abc"`, KindLiteral},
		{"suffixed string", `"abc"suffix`, KindLiteral},
		{"hex integer", "0xFF_u8", KindInteger},
		{"binary integer", "0b1010", KindInteger},
		{"exponent", "1e10", KindInteger},
		{"suffixed integer", "7usize", KindInteger},
		{"line comment", "// hello", KindLineComment},
		{"nested block comment", "/* a /* b */ c */", KindBlockComment},
		{"shift assign", "<<=", KindPunct},
		{"path separator", "::", KindPunct},
		{"unknown char", "@", KindPunct},
		{"non-ascii punct", "§", KindPunct},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := Tokenize(tt.input)
			require.Len(t, tokens, 2, "expected one token plus EOF, got %v", tokens)
			assert.Equal(t, tt.kind, tokens[0].Kind)
			assert.Equal(t, tt.input, tokens[0].Text)
		})
	}
}

func TestTokenize_UnterminatedLiteralRunsToEnd(t *testing.T) {
	tokens := Tokenize(`x "abc`)
	require.Len(t, tokens, 4)
	assert.Equal(t, KindLiteral, tokens[2].Kind)
	assert.Equal(t, `"abc`, tokens[2].Text)
}

func TestTokenize_RangeOperatorNotFloat(t *testing.T) {
	tokens := Tokenize("1..2")
	require.Len(t, tokens, 4)
	assert.Equal(t, KindInteger, tokens[0].Kind)
	assert.Equal(t, "..", tokens[1].Text)
	assert.Equal(t, KindInteger, tokens[2].Kind)
}

func TestTokenize_OffsetsAreContiguous(t *testing.T) {
	input := "fn main() { let x = 'a'; /* c */ r#\"s\"# }"
	tokens := Tokenize(input)

	offset := 0
	for _, tok := range tokens {
		assert.Equal(t, offset, tok.Offset, "token %q", tok.Text)
		offset = tok.End()
	}
	assert.Equal(t, len(input), offset)
}
