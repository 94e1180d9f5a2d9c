package tt

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind identifies the type of a raw token.
type Kind int

// Raw token kinds. Whitespace and comments are kept so that punctuation spacing can
// be derived from what immediately follows an operator.
const (
	KindEOF Kind = iota
	KindWhitespace
	KindLineComment
	KindBlockComment
	KindIdent      // foo, r#foo, fn, true
	KindQuoteIdent // 'a
	KindInteger    // 42, 0xff, 1e10, 7u8
	KindLiteral    // "str", b"bytes", r#"raw"#, 'c', b'c'
	KindOpen       // ( [ {
	KindClose      // ) ] }
	KindPunct      // operators and anything else
)

func (k Kind) String() string {
	switch k {
	case KindEOF:
		return "EOF"
	case KindWhitespace:
		return "WHITESPACE"
	case KindLineComment:
		return "LINE_COMMENT"
	case KindBlockComment:
		return "BLOCK_COMMENT"
	case KindIdent:
		return "IDENT"
	case KindQuoteIdent:
		return "QUOTE_IDENT"
	case KindInteger:
		return "INTEGER"
	case KindLiteral:
		return "LITERAL"
	case KindOpen:
		return "OPEN"
	case KindClose:
		return "CLOSE"
	case KindPunct:
		return "PUNCT"
	default:
		return "UNKNOWN"
	}
}

// IsTrivia reports whether the kind is skipped by the tree parser.
func (k Kind) IsTrivia() bool {
	return k == KindWhitespace || k == KindLineComment || k == KindBlockComment
}

// Token is a raw lexical token.
type Token struct {
	Kind   Kind
	Text   string
	Offset int // 0-based byte offset
}

// End returns the byte offset just past the token.
func (t Token) End() int { return t.Offset + len(t.Text) }

// operators is ordered longest first so the first match wins.
var operators = []string{
	"<<=", ">>=", "...", "..=",
	"::", "->", "=>", "==", "!=", "<=", ">=", "&&", "||",
	"+=", "-=", "*=", "/=", "%=", "^=", "&=", "|=", "<<", ">>", "..",
}

// Lexer splits source text into raw tokens.
type Lexer struct {
	input string
	pos   int // current position in input
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// Tokenize returns all raw tokens of input, terminated by a KindEOF token.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Kind == KindEOF {
			return tokens
		}
	}
}

// NextToken returns the next raw token.
func (l *Lexer) NextToken() Token {
	start := l.pos
	if l.pos >= len(l.input) {
		return Token{Kind: KindEOF, Offset: start}
	}

	kind := l.scan()
	return Token{Kind: kind, Text: l.input[start:l.pos], Offset: start}
}

func (l *Lexer) scan() Kind {
	r := l.peek()

	switch {
	case unicode.IsSpace(r):
		for l.pos < len(l.input) && unicode.IsSpace(l.peek()) {
			l.advance()
		}
		return KindWhitespace
	case l.matchString("//"):
		for l.pos < len(l.input) && l.input[l.pos] != '\n' {
			l.pos++
		}
		return KindLineComment
	case l.matchString("/*"):
		l.scanBlockComment()
		return KindBlockComment
	case r == '(' || r == '[' || r == '{':
		l.pos++
		return KindOpen
	case r == ')' || r == ']' || r == '}':
		l.pos++
		return KindClose
	case r == '"':
		l.scanQuoted('"')
		l.scanSuffix()
		return KindLiteral
	case r == '\'':
		return l.scanQuote()
	case isDigit(r):
		l.scanNumber()
		return KindInteger
	case isIdentStart(r):
		if l.scanPrefixedLiteral() {
			return KindLiteral
		}
		if l.matchString("r#") && l.pos+2 < len(l.input) {
			if next, _ := utf8.DecodeRuneInString(l.input[l.pos+2:]); isIdentStart(next) {
				l.pos += 2
			}
		}
		l.scanIdent()
		return KindIdent
	}

	for _, op := range operators {
		if l.matchString(op) {
			l.pos += len(op)
			return KindPunct
		}
	}
	l.advance()
	return KindPunct
}

// scanBlockComment consumes a possibly nested /* */ comment. An unterminated comment
// runs to the end of input.
func (l *Lexer) scanBlockComment() {
	depth := 0
	for l.pos < len(l.input) {
		switch {
		case l.matchString("/*"):
			depth++
			l.pos += 2
		case l.matchString("*/"):
			depth--
			l.pos += 2
			if depth == 0 {
				return
			}
		default:
			l.advance()
		}
	}
}

// scanQuoted consumes a quoted literal starting at the opening quote, honouring
// backslash escapes. An unterminated literal runs to the end of input.
func (l *Lexer) scanQuoted(quote byte) {
	l.pos++ // opening quote
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch ch {
		case '\\':
			l.pos++
			if l.pos < len(l.input) {
				l.advance()
			}
		case quote:
			l.pos++
			return
		default:
			l.advance()
		}
	}
}

// scanRawString consumes r#"..."# starting at the first '#' or '"'.
func (l *Lexer) scanRawString() {
	hashes := 0
	for l.pos < len(l.input) && l.input[l.pos] == '#' {
		hashes++
		l.pos++
	}
	l.pos++ // opening quote
	closing := "\"" + strings.Repeat("#", hashes)
	if idx := strings.Index(l.input[l.pos:], closing); idx >= 0 {
		l.pos += idx + len(closing)
		return
	}
	l.pos = len(l.input)
}

// scanPrefixedLiteral handles b"", b'', br"", c"", cr"" and r"" literals.
// It reports false, consuming nothing, when the identifier is not a literal prefix.
func (l *Lexer) scanPrefixedLiteral() bool {
	rest := l.input[l.pos:]
	for _, prefix := range []string{"br", "cr", "r"} {
		if strings.HasPrefix(rest, prefix) && isRawStringStart(rest[len(prefix):]) {
			l.pos += len(prefix)
			l.scanRawString()
			l.scanSuffix()
			return true
		}
	}
	for _, prefix := range []string{"b", "c"} {
		if !strings.HasPrefix(rest, prefix) || len(rest) <= len(prefix) {
			continue
		}
		switch rest[len(prefix)] {
		case '"':
			l.pos += len(prefix)
			l.scanQuoted('"')
			l.scanSuffix()
			return true
		case '\'':
			if prefix == "b" {
				l.pos += len(prefix)
				l.scanQuoted('\'')
				l.scanSuffix()
				return true
			}
		}
	}
	return false
}

func isRawStringStart(s string) bool {
	i := 0
	for i < len(s) && s[i] == '#' {
		i++
	}
	return i < len(s) && s[i] == '"'
}

// scanQuote disambiguates char literals ('c', '\n') from lifetimes ('a).
func (l *Lexer) scanQuote() Kind {
	rest := l.input[l.pos+1:]
	if strings.HasPrefix(rest, "\\") {
		l.scanQuoted('\'')
		l.scanSuffix()
		return KindLiteral
	}
	r, size := utf8.DecodeRuneInString(rest)
	if size > 0 && len(rest) > size && rest[size] == '\'' {
		l.pos += 1 + size + 1
		l.scanSuffix()
		return KindLiteral
	}
	if size > 0 && isIdentStart(r) {
		l.pos++
		l.scanIdent()
		return KindQuoteIdent
	}
	l.pos++
	return KindPunct
}

// scanNumber consumes an integer literal with optional radix prefix, exponent and
// suffix. Fractional parts are left to the tree parser, which re-lexes floats.
func (l *Lexer) scanNumber() {
	if l.matchString("0x") || l.matchString("0o") || l.matchString("0b") {
		l.pos += 2
		for l.pos < len(l.input) && (isHexDigit(rune(l.input[l.pos])) || l.input[l.pos] == '_') {
			l.pos++
		}
		l.scanSuffix()
		return
	}
	for l.pos < len(l.input) && (isDigit(rune(l.input[l.pos])) || l.input[l.pos] == '_') {
		l.pos++
	}
	if l.pos < len(l.input) && (l.input[l.pos] == 'e' || l.input[l.pos] == 'E') {
		i := l.pos + 1
		if i < len(l.input) && (l.input[i] == '+' || l.input[i] == '-') {
			i++
		}
		if i < len(l.input) && isDigit(rune(l.input[i])) {
			l.pos = i
			for l.pos < len(l.input) && (isDigit(rune(l.input[l.pos])) || l.input[l.pos] == '_') {
				l.pos++
			}
		}
	}
	l.scanSuffix()
}

// scanSuffix consumes a literal suffix such as u8 or f64.
func (l *Lexer) scanSuffix() {
	if l.pos < len(l.input) && isIdentStart(l.peek()) {
		l.scanIdent()
	}
}

func (l *Lexer) scanIdent() {
	for l.pos < len(l.input) && isIdentContinue(l.peek()) {
		l.advance()
	}
}

// Helper methods

// peek returns the current rune without advancing.
func (l *Lexer) peek() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r
}

// advance moves past the current rune.
func (l *Lexer) advance() {
	if l.pos >= len(l.input) {
		return
	}
	_, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size
}

// matchString checks if the input at current position matches s.
func (l *Lexer) matchString(s string) bool {
	return strings.HasPrefix(l.input[l.pos:], s)
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentContinue(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}
