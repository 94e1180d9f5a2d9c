package tt

import "unicode/utf8"

// Parse converts source text into a token tree with a token map recording the source
// range of every leaf and delimiter. Parse never fails: unbalanced brackets degrade to
// punctuation and unknown characters become single punctuation leaves.
func Parse(text string) *MappedSubtree {
	p := newParser(text)
	var result []TokenTree
	for p.current().Kind != KindEOF {
		p.collectLeaf(&result)
	}

	if len(result) == 1 {
		if sub, ok := result[0].(SubtreeTree); ok {
			return &MappedSubtree{Subtree: sub.Subtree, TokenMap: p.tokenMap}
		}
	}
	if result == nil {
		result = []TokenTree{}
	}
	return &MappedSubtree{Subtree: &Subtree{TokenTrees: result}, TokenMap: p.tokenMap}
}

type parser struct {
	tokens   []Token
	pos      int // index of the current non-trivia token
	tokenMap *TokenMap
}

func newParser(text string) *parser {
	p := &parser{tokens: Tokenize(text), tokenMap: &TokenMap{}}
	p.skipTrivia()
	return p
}

func (p *parser) current() Token {
	return p.tokens[p.pos]
}

// rawLookup returns the raw token n positions after the current one, trivia included.
func (p *parser) rawLookup(n int) Token {
	i := p.pos + n
	if i >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[i]
}

func (p *parser) advance() {
	if p.current().Kind == KindEOF {
		return
	}
	p.pos++
	p.skipTrivia()
}

func (p *parser) skipTrivia() {
	for p.tokens[p.pos].Kind.IsTrivia() {
		p.pos++
	}
}

func (p *parser) collectLeaf(result *[]TokenTree) {
	tok := p.current()

	switch tok.Kind {
	case KindOpen:
		p.collectSubtree(result)
		return
	case KindInteger:
		text := p.scanFloat(tok)
		id := p.tokenMap.allocToken(tok.Offset, len(text))
		*result = append(*result, LeafTree{Leaf: Literal{Value: text, ID: id}})
	case KindLiteral:
		id := p.tokenMap.allocToken(tok.Offset, len(tok.Text))
		*result = append(*result, LeafTree{Leaf: Literal{Value: tok.Text, ID: id}})
	case KindIdent:
		id := p.tokenMap.allocToken(tok.Offset, len(tok.Text))
		*result = append(*result, LeafTree{Leaf: Ident{Value: tok.Text, ID: id}})
	case KindQuoteIdent:
		quoteID := p.tokenMap.allocToken(tok.Offset, 1)
		*result = append(*result, LeafTree{Leaf: Punct{Char: "'", Spacing: Joint, ID: quoteID}})
		nameID := p.tokenMap.allocToken(tok.Offset+1, len(tok.Text)-1)
		*result = append(*result, LeafTree{Leaf: Ident{Value: tok.Text[1:], ID: nameID}})
	default:
		p.collectPuncts(tok, result)
	}

	p.advance()
}

// collectSubtree consumes a delimited group. When the input ends before the matching
// close bracket, the open bracket becomes a lone punctuation leaf and the children are
// appended after it as siblings. The punct reuses the delimiter's id.
func (p *parser) collectSubtree(result *[]TokenTree) {
	open := p.current()
	kind, _ := delimiterKindForOpen(open.Text[0])
	id := p.tokenMap.allocDelimiter(open.Offset)
	p.advance()

	children := []TokenTree{}
	for {
		cur := p.current()
		if cur.Kind == KindEOF {
			p.tokenMap.replaceWithToken(id, open.Offset, len(open.Text))
			*result = append(*result, LeafTree{Leaf: Punct{Char: open.Text, Spacing: Alone, ID: id}})
			*result = append(*result, children...)
			return
		}
		if cur.Kind == KindClose && cur.Text == kind.CloseText() {
			break
		}
		p.collectLeaf(&children)
	}

	p.tokenMap.closeDelimiter(id, p.current().Offset)
	*result = append(*result, SubtreeTree{Subtree: &Subtree{
		Delimiter:  &Delimiter{ID: id, Kind: kind},
		TokenTrees: children,
	}})
	p.advance()
}

// scanFloat merges INT "." INT into one float literal, and INT "." into "1." when the
// dot is not followed by another dot, an identifier or a digit. On a merge the parser is
// left on the last consumed raw token.
func (p *parser) scanFloat(tok Token) string {
	dot := p.rawLookup(1)
	if dot.Kind != KindPunct || dot.Text != "." {
		return tok.Text
	}
	switch next := p.rawLookup(2); {
	case next.Kind == KindInteger:
		p.pos += 2
		return tok.Text + dot.Text + next.Text
	case next.Kind == KindIdent, next.Kind == KindPunct && next.Text[0] == '.':
		return tok.Text
	default:
		p.pos++
		return tok.Text + dot.Text
	}
}

// collectPuncts splits an operator into one punct per character. All but the last are
// Joint; the last one's spacing depends on the raw token that follows.
func (p *parser) collectPuncts(tok Token, result *[]TokenTree) {
	text := tok.Text
	offset := tok.Offset
	for len(text) > 0 {
		r, size := utf8.DecodeRuneInString(text)
		if r == utf8.RuneError && size <= 1 {
			size = 1
		}
		spacing := Joint
		if size == len(text) {
			spacing = p.lastPunctSpacing()
		}
		id := p.tokenMap.allocToken(offset, size)
		*result = append(*result, LeafTree{Leaf: Punct{Char: text[:size], Spacing: spacing, ID: id}})
		offset += size
		text = text[size:]
	}
}

func (p *parser) lastPunctSpacing() Spacing {
	next := p.rawLookup(1)
	switch {
	case next.Kind.IsTrivia(), next.Kind == KindOpen, next.Kind == KindEOF:
		return Alone
	case next.Kind == KindInteger, next.Kind == KindLiteral, next.Kind == KindIdent:
		return Alone
	default:
		return Joint
	}
}
