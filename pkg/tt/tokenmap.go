package tt

// TokenTextRange is a TokenMap entry: either a TokenRange or a DelimiterRange.
type TokenTextRange interface {
	isTokenTextRange()
}

// TokenRange is the byte range [Start, End) of a leaf in the source text.
type TokenRange struct {
	Start int
	End   int
}

// Len returns the length of the range in bytes.
func (r TokenRange) Len() int { return r.End - r.Start }

// DelimiterRange holds the offsets of an opening and closing bracket.
// Close is -1 while the closing bracket has not been seen.
type DelimiterRange struct {
	Open  int
	Close int
}

func (TokenRange) isTokenTextRange()     {}
func (DelimiterRange) isTokenTextRange() {}

// TokenMap maps token ids to source ranges. It is append-only during parsing;
// delimiter entries are patched in place once their closing bracket is consumed.
type TokenMap struct {
	entries []TokenTextRange
}

// NewTokenMap creates a token map from existing entries.
func NewTokenMap(entries ...TokenTextRange) *TokenMap {
	return &TokenMap{entries: entries}
}

// Len returns the number of allocated ids.
func (m *TokenMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Get returns the entry for id, or false if the id was never allocated.
func (m *TokenMap) Get(id TokenID) (TokenTextRange, bool) {
	if m == nil || id < 0 || id >= len(m.entries) {
		return nil, false
	}
	return m.entries[id], true
}

// Token returns the leaf range for id.
func (m *TokenMap) Token(id TokenID) (TokenRange, bool) {
	e, ok := m.Get(id)
	if !ok {
		return TokenRange{}, false
	}
	r, ok := e.(TokenRange)
	return r, ok
}

// Delimiter returns the delimiter offsets for id.
func (m *TokenMap) Delimiter(id TokenID) (DelimiterRange, bool) {
	e, ok := m.Get(id)
	if !ok {
		return DelimiterRange{}, false
	}
	r, ok := e.(DelimiterRange)
	return r, ok
}

// Entries returns a copy of the map entries indexed by id.
func (m *TokenMap) Entries() []TokenTextRange {
	if m == nil {
		return nil
	}
	out := make([]TokenTextRange, len(m.entries))
	copy(out, m.entries)
	return out
}

func (m *TokenMap) allocToken(start, length int) TokenID {
	id := len(m.entries)
	m.entries = append(m.entries, TokenRange{Start: start, End: start + length})
	return id
}

func (m *TokenMap) allocDelimiter(open int) TokenID {
	id := len(m.entries)
	m.entries = append(m.entries, DelimiterRange{Open: open, Close: -1})
	return id
}

func (m *TokenMap) closeDelimiter(id TokenID, closeOffset int) {
	d := m.entries[id].(DelimiterRange)
	d.Close = closeOffset
	m.entries[id] = d
}

// replaceWithToken turns an unclosed delimiter slot into a single-token range.
func (m *TokenMap) replaceWithToken(id TokenID, start, length int) {
	m.entries[id] = TokenRange{Start: start, End: start + length}
}

// MappedSubtree is a parsed subtree together with the token map of its source.
type MappedSubtree struct {
	Subtree  *Subtree
	TokenMap *TokenMap
}
