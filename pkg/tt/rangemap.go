package tt

import "sort"

// MappedTextRange maps Length bytes at DstOffset in the expansion text back to
// SrcOffset in the macro call body.
type MappedTextRange struct {
	SrcOffset int `json:"src_offset"`
	DstOffset int `json:"dst_offset"`
	Length    int `json:"length"`
}

// SrcEndOffset returns the end of the source side.
func (r MappedTextRange) SrcEndOffset() int { return r.SrcOffset + r.Length }

// DstEndOffset returns the end of the destination side.
func (r MappedTextRange) DstEndOffset() int { return r.DstOffset + r.Length }

// RangeMap is an ordered collection of mapped ranges sorted by destination offset.
type RangeMap struct {
	ranges []MappedTextRange
}

// NewRangeMap builds a range map, sorting the ranges by destination offset.
func NewRangeMap(ranges []MappedTextRange) RangeMap {
	sorted := make([]MappedTextRange, len(ranges))
	copy(sorted, ranges)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DstOffset < sorted[j].DstOffset
	})
	return RangeMap{ranges: sorted}
}

// MergeAdd appends r, extending the last range instead when r continues it on both sides.
func (m *RangeMap) MergeAdd(r MappedTextRange) {
	if n := len(m.ranges); n > 0 {
		last := &m.ranges[n-1]
		if last.SrcEndOffset() == r.SrcOffset && last.DstEndOffset() == r.DstOffset {
			last.Length += r.Length
			return
		}
	}
	m.ranges = append(m.ranges, r)
}

// Ranges returns a copy of the mapped ranges.
func (m RangeMap) Ranges() []MappedTextRange {
	out := make([]MappedTextRange, len(m.ranges))
	copy(out, m.ranges)
	return out
}

// Len returns the number of ranges.
func (m RangeMap) Len() int { return len(m.ranges) }

// IsEmpty reports whether nothing is mapped.
func (m RangeMap) IsEmpty() bool { return len(m.ranges) == 0 }

// MapOffsetFromExpansionToCallBody maps an offset in the expansion text to the
// macro call body. It returns false for text synthesized by the expander.
func (m RangeMap) MapOffsetFromExpansionToCallBody(offset int) (int, bool) {
	i := sort.Search(len(m.ranges), func(i int) bool {
		return m.ranges[i].DstEndOffset() > offset
	})
	if i < len(m.ranges) && m.ranges[i].DstOffset <= offset {
		r := m.ranges[i]
		return r.SrcOffset + (offset - r.DstOffset), true
	}
	return 0, false
}

// MapOffsetFromCallBodyToExpansion returns every expansion offset that maps back to
// offset in the macro call body. A macro may duplicate its input, so there can be more
// than one.
func (m RangeMap) MapOffsetFromCallBodyToExpansion(offset int) []int {
	var out []int
	for _, r := range m.ranges {
		if offset >= r.SrcOffset && offset < r.SrcEndOffset() {
			out = append(out, r.DstOffset+(offset-r.SrcOffset))
		}
	}
	return out
}
