package model

import "sort"

// Mark is an annotation on inline content, such as emphasis or a link.
type Mark struct {
	Type  *MarkType
	Attrs Attrs
}

// Eq reports whether m and other have the same type and attributes.
func (m *Mark) Eq(other *Mark) bool {
	return m == other || (m.Type == other.Type && AttrsEqual(m.Attrs, other.Attrs))
}

// AddToSet returns set with m added, replacing any mark of the same type and
// keeping rank order.
func (m *Mark) AddToSet(set []*Mark) []*Mark {
	out := make([]*Mark, 0, len(set)+1)
	placed := false
	for _, other := range set {
		if other.Type == m.Type {
			if other.Eq(m) {
				return set
			}
			continue
		}
		if !placed && other.Type.rank > m.Type.rank {
			out = append(out, m)
			placed = true
		}
		out = append(out, other)
	}
	if !placed {
		out = append(out, m)
	}
	return out
}

// RemoveFromSet returns set without m.
func (m *Mark) RemoveFromSet(set []*Mark) []*Mark {
	for i, other := range set {
		if other.Eq(m) {
			out := make([]*Mark, 0, len(set)-1)
			out = append(out, set[:i]...)
			return append(out, set[i+1:]...)
		}
	}
	return set
}

func (m *Mark) IsInSet(set []*Mark) bool {
	for _, other := range set {
		if other.Eq(m) {
			return true
		}
	}
	return false
}

// RemoveMarkType returns set without any mark of type t.
func RemoveMarkType(set []*Mark, t *MarkType) []*Mark {
	var out []*Mark
	for _, m := range set {
		if m.Type != t {
			out = append(out, m)
		}
	}
	return out
}

// SameMarkSet reports whether a and b hold equal marks in the same order.
func SameMarkSet(a, b []*Mark) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Eq(b[i]) {
			return false
		}
	}
	return true
}

// SortMarks returns marks ordered by rank with one mark per type, the last
// occurrence winning.
func SortMarks(marks []*Mark) []*Mark {
	if len(marks) == 0 {
		return nil
	}
	var out []*Mark
	for _, m := range marks {
		if m != nil {
			out = m.AddToSet(out)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Type.rank < out[j].Type.rank })
	return out
}

func (m *Mark) String() string {
	return m.Type.Name + formatAttrs(m.Attrs)
}
