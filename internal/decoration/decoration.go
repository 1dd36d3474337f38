// Package decoration computes view-only annotations from document state.
package decoration

import (
	"sort"
)

type Kind int

const (
	// Widget decorations are zero-width elements inserted at a position.
	Widget Kind = iota
	// Inline decorations style a range of inline content.
	Inline
	// Node decorations style a whole node.
	Node
)

func (k Kind) String() string {
	switch k {
	case Inline:
		return "inline"
	case Node:
		return "node"
	default:
		return "widget"
	}
}

// Decoration is an annotation over [From, To). Widgets have From == To and
// use Side to order themselves against content at the same position. Key
// identifies the decoration across recomputations.
type Decoration struct {
	Kind  Kind              `json:"kind"`
	From  int               `json:"from"`
	To    int               `json:"to"`
	Side  int               `json:"side,omitempty"`
	Key   string            `json:"key"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// NewWidget builds a widget decoration.
func NewWidget(pos int, key string, side int, attrs map[string]string) Decoration {
	return Decoration{Kind: Widget, From: pos, To: pos, Side: side, Key: key, Attrs: attrs}
}

// NewInline builds an inline decoration.
func NewInline(from, to int, key string, attrs map[string]string) Decoration {
	return Decoration{Kind: Inline, From: from, To: to, Key: key, Attrs: attrs}
}

// NewNode builds a node decoration covering the node at [from, to).
func NewNode(from, to int, key string, attrs map[string]string) Decoration {
	return Decoration{Kind: Node, From: from, To: to, Key: key, Attrs: attrs}
}

// Equal compares kind, key, position and attributes.
func (d Decoration) Equal(o Decoration) bool {
	if d.Kind != o.Kind || d.Key != o.Key || d.From != o.From || d.To != o.To || d.Side != o.Side {
		return false
	}
	if len(d.Attrs) != len(o.Attrs) {
		return false
	}
	for k, v := range d.Attrs {
		if ov, ok := o.Attrs[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Set is an immutable, position-sorted collection of decorations. Sets are
// shared by reference; an unchanged set keeps its identity across states.
type Set struct {
	decos []Decoration
	byKey map[string]int
}

var emptySet = &Set{}

func EmptySet() *Set { return emptySet }

// NewSet sorts decos by position and side. The input slice is not retained.
func NewSet(decos []Decoration) *Set {
	if len(decos) == 0 {
		return emptySet
	}
	sorted := append([]Decoration(nil), decos...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.Side != b.Side {
			return a.Side < b.Side
		}
		return a.To < b.To
	})
	byKey := make(map[string]int, len(sorted))
	for i, d := range sorted {
		if _, ok := byKey[d.Key]; !ok && d.Key != "" {
			byKey[d.Key] = i
		}
	}
	return &Set{decos: sorted, byKey: byKey}
}

func (s *Set) Len() int { return len(s.decos) }

// All returns a copy of the decorations in order.
func (s *Set) All() []Decoration {
	return append([]Decoration(nil), s.decos...)
}

// Find returns the decorations touching [from, to].
func (s *Set) Find(from, to int) []Decoration {
	var out []Decoration
	for _, d := range s.decos {
		if d.From > to {
			break
		}
		if d.To >= from {
			out = append(out, d)
		}
	}
	return out
}

// ByKey returns the first decoration with key.
func (s *Set) ByKey(key string) (Decoration, bool) {
	i, ok := s.byKey[key]
	if !ok {
		return Decoration{}, false
	}
	return s.decos[i], true
}

// Equal reports whether both sets hold equal decorations in the same order.
func (s *Set) Equal(other *Set) bool {
	if s == other {
		return true
	}
	if other == nil || len(s.decos) != len(other.decos) {
		return false
	}
	for i := range s.decos {
		if !s.decos[i].Equal(other.decos[i]) {
			return false
		}
	}
	return true
}
