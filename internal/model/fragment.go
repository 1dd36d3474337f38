package model

import (
	"strings"

	"github.com/pkg/errors"
)

// Fragment is an immutable sequence of child nodes.
type Fragment struct {
	nodes []*Node
	size  int
}

var emptyFragment = &Fragment{}

func EmptyFragment() *Fragment { return emptyFragment }

// NewFragment builds a fragment, dropping nil and empty text nodes and
// joining adjacent text nodes with the same marks.
func NewFragment(nodes ...*Node) *Fragment {
	var joined []*Node
	for _, n := range nodes {
		if n == nil || (n.IsText() && n.text == "") {
			continue
		}
		if last := len(joined) - 1; last >= 0 && n.IsText() && joined[last].IsText() && SameMarkSet(n.marks, joined[last].marks) {
			joined[last] = joined[last].WithText(joined[last].text + n.text)
			continue
		}
		joined = append(joined, n)
	}
	return fragmentOf(joined)
}

func fragmentOf(nodes []*Node) *Fragment {
	if len(nodes) == 0 {
		return emptyFragment
	}
	size := 0
	for _, n := range nodes {
		size += n.NodeSize()
	}
	return &Fragment{nodes: nodes, size: size}
}

func (f *Fragment) Size() int       { return f.size }
func (f *Fragment) ChildCount() int { return len(f.nodes) }

// Child returns the child at index; it panics when index is out of range.
func (f *Fragment) Child(index int) *Node { return f.nodes[index] }

// MaybeChild returns the child at index or nil.
func (f *Fragment) MaybeChild(index int) *Node {
	if index < 0 || index >= len(f.nodes) {
		return nil
	}
	return f.nodes[index]
}

func (f *Fragment) FirstChild() *Node { return f.MaybeChild(0) }
func (f *Fragment) LastChild() *Node  { return f.MaybeChild(len(f.nodes) - 1) }

// Children returns a copy of the child list.
func (f *Fragment) Children() []*Node { return append([]*Node(nil), f.nodes...) }

// ForEach calls fn for every child with its offset inside the fragment.
func (f *Fragment) ForEach(fn func(child *Node, offset, index int)) {
	offset := 0
	for i, child := range f.nodes {
		fn(child, offset, i)
		offset += child.NodeSize()
	}
}

// Append concatenates other, joining text at the seam.
func (f *Fragment) Append(other *Fragment) *Fragment {
	if other.size == 0 {
		return f
	}
	if f.size == 0 {
		return other
	}
	nodes := make([]*Node, 0, len(f.nodes)+len(other.nodes))
	nodes = append(nodes, f.nodes...)
	nodes = append(nodes, other.nodes...)
	return NewFragment(nodes...)
}

func (f *Fragment) AddToStart(n *Node) *Fragment {
	return fragmentOf(append([]*Node{n}, f.nodes...))
}

func (f *Fragment) AddToEnd(n *Node) *Fragment {
	nodes := append(append([]*Node(nil), f.nodes...), n)
	return fragmentOf(nodes)
}

// ReplaceChild returns a fragment with the child at index swapped for n.
func (f *Fragment) ReplaceChild(index int, n *Node) *Fragment {
	if f.nodes[index] == n {
		return f
	}
	nodes := append([]*Node(nil), f.nodes...)
	nodes[index] = n
	return fragmentOf(nodes)
}

// Cut returns the content between two offsets, cutting into boundary nodes.
func (f *Fragment) Cut(from, to int) *Fragment {
	if from == 0 && to == f.size {
		return f
	}
	var out []*Node
	if to > from {
		pos := 0
		for i := 0; i < len(f.nodes) && pos < to; i++ {
			child := f.nodes[i]
			end := pos + child.NodeSize()
			if end > from {
				if pos < from || end > to {
					if child.IsText() {
						child = child.Cut(max(0, from-pos), min(child.runes, to-pos))
					} else {
						child = child.Cut(max(0, from-pos-1), min(child.content.size, to-pos-1))
					}
				}
				out = append(out, child)
			}
			pos = end
		}
	}
	return fragmentOf(out)
}

// CutByIndex returns children [from, to).
func (f *Fragment) CutByIndex(from, to int) *Fragment {
	if from == to {
		return emptyFragment
	}
	if from == 0 && to == len(f.nodes) {
		return f
	}
	return fragmentOf(append([]*Node(nil), f.nodes[from:to]...))
}

// FindIndex locates the child containing pos. With round > 0 a position
// inside a child rounds up to the next index.
func (f *Fragment) FindIndex(pos int, round int) (index, offset int, err error) {
	if pos == 0 {
		return 0, 0, nil
	}
	if pos == f.size {
		return len(f.nodes), pos, nil
	}
	if pos > f.size || pos < 0 {
		return 0, 0, errors.Wrapf(ErrOutOfRange, "position %d in fragment of size %d", pos, f.size)
	}
	cur := 0
	for i, child := range f.nodes {
		end := cur + child.NodeSize()
		if end >= pos {
			if end == pos || round > 0 {
				return i + 1, end, nil
			}
			return i, cur, nil
		}
		cur = end
	}
	return len(f.nodes), f.size, nil
}

// NodesBetween calls fn for every node overlapping [from, to), recursing
// into children unless fn returns false. Positions are relative to the
// fragment start plus nodeStart.
func (f *Fragment) NodesBetween(from, to int, fn func(node *Node, pos int, parent *Node, index int) bool, nodeStart int, parent *Node) {
	pos := 0
	for i := 0; i < len(f.nodes) && pos < to; i++ {
		child := f.nodes[i]
		end := pos + child.NodeSize()
		if end > from && fn(child, nodeStart+pos, parent, i) && child.content.size > 0 {
			start := pos + 1
			child.content.NodesBetween(max(0, from-start), min(child.content.size, to-start), fn, nodeStart+start, child)
		}
		pos = end
	}
}

// Descendants walks every descendant in document order.
func (f *Fragment) Descendants(fn func(node *Node, pos int, parent *Node, index int) bool) {
	f.NodesBetween(0, f.size, fn, 0, nil)
}

// TextBetween concatenates the text in [from, to), inserting blockSep
// between textblocks.
func (f *Fragment) TextBetween(from, to int, blockSep string) string {
	var b strings.Builder
	first := true
	f.NodesBetween(from, to, func(node *Node, pos int, _ *Node, _ int) bool {
		text := ""
		if node.IsText() {
			text = runeSlice(node.text, max(from, pos)-pos, to-pos)
		}
		if node.IsBlock() && (node.IsLeaf() && text != "" || node.IsTextblock()) && blockSep != "" {
			if first {
				first = false
			} else {
				b.WriteString(blockSep)
			}
		}
		b.WriteString(text)
		return true
	}, 0, nil)
	return b.String()
}

func (f *Fragment) Eq(other *Fragment) bool {
	if len(f.nodes) != len(other.nodes) {
		return false
	}
	for i := range f.nodes {
		if !f.nodes[i].Eq(other.nodes[i]) {
			return false
		}
	}
	return true
}

func (f *Fragment) String() string {
	parts := make([]string, len(f.nodes))
	for i, n := range f.nodes {
		parts[i] = n.String()
	}
	return "<" + strings.Join(parts, ", ") + ">"
}

// runeSlice slices s by rune offsets, clamping to its length.
func runeSlice(s string, from, to int) string {
	if from <= 0 && to >= len(s) {
		return s
	}
	runes := []rune(s)
	if to > len(runes) {
		to = len(runes)
	}
	if from < 0 {
		from = 0
	}
	if from >= to {
		return ""
	}
	return string(runes[from:to])
}
