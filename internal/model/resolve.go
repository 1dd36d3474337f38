package model

import "github.com/pkg/errors"

// ResolvedPos is a position together with the path of ancestors that
// contain it. Depth 0 is the root.
type ResolvedPos struct {
	Pos          int
	Depth        int
	ParentOffset int

	path []pathEntry
}

type pathEntry struct {
	node   *Node
	index  int
	offset int // absolute position of the start of child index
}

// Resolve resolves pos inside n's content.
func (n *Node) Resolve(pos int) (*ResolvedPos, error) {
	if pos < 0 || pos > n.content.size {
		return nil, errors.Wrapf(ErrOutOfRange, "position %d outside document of size %d", pos, n.content.size)
	}
	var path []pathEntry
	start, parentOffset := 0, pos
	for node := n; ; {
		index, offset, err := node.content.FindIndex(parentOffset, -1)
		if err != nil {
			return nil, err
		}
		rem := parentOffset - offset
		path = append(path, pathEntry{node: node, index: index, offset: start + offset})
		if rem == 0 {
			break
		}
		node = node.Child(index)
		if node.IsText() {
			break
		}
		parentOffset = rem - 1
		start += offset + 1
	}
	return &ResolvedPos{Pos: pos, Depth: len(path) - 1, ParentOffset: parentOffset, path: path}, nil
}

// MustResolve is Resolve for positions known to be valid; it panics otherwise.
func (n *Node) MustResolve(pos int) *ResolvedPos {
	r, err := n.Resolve(pos)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *ResolvedPos) Doc() *Node           { return r.path[0].node }
func (r *ResolvedPos) Parent() *Node        { return r.path[r.Depth].node }
func (r *ResolvedPos) Node(depth int) *Node { return r.path[depth].node }
func (r *ResolvedPos) Index(depth int) int  { return r.path[depth].index }

// IndexAfter is the index pointing after this position at depth.
func (r *ResolvedPos) IndexAfter(depth int) int {
	if depth == r.Depth && r.TextOffset() == 0 {
		return r.Index(depth)
	}
	return r.Index(depth) + 1
}

// Start is the position at the start of the node at depth.
func (r *ResolvedPos) Start(depth int) int {
	if depth == 0 {
		return 0
	}
	return r.path[depth-1].offset + 1
}

// End is the position at the end of the node at depth.
func (r *ResolvedPos) End(depth int) int {
	return r.Start(depth) + r.Node(depth).content.size
}

// Before is the position directly before the node at depth (depth >= 1).
func (r *ResolvedPos) Before(depth int) int {
	if depth == r.Depth+1 {
		return r.Pos
	}
	return r.path[depth-1].offset
}

// After is the position directly after the node at depth (depth >= 1).
func (r *ResolvedPos) After(depth int) int {
	if depth == r.Depth+1 {
		return r.Pos
	}
	return r.path[depth-1].offset + r.path[depth].node.NodeSize()
}

// TextOffset is the offset into the text node the position points into, or 0.
func (r *ResolvedPos) TextOffset() int {
	return r.Pos - r.path[len(r.path)-1].offset
}

// NodeAfter returns the node directly after the position, cut if the
// position is inside a text node.
func (r *ResolvedPos) NodeAfter() *Node {
	parent := r.Parent()
	index := r.Index(r.Depth)
	if index == parent.ChildCount() {
		return nil
	}
	child := parent.Child(index)
	if off := r.TextOffset(); off > 0 {
		return child.Cut(off, child.runes)
	}
	return child
}

// NodeBefore returns the node directly before the position.
func (r *ResolvedPos) NodeBefore() *Node {
	index := r.Index(r.Depth)
	if off := r.TextOffset(); off > 0 {
		return r.Parent().Child(index).Cut(0, off)
	}
	if index == 0 {
		return nil
	}
	return r.Parent().Child(index - 1)
}

// PosAtIndex returns the position of child index of the node at depth.
func (r *ResolvedPos) PosAtIndex(index, depth int) int {
	node := r.path[depth].node
	pos := r.Start(depth)
	for i := 0; i < index; i++ {
		pos += node.Child(i).NodeSize()
	}
	return pos
}

// SharedDepth is the depth of the deepest ancestor also containing pos.
func (r *ResolvedPos) SharedDepth(pos int) int {
	for depth := r.Depth; depth > 0; depth-- {
		if r.Start(depth) <= pos && r.End(depth) >= pos {
			return depth
		}
	}
	return 0
}

// SameParent reports whether other shares this position's parent node.
func (r *ResolvedPos) SameParent(other *ResolvedPos) bool {
	return r.Depth == other.Depth && r.Pos-r.ParentOffset == other.Pos-other.ParentOffset
}

// Marks returns the marks that text inserted here would carry.
func (r *ResolvedPos) Marks() []*Mark {
	parent := r.Parent()
	index := r.Index(r.Depth)
	if parent.content.size == 0 {
		return nil
	}
	if r.TextOffset() > 0 {
		return parent.Child(index).marks
	}
	main, other := parent.MaybeChild(index-1), parent.MaybeChild(index)
	if main == nil {
		main, other = other, main
	}
	var out []*Mark
	for _, m := range main.marks {
		if !m.Type.IsInclusive() && (other == nil || !m.IsInSet(other.marks)) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Ancestor returns the depth of the innermost ancestor satisfying pred, or -1.
func (r *ResolvedPos) Ancestor(pred func(*Node) bool) int {
	for d := r.Depth; d >= 0; d-- {
		if pred(r.Node(d)) {
			return d
		}
	}
	return -1
}
