package model

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Node is an immutable document node. Edits build new nodes and share
// unchanged subtrees with the old ones.
type Node struct {
	typ     *NodeType
	attrs   Attrs
	content *Fragment
	marks   []*Mark
	text    string
	runes   int
}

func newTextNode(t *NodeType, text string, marks []*Mark) *Node {
	return &Node{typ: t, attrs: Attrs{}, content: emptyFragment, marks: marks, text: text, runes: utf8.RuneCountInString(text)}
}

func (n *Node) Type() *NodeType     { return n.typ }
func (n *Node) Attrs() Attrs        { return n.attrs }
func (n *Node) Attr(key string) any { return n.attrs[key] }
func (n *Node) Content() *Fragment  { return n.content }
func (n *Node) Marks() []*Mark      { return n.marks }
func (n *Node) Text() string        { return n.text }

func (n *Node) IsText() bool        { return n.typ.IsText() }
func (n *Node) IsInline() bool      { return n.typ.IsInline() }
func (n *Node) IsBlock() bool       { return n.typ.IsBlock() }
func (n *Node) IsTextblock() bool   { return n.typ.IsTextblock() }
func (n *Node) IsLeaf() bool        { return n.typ.IsLeaf() }
func (n *Node) IsAtom() bool        { return n.typ.IsAtom() }
func (n *Node) InlineContent() bool { return n.typ.InlineContent() }

// NodeSize is the number of positions the node occupies: one per rune for
// text, one for a leaf, content size plus two otherwise.
func (n *Node) NodeSize() int {
	switch {
	case n.IsText():
		return n.runes
	case n.IsLeaf():
		return 1
	default:
		return n.content.size + 2
	}
}

func (n *Node) ChildCount() int            { return n.content.ChildCount() }
func (n *Node) Child(index int) *Node      { return n.content.Child(index) }
func (n *Node) MaybeChild(index int) *Node { return n.content.MaybeChild(index) }
func (n *Node) FirstChild() *Node          { return n.content.FirstChild() }
func (n *Node) LastChild() *Node           { return n.content.LastChild() }

func (n *Node) ForEach(fn func(child *Node, offset, index int)) { n.content.ForEach(fn) }

// TextContent concatenates all descendant text.
func (n *Node) TextContent() string {
	if n.IsText() {
		return n.text
	}
	return n.content.TextBetween(0, n.content.size, "")
}

// TextBetween returns the text in [from, to) of this node's content.
func (n *Node) TextBetween(from, to int, blockSep string) string {
	return n.content.TextBetween(from, to, blockSep)
}

// Copy returns a node with the same markup and the given content.
func (n *Node) Copy(content *Fragment) *Node {
	if content == n.content {
		return n
	}
	return &Node{typ: n.typ, attrs: n.attrs, content: content, marks: n.marks}
}

// WithMarks returns a node with the given marks and otherwise the same data.
func (n *Node) WithMarks(marks []*Mark) *Node {
	if SameMarkSet(marks, n.marks) {
		return n
	}
	out := *n
	out.marks = marks
	return &out
}

// WithText returns a text node carrying the same marks and a new string.
func (n *Node) WithText(text string) *Node {
	if text == n.text {
		return n
	}
	return newTextNode(n.typ, text, n.marks)
}

// WithAttrs returns a node of the same type and content with new attrs.
// Attrs are taken as already validated.
func (n *Node) WithAttrs(attrs Attrs) *Node {
	out := *n
	out.attrs = attrs
	return &out
}

// Cut returns the part of the node between two content offsets. For text
// nodes the offsets are rune offsets into the text.
func (n *Node) Cut(from, to int) *Node {
	if n.IsText() {
		if from == 0 && to == n.runes {
			return n
		}
		return n.WithText(runeSlice(n.text, from, to))
	}
	if from == 0 && to == n.content.size {
		return n
	}
	return n.Copy(n.content.Cut(from, to))
}

// Slice cuts the content between from and to into an open slice.
func (n *Node) Slice(from, to int, includeParents bool) (*Slice, error) {
	if from == to {
		return EmptySlice(), nil
	}
	rFrom, err := n.Resolve(from)
	if err != nil {
		return nil, err
	}
	rTo, err := n.Resolve(to)
	if err != nil {
		return nil, err
	}
	depth := 0
	if !includeParents {
		depth = rFrom.SharedDepth(to)
	}
	start := rFrom.Start(depth)
	node := rFrom.Node(depth)
	content := node.content.Cut(rFrom.Pos-start, rTo.Pos-start)
	return NewSlice(content, rFrom.Depth-depth, rTo.Depth-depth), nil
}

// Replace replaces [from, to) with slice, failing when the result would
// violate a content expression.
func (n *Node) Replace(from, to int, slice *Slice) (*Node, error) {
	rFrom, err := n.Resolve(from)
	if err != nil {
		return nil, err
	}
	rTo, err := n.Resolve(to)
	if err != nil {
		return nil, err
	}
	return replace(rFrom, rTo, slice)
}

// NodeAt returns the node starting at pos, or nil.
func (n *Node) NodeAt(pos int) *Node {
	node := n
	for {
		index, offset, err := node.content.FindIndex(pos, -1)
		if err != nil {
			return nil
		}
		node = node.MaybeChild(index)
		if node == nil {
			return nil
		}
		if offset == pos || node.IsText() {
			return node
		}
		pos -= offset + 1
	}
}

// ChildAfter returns the direct child starting at or containing pos.
func (n *Node) ChildAfter(pos int) (child *Node, index, offset int) {
	index, offset, err := n.content.FindIndex(pos, -1)
	if err != nil {
		return nil, 0, 0
	}
	return n.MaybeChild(index), index, offset
}

// ChildBefore returns the direct child ending at or containing pos.
func (n *Node) ChildBefore(pos int) (child *Node, index, offset int) {
	if pos == 0 {
		return nil, 0, 0
	}
	index, offset, err := n.content.FindIndex(pos, -1)
	if err != nil {
		return nil, 0, 0
	}
	if offset < pos {
		return n.Child(index), index, offset
	}
	child = n.Child(index - 1)
	return child, index - 1, offset - child.NodeSize()
}

// NodesBetween walks the descendants overlapping [from, to). Returning false
// from fn skips the node's children.
func (n *Node) NodesBetween(from, to int, fn func(node *Node, pos int, parent *Node, index int) bool) {
	n.content.NodesBetween(from, to, fn, 0, n)
}

// Descendants walks every descendant in document order.
func (n *Node) Descendants(fn func(node *Node, pos int, parent *Node, index int) bool) {
	n.NodesBetween(0, n.content.size, fn)
}

// RangeHasMark reports whether any inline node in [from, to) carries a mark
// of type t.
func (n *Node) RangeHasMark(from, to int, t *MarkType) bool {
	found := false
	if to > from {
		n.NodesBetween(from, to, func(node *Node, _ int, _ *Node, _ int) bool {
			if t.IsInSet(node.marks) != nil {
				found = true
			}
			return !found
		})
	}
	return found
}

// Eq reports structural equality.
func (n *Node) Eq(other *Node) bool {
	if n == other {
		return true
	}
	if other == nil || !n.SameMarkup(other) {
		return false
	}
	if n.IsText() {
		return n.text == other.text
	}
	return n.content.Eq(other.content)
}

// SameMarkup compares type, attrs and marks, ignoring content.
func (n *Node) SameMarkup(other *Node) bool {
	return n.HasMarkup(other.typ, other.attrs, other.marks)
}

func (n *Node) HasMarkup(t *NodeType, attrs Attrs, marks []*Mark) bool {
	return n.typ == t && AttrsEqual(n.attrs, attrs) && SameMarkSet(n.marks, marks)
}

// ContentMatchAt returns the match state after the first index children.
func (n *Node) ContentMatchAt(index int) (MatchState, bool) {
	return n.typ.content.Start().MatchFragment(n.content, 0, index)
}

// CanReplace reports whether replacing children [from, to) with
// replacement[start:end] yields valid content.
func (n *Node) CanReplace(from, to int, replacement *Fragment, start, end int) bool {
	one, ok := n.ContentMatchAt(from)
	if !ok {
		return false
	}
	two, ok := one.MatchFragment(replacement, start, end)
	if !ok {
		return false
	}
	three, ok := two.MatchFragment(n.content, to, n.ChildCount())
	if !ok || !three.ValidEnd() {
		return false
	}
	for i := start; i < end; i++ {
		if !n.typ.AllowsMarks(replacement.Child(i).marks) {
			return false
		}
	}
	return true
}

// CanReplaceWith reports whether children [from, to) may be replaced by a
// single node of type t.
func (n *Node) CanReplaceWith(from, to int, t *NodeType) bool {
	one, ok := n.ContentMatchAt(from)
	if !ok {
		return false
	}
	two, ok := one.MatchType(t)
	if !ok {
		return false
	}
	three, ok := two.MatchFragment(n.content, to, n.ChildCount())
	return ok && three.ValidEnd()
}

// Check validates the whole subtree against the schema.
func (n *Node) Check() error {
	if n.IsText() {
		if n.text == "" {
			return errors.WithStack(&ContentError{Type: "text", Reason: "empty text node"})
		}
		return nil
	}
	if err := n.typ.CheckContent(n.content); err != nil {
		return err
	}
	if _, err := n.typ.ComputeAttrs(n.attrs); err != nil {
		return errors.WithStack(err)
	}
	for _, child := range n.content.nodes {
		if err := child.Check(); err != nil {
			return err
		}
	}
	return nil
}

// WithoutPresentation returns the subtree with every presentational
// attribute reset to its default.
func (n *Node) WithoutPresentation() *Node {
	if n.IsText() {
		return n
	}
	out := n
	for name, spec := range n.typ.spec.Attrs {
		if spec.Presentational && !valuesEqual(n.attrs[name], spec.Default) {
			out = out.WithAttrs(out.attrs.With(name, spec.Default))
		}
	}
	if n.content.size == 0 {
		return out
	}
	children := make([]*Node, len(n.content.nodes))
	changed := false
	for i, child := range n.content.nodes {
		children[i] = child.WithoutPresentation()
		changed = changed || children[i] != child
	}
	if !changed {
		return out
	}
	return out.Copy(fragmentOf(children))
}

func (n *Node) String() string {
	var b strings.Builder
	if n.IsText() {
		b.WriteString(strconv.Quote(n.text))
	} else {
		b.WriteString(n.typ.Name)
		b.WriteString(formatAttrs(n.attrs))
		if n.content.size > 0 {
			b.WriteString(n.content.String())
		}
	}
	for i := len(n.marks) - 1; i >= 0; i-- {
		s := b.String()
		b.Reset()
		b.WriteString(n.marks[i].Type.Name + "(" + s + ")")
	}
	return b.String()
}
