package state

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/ehtisham-afzal/outline/internal/model"
	"github.com/ehtisham-afzal/outline/internal/transform"
)

type SelectionKind int

const (
	TextSelection SelectionKind = iota
	NodeSelection
	AllSelection
)

func (k SelectionKind) String() string {
	switch k {
	case NodeSelection:
		return "node"
	case AllSelection:
		return "all"
	default:
		return "text"
	}
}

// Selection is a range in a specific document. Anchor stays put when the
// selection is extended; Head moves.
type Selection struct {
	Kind   SelectionKind `json:"kind"`
	Anchor int           `json:"anchor"`
	Head   int           `json:"head"`
}

// Text returns a text selection between anchor and head.
func Text(anchor, head int) Selection {
	return Selection{Kind: TextSelection, Anchor: anchor, Head: head}
}

// Cursor returns an empty text selection at pos.
func Cursor(pos int) Selection { return Text(pos, pos) }

// NodeAt selects the node starting at pos.
func NodeAt(doc *model.Node, pos int) (Selection, error) {
	node := doc.NodeAt(pos)
	if node == nil {
		return Selection{}, errors.Errorf("no node at position %d", pos)
	}
	return Selection{Kind: NodeSelection, Anchor: pos, Head: pos + node.NodeSize()}, nil
}

// All selects the whole document.
func All(doc *model.Node) Selection {
	return Selection{Kind: AllSelection, Anchor: 0, Head: doc.Content().Size()}
}

func (s Selection) From() int   { return min(s.Anchor, s.Head) }
func (s Selection) To() int     { return max(s.Anchor, s.Head) }
func (s Selection) Empty() bool { return s.Anchor == s.Head }

func (s Selection) String() string {
	return fmt.Sprintf("%s(%d,%d)", s.Kind, s.Anchor, s.Head)
}

// Node returns the selected node of a node selection, or nil.
func (s Selection) Node(doc *model.Node) *model.Node {
	if s.Kind != NodeSelection {
		return nil
	}
	return doc.NodeAt(s.Anchor)
}

// Validate checks that the selection resolves inside doc.
func (s Selection) Validate(doc *model.Node) error {
	size := doc.Content().Size()
	if s.Anchor < 0 || s.Head < 0 || s.Anchor > size || s.Head > size {
		return errors.Errorf("selection %s outside document of size %d", s, size)
	}
	switch s.Kind {
	case TextSelection:
		for _, pos := range []int{s.Anchor, s.Head} {
			r, err := doc.Resolve(pos)
			if err != nil {
				return err
			}
			if !r.Parent().InlineContent() {
				return errors.Errorf("text selection endpoint %d is not in inline content", pos)
			}
		}
	case NodeSelection:
		node := doc.NodeAt(s.Anchor)
		if node == nil || node.IsText() || s.Head != s.Anchor+node.NodeSize() {
			return errors.Errorf("node selection %s does not cover a node", s)
		}
		if !node.Type().IsSelectable() {
			return errors.Errorf("%s nodes are not selectable", node.Type().Name)
		}
	case AllSelection:
		if s.From() != 0 || s.To() != size {
			return errors.Errorf("all selection %s does not span the document", s)
		}
	}
	return nil
}

// Map maps the selection through mapping into doc, the document the mapping
// ends at.
func (s Selection) Map(doc *model.Node, mapping transform.Mappable) Selection {
	switch s.Kind {
	case AllSelection:
		return All(doc)
	case NodeSelection:
		r := mapping.MapResult(s.Anchor, 1)
		rp, err := doc.Resolve(r.Pos)
		if err != nil {
			return AtStart(doc)
		}
		if r.Deleted() {
			return Near(rp, 1)
		}
		if node := doc.NodeAt(r.Pos); node != nil && !node.IsText() && node.Type().IsSelectable() {
			return Selection{Kind: NodeSelection, Anchor: r.Pos, Head: r.Pos + node.NodeSize()}
		}
		return Near(rp, 1)
	default:
		head, err := doc.Resolve(mapping.Map(s.Head, 1))
		if err != nil {
			return AtStart(doc)
		}
		if !head.Parent().InlineContent() {
			return Near(head, 1)
		}
		anchor, err := doc.Resolve(mapping.Map(s.Anchor, 1))
		if err != nil || !anchor.Parent().InlineContent() {
			return Cursor(head.Pos)
		}
		return Text(anchor.Pos, head.Pos)
	}
}

// Near finds a valid selection near pos, searching in direction bias first.
// It falls back to selecting the whole document.
func Near(pos *model.ResolvedPos, bias int) Selection {
	if bias == 0 {
		bias = 1
	}
	if sel, ok := FindFrom(pos, bias, false); ok {
		return sel
	}
	if sel, ok := FindFrom(pos, -bias, false); ok {
		return sel
	}
	return All(pos.Doc())
}

// FindFrom finds the first valid cursor or selectable node position in
// direction dir from pos. With textOnly only text selections qualify.
func FindFrom(pos *model.ResolvedPos, dir int, textOnly bool) (Selection, bool) {
	doc := pos.Doc()
	if pos.Parent().InlineContent() {
		return Cursor(pos.Pos), true
	}
	if sel, ok := findSelectionIn(doc, pos.Parent(), pos.Pos, pos.Index(pos.Depth), dir, textOnly); ok {
		return sel, true
	}
	for depth := pos.Depth - 1; depth >= 0; depth-- {
		var sel Selection
		var ok bool
		if dir < 0 {
			sel, ok = findSelectionIn(doc, pos.Node(depth), pos.Before(depth+1), pos.Index(depth), dir, textOnly)
		} else {
			sel, ok = findSelectionIn(doc, pos.Node(depth), pos.After(depth+1), pos.Index(depth)+1, dir, textOnly)
		}
		if ok {
			return sel, true
		}
	}
	return Selection{}, false
}

// AtStart returns the first valid selection in doc.
func AtStart(doc *model.Node) Selection {
	if sel, ok := findSelectionIn(doc, doc, 0, 0, 1, false); ok {
		return sel
	}
	return All(doc)
}

// AtEnd returns the last valid selection in doc.
func AtEnd(doc *model.Node) Selection {
	size := doc.Content().Size()
	if sel, ok := findSelectionIn(doc, doc, size, doc.ChildCount(), -1, false); ok {
		return sel
	}
	return All(doc)
}

func findSelectionIn(doc, node *model.Node, pos, index, dir int, textOnly bool) (Selection, bool) {
	if node.InlineContent() {
		return Cursor(pos), true
	}
	i := index
	if dir < 0 {
		i = index - 1
	}
	for ; i >= 0 && i < node.ChildCount(); i += dir {
		child := node.Child(i)
		if !child.IsAtom() {
			start := 0
			if dir < 0 {
				start = child.ChildCount()
			}
			if sel, ok := findSelectionIn(doc, child, pos+dir, start, dir, textOnly); ok {
				return sel, true
			}
		} else if !textOnly && child.Type().IsSelectable() {
			at := pos
			if dir < 0 {
				at = pos - child.NodeSize()
			}
			return Selection{Kind: NodeSelection, Anchor: at, Head: at + child.NodeSize()}, true
		}
		pos += child.NodeSize() * dir
	}
	return Selection{}, false
}
