package model

import "github.com/pkg/errors"

// Slice is a piece of document content cut out of its context. OpenStart and
// OpenEnd count the ancestor nodes that are open on either side.
type Slice struct {
	Content   *Fragment
	OpenStart int
	OpenEnd   int
}

var emptySlice = &Slice{Content: emptyFragment}

func EmptySlice() *Slice { return emptySlice }

func NewSlice(content *Fragment, openStart, openEnd int) *Slice {
	return &Slice{Content: content, OpenStart: openStart, OpenEnd: openEnd}
}

// Size is the number of positions the slice adds when inserted.
func (s *Slice) Size() int {
	return s.Content.Size() - s.OpenStart - s.OpenEnd
}

func (s *Slice) Eq(other *Slice) bool {
	return s.Content.Eq(other.Content) && s.OpenStart == other.OpenStart && s.OpenEnd == other.OpenEnd
}

func replace(from, to *ResolvedPos, slice *Slice) (*Node, error) {
	if slice.OpenStart > from.Depth {
		return nil, replaceErrorf("inserted content deeper than insertion position")
	}
	if from.Depth-slice.OpenStart != to.Depth-slice.OpenEnd {
		return nil, replaceErrorf("inconsistent open depths")
	}
	return replaceOuter(from, to, slice, 0)
}

func replaceOuter(from, to *ResolvedPos, slice *Slice, depth int) (*Node, error) {
	index := from.Index(depth)
	node := from.Node(depth)
	switch {
	case index == to.Index(depth) && depth < from.Depth-slice.OpenStart:
		inner, err := replaceOuter(from, to, slice, depth+1)
		if err != nil {
			return nil, err
		}
		return node.Copy(node.content.ReplaceChild(index, inner)), nil
	case slice.Content.Size() == 0:
		content, err := replaceTwoWay(from, to, depth)
		if err != nil {
			return nil, err
		}
		return closeNode(node, content)
	case slice.OpenStart == 0 && slice.OpenEnd == 0 && from.Depth == depth && to.Depth == depth:
		parent := from.Parent()
		content := parent.content
		return closeNode(parent, content.Cut(0, from.ParentOffset).Append(slice.Content).Append(content.Cut(to.ParentOffset, content.size)))
	default:
		start, end, err := prepareSliceForReplace(slice, from)
		if err != nil {
			return nil, err
		}
		content, err := replaceThreeWay(from, start, end, to, depth)
		if err != nil {
			return nil, err
		}
		return closeNode(node, content)
	}
}

func checkJoin(main, sub *Node) error {
	if !sub.typ.CompatibleContent(main.typ) {
		return replaceErrorf("cannot join %s onto %s", sub.typ.Name, main.typ.Name)
	}
	return nil
}

func joinable(before, after *ResolvedPos, depth int) (*Node, error) {
	node := before.Node(depth)
	if err := checkJoin(node, after.Node(depth)); err != nil {
		return nil, err
	}
	return node, nil
}

func addNode(child *Node, target []*Node) []*Node {
	if last := len(target) - 1; last >= 0 && child.IsText() && child.SameMarkup(target[last]) {
		target[last] = child.WithText(target[last].text + child.text)
		return target
	}
	return append(target, child)
}

// addRange appends the children of the node at depth between start and end;
// either bound may be nil for the node's start or end.
func addRange(start, end *ResolvedPos, depth int, target []*Node) []*Node {
	ref := end
	if ref == nil {
		ref = start
	}
	node := ref.Node(depth)
	startIndex, endIndex := 0, node.ChildCount()
	if end != nil {
		endIndex = end.Index(depth)
	}
	if start != nil {
		startIndex = start.Index(depth)
		if start.Depth > depth {
			startIndex++
		} else if start.TextOffset() > 0 {
			target = addNode(start.NodeAfter(), target)
			startIndex++
		}
	}
	for i := startIndex; i < endIndex; i++ {
		target = addNode(node.Child(i), target)
	}
	if end != nil && end.Depth == depth && end.TextOffset() > 0 {
		target = addNode(end.NodeBefore(), target)
	}
	return target
}

func closeNode(node *Node, content *Fragment) (*Node, error) {
	if err := node.typ.CheckContent(content); err != nil {
		return nil, err
	}
	return node.Copy(content), nil
}

func replaceThreeWay(from, start, end, to *ResolvedPos, depth int) (*Fragment, error) {
	var openStart, openEnd *Node
	var err error
	if from.Depth > depth {
		if openStart, err = joinable(from, start, depth+1); err != nil {
			return nil, err
		}
	}
	if to.Depth > depth {
		if openEnd, err = joinable(end, to, depth+1); err != nil {
			return nil, err
		}
	}

	content := addRange(nil, from, depth, nil)
	if openStart != nil && openEnd != nil && start.Index(depth) == end.Index(depth) {
		if err := checkJoin(openStart, openEnd); err != nil {
			return nil, err
		}
		inner, err := replaceThreeWay(from, start, end, to, depth+1)
		if err != nil {
			return nil, err
		}
		closed, err := closeNode(openStart, inner)
		if err != nil {
			return nil, err
		}
		content = addNode(closed, content)
	} else {
		if openStart != nil {
			inner, err := replaceTwoWay(from, start, depth+1)
			if err != nil {
				return nil, err
			}
			closed, err := closeNode(openStart, inner)
			if err != nil {
				return nil, err
			}
			content = addNode(closed, content)
		}
		content = addRange(start, end, depth, content)
		if openEnd != nil {
			inner, err := replaceTwoWay(end, to, depth+1)
			if err != nil {
				return nil, err
			}
			closed, err := closeNode(openEnd, inner)
			if err != nil {
				return nil, err
			}
			content = addNode(closed, content)
		}
	}
	content = addRange(to, nil, depth, content)
	return fragmentOf(content), nil
}

func replaceTwoWay(from, to *ResolvedPos, depth int) (*Fragment, error) {
	content := addRange(nil, from, depth, nil)
	if from.Depth > depth {
		node, err := joinable(from, to, depth+1)
		if err != nil {
			return nil, err
		}
		inner, err := replaceTwoWay(from, to, depth+1)
		if err != nil {
			return nil, err
		}
		closed, err := closeNode(node, inner)
		if err != nil {
			return nil, err
		}
		content = addNode(closed, content)
	}
	content = addRange(to, nil, depth, content)
	return fragmentOf(content), nil
}

// prepareSliceForReplace wraps the slice in copies of the ancestors at along
// so that its open sides can be resolved like document positions.
func prepareSliceForReplace(slice *Slice, along *ResolvedPos) (start, end *ResolvedPos, err error) {
	extra := along.Depth - slice.OpenStart
	node := along.Node(extra).Copy(slice.Content)
	for i := extra - 1; i >= 0; i-- {
		node = along.Node(i).Copy(fragmentOf([]*Node{node}))
	}
	if start, err = node.Resolve(slice.OpenStart + extra); err != nil {
		return nil, nil, errors.WithStack(err)
	}
	if end, err = node.Resolve(node.content.size - slice.OpenEnd - extra); err != nil {
		return nil, nil, errors.WithStack(err)
	}
	return start, end, nil
}
