package command

import (
	"github.com/ehtisham-afzal/outline/internal/model"
	"github.com/ehtisham-afzal/outline/internal/state"
)

// SetBlockType turns every textblock in the selection into typ with attrs.
// It does not apply when the blocks already have that markup or when typ
// is not allowed where they are.
func SetBlockType(typ *model.NodeType, attrs model.Attrs) Command {
	return func(st *state.EditorState, dispatch Dispatch) bool {
		nodes, positions := textblocksInSelection(st)
		applicable := false
		for i, node := range nodes {
			if node.Type() == typ && attrsMatch(node, attrs) {
				continue
			}
			if !canChangeType(st.Doc(), positions[i], typ) {
				return false
			}
			applicable = true
		}
		if !applicable {
			return false
		}
		if dispatch == nil {
			return true
		}
		tr := st.Tr()
		for i, node := range nodes {
			if node.Type() == typ && attrsMatch(node, attrs) {
				continue
			}
			ok, err := tr.SetNodeMarkup(positions[i], node.Type(), typ, attrs)
			if err != nil || !ok {
				return false
			}
		}
		dispatch(tr)
		return true
	}
}

func canChangeType(doc *model.Node, pos int, typ *model.NodeType) bool {
	r, err := doc.Resolve(pos)
	if err != nil {
		return false
	}
	index := r.Index(r.Depth)
	return r.Parent().CanReplaceWith(index, index+1, typ)
}

// ToggleBlockType converts the selected textblocks to typ with attrs, or
// back to fallback when they already are typ with those attrs. It does not
// apply when the selection spans textblocks of different types.
func ToggleBlockType(typ, fallback *model.NodeType, attrs model.Attrs) Command {
	return func(st *state.EditorState, dispatch Dispatch) bool {
		nodes, _ := textblocksInSelection(st)
		if len(nodes) == 0 {
			return false
		}
		first := nodes[0].Type()
		active := true
		for _, node := range nodes {
			if node.Type() != first {
				return false
			}
			active = active && node.Type() == typ && attrsMatch(node, attrs)
		}
		if active {
			return SetBlockType(fallback, nil)(st, dispatch)
		}
		return SetBlockType(typ, attrs)(st, dispatch)
	}
}

// ToggleFold flips the collapsed attribute of the block at pos. When
// collapsing while the selection ends past the block's content, the
// selection first moves to the nearest valid position before that end.
func ToggleFold(pos int) Command {
	return func(st *state.EditorState, dispatch Dispatch) bool {
		node := st.Doc().NodeAt(pos)
		if node == nil || node.IsText() {
			return false
		}
		if _, ok := node.Type().Spec().Attrs["collapsed"]; !ok {
			return false
		}
		if dispatch == nil {
			return true
		}
		collapsed := !node.Attrs().Bool("collapsed")
		contentEnd := pos + node.NodeSize() - 1
		tr := st.Tr()
		if collapsed && st.Selection().To() > contentEnd {
			r, err := st.Doc().Resolve(contentEnd)
			if err != nil {
				return false
			}
			tr.SetSelection(state.Near(r, -1))
		}
		ok, err := tr.SetNodeMarkup(pos, node.Type(), nil, node.Attrs().With("collapsed", collapsed))
		if err != nil || !ok {
			return false
		}
		dispatch(tr)
		return true
	}
}

// BackspaceToParagraph turns an empty-selection cursor at the very start of
// a typ block into a paragraph.
func BackspaceToParagraph(typ *model.NodeType) Command {
	return func(st *state.EditorState, dispatch Dispatch) bool {
		sel := st.Selection()
		if !sel.Empty() || sel.Kind != state.TextSelection {
			return false
		}
		r, err := st.Doc().Resolve(sel.From())
		if err != nil || r.Parent().Type() != typ || r.ParentOffset != 0 {
			return false
		}
		paragraph, err := st.Schema().NodeType("paragraph")
		if err != nil {
			return false
		}
		if dispatch == nil {
			return true
		}
		tr := st.Tr()
		pos := r.Before(r.Depth)
		ok, err := tr.SetNodeMarkup(pos, typ, paragraph, nil)
		if err != nil || !ok {
			return false
		}
		dispatch(tr)
		return true
	}
}

// SplitHeading handles Enter at the end of a collapsed typ heading: a new
// expanded heading with the same level is inserted before the next visible
// block, and the cursor moves into it. Anywhere else it does not apply.
func SplitHeading(typ *model.NodeType) Command {
	return func(st *state.EditorState, dispatch Dispatch) bool {
		sel := st.Selection()
		if sel.Kind != state.TextSelection {
			return false
		}
		doc := st.Doc()
		from, err := doc.Resolve(sel.From())
		if err != nil || from.Parent().Type() != typ {
			return false
		}
		to, err := doc.Resolve(sel.To())
		if err != nil || to.After(to.Depth)-1 != sel.To() {
			return false
		}
		if !from.Parent().Attrs().Bool("collapsed") {
			return false
		}
		if dispatch == nil {
			return true
		}

		hidden := HiddenBlocks(doc, typ)
		insertAt := doc.Content().Size()
		doc.ForEach(func(child *model.Node, offset, _ int) {
			if insertAt == doc.Content().Size() && offset > sel.From() && !hidden[offset] {
				insertAt = offset
			}
		})
		heading, err := typ.Create(from.Parent().Attrs().With("collapsed", false), nil, nil)
		if err != nil {
			return false
		}
		tr := st.Tr()
		if err := tr.Insert(insertAt, heading); err != nil {
			return false
		}
		r, err := tr.Doc.Resolve(min(insertAt+1, tr.Doc.Content().Size()))
		if err != nil {
			return false
		}
		tr.SetSelection(state.Near(r, 1))
		dispatch(tr)
		return true
	}
}

// HiddenBlocks returns the positions of top-level blocks hidden by a
// collapsed heading: every block after it up to the next heading of the
// same or a higher level.
func HiddenBlocks(doc *model.Node, heading *model.NodeType) map[int]bool {
	hidden := map[int]bool{}
	foldLevel := 0
	doc.ForEach(func(child *model.Node, offset, _ int) {
		if child.Type() == heading {
			level := child.Attrs().Int("level")
			if foldLevel > 0 && level > foldLevel {
				hidden[offset] = true
				return
			}
			foldLevel = 0
			if child.Attrs().Bool("collapsed") {
				foldLevel = level
			}
			return
		}
		if foldLevel > 0 {
			hidden[offset] = true
		}
	})
	return hidden
}

// SplitBlock splits the textblock at the cursor, deleting any selected
// text first. Splitting at the end of a block starts the default block type
// allowed after it.
func SplitBlock(st *state.EditorState, dispatch Dispatch) bool {
	sel := st.Selection()
	if sel.Kind != state.TextSelection {
		return false
	}
	r, err := st.Doc().Resolve(sel.From())
	if err != nil || !r.Parent().IsTextblock() || r.Depth == 0 {
		return false
	}
	if dispatch == nil {
		return true
	}
	tr := st.Tr()
	if err := tr.DeleteSelection(); err != nil {
		return false
	}
	pos := tr.Selection().From()
	r, err = tr.Doc.Resolve(pos)
	if err != nil {
		return false
	}
	var typeAfter *model.NodeType
	if r.ParentOffset == r.Parent().Content().Size() {
		if match, ok := r.Node(r.Depth-1).ContentMatchAt(r.IndexAfter(r.Depth - 1)); ok {
			typeAfter = match.DefaultType()
		}
	}
	if err := tr.Split(pos, 1, typeAfter, nil); err != nil {
		return false
	}
	tr.SetSelection(state.Cursor(pos + 2))
	dispatch(tr)
	return true
}
