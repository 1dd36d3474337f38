package command

import (
	"github.com/ehtisham-afzal/outline/internal/model"
	"github.com/ehtisham-afzal/outline/internal/state"
)

// ToggleMark removes markType from the selection when any of it carries the
// mark, and adds a mark with attrs otherwise. An empty selection does not
// apply.
func ToggleMark(markType *model.MarkType, attrs model.Attrs) Command {
	return func(st *state.EditorState, dispatch Dispatch) bool {
		sel := st.Selection()
		if sel.Empty() || sel.Kind == state.NodeSelection {
			return false
		}
		if !markAllowed(st.Doc(), sel.From(), sel.To(), markType) {
			return false
		}
		if dispatch == nil {
			return true
		}
		tr := st.Tr()
		if st.Doc().RangeHasMark(sel.From(), sel.To(), markType) {
			if err := tr.RemoveMark(sel.From(), sel.To(), markType); err != nil {
				return false
			}
		} else {
			mark, err := markType.Create(attrs)
			if err != nil {
				return false
			}
			if err := tr.AddMark(sel.From(), sel.To(), mark); err != nil {
				return false
			}
		}
		dispatch(tr)
		return true
	}
}

func markAllowed(doc *model.Node, from, to int, markType *model.MarkType) bool {
	allowed := false
	doc.NodesBetween(from, to, func(node *model.Node, _ int, _ *model.Node, _ int) bool {
		if allowed {
			return false
		}
		if node.InlineContent() && node.Type().AllowsMarkType(markType) {
			allowed = true
		}
		return true
	})
	return allowed
}

// MarkActive reports whether the selection carries markType: at the cursor
// for an empty selection, anywhere in the range otherwise.
func MarkActive(st *state.EditorState, markType *model.MarkType) bool {
	sel := st.Selection()
	if sel.Empty() {
		r, err := st.Doc().Resolve(sel.From())
		return err == nil && markType.IsInSet(r.Marks()) != nil
	}
	return st.Doc().RangeHasMark(sel.From(), sel.To(), markType)
}
