package state

import (
	"github.com/ehtisham-afzal/outline/internal/model"
	"github.com/ehtisham-afzal/outline/internal/transform"
)

// Transaction is a Transform bound to the state it was created from, plus a
// selection and metadata for plugins.
type Transaction struct {
	*transform.Transform

	base      *EditorState
	selection Selection
	selFor    int
	selSet    bool
	meta      map[string]any
}

// Selection returns the transaction's selection mapped through every step
// added since it was set.
func (tr *Transaction) Selection() Selection {
	if tr.selFor < len(tr.Steps) {
		tr.selection = tr.selection.Map(tr.Doc, tr.Mapping.Slice(tr.selFor))
		tr.selFor = len(tr.Steps)
	}
	return tr.selection
}

// SetSelection replaces the selection. It is validated when the transaction
// is applied.
func (tr *Transaction) SetSelection(sel Selection) *Transaction {
	tr.selection = sel
	tr.selFor = len(tr.Steps)
	tr.selSet = true
	return tr
}

// SelectionSet reports whether SetSelection was called.
func (tr *Transaction) SelectionSet() bool { return tr.selSet }

// Base returns the state the transaction was created from.
func (tr *Transaction) Base() *EditorState { return tr.base }

// SetMeta attaches plugin-readable metadata.
func (tr *Transaction) SetMeta(key string, value any) *Transaction {
	if tr.meta == nil {
		tr.meta = map[string]any{}
	}
	tr.meta[key] = value
	return tr
}

func (tr *Transaction) Meta(key string) any { return tr.meta[key] }

// ReplaceSelectionWith replaces the current selection with node.
func (tr *Transaction) ReplaceSelectionWith(node *model.Node) error {
	sel := tr.Selection()
	return tr.ReplaceWith(sel.From(), sel.To(), node)
}

// DeleteSelection removes the selected content.
func (tr *Transaction) DeleteSelection() error {
	sel := tr.Selection()
	if sel.Empty() {
		return nil
	}
	return tr.Delete(sel.From(), sel.To())
}

// InsertTextAtSelection replaces the selection with text, inheriting the
// marks at the cursor.
func (tr *Transaction) InsertTextAtSelection(text string) error {
	sel := tr.Selection()
	r, err := tr.Doc.Resolve(sel.From())
	if err != nil {
		return err
	}
	return tr.InsertText(text, sel.From(), sel.To(), r.Marks())
}

// IsEmpty reports whether applying the transaction would change nothing.
func (tr *Transaction) IsEmpty() bool {
	return !tr.DocChanged() && !tr.selSet && len(tr.meta) == 0
}
