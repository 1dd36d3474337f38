package transform

import (
	"github.com/pkg/errors"

	"github.com/ehtisham-afzal/outline/internal/model"
)

// Transform accumulates steps against a document. Steps are applied eagerly,
// so each one sees the result of the previous ones.
type Transform struct {
	Doc     *model.Node
	Steps   []Step
	Docs    []*model.Node
	Mapping *Mapping
}

func New(doc *model.Node) *Transform {
	return &Transform{Doc: doc, Mapping: NewMapping()}
}

// Before returns the document the transform started from.
func (t *Transform) Before() *model.Node {
	if len(t.Docs) > 0 {
		return t.Docs[0]
	}
	return t.Doc
}

// DocChanged reports whether any step was applied.
func (t *Transform) DocChanged() bool { return len(t.Steps) > 0 }

// Step applies step, returning a *StepError when it fails.
func (t *Transform) Step(step Step) error {
	res := t.MaybeStep(step)
	if res.Failed != "" {
		return errors.WithStack(&StepError{StepType: step.StepType(), Reason: res.Failed})
	}
	return nil
}

// MaybeStep applies step if it succeeds and reports the result.
func (t *Transform) MaybeStep(step Step) Result {
	res := step.Apply(t.Doc)
	if res.Failed == "" {
		t.Docs = append(t.Docs, t.Doc)
		t.Steps = append(t.Steps, step)
		t.Mapping.AppendMap(step.GetMap())
		t.Doc = res.Doc
	}
	return res
}

// Replace replaces [from, to) with slice. Replacing nothing with nothing is
// a no-op.
func (t *Transform) Replace(from, to int, slice *model.Slice) error {
	if from == to && slice.Size() == 0 {
		return nil
	}
	return t.Step(NewReplaceStep(from, to, slice))
}

// ReplaceWith replaces [from, to) with the given nodes.
func (t *Transform) ReplaceWith(from, to int, nodes ...*model.Node) error {
	return t.Replace(from, to, model.NewSlice(model.NewFragment(nodes...), 0, 0))
}

func (t *Transform) Delete(from, to int) error {
	return t.Replace(from, to, model.EmptySlice())
}

func (t *Transform) Insert(pos int, nodes ...*model.Node) error {
	return t.ReplaceWith(pos, pos, nodes...)
}

// InsertText replaces [from, to) with text carrying marks.
func (t *Transform) InsertText(text string, from, to int, marks []*model.Mark) error {
	if text == "" {
		return t.Delete(from, to)
	}
	return t.ReplaceWith(from, to, t.Doc.Type().Schema().Text(text, marks...))
}

// SetNodeMarkup changes the node at pos. It answers false without adding a
// step when no node of type expect starts at pos; a nil expect accepts any
// node. An error means the node was found but the change is invalid.
func (t *Transform) SetNodeMarkup(pos int, expect, typ *model.NodeType, attrs model.Attrs) (bool, error) {
	node := t.Doc.NodeAt(pos)
	if node == nil || node.IsText() || (expect != nil && node.Type() != expect) {
		return false, nil
	}
	if err := t.Step(&SetNodeMarkupStep{Pos: pos, Expect: node.Type(), Type: typ, Attrs: attrs}); err != nil {
		return false, err
	}
	return true, nil
}

// AddMark adds mark to the inline content in [from, to).
func (t *Transform) AddMark(from, to int, mark *model.Mark) error {
	if from >= to {
		return nil
	}
	return t.Step(&AddMarkStep{From: from, To: to, Mark: mark})
}

// RemoveMark removes every mark of type mt from the inline content in
// [from, to).
func (t *Transform) RemoveMark(from, to int, mt *model.MarkType) error {
	if from >= to {
		return nil
	}
	var found []*model.Mark
	t.Doc.NodesBetween(from, to, func(node *model.Node, _ int, _ *model.Node, _ int) bool {
		if !node.IsInline() {
			return true
		}
		if m := mt.IsInSet(node.Marks()); m != nil && !m.IsInSet(found) {
			found = append(found, m)
		}
		return true
	})
	for _, m := range found {
		if err := t.Step(&RemoveMarkStep{From: from, To: to, Mark: m}); err != nil {
			return err
		}
	}
	return nil
}

// Split splits the node at pos and depth-1 of its ancestors. typeAfter,
// when not nil, becomes the type of the innermost node after the split.
func (t *Transform) Split(pos, depth int, typeAfter *model.NodeType, attrsAfter model.Attrs) error {
	r, err := t.Doc.Resolve(pos)
	if err != nil {
		return err
	}
	if depth < 1 || depth > r.Depth {
		return errors.Errorf("cannot split %d levels at depth %d", depth, r.Depth)
	}
	before, after := model.EmptyFragment(), model.EmptyFragment()
	for d, i := r.Depth, depth-1; d > r.Depth-depth; d, i = d-1, i-1 {
		before = model.NewFragment(r.Node(d).Copy(before))
		if i == depth-1 && typeAfter != nil {
			node, err := typeAfter.Create(attrsAfter, after, nil)
			if err != nil {
				return err
			}
			after = model.NewFragment(node)
		} else {
			after = model.NewFragment(r.Node(d).Copy(after))
		}
	}
	return t.Step(&ReplaceStep{From: pos, To: pos, Slice: model.NewSlice(before.Append(after), depth, depth), Structure: true})
}
