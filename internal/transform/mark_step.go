package transform

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/ehtisham-afzal/outline/internal/model"
)

// AddMarkStep adds Mark to every inline node in [From, To) whose parent
// allows it.
type AddMarkStep struct {
	From int
	To   int
	Mark *model.Mark
}

// RemoveMarkStep removes Mark from every inline node in [From, To).
type RemoveMarkStep struct {
	From int
	To   int
	Mark *model.Mark
}

func (s *AddMarkStep) StepType() string    { return "addMark" }
func (s *RemoveMarkStep) StepType() string { return "removeMark" }

func (s *AddMarkStep) Apply(doc *model.Node) Result {
	return applyMarkChange(doc, s.From, s.To, func(node, parent *model.Node) *model.Node {
		if !node.IsAtom() || !parent.Type().AllowsMarkType(s.Mark.Type) {
			return node
		}
		return node.WithMarks(s.Mark.AddToSet(node.Marks()))
	})
}

func (s *RemoveMarkStep) Apply(doc *model.Node) Result {
	return applyMarkChange(doc, s.From, s.To, func(node, _ *model.Node) *model.Node {
		return node.WithMarks(s.Mark.RemoveFromSet(node.Marks()))
	})
}

func (s *AddMarkStep) GetMap() *StepMap    { return EmptyStepMap() }
func (s *RemoveMarkStep) GetMap() *StepMap { return EmptyStepMap() }

func (s *AddMarkStep) Invert(*model.Node) Step {
	return &RemoveMarkStep{From: s.From, To: s.To, Mark: s.Mark}
}

func (s *RemoveMarkStep) Invert(*model.Node) Step {
	return &AddMarkStep{From: s.From, To: s.To, Mark: s.Mark}
}

func (s *AddMarkStep) Map(mapping Mappable) Step {
	from, to, ok := mapMarkRange(mapping, s.From, s.To)
	if !ok {
		return nil
	}
	return &AddMarkStep{From: from, To: to, Mark: s.Mark}
}

func (s *RemoveMarkStep) Map(mapping Mappable) Step {
	from, to, ok := mapMarkRange(mapping, s.From, s.To)
	if !ok {
		return nil
	}
	return &RemoveMarkStep{From: from, To: to, Mark: s.Mark}
}

func mapMarkRange(mapping Mappable, from, to int) (int, int, bool) {
	f := mapping.MapResult(from, 1)
	t := mapping.MapResult(to, -1)
	if (f.Deleted() && t.Deleted()) || f.Pos >= t.Pos {
		return 0, 0, false
	}
	return f.Pos, t.Pos, true
}

func applyMarkChange(doc *model.Node, from, to int, change func(node, parent *model.Node) *model.Node) Result {
	old, err := doc.Slice(from, to, false)
	if err != nil {
		return Fail(err.Error())
	}
	rFrom, err := doc.Resolve(from)
	if err != nil {
		return Fail(err.Error())
	}
	parent := rFrom.Node(rFrom.SharedDepth(to))
	slice := model.NewSlice(mapInline(old.Content, change, parent), old.OpenStart, old.OpenEnd)
	return FromReplace(doc, from, to, slice)
}

func mapInline(f *model.Fragment, change func(node, parent *model.Node) *model.Node, parent *model.Node) *model.Fragment {
	mapped := make([]*model.Node, 0, f.ChildCount())
	for _, child := range f.Children() {
		if child.Content().Size() > 0 {
			child = child.Copy(mapInline(child.Content(), change, child))
		}
		if child.IsInline() {
			child = change(child, parent)
		}
		mapped = append(mapped, child)
	}
	return model.NewFragment(mapped...)
}

type markStepJSON struct {
	StepType string         `json:"stepType"`
	From     int            `json:"from"`
	To       int            `json:"to"`
	Mark     model.MarkJSON `json:"mark"`
}

func (s *AddMarkStep) MarshalJSON() ([]byte, error) {
	return json.Marshal(markStepJSON{StepType: s.StepType(), From: s.From, To: s.To, Mark: s.Mark.ToJSON()})
}

func (s *RemoveMarkStep) MarshalJSON() ([]byte, error) {
	return json.Marshal(markStepJSON{StepType: s.StepType(), From: s.From, To: s.To, Mark: s.Mark.ToJSON()})
}

func decodeMarkStep(schema *model.Schema, raw json.RawMessage) (markStepJSON, *model.Mark, error) {
	var in markStepJSON
	if err := json.Unmarshal(raw, &in); err != nil {
		return in, nil, errors.WithStack(err)
	}
	mark, err := model.MarkFromJSON(schema, in.Mark)
	return in, mark, err
}

func decodeAddMarkStep(schema *model.Schema, raw json.RawMessage) (Step, error) {
	in, mark, err := decodeMarkStep(schema, raw)
	if err != nil {
		return nil, err
	}
	return &AddMarkStep{From: in.From, To: in.To, Mark: mark}, nil
}

func decodeRemoveMarkStep(schema *model.Schema, raw json.RawMessage) (Step, error) {
	in, mark, err := decodeMarkStep(schema, raw)
	if err != nil {
		return nil, err
	}
	return &RemoveMarkStep{From: in.From, To: in.To, Mark: mark}, nil
}
