package transform

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/ehtisham-afzal/outline/internal/model"
)

// ReplaceStep replaces [From, To) with Slice.
type ReplaceStep struct {
	From  int
	To    int
	Slice *model.Slice
	// Structure steps may only replace structure, never content. Split
	// uses them so that a stale split cannot eat text.
	Structure bool
}

func NewReplaceStep(from, to int, slice *model.Slice) *ReplaceStep {
	return &ReplaceStep{From: from, To: to, Slice: slice}
}

func (s *ReplaceStep) StepType() string { return "replace" }

func (s *ReplaceStep) Apply(doc *model.Node) Result {
	if s.Structure && contentBetween(doc, s.From, s.To) {
		return Fail("structure replace would overwrite content")
	}
	return FromReplace(doc, s.From, s.To, s.Slice)
}

func (s *ReplaceStep) GetMap() *StepMap {
	return NewStepMap(s.From, s.To-s.From, s.Slice.Size())
}

func (s *ReplaceStep) Invert(doc *model.Node) Step {
	slice, err := doc.Slice(s.From, s.To, false)
	if err != nil {
		slice = model.EmptySlice()
	}
	return &ReplaceStep{From: s.From, To: s.From + s.Slice.Size(), Slice: slice}
}

func (s *ReplaceStep) Map(mapping Mappable) Step {
	from := mapping.MapResult(s.From, 1)
	to := mapping.MapResult(s.To, -1)
	if from.DeletedAcross() && to.DeletedAcross() {
		return nil
	}
	return &ReplaceStep{From: from.Pos, To: max(from.Pos, to.Pos), Slice: s.Slice, Structure: s.Structure}
}

type replaceStepJSON struct {
	StepType  string           `json:"stepType"`
	From      int              `json:"from"`
	To        int              `json:"to"`
	Slice     *model.SliceJSON `json:"slice,omitempty"`
	Structure bool             `json:"structure,omitempty"`
}

func (s *ReplaceStep) MarshalJSON() ([]byte, error) {
	out := replaceStepJSON{StepType: s.StepType(), From: s.From, To: s.To, Structure: s.Structure}
	if s.Slice.Content.Size() > 0 {
		slice := s.Slice.ToJSON()
		out.Slice = &slice
	}
	return json.Marshal(out)
}

func decodeReplaceStep(schema *model.Schema, raw json.RawMessage) (Step, error) {
	var in replaceStepJSON
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, errors.WithStack(err)
	}
	slice := model.EmptySlice()
	if in.Slice != nil {
		var err error
		if slice, err = model.SliceFromJSON(schema, *in.Slice); err != nil {
			return nil, err
		}
	}
	return &ReplaceStep{From: in.From, To: in.To, Slice: slice, Structure: in.Structure}, nil
}

// contentBetween reports whether [from, to) holds anything besides node
// boundaries.
func contentBetween(doc *model.Node, from, to int) bool {
	rFrom, err := doc.Resolve(from)
	if err != nil {
		return true
	}
	dist := to - from
	depth := rFrom.Depth
	for dist > 0 && depth > 0 && rFrom.IndexAfter(depth) == rFrom.Node(depth).ChildCount() {
		depth--
		dist--
	}
	if dist > 0 {
		next := rFrom.Node(depth).MaybeChild(rFrom.IndexAfter(depth))
		for dist > 0 {
			if next == nil || next.IsLeaf() {
				return true
			}
			next = next.FirstChild()
			dist--
		}
	}
	return false
}
