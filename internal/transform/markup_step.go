package transform

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/ehtisham-afzal/outline/internal/model"
)

// SetNodeMarkupStep changes the type and attributes of the node starting at
// Pos, keeping its content. It fails when no node starts at Pos or when that
// node is not of type Expect.
type SetNodeMarkupStep struct {
	Pos    int
	Expect *model.NodeType
	// Type is the new type; nil keeps the current one.
	Type  *model.NodeType
	Attrs model.Attrs
}

func (s *SetNodeMarkupStep) StepType() string { return "setNodeMarkup" }

func (s *SetNodeMarkupStep) Apply(doc *model.Node) Result {
	node := doc.NodeAt(s.Pos)
	if node == nil || node.IsText() {
		return Fail(fmt.Sprintf("no node at position %d", s.Pos))
	}
	if s.Expect != nil && node.Type() != s.Expect {
		return Fail(fmt.Sprintf("expected %s at position %d, found %s", s.Expect.Name, s.Pos, node.Type().Name))
	}
	typ := s.Type
	if typ == nil {
		typ = node.Type()
	}
	if typ.IsLeaf() != node.Type().IsLeaf() {
		return Fail(fmt.Sprintf("cannot turn %s into %s", node.Type().Name, typ.Name))
	}
	updated, err := typ.Create(s.Attrs, node.Content(), node.Marks())
	if err != nil {
		return Fail(err.Error())
	}
	return FromReplace(doc, s.Pos, s.Pos+node.NodeSize(), model.NewSlice(model.NewFragment(updated), 0, 0))
}

// GetMap is empty: the node keeps its size and its content keeps its
// positions.
func (s *SetNodeMarkupStep) GetMap() *StepMap { return EmptyStepMap() }

func (s *SetNodeMarkupStep) Invert(doc *model.Node) Step {
	node := doc.NodeAt(s.Pos)
	if node == nil {
		return s
	}
	newType := s.Type
	if newType == nil {
		newType = node.Type()
	}
	return &SetNodeMarkupStep{Pos: s.Pos, Expect: newType, Type: node.Type(), Attrs: node.Attrs()}
}

func (s *SetNodeMarkupStep) Map(mapping Mappable) Step {
	pos := mapping.MapResult(s.Pos, 1)
	if pos.DeletedAfter() {
		return nil
	}
	out := *s
	out.Pos = pos.Pos
	return &out
}

type setNodeMarkupJSON struct {
	StepType string      `json:"stepType"`
	Pos      int         `json:"pos"`
	Expect   string      `json:"expect,omitempty"`
	Type     string      `json:"type,omitempty"`
	Attrs    model.Attrs `json:"attrs,omitempty"`
}

func (s *SetNodeMarkupStep) MarshalJSON() ([]byte, error) {
	out := setNodeMarkupJSON{StepType: s.StepType(), Pos: s.Pos, Attrs: s.Attrs}
	if s.Expect != nil {
		out.Expect = s.Expect.Name
	}
	if s.Type != nil {
		out.Type = s.Type.Name
	}
	return json.Marshal(out)
}

func decodeSetNodeMarkupStep(schema *model.Schema, raw json.RawMessage) (Step, error) {
	var in setNodeMarkupJSON
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, errors.WithStack(err)
	}
	step := &SetNodeMarkupStep{Pos: in.Pos, Attrs: in.Attrs}
	var err error
	if in.Expect != "" {
		if step.Expect, err = schema.NodeType(in.Expect); err != nil {
			return nil, err
		}
	}
	if in.Type != "" {
		if step.Type, err = schema.NodeType(in.Type); err != nil {
			return nil, err
		}
	}
	return step, nil
}
