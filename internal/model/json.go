package model

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// NodeJSON is the wire form of a node, compatible with ProseMirror's toJSON.
type NodeJSON struct {
	Type    string     `json:"type"`
	Attrs   Attrs      `json:"attrs,omitempty"`
	Content []NodeJSON `json:"content,omitempty"`
	Marks   []MarkJSON `json:"marks,omitempty"`
	Text    string     `json:"text,omitempty"`
}

type MarkJSON struct {
	Type  string `json:"type"`
	Attrs Attrs  `json:"attrs,omitempty"`
}

type SliceJSON struct {
	Content   []NodeJSON `json:"content,omitempty"`
	OpenStart int        `json:"openStart,omitempty"`
	OpenEnd   int        `json:"openEnd,omitempty"`
}

func (n *Node) ToJSON() NodeJSON {
	out := NodeJSON{Type: n.typ.Name, Text: n.text}
	if len(n.attrs) > 0 {
		out.Attrs = n.attrs
	}
	for _, child := range n.content.nodes {
		out.Content = append(out.Content, child.ToJSON())
	}
	for _, m := range n.marks {
		out.Marks = append(out.Marks, m.ToJSON())
	}
	return out
}

func (n *Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.ToJSON())
}

func (m *Mark) ToJSON() MarkJSON {
	out := MarkJSON{Type: m.Type.Name}
	if len(m.Attrs) > 0 {
		out.Attrs = m.Attrs
	}
	return out
}

// NodeFromJSON rebuilds a node, validating attrs and content on the way.
func NodeFromJSON(s *Schema, data NodeJSON) (*Node, error) {
	marks := make([]*Mark, 0, len(data.Marks))
	for _, mj := range data.Marks {
		m, err := MarkFromJSON(s, mj)
		if err != nil {
			return nil, err
		}
		marks = append(marks, m)
	}
	if data.Type == "text" {
		if data.Text == "" {
			return nil, errors.WithStack(&ContentError{Type: "text", Reason: "empty text node"})
		}
		return s.Text(data.Text, marks...), nil
	}
	t, err := s.NodeType(data.Type)
	if err != nil {
		return nil, err
	}
	children := make([]*Node, 0, len(data.Content))
	for _, cj := range data.Content {
		child, err := NodeFromJSON(s, cj)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return t.Create(data.Attrs, fragmentOf(children), marks)
}

// ParseNodeJSON decodes raw JSON into a checked node.
func ParseNodeJSON(s *Schema, raw []byte) (*Node, error) {
	var data NodeJSON
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, errors.Wrap(err, "decode node json")
	}
	return NodeFromJSON(s, data)
}

func MarkFromJSON(s *Schema, data MarkJSON) (*Mark, error) {
	t, err := s.MarkType(data.Type)
	if err != nil {
		return nil, err
	}
	return t.Create(data.Attrs)
}

func (s *Slice) ToJSON() SliceJSON {
	out := SliceJSON{OpenStart: s.OpenStart, OpenEnd: s.OpenEnd}
	for _, n := range s.Content.nodes {
		out.Content = append(out.Content, n.ToJSON())
	}
	return out
}

// SliceFromJSON rebuilds a slice. Open boundary nodes may hold partial
// content, so children are not checked against their content expressions.
func SliceFromJSON(s *Schema, data SliceJSON) (*Slice, error) {
	nodes := make([]*Node, 0, len(data.Content))
	for _, nj := range data.Content {
		n, err := nodeFromJSONUnchecked(s, nj)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return NewSlice(fragmentOf(nodes), data.OpenStart, data.OpenEnd), nil
}

func nodeFromJSONUnchecked(s *Schema, data NodeJSON) (*Node, error) {
	marks := make([]*Mark, 0, len(data.Marks))
	for _, mj := range data.Marks {
		m, err := MarkFromJSON(s, mj)
		if err != nil {
			return nil, err
		}
		marks = append(marks, m)
	}
	if data.Type == "text" {
		if data.Text == "" {
			return nil, errors.WithStack(&ContentError{Type: "text", Reason: "empty text node"})
		}
		return s.Text(data.Text, marks...), nil
	}
	t, err := s.NodeType(data.Type)
	if err != nil {
		return nil, err
	}
	attrs, err := t.ComputeAttrs(data.Attrs)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	children := make([]*Node, 0, len(data.Content))
	for _, cj := range data.Content {
		child, err := nodeFromJSONUnchecked(s, cj)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return &Node{typ: t, attrs: attrs, content: fragmentOf(children), marks: SortMarks(marks)}, nil
}
