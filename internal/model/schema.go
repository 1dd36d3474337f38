package model

import (
	"strings"

	"github.com/pkg/errors"
)

// NodeSpec describes a node type before registration.
type NodeSpec struct {
	Name string
	// Content is the content expression, e.g. "inline*" or "list_item+".
	// Empty means the node is a leaf.
	Content string
	// Marks lists allowed mark names separated by spaces, "_" for all.
	// Nil allows all marks in inline content and none elsewhere.
	Marks *string
	Group string
	Inline bool
	Atom   bool
	// Selectable defaults to true for every type except text.
	Selectable *bool
	Draggable  bool
	Defining   bool
	Code       bool
	Attrs      map[string]AttrSpec
}

// NodeType is a registered, immutable node type.
type NodeType struct {
	Name string

	spec          NodeSpec
	schema        *Schema
	groups        []string
	content       *ContentMatch
	inlineContent bool
	allowAllMarks bool
	markSet       map[*MarkType]bool
}

// MarkSpec describes a mark type before registration.
type MarkSpec struct {
	Name  string
	Attrs map[string]AttrSpec
	// Inclusive marks extend to text typed at their end.
	Inclusive *bool
	Code      bool
}

// MarkType is a registered mark type. Rank orders marks on a text node.
type MarkType struct {
	Name string

	spec   MarkSpec
	schema *Schema
	rank   int
}

// Schema is the registry of node and mark types. It is mutable until Seal;
// afterwards it is read-only and safe for concurrent use.
type Schema struct {
	// TopNode names the root type, "doc" unless set before Seal.
	TopNode string

	nodes     map[string]*NodeType
	nodeOrder []*NodeType
	marks     map[string]*MarkType
	markOrder []*MarkType
	sealed    bool
}

func NewSchema() *Schema {
	return &Schema{
		TopNode: "doc",
		nodes:   map[string]*NodeType{},
		marks:   map[string]*MarkType{},
	}
}

// Register adds a node type. Types registered first are preferred when a
// group in a content expression must be filled.
func (s *Schema) Register(spec NodeSpec) (*NodeType, error) {
	if s.sealed {
		return nil, errors.WithStack(ErrSchemaSealed)
	}
	if spec.Name == "" {
		return nil, errors.New("node type name is required")
	}
	if _, ok := s.nodes[spec.Name]; ok {
		return nil, errors.WithStack(&DuplicateTypeError{Kind: "node", Name: spec.Name})
	}
	t := &NodeType{Name: spec.Name, spec: spec, schema: s, groups: strings.Fields(spec.Group)}
	s.nodes[spec.Name] = t
	s.nodeOrder = append(s.nodeOrder, t)
	return t, nil
}

func (s *Schema) RegisterMark(spec MarkSpec) (*MarkType, error) {
	if s.sealed {
		return nil, errors.WithStack(ErrSchemaSealed)
	}
	if spec.Name == "" {
		return nil, errors.New("mark type name is required")
	}
	if _, ok := s.marks[spec.Name]; ok {
		return nil, errors.WithStack(&DuplicateTypeError{Kind: "mark", Name: spec.Name})
	}
	t := &MarkType{Name: spec.Name, spec: spec, schema: s, rank: len(s.markOrder)}
	s.marks[spec.Name] = t
	s.markOrder = append(s.markOrder, t)
	return t, nil
}

// Seal compiles every content expression and mark set and freezes the
// registry. Sealing twice is an error.
func (s *Schema) Seal() error {
	if s.sealed {
		return errors.WithStack(ErrSchemaSealed)
	}
	if _, ok := s.nodes["text"]; !ok {
		return errors.WithStack(&UnknownTypeError{Kind: "node", Name: "text"})
	}
	if _, ok := s.nodes[s.TopNode]; !ok {
		return errors.WithStack(&UnknownTypeError{Kind: "node", Name: s.TopNode})
	}
	for _, t := range s.nodeOrder {
		cm, err := compileContent(t.Name, t.spec.Content, s.resolveContentName)
		if err != nil {
			return errors.Wrapf(err, "seal %s", t.Name)
		}
		t.content = cm
		for _, term := range cm.Types() {
			if term.IsInline() {
				t.inlineContent = true
				break
			}
		}
	}
	for _, t := range s.nodeOrder {
		if err := t.compileMarks(); err != nil {
			return errors.Wrapf(err, "seal %s", t.Name)
		}
	}
	s.sealed = true
	return nil
}

func (s *Schema) Sealed() bool { return s.sealed }

func (s *Schema) resolveContentName(name string) []*NodeType {
	if t, ok := s.nodes[name]; ok {
		return []*NodeType{t}
	}
	var out []*NodeType
	for _, t := range s.nodeOrder {
		if t.InGroup(name) {
			out = append(out, t)
		}
	}
	return out
}

func (s *Schema) NodeType(name string) (*NodeType, error) {
	t, ok := s.nodes[name]
	if !ok {
		return nil, errors.WithStack(&UnknownTypeError{Kind: "node", Name: name})
	}
	return t, nil
}

func (s *Schema) MarkType(name string) (*MarkType, error) {
	t, ok := s.marks[name]
	if !ok {
		return nil, errors.WithStack(&UnknownTypeError{Kind: "mark", Name: name})
	}
	return t, nil
}

// NodeTypes returns the node types in registration order.
func (s *Schema) NodeTypes() []*NodeType {
	return append([]*NodeType(nil), s.nodeOrder...)
}

// MarkTypes returns the mark types in rank order.
func (s *Schema) MarkTypes() []*MarkType {
	return append([]*MarkType(nil), s.markOrder...)
}

func (s *Schema) TopNodeType() *NodeType { return s.nodes[s.TopNode] }

// ValidateAttrs fills defaults for typeName and checks every value.
func (s *Schema) ValidateAttrs(typeName string, attrs Attrs) (Attrs, error) {
	t, err := s.NodeType(typeName)
	if err != nil {
		return nil, err
	}
	return t.ComputeAttrs(attrs)
}

// Node builds a checked node of the named type.
func (s *Schema) Node(typeName string, attrs Attrs, content ...*Node) (*Node, error) {
	t, err := s.NodeType(typeName)
	if err != nil {
		return nil, err
	}
	return t.Create(attrs, NewFragment(content...), nil)
}

// Text builds a text node. An empty string yields nil, which fragment
// constructors skip.
func (s *Schema) Text(text string, marks ...*Mark) *Node {
	if text == "" {
		return nil
	}
	return newTextNode(s.nodes["text"], text, SortMarks(marks))
}

func (s *Schema) Mark(typeName string, attrs Attrs) (*Mark, error) {
	t, err := s.MarkType(typeName)
	if err != nil {
		return nil, err
	}
	return t.Create(attrs)
}

func (t *NodeType) Spec() NodeSpec       { return t.spec }
func (t *NodeType) Schema() *Schema      { return t.schema }
func (t *NodeType) Groups() []string     { return append([]string(nil), t.groups...) }
func (t *NodeType) IsText() bool         { return t.Name == "text" }
func (t *NodeType) IsInline() bool       { return t.spec.Inline || t.IsText() }
func (t *NodeType) IsBlock() bool        { return !t.IsInline() }
func (t *NodeType) InlineContent() bool  { return t.inlineContent }
func (t *NodeType) IsTextblock() bool    { return t.IsBlock() && t.inlineContent }
func (t *NodeType) IsAtom() bool         { return t.IsLeaf() || t.spec.Atom }
func (t *NodeType) IsCode() bool         { return t.spec.Code }
func (t *NodeType) IsDefining() bool     { return t.spec.Defining }
func (t *NodeType) IsDraggable() bool    { return t.spec.Draggable }

func (t *NodeType) ContentMatch() *ContentMatch { return t.content }

// IsLeaf reports whether the type admits no content.
func (t *NodeType) IsLeaf() bool {
	return t.content == nil || t.content.Empty()
}

func (t *NodeType) IsSelectable() bool {
	if t.spec.Selectable != nil {
		return *t.spec.Selectable
	}
	return !t.IsText()
}

func (t *NodeType) InGroup(group string) bool {
	for _, g := range t.groups {
		if g == group {
			return true
		}
	}
	return false
}

func (t *NodeType) HasRequiredAttrs() bool {
	for _, spec := range t.spec.Attrs {
		if spec.Required {
			return true
		}
	}
	return false
}

// IsPresentational reports whether attr is view-only state.
func (t *NodeType) IsPresentational(attr string) bool {
	return t.spec.Attrs[attr].Presentational
}

// ComputeAttrs fills defaults and validates attrs against this type.
func (t *NodeType) ComputeAttrs(attrs Attrs) (Attrs, error) {
	return computeAttrs(t.Name, t.spec.Attrs, attrs)
}

// CompatibleContent reports whether nodes of t and other accept the same content.
func (t *NodeType) CompatibleContent(other *NodeType) bool {
	return t == other || t.content.expr == other.content.expr
}

func (t *NodeType) compileMarks() error {
	var names []string
	switch {
	case t.spec.Marks == nil:
		t.allowAllMarks = t.inlineContent
		return nil
	case *t.spec.Marks == "_":
		t.allowAllMarks = true
		return nil
	default:
		names = strings.Fields(*t.spec.Marks)
	}
	t.markSet = map[*MarkType]bool{}
	for _, name := range names {
		mt, ok := t.schema.marks[name]
		if !ok {
			return &UnknownTypeError{Kind: "mark", Name: name}
		}
		t.markSet[mt] = true
	}
	return nil
}

// AllowsMarkType reports whether children of t may carry marks of mt.
func (t *NodeType) AllowsMarkType(mt *MarkType) bool {
	return t.allowAllMarks || t.markSet[mt]
}

func (t *NodeType) AllowsMarks(marks []*Mark) bool {
	for _, m := range marks {
		if !t.AllowsMarkType(m.Type) {
			return false
		}
	}
	return true
}

// CheckContent verifies that content satisfies the content expression and
// mark restrictions of t.
func (t *NodeType) CheckContent(content *Fragment) error {
	if !t.content.MatchFragment(content) {
		return errors.WithStack(&ContentError{Type: t.Name, Reason: "expected " + describeExpr(t.content.expr) + ", got " + describeFragment(content)})
	}
	for _, child := range content.nodes {
		for _, m := range child.marks {
			if !t.AllowsMarkType(m.Type) {
				return errors.WithStack(&ContentError{Type: t.Name, Reason: "mark " + m.Type.Name + " not allowed"})
			}
		}
	}
	return nil
}

// Create builds a node with validated attrs and content.
func (t *NodeType) Create(attrs Attrs, content *Fragment, marks []*Mark) (*Node, error) {
	if t.IsText() {
		return nil, errors.New("text nodes are created with Schema.Text")
	}
	computed, err := t.ComputeAttrs(attrs)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if content == nil {
		content = EmptyFragment()
	}
	if err := t.CheckContent(content); err != nil {
		return nil, err
	}
	return &Node{typ: t, attrs: computed, content: content, marks: SortMarks(marks)}, nil
}

// CreateAndFill creates a node, appending required children so that its
// content is valid.
func (t *NodeType) CreateAndFill(attrs Attrs) (*Node, error) {
	computed, err := t.ComputeAttrs(attrs)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	fill, ok := t.content.Start().FillBefore(EmptyFragment(), true)
	if !ok {
		return nil, errors.WithStack(&ContentError{Type: t.Name, Reason: "cannot fill required content"})
	}
	return &Node{typ: t, attrs: computed, content: fill}, nil
}

// CreateFilled creates a node around content, adding the required nodes
// before and after it when content alone does not satisfy the type.
func (t *NodeType) CreateFilled(attrs Attrs, content *Fragment, marks []*Mark) (*Node, error) {
	if content == nil {
		content = EmptyFragment()
	}
	if content.size > 0 {
		before, ok := t.content.Start().FillBefore(content, false)
		if !ok {
			return nil, errors.WithStack(&ContentError{Type: t.Name, Reason: "cannot fit " + describeFragment(content)})
		}
		content = before.Append(content)
	}
	matched, ok := t.content.Start().MatchFragment(content, 0, content.ChildCount())
	if !ok {
		return nil, errors.WithStack(&ContentError{Type: t.Name, Reason: "cannot fit " + describeFragment(content)})
	}
	after, ok := matched.FillBefore(EmptyFragment(), true)
	if !ok {
		return nil, errors.WithStack(&ContentError{Type: t.Name, Reason: "cannot fill required content"})
	}
	return t.Create(attrs, content.Append(after), marks)
}

func (t *MarkType) Spec() MarkSpec  { return t.spec }
func (t *MarkType) Rank() int       { return t.rank }
func (t *MarkType) Schema() *Schema { return t.schema }
func (t *MarkType) IsCode() bool    { return t.spec.Code }

func (t *MarkType) IsInclusive() bool {
	if t.spec.Inclusive != nil {
		return *t.spec.Inclusive
	}
	return true
}

func (t *MarkType) Create(attrs Attrs) (*Mark, error) {
	computed, err := computeAttrs(t.Name, t.spec.Attrs, attrs)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Mark{Type: t, Attrs: computed}, nil
}

// IsInSet returns the mark of this type in set, or nil.
func (t *MarkType) IsInSet(set []*Mark) *Mark {
	for _, m := range set {
		if m.Type == t {
			return m
		}
	}
	return nil
}

func describeExpr(expr string) string {
	if expr == "" {
		return "no content"
	}
	return expr
}

func describeFragment(f *Fragment) string {
	if f.ChildCount() == 0 {
		return "nothing"
	}
	names := make([]string, 0, f.ChildCount())
	for _, n := range f.nodes {
		names = append(names, n.typ.Name)
	}
	return strings.Join(names, " ")
}
