package model

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema(t *testing.T) *Schema {
	t.Helper()
	s := NewSchema()
	specs := []NodeSpec{
		{Name: "doc", Content: "block+"},
		{Name: "paragraph", Content: "inline*", Group: "block"},
		{Name: "heading", Content: "inline*", Group: "block", Defining: true, Attrs: map[string]AttrSpec{
			"level":     {Default: 1, Validate: Number},
			"collapsed": {Validate: Optional(Bool), Presentational: true},
		}},
		{Name: "blockquote", Content: "block+", Group: "block"},
		{Name: "horizontal_rule", Group: "block"},
		{Name: "text", Group: "inline"},
		{Name: "hard_break", Group: "inline", Inline: true},
	}
	for _, spec := range specs {
		_, err := s.Register(spec)
		require.NoError(t, err)
	}
	for _, name := range []string{"strong", "em"} {
		_, err := s.RegisterMark(MarkSpec{Name: name})
		require.NoError(t, err)
	}
	require.NoError(t, s.Seal())
	return s
}

func mustNode(t *testing.T, s *Schema, name string, attrs Attrs, children ...*Node) *Node {
	t.Helper()
	n, err := s.Node(name, attrs, children...)
	require.NoError(t, err)
	return n
}

func TestSchemaRegistry(t *testing.T) {
	s := NewSchema()
	_, err := s.Register(NodeSpec{Name: "paragraph", Content: "text*"})
	require.NoError(t, err)

	_, err = s.Register(NodeSpec{Name: "paragraph"})
	var dup *DuplicateTypeError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "paragraph", dup.Name)

	_, err = s.Register(NodeSpec{Name: "doc", Content: "paragraph+"})
	require.NoError(t, err)
	_, err = s.Register(NodeSpec{Name: "text"})
	require.NoError(t, err)
	require.NoError(t, s.Seal())

	_, err = s.Register(NodeSpec{Name: "quote"})
	assert.True(t, errors.Is(err, ErrSchemaSealed))
	_, err = s.RegisterMark(MarkSpec{Name: "strong"})
	assert.True(t, errors.Is(err, ErrSchemaSealed))
}

func TestSealRejectsUnknownContentName(t *testing.T) {
	s := NewSchema()
	for _, spec := range []NodeSpec{
		{Name: "doc", Content: "section+"},
		{Name: "text"},
	} {
		_, err := s.Register(spec)
		require.NoError(t, err)
	}
	err := s.Seal()
	var unknown *UnknownTypeError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "section", unknown.Name)
	assert.False(t, s.Sealed())
}

func TestValidateAttrs(t *testing.T) {
	s := testSchema(t)

	attrs, err := s.ValidateAttrs("heading", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, attrs.Int("level"))
	assert.Nil(t, attrs["collapsed"])

	_, err = s.ValidateAttrs("heading", Attrs{"level": "two"})
	var invalid *AttributeValidationError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "level", invalid.Attr)

	_, err = s.ValidateAttrs("heading", Attrs{"color": "red"})
	require.True(t, errors.As(err, &invalid))
	assert.True(t, errors.Is(err, ErrUnknownAttribute))

	_, err = s.ValidateAttrs("missing", nil)
	var unknown *UnknownTypeError
	assert.True(t, errors.As(err, &unknown))
}

func TestContentExpressions(t *testing.T) {
	s := NewSchema()
	for _, spec := range []NodeSpec{
		{Name: "doc", Content: "title (paragraph | quote){1,2} note?"},
		{Name: "title", Content: "text*"},
		{Name: "paragraph", Content: "text*"},
		{Name: "quote", Content: "paragraph+"},
		{Name: "note", Content: "text*"},
		{Name: "text"},
	} {
		_, err := s.Register(spec)
		require.NoError(t, err)
	}
	require.NoError(t, s.Seal())

	p := mustNode(t, s, "paragraph", nil)
	title := mustNode(t, s, "title", nil)
	note := mustNode(t, s, "note", nil)
	quote := mustNode(t, s, "quote", nil, p)
	doc, _ := s.NodeType("doc")

	cases := []struct {
		name  string
		nodes []*Node
		ok    bool
	}{
		{"title only", []*Node{title}, false},
		{"one paragraph", []*Node{title, p}, true},
		{"paragraph and quote", []*Node{title, p, quote, note}, true},
		{"three blocks", []*Node{title, p, p, p}, false},
		{"missing title", []*Node{p}, false},
		{"note twice", []*Node{title, p, note, note}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.ok, doc.ContentMatch().MatchFragment(NewFragment(tc.nodes...)))
		})
	}

	_, err := s.Node("quote", nil)
	var contentErr *ContentError
	assert.True(t, errors.As(err, &contentErr))
}

func TestPositionsAndResolve(t *testing.T) {
	s := testSchema(t)
	doc := mustNode(t, s, "doc", nil,
		mustNode(t, s, "paragraph", nil, s.Text("ab")),
		mustNode(t, s, "heading", Attrs{"level": 2}, s.Text("cd")),
	)
	assert.Equal(t, 8, doc.Content().Size())
	assert.Equal(t, 10, doc.NodeSize())

	r, err := doc.Resolve(2)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Depth)
	assert.Equal(t, "paragraph", r.Parent().Type().Name)
	assert.Equal(t, 1, r.ParentOffset)
	assert.Equal(t, 1, r.TextOffset())
	assert.Equal(t, 1, r.Start(1))
	assert.Equal(t, 3, r.End(1))
	assert.Equal(t, 0, r.Before(1))
	assert.Equal(t, 4, r.After(1))
	assert.Equal(t, "b", r.NodeAfter().Text())
	assert.Equal(t, "a", r.NodeBefore().Text())

	r, err = doc.Resolve(4)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Depth)
	assert.Equal(t, 1, r.Index(0))
	assert.Equal(t, "heading", r.NodeAfter().Type().Name)

	assert.Equal(t, "heading", doc.NodeAt(4).Type().Name)
	assert.Equal(t, "cd", doc.NodeAt(5).Text())

	_, err = doc.Resolve(9)
	assert.True(t, errors.Is(err, ErrOutOfRange))
}

func TestReplaceJoinsAcrossBlocks(t *testing.T) {
	s := testSchema(t)
	doc := mustNode(t, s, "doc", nil,
		mustNode(t, s, "paragraph", nil, s.Text("ab")),
		mustNode(t, s, "paragraph", nil, s.Text("cd")),
	)
	out, err := doc.Replace(2, 6, EmptySlice())
	require.NoError(t, err)
	want := mustNode(t, s, "doc", nil, mustNode(t, s, "paragraph", nil, s.Text("ad")))
	assert.True(t, want.Eq(out), out.String())
}

func TestReplaceWithOpenSliceRestoresDocument(t *testing.T) {
	s := testSchema(t)
	doc := mustNode(t, s, "doc", nil,
		mustNode(t, s, "paragraph", nil, s.Text("ab")),
		mustNode(t, s, "heading", nil, s.Text("cd")),
	)
	slice, err := doc.Slice(2, 6, false)
	require.NoError(t, err)
	assert.Equal(t, 1, slice.OpenStart)
	assert.Equal(t, 1, slice.OpenEnd)

	cut, err := doc.Replace(2, 6, EmptySlice())
	require.NoError(t, err)
	restored, err := cut.Replace(2, 2, slice)
	require.NoError(t, err)
	assert.True(t, doc.Eq(restored), restored.String())
}

func TestReplaceRejectsInvalidContent(t *testing.T) {
	s := testSchema(t)
	doc := mustNode(t, s, "doc", nil, mustNode(t, s, "paragraph", nil, s.Text("ab")))
	rule := mustNode(t, s, "horizontal_rule", nil)

	_, err := doc.Replace(1, 1, NewSlice(NewFragment(rule), 0, 0))
	var contentErr *ContentError
	assert.True(t, errors.As(err, &contentErr))

	_, err = doc.Replace(0, 4, EmptySlice())
	assert.True(t, errors.As(err, &contentErr), "doc requires at least one block")
}

func TestFragmentJoinsText(t *testing.T) {
	s := testSchema(t)
	strong, err := s.Mark("strong", nil)
	require.NoError(t, err)

	f := NewFragment(s.Text("a"), s.Text("b"), s.Text("c", strong), s.Text(""))
	assert.Equal(t, 2, f.ChildCount())
	assert.Equal(t, "ab", f.Child(0).Text())
	assert.Equal(t, 3, f.Size())
}

func TestTextBetween(t *testing.T) {
	s := testSchema(t)
	doc := mustNode(t, s, "doc", nil,
		mustNode(t, s, "paragraph", nil, s.Text("héllo")),
		mustNode(t, s, "paragraph", nil, s.Text("world")),
	)
	assert.Equal(t, "héllo\nworld", doc.TextBetween(0, doc.Content().Size(), "\n"))
	assert.Equal(t, "éll", doc.TextBetween(2, 5, ""))
}

func TestJSONRoundTrip(t *testing.T) {
	s := testSchema(t)
	em, err := s.Mark("em", nil)
	require.NoError(t, err)
	doc := mustNode(t, s, "doc", nil,
		mustNode(t, s, "heading", Attrs{"level": 3, "collapsed": true}, s.Text("Title", em)),
		mustNode(t, s, "blockquote", nil, mustNode(t, s, "paragraph", nil, s.Text("quoted"))),
	)
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	back, err := ParseNodeJSON(s, raw)
	require.NoError(t, err)
	assert.True(t, doc.Eq(back))
}

func TestWithoutPresentation(t *testing.T) {
	s := testSchema(t)
	doc := mustNode(t, s, "doc", nil, mustNode(t, s, "heading", Attrs{"collapsed": true}, s.Text("x")))
	plain := doc.WithoutPresentation()
	assert.Nil(t, plain.Child(0).Attr("collapsed"))
	assert.Equal(t, true, doc.Child(0).Attr("collapsed"))
}

func TestMarkSetOrdering(t *testing.T) {
	s := testSchema(t)
	strong, _ := s.Mark("strong", nil)
	em, _ := s.Mark("em", nil)
	set := em.AddToSet(nil)
	set = strong.AddToSet(set)
	require.Len(t, set, 2)
	assert.Equal(t, "strong", set[0].Type.Name)
	assert.Len(t, strong.RemoveFromSet(set), 1)
}
