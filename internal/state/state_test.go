package state

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehtisham-afzal/outline/internal/model"
	"github.com/ehtisham-afzal/outline/internal/transform"
)

func testSchema(t *testing.T) *model.Schema {
	t.Helper()
	s := model.NewSchema()
	for _, spec := range []model.NodeSpec{
		{Name: "doc", Content: "block+"},
		{Name: "paragraph", Content: "inline*", Group: "block"},
		{Name: "horizontal_rule", Group: "block"},
		{Name: "text", Group: "inline"},
	} {
		_, err := s.Register(spec)
		require.NoError(t, err)
	}
	require.NoError(t, s.Seal())
	return s
}

func testDoc(t *testing.T, s *model.Schema) *model.Node {
	t.Helper()
	p1, err := s.Node("paragraph", nil, s.Text("ab"))
	require.NoError(t, err)
	hr, err := s.Node("horizontal_rule", nil)
	require.NoError(t, err)
	p2, err := s.Node("paragraph", nil, s.Text("cd"))
	require.NoError(t, err)
	doc, err := s.Node("doc", nil, p1, hr, p2)
	require.NoError(t, err)
	return doc
}

func counterPlugin() *Plugin {
	return &Plugin{
		Key:  "changes",
		Init: func(*EditorState) any { return 0 },
		Apply: func(tr *Transaction, value any, _, _ *EditorState) any {
			if tr.DocChanged() {
				return value.(int) + 1
			}
			return value
		},
	}
}

func TestCreate(t *testing.T) {
	s := testSchema(t)
	st, err := Create(Config{Doc: testDoc(t, s), Plugins: []*Plugin{counterPlugin()}})
	require.NoError(t, err)
	assert.Equal(t, Cursor(1), st.Selection())
	assert.Equal(t, 0, st.PluginState("changes"))

	empty, err := Create(Config{Schema: s})
	require.NoError(t, err)
	assert.Equal(t, 1, empty.Doc().ChildCount())

	bad := Text(0, 0)
	_, err = Create(Config{Doc: testDoc(t, s), Selection: &bad})
	assert.Error(t, err)
}

func TestApplyEmptyTransactionKeepsSnapshot(t *testing.T) {
	s := testSchema(t)
	st, err := Create(Config{Doc: testDoc(t, s)})
	require.NoError(t, err)
	next, err := st.Apply(st.Tr())
	require.NoError(t, err)
	assert.Same(t, st, next)
}

func TestApplyTransaction(t *testing.T) {
	s := testSchema(t)
	st, err := Create(Config{Doc: testDoc(t, s), Plugins: []*Plugin{counterPlugin()}})
	require.NoError(t, err)

	tr := st.Tr()
	tr.SetSelection(Cursor(3))
	require.NoError(t, tr.InsertText("xx", 1, 1, nil))
	assert.Equal(t, Cursor(5), tr.Selection())

	next, err := st.Apply(tr)
	require.NoError(t, err)
	assert.Equal(t, "xxab", next.Doc().Child(0).TextContent())
	assert.Equal(t, "ab", st.Doc().Child(0).TextContent())
	assert.Equal(t, Cursor(5), next.Selection())
	assert.Equal(t, 1, next.PluginState("changes"))

	selOnly := next.Tr().SetSelection(Cursor(9))
	after, err := next.Apply(selOnly)
	require.NoError(t, err)
	assert.Same(t, next.Doc(), after.Doc())
	assert.Equal(t, 1, after.PluginState("changes"))
}

func TestApplyRejectsInvalidSelection(t *testing.T) {
	s := testSchema(t)
	st, err := Create(Config{Doc: testDoc(t, s)})
	require.NoError(t, err)

	tr := st.Tr()
	require.NoError(t, tr.InsertText("z", 1, 1, nil))
	tr.SetSelection(Text(0, 0))
	next, err := st.Apply(tr)
	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, -1, rejected.Step)
	assert.Same(t, st, next)
}

func TestApplyReplaysForeignTransaction(t *testing.T) {
	s := testSchema(t)
	st, err := Create(Config{Doc: testDoc(t, s)})
	require.NoError(t, err)

	stale := st.Tr()
	require.NoError(t, stale.Delete(6, 7))

	tr := st.Tr()
	require.NoError(t, tr.Delete(0, 4))
	moved, err := st.Apply(tr)
	require.NoError(t, err)

	_, err = moved.Apply(stale)
	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, 0, rejected.Step)
	assert.Equal(t, 2, moved.Doc().ChildCount())
}

func TestApplyJSON(t *testing.T) {
	s := testSchema(t)
	st, err := Create(Config{Doc: testDoc(t, s)})
	require.NoError(t, err)

	tr := st.Tr()
	require.NoError(t, tr.InsertText("!", 6, 6, nil))
	raw, err := transform.StepsToJSON(tr.Steps)
	require.NoError(t, err)

	next, applied, err := st.ApplyJSON(json.RawMessage(raw))
	require.NoError(t, err)
	assert.Len(t, applied.Steps, 1)
	assert.Equal(t, "!cd", next.Doc().Child(2).TextContent())

	_, _, err = st.ApplyJSON(json.RawMessage(`[{"stepType":"replace","from":50,"to":51}]`))
	var rejected *RejectedError
	assert.True(t, errors.As(err, &rejected))
}

func TestSelectionSearch(t *testing.T) {
	s := testSchema(t)
	doc := testDoc(t, s)

	assert.Equal(t, Selection{Kind: NodeSelection, Anchor: 4, Head: 5}, Near(doc.MustResolve(4), 1))
	sel, ok := FindFrom(doc.MustResolve(4), -1, true)
	require.True(t, ok)
	assert.Equal(t, Cursor(3), sel)
	assert.Equal(t, Cursor(8), AtEnd(doc))
	assert.Equal(t, Cursor(1), AtStart(doc))

	node, err := NodeAt(doc, 4)
	require.NoError(t, err)
	assert.NoError(t, node.Validate(doc))
	assert.Equal(t, "horizontal_rule", node.Node(doc).Type().Name)
	assert.Error(t, Text(4, 4).Validate(doc))
	assert.NoError(t, All(doc).Validate(doc))
}

func TestSelectionMapsIntoDeletedContent(t *testing.T) {
	s := testSchema(t)
	st, err := Create(Config{Doc: testDoc(t, s)})
	require.NoError(t, err)

	tr := st.Tr()
	node, err := NodeAt(st.Doc(), 4)
	require.NoError(t, err)
	tr.SetSelection(node)
	require.NoError(t, tr.Delete(4, 5))
	sel := tr.Selection()
	assert.Equal(t, TextSelection, sel.Kind)
	assert.NoError(t, sel.Validate(tr.Doc))
}
