package markdown

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehtisham-afzal/outline/internal/model"
)

type codec struct {
	schema     *model.Schema
	parser     *Parser
	serializer *Serializer
}

func newCodec(t *testing.T) *codec {
	t.Helper()
	noMarks := ""
	s := model.NewSchema()
	for _, spec := range []model.NodeSpec{
		{Name: "doc", Content: "block+"},
		{Name: "paragraph", Content: "inline*", Group: "block"},
		{Name: "heading", Content: "inline*", Group: "block", Defining: true, Attrs: map[string]model.AttrSpec{
			"level":     {Default: 1, Validate: model.Number},
			"collapsed": {Validate: model.Optional(model.Bool), Presentational: true},
		}},
		{Name: "blockquote", Content: "block+", Group: "block"},
		{Name: "code_block", Content: "text*", Marks: &noMarks, Group: "block", Code: true, Attrs: map[string]model.AttrSpec{
			"language": {Default: ""},
		}},
		{Name: "horizontal_rule", Group: "block"},
		{Name: "bullet_list", Content: "list_item+", Group: "block"},
		{Name: "list_item", Content: "paragraph block*", Defining: true},
		{Name: "text", Group: "inline"},
		{Name: "hard_break", Group: "inline", Inline: true},
	} {
		_, err := s.Register(spec)
		require.NoError(t, err)
	}
	for _, name := range []string{"strong", "em", "code_inline"} {
		_, err := s.RegisterMark(model.MarkSpec{Name: name, Code: name == "code_inline"})
		require.NoError(t, err)
	}
	require.NoError(t, s.Seal())

	nodes := map[string]NodeSerializer{
		"paragraph": func(st *SerializerState, node, _ *model.Node, _ int) {
			st.RenderInline(node)
			st.CloseBlock(node)
		},
		"heading": func(st *SerializerState, node, _ *model.Node, _ int) {
			st.Write(Repeat("#", node.Attrs().Int("level")) + " ")
			st.RenderInline(node)
			st.CloseBlock(node)
		},
		"blockquote": func(st *SerializerState, node, _ *model.Node, _ int) {
			st.WrapBlock("> ", "", node, func() { st.RenderContent(node) })
		},
		"code_block": func(st *SerializerState, node, _ *model.Node, _ int) {
			st.Write("```" + node.Attrs().String("language") + "\n")
			st.Text(node.TextContent(), false)
			st.EnsureNewLine()
			st.Write("```")
			st.CloseBlock(node)
		},
		"horizontal_rule": func(st *SerializerState, node, _ *model.Node, _ int) {
			st.Write("---")
			st.CloseBlock(node)
		},
		"bullet_list": func(st *SerializerState, node, _ *model.Node, _ int) {
			st.RenderList(node, "  ", func(int) string { return "- " })
		},
		"list_item": func(st *SerializerState, node, _ *model.Node, _ int) {
			st.RenderContent(node)
		},
		"hard_break": func(st *SerializerState, _, _ *model.Node, _ int) {
			st.Write("\\\n")
		},
	}
	codeMark := Delimited("`", "`", false)
	codeMark.NoEscape = true
	marks := map[string]MarkSerializer{
		"strong":      Delimited("**", "**", true),
		"em":          Delimited("*", "*", true),
		"code_inline": codeMark,
	}
	specs := map[string]ParseSpec{
		"paragraph": {Block: "paragraph"},
		"heading": {Block: "heading", GetAttrs: func(tok Token) model.Attrs {
			level, _ := strconv.Atoi(tok.Tag[1:])
			return model.Attrs{"level": level}
		}},
		"blockquote":  {Block: "blockquote"},
		"fence":       {Block: "code_block", NoCloseToken: true, GetAttrs: func(tok Token) model.Attrs { return model.Attrs{"language": tok.Info} }},
		"code_block":  {Block: "code_block", NoCloseToken: true},
		"hr":          {Node: "horizontal_rule"},
		"bullet_list": {Block: "bullet_list"},
		"list_item":   {Block: "list_item"},
		"hardbreak":   {Node: "hard_break"},
		"strong":      {Mark: "strong"},
		"em":          {Mark: "em"},
		"code_inline": {Mark: "code_inline", NoCloseToken: true},
	}
	return &codec{
		schema:     s,
		parser:     NewParser(s, NewTokenizer(), specs),
		serializer: NewSerializer(nodes, marks),
	}
}

func (c *codec) node(t *testing.T, name string, attrs model.Attrs, children ...*model.Node) *model.Node {
	t.Helper()
	n, err := c.schema.Node(name, attrs, children...)
	require.NoError(t, err)
	return n
}

func (c *codec) mark(t *testing.T, name string) *model.Mark {
	t.Helper()
	m, err := c.schema.Mark(name, nil)
	require.NoError(t, err)
	return m
}

func (c *codec) sampleDoc(t *testing.T) *model.Node {
	s := c.schema
	return c.node(t, "doc", nil,
		c.node(t, "heading", model.Attrs{"level": 1, "collapsed": true}, s.Text("Title")),
		c.node(t, "paragraph", nil,
			s.Text("plain "),
			s.Text("bold", c.mark(t, "strong")),
			s.Text(" and "),
			s.Text("code", c.mark(t, "code_inline")),
			s.Text(" end"),
		),
		c.node(t, "blockquote", nil, c.node(t, "paragraph", nil, s.Text("quoted"))),
		c.node(t, "code_block", model.Attrs{"language": "go"}, s.Text("x := 1\ny := 2")),
		c.node(t, "horizontal_rule", nil),
		c.node(t, "bullet_list", nil,
			c.node(t, "list_item", nil, c.node(t, "paragraph", nil, s.Text("one"))),
			c.node(t, "list_item", nil, c.node(t, "paragraph", nil, s.Text("two"))),
		),
		c.node(t, "paragraph", nil, s.Text("line"), c.node(t, "hard_break", nil), s.Text("next")),
	)
}

func TestSerialize(t *testing.T) {
	c := newCodec(t)
	want := "# Title\n\n" +
		"plain **bold** and `code` end\n\n" +
		"> quoted\n\n" +
		"```go\nx := 1\ny := 2\n```\n\n" +
		"---\n\n" +
		"- one\n- two\n\n" +
		"line\\\nnext"
	assert.Equal(t, want, c.serializer.Serialize(c.sampleDoc(t)))
}

func TestRoundTripIgnoresPresentationalAttrs(t *testing.T) {
	c := newCodec(t)
	doc := c.sampleDoc(t)
	parsed, warnings, err := c.parser.Parse(c.serializer.Serialize(doc))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.True(t, doc.WithoutPresentation().Eq(parsed), "parsed: %s", parsed)
	assert.Nil(t, parsed.Child(0).Attr("collapsed"))
	assert.False(t, doc.Eq(parsed))
}

func TestSerializeExpelsWhitespaceFromMarks(t *testing.T) {
	c := newCodec(t)
	s := c.schema
	doc := c.node(t, "doc", nil, c.node(t, "paragraph", nil,
		s.Text("a"),
		s.Text(" b ", c.mark(t, "em")),
		s.Text("c"),
	))
	assert.Equal(t, "a *b* c", c.serializer.Serialize(doc))
}

func TestEscape(t *testing.T) {
	assert.Equal(t, `a\*b_c d\_`, Escape("a*b_c d_", false))
	assert.Equal(t, `\# not heading`, Escape("# not heading", true))
	assert.Equal(t, `1\. item`, Escape("1. item", true))
	assert.Equal(t, `\- x`, Escape("- x", true))
	assert.Equal(t, `- x`, Escape("- x", false))
	assert.Equal(t, `\[link\]`, Escape("[link]", false))
}

func TestEscapedTextRoundTrips(t *testing.T) {
	c := newCodec(t)
	doc := c.node(t, "doc", nil,
		c.node(t, "paragraph", nil, c.schema.Text("# not a *heading* [x]")),
	)
	md := c.serializer.Serialize(doc)
	parsed, _, err := c.parser.Parse(md)
	require.NoError(t, err)
	assert.True(t, doc.Eq(parsed), "markdown %q parsed as %s", md, parsed)
}

func TestTokenize(t *testing.T) {
	tokens := NewTokenizer().Tokenize([]byte("## Title\n\nsome *text*\n"))
	require.Len(t, tokens, 6)
	assert.Equal(t, "heading_open", tokens[0].Type)
	assert.Equal(t, "h2", tokens[0].Tag)
	assert.Equal(t, 1, tokens[0].Line)
	assert.Equal(t, "inline", tokens[1].Type)
	assert.Equal(t, []Token{{Type: "text", Content: "Title"}}, tokens[1].Children)
	assert.Equal(t, "heading_close", tokens[2].Type)
	assert.Equal(t, "paragraph_open", tokens[3].Type)
	assert.Equal(t, 3, tokens[3].Line)

	var types []string
	for _, child := range tokens[4].Children {
		types = append(types, child.Type)
	}
	assert.Equal(t, []string{"text", "em_open", "text", "em_close"}, types)
}

func TestParseDegradesUnknownTokens(t *testing.T) {
	c := newCodec(t)
	doc, warnings, err := c.parser.Parse("<div>hi</div>\n\nsee ![pic](a.png) and ~~gone~~\n")
	require.NoError(t, err)
	require.Equal(t, 2, doc.ChildCount())
	assert.Equal(t, "paragraph", doc.Child(0).Type().Name)
	assert.Equal(t, "<div>hi</div>", doc.Child(0).TextContent())
	assert.Equal(t, "see pic and gone", doc.Child(1).TextContent())

	var kinds []string
	for _, w := range warnings {
		kinds = append(kinds, w.Token)
	}
	assert.Equal(t, []string{"html_block", "image", "s_open"}, kinds)
	assert.Equal(t, 1, warnings[0].Line)
}

func TestParseEmptyInput(t *testing.T) {
	c := newCodec(t)
	doc, warnings, err := c.parser.Parse("")
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Equal(t, 1, doc.ChildCount())
	assert.Equal(t, "paragraph", doc.Child(0).Type().Name)
}
