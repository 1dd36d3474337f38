package markdown

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Token is one entry of the flat token stream. Block tokens come in
// "<name>_open"/"<name>_close" pairs with Nesting 1/-1; leaf tokens have
// Nesting 0. Inline content is carried by an "inline" token whose Children
// hold the inline stream.
type Token struct {
	Type     string            `json:"type"`
	Tag      string            `json:"tag,omitempty"`
	Nesting  int               `json:"nesting"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Info     string            `json:"info,omitempty"`
	Content  string            `json:"content,omitempty"`
	Markup   string            `json:"markup,omitempty"`
	Line     int               `json:"line,omitempty"`
	Children []Token           `json:"children,omitempty"`
}

// Attr returns the named attribute of the token, or "".
func (t Token) Attr(name string) string { return t.Attrs[name] }

// Tokenizer turns markdown text into tokens.
type Tokenizer struct {
	md goldmark.Markdown
}

// NewTokenizer returns a CommonMark tokenizer with strikethrough support.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{md: goldmark.New(goldmark.WithExtensions(extension.Strikethrough))}
}

// Tokenize parses src and flattens the syntax tree.
func (t *Tokenizer) Tokenize(src []byte) []Token {
	doc := t.md.Parser().Parse(text.NewReader(src))
	w := &tokenWalker{src: src}
	for child := doc.FirstChild(); child != nil; child = child.NextSibling() {
		w.block(child)
	}
	return w.out
}

type tokenWalker struct {
	src []byte
	out []Token
}

func (w *tokenWalker) emit(tok Token) { w.out = append(w.out, tok) }

func (w *tokenWalker) line(n ast.Node) int {
	lines := n.Lines()
	if lines == nil || lines.Len() == 0 {
		return 0
	}
	return bytes.Count(w.src[:lines.At(0).Start], []byte{'\n'}) + 1
}

func (w *tokenWalker) wrap(name, tag string, attrs map[string]string, n ast.Node, inner func()) {
	w.emit(Token{Type: name + "_open", Tag: tag, Nesting: 1, Attrs: attrs, Line: w.line(n)})
	inner()
	w.emit(Token{Type: name + "_close", Tag: tag, Nesting: -1})
}

func (w *tokenWalker) children(n ast.Node) {
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		w.block(child)
	}
}

func (w *tokenWalker) block(n ast.Node) {
	switch node := n.(type) {
	case *ast.Heading:
		tag := "h" + strconv.Itoa(node.Level)
		w.wrap("heading", tag, nil, n, func() { w.inline(n) })
	case *ast.Paragraph, *ast.TextBlock:
		w.wrap("paragraph", "p", nil, n, func() { w.inline(n) })
	case *ast.Blockquote:
		w.wrap("blockquote", "blockquote", nil, n, func() { w.children(n) })
	case *ast.List:
		if node.IsOrdered() {
			w.wrap("ordered_list", "ol", map[string]string{"start": strconv.Itoa(node.Start)}, n, func() { w.children(n) })
		} else {
			w.wrap("bullet_list", "ul", map[string]string{"marker": string(node.Marker)}, n, func() { w.children(n) })
		}
	case *ast.ListItem:
		w.wrap("list_item", "li", nil, n, func() { w.children(n) })
	case *ast.FencedCodeBlock:
		w.emit(Token{Type: "fence", Tag: "code", Info: string(node.Language(w.src)), Content: w.lines(n), Markup: "```", Line: w.line(n)})
	case *ast.CodeBlock:
		w.emit(Token{Type: "code_block", Tag: "code", Content: w.lines(n), Line: w.line(n)})
	case *ast.ThematicBreak:
		w.emit(Token{Type: "hr", Tag: "hr", Markup: "---"})
	case *ast.HTMLBlock:
		content := w.lines(n)
		if node.HasClosure() {
			content += string(node.ClosureLine.Value(w.src))
		}
		w.emit(Token{Type: "html_block", Content: content, Line: w.line(n)})
	default:
		w.emit(Token{Type: strings.ToLower(n.Kind().String()), Line: w.line(n)})
	}
}

func (w *tokenWalker) lines(n ast.Node) string {
	var b bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(w.src))
	}
	return b.String()
}

func (w *tokenWalker) inline(n ast.Node) {
	tok := Token{Type: "inline", Content: strings.TrimSpace(w.lines(n)), Line: w.line(n)}
	iw := &tokenWalker{src: w.src}
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		iw.inlineNode(child)
	}
	tok.Children = iw.out
	w.emit(tok)
}

func (w *tokenWalker) inlineChildren(n ast.Node) {
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		w.inlineNode(child)
	}
}

func (w *tokenWalker) inlineNode(n ast.Node) {
	switch node := n.(type) {
	case *ast.Text:
		w.text(node.Segment.Value(w.src), node.IsRaw())
		switch {
		case node.HardLineBreak():
			w.emit(Token{Type: "hardbreak", Tag: "br"})
		case node.SoftLineBreak():
			w.emit(Token{Type: "softbreak"})
		}
	case *ast.String:
		w.text(node.Value, node.IsRaw())
	case *ast.Emphasis:
		name, markup := "em", "*"
		if node.Level >= 2 {
			name, markup = "strong", "**"
		}
		w.emit(Token{Type: name + "_open", Nesting: 1, Markup: markup})
		w.inlineChildren(n)
		w.emit(Token{Type: name + "_close", Nesting: -1, Markup: markup})
	case *east.Strikethrough:
		w.emit(Token{Type: "s_open", Nesting: 1, Markup: "~~"})
		w.inlineChildren(n)
		w.emit(Token{Type: "s_close", Nesting: -1, Markup: "~~"})
	case *ast.CodeSpan:
		var b bytes.Buffer
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				b.Write(t.Segment.Value(w.src))
			}
		}
		w.emit(Token{Type: "code_inline", Content: b.String(), Markup: "`"})
	case *ast.Link:
		attrs := map[string]string{"href": string(node.Destination)}
		if len(node.Title) > 0 {
			attrs["title"] = string(node.Title)
		}
		w.emit(Token{Type: "link_open", Tag: "a", Nesting: 1, Attrs: attrs})
		w.inlineChildren(n)
		w.emit(Token{Type: "link_close", Tag: "a", Nesting: -1})
	case *ast.AutoLink:
		url := string(node.URL(w.src))
		w.emit(Token{Type: "link_open", Tag: "a", Nesting: 1, Attrs: map[string]string{"href": url}, Markup: "autolink"})
		w.emit(Token{Type: "text", Content: string(node.Label(w.src))})
		w.emit(Token{Type: "link_close", Tag: "a", Nesting: -1, Markup: "autolink"})
	case *ast.Image:
		alt := &tokenWalker{src: w.src}
		alt.inlineChildren(n)
		var b strings.Builder
		for _, t := range alt.out {
			b.WriteString(t.Content)
		}
		attrs := map[string]string{"src": string(node.Destination), "alt": b.String()}
		if len(node.Title) > 0 {
			attrs["title"] = string(node.Title)
		}
		w.emit(Token{Type: "image", Tag: "img", Attrs: attrs, Content: b.String()})
	case *ast.RawHTML:
		var b bytes.Buffer
		for i := 0; i < node.Segments.Len(); i++ {
			seg := node.Segments.At(i)
			b.Write(seg.Value(w.src))
		}
		w.emit(Token{Type: "html_inline", Content: b.String()})
	default:
		w.emit(Token{Type: strings.ToLower(n.Kind().String())})
		w.inlineChildren(n)
	}
}

func (w *tokenWalker) text(value []byte, raw bool) {
	if len(value) == 0 {
		return
	}
	if !raw {
		value = util.UnescapePunctuations(value)
		value = util.ResolveNumericReferences(value)
		value = util.ResolveEntityNames(value)
	}
	if n := len(w.out); n > 0 && w.out[n-1].Type == "text" {
		w.out[n-1].Content += string(value)
		return
	}
	w.emit(Token{Type: "text", Content: string(value)})
}
