package markdown

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/ehtisham-afzal/outline/internal/model"
)

// ParseSpec maps one token name to the schema. Exactly one of Block, Node
// and Mark is set unless Ignore is.
type ParseSpec struct {
	// Block wraps the content between "<name>_open" and "<name>_close".
	Block string
	// Node creates a leaf node from a single token.
	Node string
	// Mark applies a mark to the content between open and close tokens.
	Mark string
	// GetAttrs derives attributes from the opening token.
	GetAttrs func(tok Token) model.Attrs
	// NoCloseToken marks a Block or Mark produced by a single token whose
	// Content becomes the text inside.
	NoCloseToken bool
	// Ignore drops the token but keeps any content between its pair.
	Ignore bool
}

// Warning reports input that could not be represented exactly and was
// degraded to paragraphs or plain text.
type Warning struct {
	Token   string `json:"token"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	if w.Line > 0 {
		return fmt.Sprintf("line %d: %s: %s", w.Line, w.Token, w.Message)
	}
	return w.Token + ": " + w.Message
}

// Parser builds documents from markdown text.
type Parser struct {
	schema    *model.Schema
	tokenizer *Tokenizer
	specs     map[string]ParseSpec
	fallback  *model.NodeType
}

// NewParser returns a parser for schema. Unknown block content degrades to
// the schema's "paragraph" type.
func NewParser(schema *model.Schema, tokenizer *Tokenizer, specs map[string]ParseSpec) *Parser {
	p := &Parser{schema: schema, tokenizer: tokenizer, specs: specs}
	if t, err := schema.NodeType("paragraph"); err == nil {
		p.fallback = t
	}
	return p
}

// Parse tokenizes text and builds a checked document.
func (p *Parser) Parse(text string) (*model.Node, []Warning, error) {
	return p.ParseTokens(p.tokenizer.Tokenize([]byte(text)))
}

// ParseTokens builds a checked document from an already tokenized stream.
func (p *Parser) ParseTokens(tokens []Token) (*model.Node, []Warning, error) {
	st := &parseState{p: p}
	st.open(p.schema.TopNodeType(), nil)
	if err := st.run(tokens); err != nil {
		return nil, st.warnings, err
	}
	for len(st.stack) > 1 {
		st.close()
	}
	frame := st.stack[0]
	doc, err := frame.typ.CreateFilled(frame.attrs, st.normalize(frame), nil)
	if err != nil {
		return nil, st.warnings, errors.Wrap(err, "build document")
	}
	if err := doc.Check(); err != nil {
		return nil, st.warnings, errors.Wrap(err, "check document")
	}
	return doc, st.warnings, nil
}

type frame struct {
	typ     *model.NodeType
	attrs   model.Attrs
	content []*model.Node
	token   string
}

type parseState struct {
	p        *Parser
	stack    []*frame
	marks    []*model.Mark
	warnings []Warning
	line     int
}

func (st *parseState) top() *frame { return st.stack[len(st.stack)-1] }

func (st *parseState) warn(tok Token, format string, args ...any) {
	line := tok.Line
	if line == 0 {
		line = st.line
	}
	st.warnings = append(st.warnings, Warning{Token: tok.Type, Line: line, Message: fmt.Sprintf(format, args...)})
}

func tokenName(typ string) string {
	if name, ok := strings.CutSuffix(typ, "_open"); ok {
		return name
	}
	if name, ok := strings.CutSuffix(typ, "_close"); ok {
		return name
	}
	return typ
}

func (st *parseState) run(tokens []Token) error {
	for _, tok := range tokens {
		if tok.Line > 0 {
			st.line = tok.Line
		}
		switch tok.Type {
		case "inline":
			if err := st.run(tok.Children); err != nil {
				return err
			}
			continue
		case "text":
			st.addText(tok.Content)
			continue
		}
		spec, ok := st.p.specs[tokenName(tok.Type)]
		if !ok {
			if tok.Type == "softbreak" {
				st.addText(" ")
				continue
			}
			st.unknown(tok)
			continue
		}
		if err := st.handle(tok, spec); err != nil {
			return err
		}
	}
	return nil
}

func (st *parseState) attrs(tok Token, spec ParseSpec) model.Attrs {
	if spec.GetAttrs == nil {
		return nil
	}
	return spec.GetAttrs(tok)
}

func (st *parseState) handle(tok Token, spec ParseSpec) error {
	switch {
	case spec.Ignore:
		return nil
	case spec.Block != "":
		typ, err := st.p.schema.NodeType(spec.Block)
		if err != nil {
			return err
		}
		switch {
		case spec.NoCloseToken:
			st.open(typ, st.attrs(tok, spec)).token = tok.Type
			st.addText(strings.TrimSuffix(tok.Content, "\n"))
			st.close()
		case tok.Nesting > 0:
			st.open(typ, st.attrs(tok, spec)).token = tok.Type
		case len(st.stack) > 1:
			st.close()
		}
	case spec.Node != "":
		typ, err := st.p.schema.NodeType(spec.Node)
		if err != nil {
			return err
		}
		var marks []*model.Mark
		if typ.IsInline() {
			marks = st.allowedMarks()
		}
		node, err := typ.CreateFilled(st.attrs(tok, spec), nil, marks)
		if err != nil {
			st.warn(tok, "dropped: %v", err)
			return nil
		}
		st.push(node)
	case spec.Mark != "":
		mt, err := st.p.schema.MarkType(spec.Mark)
		if err != nil {
			return err
		}
		if tok.Nesting < 0 {
			st.marks = model.RemoveMarkType(st.marks, mt)
			return nil
		}
		mark, err := mt.Create(st.attrs(tok, spec))
		if err != nil {
			st.warn(tok, "mark dropped: %v", err)
			if spec.NoCloseToken {
				st.addText(tok.Content)
			}
			return nil
		}
		st.marks = mark.AddToSet(st.marks)
		if spec.NoCloseToken {
			st.addText(tok.Content)
			st.marks = model.RemoveMarkType(st.marks, mt)
		}
	}
	return nil
}

// unknown degrades a token no spec covers. Pairs lose their wrapper and
// keep their content; leaf tokens with content become text, wrapped in a
// paragraph at block level.
func (st *parseState) unknown(tok Token) {
	switch {
	case tok.Nesting < 0:
		return
	case tok.Nesting > 0:
		st.warn(tok, "unsupported block, content kept")
	case tok.Content == "":
		st.warn(tok, "unsupported token dropped")
	case st.top().typ.InlineContent():
		st.warn(tok, "unsupported inline token kept as text")
		st.addText(tok.Content)
	case st.p.fallback != nil:
		st.warn(tok, "unsupported block kept as paragraph")
		st.open(st.p.fallback, nil)
		st.addText(strings.TrimSpace(tok.Content))
		st.close()
	default:
		st.warn(tok, "unsupported token dropped")
	}
}

func (st *parseState) open(typ *model.NodeType, attrs model.Attrs) *frame {
	f := &frame{typ: typ, attrs: attrs}
	st.stack = append(st.stack, f)
	return f
}

func (st *parseState) push(node *model.Node) {
	top := st.top()
	top.content = append(top.content, node)
}

func (st *parseState) allowedMarks() []*model.Mark {
	top := st.top().typ
	var out []*model.Mark
	for _, m := range st.marks {
		if top.AllowsMarkType(m.Type) {
			out = append(out, m)
		}
	}
	return out
}

func (st *parseState) addText(text string) {
	if text == "" {
		return
	}
	st.push(st.p.schema.Text(text, st.allowedMarks()...))
}

// close finishes the innermost node. A node that cannot be built from its
// content is unwrapped into its parent.
func (st *parseState) close() {
	f := st.top()
	st.stack = st.stack[:len(st.stack)-1]
	node, err := f.typ.CreateFilled(f.attrs, st.normalize(f), nil)
	if err != nil {
		st.warnings = append(st.warnings, Warning{Token: f.token, Line: st.line, Message: fmt.Sprintf("%s unwrapped: %v", f.typ.Name, errors.Cause(err))})
		parent := st.top()
		parent.content = append(parent.content, f.content...)
		return
	}
	st.push(node)
}

// normalize wraps inline runs in paragraphs when f holds block content.
func (st *parseState) normalize(f *frame) *model.Fragment {
	if f.typ.InlineContent() || st.p.fallback == nil {
		return model.NewFragment(f.content...)
	}
	var out, run []*model.Node
	flush := func() {
		if len(run) == 0 {
			return
		}
		if p, err := st.p.fallback.Create(nil, model.NewFragment(run...), nil); err == nil {
			out = append(out, p)
		}
		run = nil
	}
	for _, n := range f.content {
		if n.IsInline() {
			run = append(run, n)
			continue
		}
		flush()
		out = append(out, n)
	}
	flush()
	return model.NewFragment(out...)
}
