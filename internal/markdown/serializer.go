// Package markdown converts documents to and from markdown text.
package markdown

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/ehtisham-afzal/outline/internal/model"
)

// NodeSerializer writes one node.
type NodeSerializer func(st *SerializerState, node, parent *model.Node, index int)

// MarkSerializer describes how a mark opens and closes.
type MarkSerializer struct {
	Open  func(st *SerializerState, mark *model.Mark, parent *model.Node, index int) string
	Close func(st *SerializerState, mark *model.Mark, parent *model.Node, index int) string
	// ExpelEnclosingWhitespace moves leading and trailing whitespace of the
	// marked text outside the delimiters.
	ExpelEnclosingWhitespace bool
	// NoEscape writes the marked text verbatim. Such a mark must rank last.
	NoEscape bool
}

// Delimited returns a mark serializer with fixed delimiters.
func Delimited(open, close string, expel bool) MarkSerializer {
	return MarkSerializer{
		Open:                     func(*SerializerState, *model.Mark, *model.Node, int) string { return open },
		Close:                    func(*SerializerState, *model.Mark, *model.Node, int) string { return close },
		ExpelEnclosingWhitespace: expel,
	}
}

// Serializer renders documents with per-type rules.
type Serializer struct {
	nodes map[string]NodeSerializer
	marks map[string]MarkSerializer
	// TightLists renders list items without blank lines between them.
	TightLists bool
}

func NewSerializer(nodes map[string]NodeSerializer, marks map[string]MarkSerializer) *Serializer {
	return &Serializer{nodes: nodes, marks: marks, TightLists: true}
}

// Serialize renders the content of doc.
func (s *Serializer) Serialize(doc *model.Node) string {
	st := &SerializerState{s: s}
	st.RenderContent(doc)
	return st.out.String()
}

// SerializerState accumulates output while rendering.
type SerializerState struct {
	s            *Serializer
	out          strings.Builder
	delim        string
	closed       *model.Node
	inTightList  bool
	atBlockStart bool

	// InAutolink is set while rendering the text of an autolink.
	InAutolink bool
}

func (st *SerializerState) atBlank() bool {
	str := st.out.String()
	return str == "" || strings.HasSuffix(str, "\n")
}

func (st *SerializerState) flushClose(size int) {
	if st.closed == nil {
		return
	}
	if !st.atBlank() {
		st.out.WriteString("\n")
	}
	if size > 1 {
		delimMin := strings.TrimRightFunc(st.delim, unicode.IsSpace)
		for i := 1; i < size; i++ {
			st.out.WriteString(delimMin + "\n")
		}
	}
	st.closed = nil
}

// Write adds content, first closing any pending block and emitting the
// current line prefix at the start of a line.
func (st *SerializerState) Write(content string) {
	st.flushClose(2)
	if st.delim != "" && st.atBlank() {
		st.out.WriteString(st.delim)
	}
	st.out.WriteString(content)
}

// CloseBlock marks node as finished; separating blank lines are written
// lazily when more output follows.
func (st *SerializerState) CloseBlock(node *model.Node) { st.closed = node }

// EnsureNewLine starts a new line unless the output is already at one.
func (st *SerializerState) EnsureNewLine() {
	if !st.atBlank() {
		st.out.WriteString("\n")
	}
}

// WrapBlock renders fn with delim prefixed to every line; firstDelim, when
// non-empty, replaces it on the first line.
func (st *SerializerState) WrapBlock(delim, firstDelim string, node *model.Node, fn func()) {
	old := st.delim
	if firstDelim == "" {
		firstDelim = delim
	}
	st.Write(firstDelim)
	st.delim += delim
	fn()
	st.delim = old
	st.CloseBlock(node)
}

// Text writes text line by line, escaping markdown syntax unless escape is
// false.
func (st *SerializerState) Text(text string, escape bool) {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		st.Write("")
		if escape {
			line = Escape(line, st.atBlockStart)
		}
		st.out.WriteString(line)
		if i != len(lines)-1 {
			st.out.WriteString("\n")
		}
	}
}

// Render writes node with the rule registered for its type.
func (st *SerializerState) Render(node, parent *model.Node, index int) {
	if fn, ok := st.s.nodes[node.Type().Name]; ok {
		fn(st, node, parent, index)
		return
	}
	switch {
	case node.IsText():
		st.Text(node.Text(), !st.InAutolink)
	case node.InlineContent():
		st.RenderInline(node)
		st.CloseBlock(node)
	default:
		st.RenderContent(node)
	}
}

// RenderContent renders every child of parent as a block.
func (st *SerializerState) RenderContent(parent *model.Node) {
	parent.ForEach(func(child *model.Node, _, i int) {
		st.Render(child, parent, i)
	})
}

func (st *SerializerState) markSerializer(m *model.Mark) (MarkSerializer, bool) {
	ms, ok := st.s.marks[m.Type.Name]
	return ms, ok
}

func (st *SerializerState) markString(m *model.Mark, open bool, parent *model.Node, index int) string {
	ms, ok := st.markSerializer(m)
	if !ok {
		return ""
	}
	if open {
		return ms.Open(st, m, parent, index)
	}
	return ms.Close(st, m, parent, index)
}

var (
	leadingSpace  = regexp.MustCompile(`^(\s*)([\s\S]*)$`)
	trailingSpace = regexp.MustCompile(`^([\s\S]*?)(\s*)$`)
)

// RenderInline renders the inline children of parent, opening and closing
// mark delimiters as the mark set changes between nodes.
func (st *SerializerState) RenderInline(parent *model.Node) {
	st.atBlockStart = true
	var active []*model.Mark
	trailing := ""
	expels := func(m *model.Mark) bool {
		ms, ok := st.markSerializer(m)
		return ok && ms.ExpelEnclosingWhitespace
	}

	progress := func(node *model.Node, index int) {
		var marks []*model.Mark
		if node != nil {
			for _, m := range node.Marks() {
				if _, ok := st.markSerializer(m); ok {
					marks = append(marks, m)
				}
			}
		}
		if node != nil && node.Type().Name == "hard_break" {
			kept := marks[:0:0]
			for _, m := range marks {
				if index+1 < parent.ChildCount() {
					next := parent.Child(index + 1)
					if m.IsInSet(next.Marks()) && (!next.IsText() || strings.TrimSpace(next.Text()) != "") {
						kept = append(kept, m)
					}
				}
			}
			marks = kept
		}

		leading := trailing
		trailing = ""
		if node != nil && node.IsText() {
			opening := false
			for _, m := range marks {
				if expels(m) && !m.IsInSet(active) {
					opening = true
				}
			}
			if opening {
				parts := leadingSpace.FindStringSubmatch(node.Text())
				if parts[1] != "" {
					leading += parts[1]
					if parts[2] != "" {
						node = node.WithText(parts[2])
					} else {
						node = nil
						marks = active
					}
				}
			}
		}
		if node != nil && node.IsText() {
			closing := false
			for _, m := range marks {
				if expels(m) && (index == parent.ChildCount()-1 || !m.IsInSet(parent.Child(index+1).Marks())) {
					closing = true
				}
			}
			if closing {
				parts := trailingSpace.FindStringSubmatch(node.Text())
				if parts[2] != "" {
					trailing = parts[2]
					if parts[1] != "" {
						node = node.WithText(parts[1])
					} else {
						node = nil
						marks = active
					}
				}
			}
		}

		var inner *model.Mark
		if len(marks) > 0 {
			inner = marks[len(marks)-1]
		}
		noEsc := false
		if inner != nil {
			ms, _ := st.markSerializer(inner)
			noEsc = ms.NoEscape
		}
		length := len(marks)
		if noEsc {
			length--
		}

		keep := 0
		for keep < min(len(active), length) && marks[keep].Eq(active[keep]) {
			keep++
		}
		for keep < len(active) {
			last := active[len(active)-1]
			active = active[:len(active)-1]
			st.Text(st.markString(last, false, parent, index), false)
		}
		if leading != "" {
			st.Text(leading, true)
		}
		if node != nil {
			for len(active) < length {
				add := marks[len(active)]
				active = append(active, add)
				st.Text(st.markString(add, true, parent, index), false)
				st.atBlockStart = false
			}
			if noEsc && node.IsText() {
				st.Text(st.markString(inner, true, parent, index)+node.Text()+st.markString(inner, false, parent, index+1), false)
			} else {
				st.Render(node, parent, index)
			}
			st.atBlockStart = false
		}
	}

	parent.ForEach(func(child *model.Node, _, i int) { progress(child, i) })
	progress(nil, parent.ChildCount())
	st.atBlockStart = false
}

// RenderList renders the items of a list node, prefixing each with the
// delimiter returned by firstDelim and indenting continuation lines by
// delim.
func (st *SerializerState) RenderList(node *model.Node, delim string, firstDelim func(index int) string) {
	if st.closed != nil && st.closed.Type() == node.Type() {
		st.flushClose(3)
	} else if st.inTightList {
		st.flushClose(1)
	}
	prevTight := st.inTightList
	st.inTightList = st.s.TightLists
	node.ForEach(func(child *model.Node, _, i int) {
		if i > 0 && st.inTightList {
			st.flushClose(1)
		}
		st.WrapBlock(delim, firstDelim(i), node, func() { st.Render(child, node, i) })
	})
	st.inTightList = prevTight
}

// Repeat returns s repeated n times.
func Repeat(s string, n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(s, n)
}

// Quote wraps a link title in the first quote style not used inside it.
func Quote(s string) string {
	switch {
	case !strings.Contains(s, `"`):
		return `"` + s + `"`
	case !strings.Contains(s, "'"):
		return "'" + s + "'"
	default:
		return "(" + s + ")"
	}
}

// Destination formats a link or image destination, wrapping it in angle
// brackets when it holds characters markdown would split on.
func Destination(src string) string {
	if strings.ContainsAny(src, " ()<>") {
		return "<" + strings.NewReplacer("<", `\<`, ">", `\>`).Replace(src) + ">"
	}
	return src
}

var (
	lineStartMarker = regexp.MustCompile(`^(\+ |[\-*>])`)
	lineStartHeader = regexp.MustCompile(`^(\s*)(#{1,6})(\s|$)`)
	lineStartNumber = regexp.MustCompile(`^(\s*\d+)\.(\s|$)`)
)

// Escape backslash-escapes characters that markdown would read as syntax.
// Underscores inside words are left alone. With startOfLine, block markers
// at the beginning of str are escaped as well.
func Escape(str string, startOfLine bool) string {
	rs := []rune(str)
	var b strings.Builder
	for i, r := range rs {
		switch r {
		case '`', '*', '\\', '~', '[', ']':
			b.WriteByte('\\')
		case '_':
			inWord := i > 0 && i+1 < len(rs) && isWordRune(rs[i-1]) && isWordRune(rs[i+1])
			if !inWord {
				b.WriteByte('\\')
			}
		}
		b.WriteRune(r)
	}
	out := b.String()
	if startOfLine {
		out = lineStartMarker.ReplaceAllString(out, `\$1`)
		out = lineStartHeader.ReplaceAllString(out, `$1\$2$3`)
		out = lineStartNumber.ReplaceAllString(out, `$1\.$2`)
	}
	return out
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
