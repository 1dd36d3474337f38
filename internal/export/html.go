package export

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark/util"

	"github.com/ehtisham-afzal/outline/internal/decoration"
	"github.com/ehtisham-afzal/outline/internal/model"
)

type htmlRenderer struct {
	b       strings.Builder
	anchors map[int]string
}

// RenderHTML converts doc to an HTML fragment. Headings carry the id of
// their anchor so in-document links resolve in the export.
func RenderHTML(doc *model.Node, anchors []decoration.Anchor) string {
	if doc == nil {
		return ""
	}
	r := &htmlRenderer{anchors: make(map[int]string, len(anchors))}
	for _, a := range anchors {
		r.anchors[a.Pos] = a.ID
	}
	doc.ForEach(func(child *model.Node, offset, _ int) {
		r.node(child, offset)
	})
	return r.b.String()
}

func escape(s string) string {
	return string(util.EscapeHTML([]byte(s)))
}

func (r *htmlRenderer) children(node *model.Node, pos int) {
	node.ForEach(func(child *model.Node, offset, _ int) {
		r.node(child, pos+1+offset)
	})
}

func (r *htmlRenderer) wrap(open, close string, node *model.Node, pos int) {
	r.b.WriteString(open)
	r.children(node, pos)
	r.b.WriteString(close)
}

func (r *htmlRenderer) node(node *model.Node, pos int) {
	attrs := node.Attrs()
	switch node.Type().Name {
	case "paragraph":
		r.wrap("<p>", "</p>\n", node, pos)
	case "heading":
		level := attrs.Int("level")
		open := fmt.Sprintf("<h%d>", level)
		if id := r.anchors[pos]; id != "" {
			open = fmt.Sprintf(`<h%d id="%s">`, level, escape(id))
		}
		r.wrap(open, fmt.Sprintf("</h%d>\n", level), node, pos)
	case "blockquote":
		r.wrap("<blockquote>\n", "</blockquote>\n", node, pos)
	case "code_block":
		open := "<pre><code>"
		if lang := attrs.String("language"); lang != "" {
			open = fmt.Sprintf(`<pre><code class="language-%s">`, escape(lang))
		}
		r.b.WriteString(open + escape(node.TextContent()) + "</code></pre>\n")
	case "horizontal_rule":
		r.b.WriteString("<hr>\n")
	case "bullet_list":
		r.wrap("<ul>\n", "</ul>\n", node, pos)
	case "ordered_list":
		open := "<ol>\n"
		if order := attrs.Int("order"); order > 1 {
			open = fmt.Sprintf("<ol start=\"%d\">\n", order)
		}
		r.wrap(open, "</ol>\n", node, pos)
	case "list_item":
		r.wrap("<li>", "</li>\n", node, pos)
	case "hard_break":
		r.b.WriteString("<br>")
	case "image":
		fmt.Fprintf(&r.b, `<img src="%s" alt="%s"`, escape(attrs.String("src")), escape(attrs.String("alt")))
		if title := attrs.String("title"); title != "" {
			fmt.Fprintf(&r.b, ` title="%s"`, escape(title))
		}
		r.b.WriteString(">")
	case "text":
		r.b.WriteString(markedText(node))
	default:
		r.children(node, pos)
	}
}

// markedText wraps escaped text in its marks, the first mark outermost.
func markedText(node *model.Node) string {
	out := escape(node.Text())
	marks := node.Marks()
	for i := len(marks) - 1; i >= 0; i-- {
		m := marks[i]
		switch m.Type.Name {
		case "strong":
			out = "<strong>" + out + "</strong>"
		case "em":
			out = "<em>" + out + "</em>"
		case "strikethrough":
			out = "<s>" + out + "</s>"
		case "code_inline":
			out = "<code>" + out + "</code>"
		case "link":
			open := fmt.Sprintf(`<a href="%s"`, escape(m.Attrs.String("href")))
			if title := m.Attrs.String("title"); title != "" {
				open += fmt.Sprintf(` title="%s"`, escape(title))
			}
			out = open + ">" + out + "</a>"
		}
	}
	return out
}
