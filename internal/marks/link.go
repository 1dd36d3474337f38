package marks

import (
	"github.com/ehtisham-afzal/outline/internal/command"
	"github.com/ehtisham-afzal/outline/internal/extension"
	"github.com/ehtisham-afzal/outline/internal/markdown"
	"github.com/ehtisham-afzal/outline/internal/model"
)

// Link is a hyperlink. Links whose text equals their plain URL are written
// as autolinks.
type Link struct{}

func (Link) Name() string { return "link" }

func (Link) MarkSpec() model.MarkSpec {
	inclusive := false
	return model.MarkSpec{
		Name:      "link",
		Inclusive: &inclusive,
		Attrs: map[string]model.AttrSpec{
			"href":  {Required: true, Validate: model.String},
			"title": {Default: "", Validate: model.String},
		},
	}
}

func (Link) MarkdownSerializer() markdown.MarkSerializer {
	return markdown.MarkSerializer{
		Open: func(st *markdown.SerializerState, mark *model.Mark, parent *model.Node, index int) string {
			st.InAutolink = isPlainURL(mark, parent, index)
			if st.InAutolink {
				return "<"
			}
			return "["
		},
		Close: func(st *markdown.SerializerState, mark *model.Mark, _ *model.Node, _ int) string {
			if st.InAutolink {
				st.InAutolink = false
				return ">"
			}
			out := "](" + markdown.Destination(mark.Attrs.String("href"))
			if title := mark.Attrs.String("title"); title != "" {
				out += " " + markdown.Quote(title)
			}
			return out + ")"
		},
	}
}

// isPlainURL reports whether the link opening at index covers exactly one
// unmarked text node equal to its href.
func isPlainURL(link *model.Mark, parent *model.Node, index int) bool {
	if link.Attrs.String("title") != "" {
		return false
	}
	content := parent.Child(index)
	href := link.Attrs.String("href")
	if !content.IsText() || content.Text() != href || len(content.Marks()) != 1 || !content.Marks()[0].Eq(link) {
		return false
	}
	if index+1 < parent.ChildCount() && link.IsInSet(parent.Child(index+1).Marks()) {
		return false
	}
	return hasScheme(href)
}

func hasScheme(href string) bool {
	for i, r := range href {
		switch {
		case r == ':':
			return i > 1
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return false
}

func (Link) ParseMarkdown() map[string]markdown.ParseSpec {
	return map[string]markdown.ParseSpec{
		"link": {Mark: "link", GetAttrs: func(tok markdown.Token) model.Attrs {
			return model.Attrs{"href": tok.Attr("href"), "title": tok.Attr("title")}
		}},
	}
}

func (Link) Commands(ctx extension.Context) map[string]extension.CommandFactory {
	return map[string]extension.CommandFactory{
		"link": func(attrs model.Attrs) command.Command { return command.ToggleMark(ctx.Mark, attrs) },
	}
}
