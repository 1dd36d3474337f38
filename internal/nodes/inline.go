package nodes

import (
	"strings"

	"github.com/ehtisham-afzal/outline/internal/command"
	"github.com/ehtisham-afzal/outline/internal/extension"
	"github.com/ehtisham-afzal/outline/internal/markdown"
	"github.com/ehtisham-afzal/outline/internal/model"
	"github.com/ehtisham-afzal/outline/internal/nodeview"
	"github.com/ehtisham-afzal/outline/internal/state"
)

type HardBreak struct{}

func (HardBreak) Name() string { return "hard_break" }

func (HardBreak) NodeSpec() model.NodeSpec {
	return model.NodeSpec{Name: "hard_break", Group: "inline", Inline: true}
}

// ToMarkdown writes a break only when something other than another break
// follows it in the same block.
func (HardBreak) ToMarkdown(st *markdown.SerializerState, node, parent *model.Node, index int) {
	for i := index + 1; i < parent.ChildCount(); i++ {
		if parent.Child(i).Type() != node.Type() {
			st.Write("\\\n")
			return
		}
	}
}

func (HardBreak) ParseMarkdown() map[string]markdown.ParseSpec {
	return map[string]markdown.ParseSpec{"hardbreak": {Node: "hard_break"}}
}

func (HardBreak) Commands(ctx extension.Context) map[string]extension.CommandFactory {
	return map[string]extension.CommandFactory{
		"hard_break": func(model.Attrs) command.Command { return insertHardBreak(ctx.Node) },
	}
}

func (HardBreak) Keys(ctx extension.Context) []extension.KeyBinding {
	return []extension.KeyBinding{
		{Key: "Shift-Enter", Command: insertHardBreak(ctx.Node)},
		{Key: "Mod-Enter", Command: insertHardBreak(ctx.Node)},
	}
}

func insertHardBreak(typ *model.NodeType) command.Command {
	return func(st *state.EditorState, dispatch command.Dispatch) bool {
		r, err := st.Doc().Resolve(st.Selection().From())
		if err != nil || !r.Parent().InlineContent() || r.Parent().Type().IsCode() {
			return false
		}
		if dispatch == nil {
			return true
		}
		node, err := typ.Create(nil, nil, nil)
		if err != nil {
			return false
		}
		tr := st.Tr()
		if err := tr.ReplaceSelectionWith(node); err != nil {
			return false
		}
		dispatch(tr)
		return true
	}
}

// Image is an inline picture rendered through a node view.
type Image struct{}

func (Image) Name() string { return "image" }

func (Image) NodeSpec() model.NodeSpec {
	return model.NodeSpec{
		Name:      "image",
		Group:     "inline",
		Inline:    true,
		Draggable: true,
		Attrs: map[string]model.AttrSpec{
			"src":   {Default: "", Validate: model.String},
			"alt":   {Default: "", Validate: model.String},
			"title": {Default: "", Validate: model.String},
		},
	}
}

func (Image) ToMarkdown(st *markdown.SerializerState, node, _ *model.Node, _ int) {
	attrs := node.Attrs()
	alt := strings.ReplaceAll(attrs.String("alt"), "\n", "")
	out := "![" + markdown.Escape(alt, false) + "](" + markdown.Destination(attrs.String("src"))
	if title := attrs.String("title"); title != "" {
		out += " " + markdown.Quote(title)
	}
	st.Write(out + ")")
}

func (Image) ParseMarkdown() map[string]markdown.ParseSpec {
	return map[string]markdown.ParseSpec{
		"image": {Node: "image", GetAttrs: func(tok markdown.Token) model.Attrs {
			return model.Attrs{"src": tok.Attr("src"), "alt": tok.Content, "title": tok.Attr("title")}
		}},
	}
}

// ImageView is what the image component renders.
type ImageView struct {
	Src      string
	Alt      string
	Title    string
	Theme    any
	Selected bool
	Editable bool
}

func (Image) Component() nodeview.Component {
	return func(p nodeview.Props) any {
		attrs := p.Node.Attrs()
		return ImageView{
			Src:      attrs.String("src"),
			Alt:      attrs.String("alt"),
			Title:    attrs.String("title"),
			Theme:    p.Theme,
			Selected: p.IsSelected,
			Editable: p.IsEditable,
		}
	}
}
