// Package nodes is the catalogue of document node types.
package nodes

import (
	"github.com/ehtisham-afzal/outline/internal/command"
	"github.com/ehtisham-afzal/outline/internal/extension"
	"github.com/ehtisham-afzal/outline/internal/markdown"
	"github.com/ehtisham-afzal/outline/internal/model"
)

// DefaultHeadingLevels is the number of heading levels offered when none
// is configured.
const DefaultHeadingLevels = 4

// All returns every node extension in registration order. The paragraph
// comes first among blocks so it is the default block type.
func All(headingLevels int) []extension.Extension {
	return []extension.Extension{
		Doc{},
		Paragraph{},
		Heading{Levels: headingLevels},
		Blockquote{},
		CodeBlock{},
		HorizontalRule{},
		BulletList{},
		OrderedList{},
		ListItem{},
		Text{},
		HardBreak{},
		Image{},
	}
}

type Doc struct{}

func (Doc) Name() string { return "doc" }

func (Doc) NodeSpec() model.NodeSpec {
	return model.NodeSpec{Name: "doc", Content: "block+"}
}

type Text struct{}

func (Text) Name() string { return "text" }

func (Text) NodeSpec() model.NodeSpec {
	return model.NodeSpec{Name: "text", Group: "inline"}
}

func (Text) ToMarkdown(st *markdown.SerializerState, node, _ *model.Node, _ int) {
	st.Text(node.Text(), !st.InAutolink)
}

func (Text) ParseMarkdown() map[string]markdown.ParseSpec { return nil }

type Paragraph struct{}

func (Paragraph) Name() string { return "paragraph" }

func (Paragraph) NodeSpec() model.NodeSpec {
	return model.NodeSpec{Name: "paragraph", Content: "inline*", Group: "block"}
}

func (Paragraph) ToMarkdown(st *markdown.SerializerState, node, _ *model.Node, _ int) {
	st.RenderInline(node)
	st.CloseBlock(node)
}

func (Paragraph) ParseMarkdown() map[string]markdown.ParseSpec {
	return map[string]markdown.ParseSpec{"paragraph": {Block: "paragraph"}}
}

func (Paragraph) Commands(ctx extension.Context) map[string]extension.CommandFactory {
	return map[string]extension.CommandFactory{
		"paragraph": func(model.Attrs) command.Command { return command.SetBlockType(ctx.Node, nil) },
	}
}

func (Paragraph) Keys(ctx extension.Context) []extension.KeyBinding {
	return []extension.KeyBinding{
		{Key: "Shift-Ctrl-0", Command: command.SetBlockType(ctx.Node, nil)},
		{Key: "Enter", Command: command.SplitBlock},
	}
}
