package nodes

import (
	"strconv"

	"github.com/ehtisham-afzal/outline/internal/command"
	"github.com/ehtisham-afzal/outline/internal/decoration"
	"github.com/ehtisham-afzal/outline/internal/extension"
	"github.com/ehtisham-afzal/outline/internal/markdown"
	"github.com/ehtisham-afzal/outline/internal/model"
	"github.com/ehtisham-afzal/outline/internal/state"
)

// Heading is a collapsible section heading. Levels bounds the level
// attribute; deeper markdown headings are clamped to the last level.
type Heading struct {
	Levels int
}

func (h Heading) levels() int {
	if h.Levels <= 0 {
		return DefaultHeadingLevels
	}
	return h.Levels
}

func (Heading) Name() string { return "heading" }

func (h Heading) NodeSpec() model.NodeSpec {
	return model.NodeSpec{
		Name:     "heading",
		Content:  "inline*",
		Group:    "block",
		Defining: true,
		Attrs: map[string]model.AttrSpec{
			"level":     {Default: 1, Validate: model.IntRange(1, h.levels())},
			"collapsed": {Default: false, Validate: model.Bool, Presentational: true},
		},
	}
}

func (Heading) ToMarkdown(st *markdown.SerializerState, node, _ *model.Node, _ int) {
	st.Write(markdown.Repeat("#", node.Attrs().Int("level")) + " ")
	st.RenderInline(node)
	st.CloseBlock(node)
}

func (h Heading) ParseMarkdown() map[string]markdown.ParseSpec {
	return map[string]markdown.ParseSpec{
		"heading": {Block: "heading", GetAttrs: func(tok markdown.Token) model.Attrs {
			level, err := strconv.Atoi(tok.Tag[1:])
			if err != nil || level < 1 {
				level = 1
			}
			return model.Attrs{"level": min(level, h.levels())}
		}},
	}
}

func (h Heading) Commands(ctx extension.Context) map[string]extension.CommandFactory {
	paragraph := ctx.NodeType("paragraph")
	return map[string]extension.CommandFactory{
		"heading": func(attrs model.Attrs) command.Command {
			return command.ToggleBlockType(ctx.Node, paragraph, attrs)
		},
		"toggleFold": func(attrs model.Attrs) command.Command {
			return command.ToggleFold(attrs.Int("pos"))
		},
	}
}

func (h Heading) Keys(ctx extension.Context) []extension.KeyBinding {
	paragraph := ctx.NodeType("paragraph")
	bindings := []extension.KeyBinding{
		{Key: "Backspace", Context: "heading", Command: command.BackspaceToParagraph(ctx.Node)},
		{Key: "Enter", Context: "heading", Command: command.SplitHeading(ctx.Node)},
	}
	for level := 1; level <= h.levels(); level++ {
		bindings = append(bindings, extension.KeyBinding{
			Key:     "Shift-Ctrl-" + strconv.Itoa(level),
			Command: command.ToggleBlockType(ctx.Node, paragraph, model.Attrs{"level": level}),
		})
	}
	return bindings
}

func (h Heading) InputRules(ctx extension.Context) []command.InputRule {
	return []command.InputRule{command.HeadingInputRule(ctx.Node, h.levels())}
}

// Plugins installs the heading anchor decorations.
func (Heading) Plugins(ctx extension.Context) []*state.Plugin {
	return []*state.Plugin{decoration.Plugin(ctx.Node)}
}
