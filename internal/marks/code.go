package marks

import (
	"regexp"
	"strings"

	"github.com/ehtisham-afzal/outline/internal/command"
	"github.com/ehtisham-afzal/outline/internal/extension"
	"github.com/ehtisham-afzal/outline/internal/markdown"
	"github.com/ehtisham-afzal/outline/internal/model"
)

// CodeInline is inline code. Its text is written verbatim between backtick
// fences long enough not to clash with backticks inside it.
type CodeInline struct{}

func (CodeInline) Name() string { return "code_inline" }

func (CodeInline) MarkSpec() model.MarkSpec {
	inclusive := false
	return model.MarkSpec{Name: "code_inline", Code: true, Inclusive: &inclusive}
}

func (CodeInline) MarkdownSerializer() markdown.MarkSerializer {
	return markdown.MarkSerializer{
		Open: func(_ *markdown.SerializerState, _ *model.Mark, parent *model.Node, index int) string {
			return backticksFor(parent.Child(index), -1)
		},
		Close: func(_ *markdown.SerializerState, _ *model.Mark, parent *model.Node, index int) string {
			return backticksFor(parent.Child(index-1), 1)
		},
		NoEscape: true,
	}
}

var backtickRun = regexp.MustCompile("`+")

// backticksFor returns the fence for node's text: one backtick more than the
// longest run inside it. Text holding backticks is padded with a space on
// the inner side of the fence, which markdown strips again.
func backticksFor(node *model.Node, side int) string {
	longest := 0
	if node.IsText() {
		for _, run := range backtickRun.FindAllString(node.Text(), -1) {
			longest = max(longest, len(run))
		}
	}
	fence := strings.Repeat("`", longest+1)
	switch {
	case longest == 0:
		return fence
	case side < 0:
		return fence + " "
	default:
		return " " + fence
	}
}

func (CodeInline) ParseMarkdown() map[string]markdown.ParseSpec {
	return map[string]markdown.ParseSpec{"code_inline": {Mark: "code_inline", NoCloseToken: true}}
}

func (CodeInline) Commands(ctx extension.Context) map[string]extension.CommandFactory {
	return map[string]extension.CommandFactory{
		"code_inline": func(model.Attrs) command.Command { return command.ToggleMark(ctx.Mark, nil) },
	}
}

func (CodeInline) Keys(ctx extension.Context) []extension.KeyBinding {
	return []extension.KeyBinding{{Key: "Mod-e", Command: command.ToggleMark(ctx.Mark, nil)}}
}

func (CodeInline) InputRules(ctx extension.Context) []command.InputRule {
	return []command.InputRule{command.MarkInputRule(regexp.MustCompile("(?:^|[^`])(`([^`]+)`)$"), ctx.Mark, nil)}
}
