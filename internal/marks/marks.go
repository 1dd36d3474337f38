// Package marks is the catalogue of inline mark types.
package marks

import (
	"regexp"

	"github.com/ehtisham-afzal/outline/internal/command"
	"github.com/ehtisham-afzal/outline/internal/extension"
	"github.com/ehtisham-afzal/outline/internal/markdown"
	"github.com/ehtisham-afzal/outline/internal/model"
)

// All returns every mark extension. Code comes last so it ranks innermost.
func All() []extension.Extension {
	return []extension.Extension{
		Link{},
		Strong(),
		Em(),
		Strikethrough(),
		CodeInline{},
	}
}

// delimited is shared by the marks written as a symmetric delimiter pair.
type delimited struct {
	name    string
	delim   string
	token   string
	key     string
	pattern *regexp.Regexp
}

func (d delimited) Name() string { return d.name }

func (d delimited) MarkSpec() model.MarkSpec { return model.MarkSpec{Name: d.name} }

func (d delimited) MarkdownSerializer() markdown.MarkSerializer {
	return markdown.Delimited(d.delim, d.delim, true)
}

func (d delimited) ParseMarkdown() map[string]markdown.ParseSpec {
	return map[string]markdown.ParseSpec{d.token: {Mark: d.name}}
}

func (d delimited) Commands(ctx extension.Context) map[string]extension.CommandFactory {
	return map[string]extension.CommandFactory{
		d.name: func(model.Attrs) command.Command { return command.ToggleMark(ctx.Mark, nil) },
	}
}

func (d delimited) Keys(ctx extension.Context) []extension.KeyBinding {
	return []extension.KeyBinding{{Key: d.key, Command: command.ToggleMark(ctx.Mark, nil)}}
}

func (d delimited) InputRules(ctx extension.Context) []command.InputRule {
	return []command.InputRule{command.MarkInputRule(d.pattern, ctx.Mark, nil)}
}

// Strong is bold text, written **like this**.
func Strong() extension.Extension {
	return delimited{
		name:    "strong",
		delim:   "**",
		token:   "strong",
		key:     "Mod-b",
		pattern: regexp.MustCompile(`(?:^|[^*])(\*\*([^*]+)\*\*)$`),
	}
}

// Em is emphasised text, written *like this*.
func Em() extension.Extension {
	return delimited{
		name:    "em",
		delim:   "*",
		token:   "em",
		key:     "Mod-i",
		pattern: regexp.MustCompile(`(?:^|[^*])(\*([^*]+)\*)$`),
	}
}

// Strikethrough is deleted text, written ~~like this~~.
func Strikethrough() extension.Extension {
	return delimited{
		name:    "strikethrough",
		delim:   "~~",
		token:   "s",
		key:     "Mod-d",
		pattern: regexp.MustCompile(`(?:^|[^~])(~~([^~]+)~~)$`),
	}
}
