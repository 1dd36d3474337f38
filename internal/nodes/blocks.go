package nodes

import (
	"regexp"
	"strings"

	"github.com/ehtisham-afzal/outline/internal/command"
	"github.com/ehtisham-afzal/outline/internal/extension"
	"github.com/ehtisham-afzal/outline/internal/markdown"
	"github.com/ehtisham-afzal/outline/internal/model"
	"github.com/ehtisham-afzal/outline/internal/state"
)

type Blockquote struct{}

func (Blockquote) Name() string { return "blockquote" }

func (Blockquote) NodeSpec() model.NodeSpec {
	return model.NodeSpec{Name: "blockquote", Content: "block+", Group: "block", Defining: true}
}

func (Blockquote) ToMarkdown(st *markdown.SerializerState, node, _ *model.Node, _ int) {
	st.WrapBlock("> ", "", node, func() { st.RenderContent(node) })
}

func (Blockquote) ParseMarkdown() map[string]markdown.ParseSpec {
	return map[string]markdown.ParseSpec{"blockquote": {Block: "blockquote"}}
}

// CodeBlock is a fenced code block with an optional language.
type CodeBlock struct{}

func (CodeBlock) Name() string { return "code_block" }

func (CodeBlock) NodeSpec() model.NodeSpec {
	noMarks := ""
	return model.NodeSpec{
		Name:     "code_block",
		Content:  "text*",
		Marks:    &noMarks,
		Group:    "block",
		Code:     true,
		Defining: true,
		Attrs: map[string]model.AttrSpec{
			"language": {Default: "", Validate: model.String},
		},
	}
}

var backtickRuns = regexp.MustCompile("(?m)`{3,}")

func (CodeBlock) ToMarkdown(st *markdown.SerializerState, node, _ *model.Node, _ int) {
	text := node.TextContent()
	fence := "```"
	for _, run := range backtickRuns.FindAllString(text, -1) {
		if len(run) >= len(fence) {
			fence = run + "`"
		}
	}
	st.Write(fence + node.Attrs().String("language") + "\n")
	st.Text(text, false)
	st.EnsureNewLine()
	st.Write(fence)
	st.CloseBlock(node)
}

func (CodeBlock) ParseMarkdown() map[string]markdown.ParseSpec {
	return map[string]markdown.ParseSpec{
		"fence": {Block: "code_block", NoCloseToken: true, GetAttrs: func(tok markdown.Token) model.Attrs {
			language, _, _ := strings.Cut(strings.TrimSpace(tok.Info), " ")
			return model.Attrs{"language": language}
		}},
		"code_block": {Block: "code_block", NoCloseToken: true},
	}
}

func (CodeBlock) Commands(ctx extension.Context) map[string]extension.CommandFactory {
	paragraph := ctx.NodeType("paragraph")
	return map[string]extension.CommandFactory{
		"code_block": func(attrs model.Attrs) command.Command {
			return command.ToggleBlockType(ctx.Node, paragraph, attrs)
		},
	}
}

func (CodeBlock) Keys(ctx extension.Context) []extension.KeyBinding {
	return []extension.KeyBinding{
		{Key: "Shift-Ctrl-\\", Command: command.ToggleBlockType(ctx.Node, ctx.NodeType("paragraph"), nil)},
		{Key: "Enter", Context: "code_block", Command: insertText("\n")},
		{Key: "Tab", Context: "code_block", Command: insertText("  ")},
	}
}

func (CodeBlock) InputRules(ctx extension.Context) []command.InputRule {
	return []command.InputRule{command.TextblockTypeInputRule(regexp.MustCompile("^```$"), ctx.Node, nil)}
}

func insertText(text string) command.Command {
	return func(st *state.EditorState, dispatch command.Dispatch) bool {
		if dispatch == nil {
			return true
		}
		tr := st.Tr()
		if err := tr.InsertTextAtSelection(text); err != nil {
			return false
		}
		dispatch(tr)
		return true
	}
}

type HorizontalRule struct{}

func (HorizontalRule) Name() string { return "horizontal_rule" }

func (HorizontalRule) NodeSpec() model.NodeSpec {
	return model.NodeSpec{Name: "horizontal_rule", Group: "block"}
}

func (HorizontalRule) ToMarkdown(st *markdown.SerializerState, node, _ *model.Node, _ int) {
	st.Write("---")
	st.CloseBlock(node)
}

func (HorizontalRule) ParseMarkdown() map[string]markdown.ParseSpec {
	return map[string]markdown.ParseSpec{"hr": {Node: "horizontal_rule"}}
}

func (HorizontalRule) Commands(ctx extension.Context) map[string]extension.CommandFactory {
	return map[string]extension.CommandFactory{
		"hr": func(model.Attrs) command.Command { return insertBlock(ctx.Node) },
	}
}

func (HorizontalRule) Keys(ctx extension.Context) []extension.KeyBinding {
	return []extension.KeyBinding{{Key: "Mod-_", Command: insertBlock(ctx.Node)}}
}

// InputRules turns a paragraph starting with "---", "___ " or "*** " into
// a rule followed by the now empty paragraph.
func (HorizontalRule) InputRules(ctx extension.Context) []command.InputRule {
	return []command.InputRule{{
		Pattern: regexp.MustCompile(`^(?:---|___\s|\*\*\*\s)$`),
		Handler: func(tr *state.Transaction, _ []string, start, end int) error {
			r, err := tr.Doc.Resolve(start)
			if err != nil {
				return err
			}
			rule, err := ctx.Node.Create(nil, nil, nil)
			if err != nil {
				return err
			}
			if err := tr.Delete(start, end); err != nil {
				return err
			}
			return tr.Insert(r.Before(r.Depth), rule)
		},
	}}
}

// insertBlock inserts a leaf block after the textblock holding the cursor.
func insertBlock(typ *model.NodeType) command.Command {
	return func(st *state.EditorState, dispatch command.Dispatch) bool {
		r, err := st.Doc().Resolve(st.Selection().To())
		if err != nil || r.Depth == 0 {
			return false
		}
		pos := r.After(r.Depth)
		parent := r.Node(r.Depth - 1)
		index := r.IndexAfter(r.Depth - 1)
		if !parent.CanReplaceWith(index, index, typ) {
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
		if err := tr.Insert(pos, node); err != nil {
			return false
		}
		dispatch(tr)
		return true
	}
}
