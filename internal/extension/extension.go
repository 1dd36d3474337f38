// Package extension assembles an editor from independent extensions.
//
// An extension names one node or mark type, or a pure behaviour, and opts
// into capabilities by implementing the interfaces below. The Manager
// collects them into a sealed schema, a markdown codec, a keymap, named
// commands, state plugins, input rules and node view components.
package extension

import (
	"github.com/ehtisham-afzal/outline/internal/command"
	"github.com/ehtisham-afzal/outline/internal/markdown"
	"github.com/ehtisham-afzal/outline/internal/model"
	"github.com/ehtisham-afzal/outline/internal/nodeview"
	"github.com/ehtisham-afzal/outline/internal/state"
)

type Extension interface {
	Name() string
}

// NodeExtension contributes a node type. Name must match the spec name.
type NodeExtension interface {
	Extension
	NodeSpec() model.NodeSpec
}

// MarkExtension contributes a mark type. Marks rank in registration order.
type MarkExtension interface {
	Extension
	MarkSpec() model.MarkSpec
}

// MarkdownNode serializes its node type and claims the tokens that parse
// into it.
type MarkdownNode interface {
	ToMarkdown(st *markdown.SerializerState, node, parent *model.Node, index int)
	ParseMarkdown() map[string]markdown.ParseSpec
}

// MarkdownMark serializes its mark type and claims the tokens that parse
// into it.
type MarkdownMark interface {
	MarkdownSerializer() markdown.MarkSerializer
	ParseMarkdown() map[string]markdown.ParseSpec
}

// Context is handed to capability methods once the schema is sealed. Node
// or Mark is the extension's own type when it contributed one.
type Context struct {
	Schema *model.Schema
	Node   *model.NodeType
	Mark   *model.MarkType
}

// NodeType looks up a type by name, returning nil when the schema lacks it.
func (c Context) NodeType(name string) *model.NodeType {
	t, err := c.Schema.NodeType(name)
	if err != nil {
		return nil
	}
	return t
}

// MarkType looks up a mark type by name, returning nil when absent.
func (c Context) MarkType(name string) *model.MarkType {
	t, err := c.Schema.MarkType(name)
	if err != nil {
		return nil
	}
	return t
}

// CommandFactory builds a command from caller supplied attributes.
type CommandFactory func(attrs model.Attrs) command.Command

type Commander interface {
	Commands(ctx Context) map[string]CommandFactory
}

// KeyBinding binds Key to Command. A non-empty Context limits the binding
// to selections inside nodes of that type.
type KeyBinding struct {
	Key     string
	Context string
	Command command.Command
}

type KeyBinder interface {
	Keys(ctx Context) []KeyBinding
}

type PluginProvider interface {
	Plugins(ctx Context) []*state.Plugin
}

type InputRuler interface {
	InputRules(ctx Context) []command.InputRule
}

// NodeViewProvider renders its node type through an external component.
type NodeViewProvider interface {
	Component() nodeview.Component
}
