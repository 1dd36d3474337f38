package extension

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/ehtisham-afzal/outline/internal/command"
	"github.com/ehtisham-afzal/outline/internal/markdown"
	"github.com/ehtisham-afzal/outline/internal/model"
	"github.com/ehtisham-afzal/outline/internal/nodeview"
	"github.com/ehtisham-afzal/outline/internal/state"
)

// Options configure a Manager.
type Options struct {
	// Mac resolves the Mod key modifier to Meta instead of Ctrl.
	Mac bool
}

// Manager holds everything derived from one set of extensions.
type Manager struct {
	extensions []Extension
	schema     *model.Schema
	serializer *markdown.Serializer
	parser     *markdown.Parser
	keymap     *command.Keymap
	commands   map[string]CommandFactory
	plugins    []*state.Plugin
	inputRules []command.InputRule
	components map[string]nodeview.Component
}

// NewManager registers the node and mark types of exts in order, seals the
// schema and collects every capability. Duplicate extension, command or
// markdown token names are errors.
func NewManager(opts Options, exts ...Extension) (*Manager, error) {
	m := &Manager{
		extensions: exts,
		schema:     model.NewSchema(),
		keymap:     command.NewKeymap(opts.Mac),
		commands:   map[string]CommandFactory{},
		components: map[string]nodeview.Component{},
	}
	names := map[string]bool{}
	for _, ext := range exts {
		if names[ext.Name()] {
			return nil, errors.Errorf("extension %q registered twice", ext.Name())
		}
		names[ext.Name()] = true
		if n, ok := ext.(NodeExtension); ok {
			if _, err := m.schema.Register(n.NodeSpec()); err != nil {
				return nil, errors.Wrapf(err, "extension %s", ext.Name())
			}
		}
		if mk, ok := ext.(MarkExtension); ok {
			if _, err := m.schema.RegisterMark(mk.MarkSpec()); err != nil {
				return nil, errors.Wrapf(err, "extension %s", ext.Name())
			}
		}
	}
	if err := m.schema.Seal(); err != nil {
		return nil, err
	}

	nodeRules := map[string]markdown.NodeSerializer{}
	markRules := map[string]markdown.MarkSerializer{}
	tokens := map[string]markdown.ParseSpec{}
	claim := func(ext Extension, specs map[string]markdown.ParseSpec) error {
		for name, spec := range specs {
			if _, dup := tokens[name]; dup {
				return errors.Errorf("extension %s: markdown token %q already claimed", ext.Name(), name)
			}
			tokens[name] = spec
		}
		return nil
	}

	for _, ext := range exts {
		ctx := m.context(ext)
		if md, ok := ext.(MarkdownNode); ok && ctx.Node != nil {
			nodeRules[ctx.Node.Name] = md.ToMarkdown
			if err := claim(ext, md.ParseMarkdown()); err != nil {
				return nil, err
			}
		}
		if md, ok := ext.(MarkdownMark); ok && ctx.Mark != nil {
			markRules[ctx.Mark.Name] = md.MarkdownSerializer()
			if err := claim(ext, md.ParseMarkdown()); err != nil {
				return nil, err
			}
		}
		if c, ok := ext.(Commander); ok {
			for name, factory := range c.Commands(ctx) {
				if _, dup := m.commands[name]; dup {
					return nil, errors.Errorf("extension %s: command %q already registered", ext.Name(), name)
				}
				m.commands[name] = factory
			}
		}
		if k, ok := ext.(KeyBinder); ok {
			for _, b := range k.Keys(ctx) {
				if err := m.keymap.Bind(b.Key, b.Context, b.Command); err != nil {
					return nil, errors.Wrapf(err, "extension %s", ext.Name())
				}
			}
		}
		if p, ok := ext.(PluginProvider); ok {
			m.plugins = append(m.plugins, p.Plugins(ctx)...)
		}
		if r, ok := ext.(InputRuler); ok {
			m.inputRules = append(m.inputRules, r.InputRules(ctx)...)
		}
		if v, ok := ext.(NodeViewProvider); ok && ctx.Node != nil {
			m.components[ctx.Node.Name] = v.Component()
		}
	}

	m.serializer = markdown.NewSerializer(nodeRules, markRules)
	m.parser = markdown.NewParser(m.schema, markdown.NewTokenizer(), tokens)
	return m, nil
}

func (m *Manager) context(ext Extension) Context {
	ctx := Context{Schema: m.schema}
	if _, ok := ext.(NodeExtension); ok {
		ctx.Node = ctx.NodeType(ext.Name())
	}
	if _, ok := ext.(MarkExtension); ok {
		ctx.Mark = ctx.MarkType(ext.Name())
	}
	return ctx
}

func (m *Manager) Extensions() []Extension          { return m.extensions }
func (m *Manager) Schema() *model.Schema            { return m.schema }
func (m *Manager) Serializer() *markdown.Serializer { return m.serializer }
func (m *Manager) Parser() *markdown.Parser         { return m.parser }
func (m *Manager) Keymap() *command.Keymap          { return m.keymap }
func (m *Manager) Plugins() []*state.Plugin         { return m.plugins }
func (m *Manager) InputRules() []command.InputRule  { return m.inputRules }

// Command returns the named command built with attrs.
func (m *Manager) Command(name string, attrs model.Attrs) (command.Command, bool) {
	factory, ok := m.commands[name]
	if !ok {
		return nil, false
	}
	return factory(attrs), true
}

// CommandNames lists the registered command names in sorted order.
func (m *Manager) CommandNames() []string {
	names := make([]string, 0, len(m.commands))
	for name := range m.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Component returns the node view component registered for a node type.
func (m *Manager) Component(typeName string) (nodeview.Component, bool) {
	c, ok := m.components[typeName]
	return c, ok
}
