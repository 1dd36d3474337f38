// Package nodeview binds document nodes to externally rendered components.
//
// A Binding owns one container and the component output mounted in it. It
// re-renders when its node is updated, selected or deselected, and when the
// theme or location notifications fire.
package nodeview

import (
	"strings"
	"sync"

	"github.com/ehtisham-afzal/outline/internal/model"
	"github.com/ehtisham-afzal/outline/internal/notify"
)

type State int

const (
	Created State = iota
	Rendered
	Selected
	Destroyed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Rendered:
		return "rendered"
	case Selected:
		return "selected"
	default:
		return "destroyed"
	}
}

// Props is the input of a component render.
type Props struct {
	Theme      any
	Node       *model.Node
	IsSelected bool
	IsEditable bool
	GetPos     func() int
}

// Component renders props. Each call replaces the previous output.
type Component func(Props) any

// Host is the view that owns bindings.
type Host interface {
	Theme() any
	Editable() bool
	Attach(c *Container)
	Detach(c *Container)
}

// Mounter places component output into containers.
type Mounter interface {
	Mount(c *Container, output any)
	Unmount(c *Container)
}

// Container is the element a binding renders into.
type Container struct {
	Tag    string
	Class  string
	Output any
}

// Inline reports whether the container is an inline element.
func (c *Container) Inline() bool { return c.Tag == "span" }

type contentMounter struct{}

func (contentMounter) Mount(c *Container, output any) { c.Output = output }
func (contentMounter) Unmount(c *Container)           { c.Output = nil }

// Options configure a binding.
type Options struct {
	Host    Host
	Node    *model.Node
	GetPos  func() int
	Bus     *notify.Bus
	Mounter Mounter
}

// Event is a native event offered to the binding before default handling.
type Event struct {
	Type string
}

// Binding is the live association of one node with one component.
type Binding struct {
	mu        sync.Mutex
	component Component
	host      Host
	mounter   Mounter
	getPos    func() int
	node      *model.Node
	typ       *model.NodeType
	container *Container
	state     State
	selected  bool
	renders   int
	subs      []*notify.Subscription
}

// New creates the container for opts.Node, attaches it to the host, renders
// the component and subscribes to theme and location notifications.
func New(component Component, opts Options) *Binding {
	tag := "div"
	if opts.Node.IsInline() {
		tag = "span"
	}
	bus := opts.Bus
	if bus == nil {
		bus = notify.Default()
	}
	mounter := opts.Mounter
	if mounter == nil {
		mounter = contentMounter{}
	}
	b := &Binding{
		component: component,
		host:      opts.Host,
		mounter:   mounter,
		getPos:    opts.GetPos,
		node:      opts.Node,
		typ:       opts.Node.Type(),
		container: &Container{Tag: tag, Class: "component-" + opts.Node.Type().Name},
	}
	b.host.Attach(b.container)

	b.mu.Lock()
	b.render()
	b.state = Rendered
	b.mu.Unlock()

	rerender := func(notify.Topic, any) { b.Rerender() }
	b.subs = []*notify.Subscription{
		bus.Subscribe(notify.ThemeChanged, rerender),
		bus.Subscribe(notify.LocationChanged, rerender),
	}
	return b
}

// render must be called with b.mu held.
func (b *Binding) render() {
	out := b.component(Props{
		Theme:      b.host.Theme(),
		Node:       b.node,
		IsSelected: b.selected,
		IsEditable: b.host.Editable(),
		GetPos:     b.getPos,
	})
	b.mounter.Mount(b.container, out)
	b.renders++
}

// Rerender renders again with fresh host context. It does nothing once the
// binding is destroyed.
func (b *Binding) Rerender() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Destroyed {
		return
	}
	b.render()
}

// Update swaps in node and re-renders. It refuses, leaving the output
// untouched, when node has a different type or the binding is destroyed.
func (b *Binding) Update(node *model.Node) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Destroyed || node == nil || node.Type() != b.typ {
		return false
	}
	b.node = node
	b.render()
	return true
}

// SelectNode marks the binding selected when the host is editable.
func (b *Binding) SelectNode() { b.setSelected(true) }

// DeselectNode clears the selection when the host is editable.
func (b *Binding) DeselectNode() { b.setSelected(false) }

func (b *Binding) setSelected(selected bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Destroyed || !b.host.Editable() {
		return
	}
	b.selected = selected
	if selected {
		b.state = Selected
	} else {
		b.state = Rendered
	}
	b.render()
}

// StopEvent reports whether the binding swallows ev: drag events always,
// and mousedown, drop, cut, copy and paste when the node is selectable.
func (b *Binding) StopEvent(ev Event) bool {
	if strings.HasPrefix(ev.Type, "drag") {
		return true
	}
	switch ev.Type {
	case "mousedown", "drop", "cut", "copy", "paste":
		return b.typ.IsSelectable()
	}
	return false
}

// IgnoreMutation reports that changes inside the container are never read
// back as document edits.
func (b *Binding) IgnoreMutation() bool { return true }

// Destroy releases the notification subscriptions, unmounts the output,
// detaches the container and clears the node. The subscriptions are released
// even when unmounting panics. Calling Destroy again is a no-op.
func (b *Binding) Destroy() {
	b.mu.Lock()
	if b.state == Destroyed {
		b.mu.Unlock()
		return
	}
	b.state = Destroyed
	subs, container := b.subs, b.container
	b.subs = nil
	b.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	defer func() {
		b.mu.Lock()
		b.node = nil
		b.container = nil
		b.mu.Unlock()
	}()
	defer b.host.Detach(container)
	b.mounter.Unmount(container)
}

func (b *Binding) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Binding) Node() *model.Node {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.node
}

func (b *Binding) Type() *model.NodeType { return b.typ }

func (b *Binding) Container() *Container {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.container
}

func (b *Binding) IsSelected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.selected
}

// Renders counts component renders since creation.
func (b *Binding) Renders() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.renders
}

// Pos returns the node's current document position.
func (b *Binding) Pos() int { return b.getPos() }
