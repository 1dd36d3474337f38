// Package editor wires a document state to its extensions, node views and
// notifications. An Editor is driven from one goroutine and is not safe for
// concurrent use.
package editor

import (
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ehtisham-afzal/outline/internal/command"
	"github.com/ehtisham-afzal/outline/internal/decoration"
	"github.com/ehtisham-afzal/outline/internal/extension"
	"github.com/ehtisham-afzal/outline/internal/log"
	"github.com/ehtisham-afzal/outline/internal/markdown"
	"github.com/ehtisham-afzal/outline/internal/marks"
	"github.com/ehtisham-afzal/outline/internal/model"
	"github.com/ehtisham-afzal/outline/internal/nodes"
	"github.com/ehtisham-afzal/outline/internal/nodeview"
	"github.com/ehtisham-afzal/outline/internal/notify"
	"github.com/ehtisham-afzal/outline/internal/state"
)

var (
	ErrDestroyed = errors.New("editor destroyed")
	ErrReadOnly  = errors.New("editor is read-only")
)

// Options configure a new editor.
type Options struct {
	// Manager, when set, is used as is and Extensions, HeadingLevels and
	// Mac are ignored. A manager is immutable once built and may be shared.
	Manager *extension.Manager
	// Extensions default to the full node and mark catalogue.
	Extensions    []extension.Extension
	HeadingLevels int
	Mac           bool

	// Doc is the initial document; when nil Markdown is parsed instead.
	Doc      *model.Node
	Markdown string

	ReadOnly bool
	Theme    any
	Location string

	// Bus defaults to the process-wide bus. Dispatch defers only the
	// notifications published by this editor, so editors sharing a bus may
	// run on different goroutines.
	Bus     *notify.Bus
	Mounter nodeview.Mounter
	// OnChange runs after every applied transaction that changed the state.
	OnChange func(st *state.EditorState)
	Logger   *zap.Logger
}

// DefaultExtensions returns the node and mark catalogue.
func DefaultExtensions(headingLevels int) []extension.Extension {
	return append(nodes.All(headingLevels), marks.All()...)
}

// NewManager builds the extension manager described by opts.
func NewManager(opts Options) (*extension.Manager, error) {
	if opts.Manager != nil {
		return opts.Manager, nil
	}
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions(opts.HeadingLevels)
	}
	return extension.NewManager(extension.Options{Mac: opts.Mac}, exts...)
}

type view struct {
	binding *nodeview.Binding
	pos     int
}

type Editor struct {
	manager    *extension.Manager
	state      *state.EditorState
	bus        *notify.Bus
	notes      *notify.Batch
	mounter    nodeview.Mounter
	onChange   func(*state.EditorState)
	log        *zap.Logger
	editable   bool
	theme      any
	location   string
	views      []*view
	containers []*nodeview.Container
	warnings   []markdown.Warning
	destroyed  bool
}

func New(opts Options) (*Editor, error) {
	manager, err := NewManager(opts)
	if err != nil {
		return nil, err
	}
	e := &Editor{
		manager:  manager,
		bus:      opts.Bus,
		mounter:  opts.Mounter,
		onChange: opts.OnChange,
		log:      opts.Logger,
		editable: !opts.ReadOnly,
		theme:    opts.Theme,
		location: opts.Location,
	}
	if e.bus == nil {
		e.bus = notify.Default()
	}
	e.notes = e.bus.NewBatch()
	if e.log == nil {
		e.log = log.Get()
	}
	doc := opts.Doc
	if doc == nil {
		if doc, e.warnings, err = manager.Parser().Parse(opts.Markdown); err != nil {
			return nil, errors.Wrap(err, "parse markdown")
		}
		for _, w := range e.warnings {
			e.log.Debug("markdown degraded", zap.String("warning", w.String()))
		}
	}
	st, err := state.Create(state.Config{Schema: manager.Schema(), Doc: doc, Plugins: manager.Plugins()})
	if err != nil {
		return nil, err
	}
	e.state = st
	e.reconcile(nil, nil)
	return e, nil
}

func (e *Editor) State() *state.EditorState         { return e.state }
func (e *Editor) Doc() *model.Node                  { return e.state.Doc() }
func (e *Editor) Manager() *extension.Manager       { return e.manager }
func (e *Editor) Warnings() []markdown.Warning      { return e.warnings }
func (e *Editor) Location() string                  { return e.location }
func (e *Editor) Containers() []*nodeview.Container { return e.containers }

// Dispatch applies tr. Notifications this editor publishes while the
// transaction is applied and node views are re-rendered are delivered
// afterwards, so document renders always precede notification renders.
// Other publishers on the bus are not held back. A rejected
// transaction leaves the editor unchanged and returns a *state.RejectedError.
func (e *Editor) Dispatch(tr *state.Transaction) error {
	if e.destroyed {
		return ErrDestroyed
	}
	release := e.notes.Hold()
	defer release()

	prev := e.state
	next, err := prev.Apply(tr)
	if err != nil {
		e.log.Debug("transaction rejected", zap.Error(err))
		return err
	}
	if next == prev {
		return nil
	}
	e.state = next
	e.reconcile(tr, prev.Doc())
	if tr.DocChanged() {
		e.notes.Publish(notify.DocumentChanged, next)
	}
	if e.onChange != nil {
		e.onChange(next)
	}
	return nil
}

// dispatcher adapts Dispatch for commands, keeping the first error.
func (e *Editor) dispatcher(errp *error) command.Dispatch {
	return func(tr *state.Transaction) {
		if err := e.Dispatch(tr); err != nil && *errp == nil {
			*errp = err
		}
	}
}

// Run handles a key press. It reports whether a bound command applied.
// Read-only editors ignore keys.
func (e *Editor) Run(key string) (bool, error) {
	if e.destroyed {
		return false, ErrDestroyed
	}
	if !e.editable {
		return false, nil
	}
	var err error
	applied := e.manager.Keymap().Run(e.state, key, e.dispatcher(&err))
	return applied && err == nil, err
}

// Exec runs the named command built with attrs. Read-only editors refuse
// it with ErrReadOnly.
func (e *Editor) Exec(name string, attrs model.Attrs) (bool, error) {
	if e.destroyed {
		return false, ErrDestroyed
	}
	if !e.editable {
		return false, ErrReadOnly
	}
	cmd, ok := e.manager.Command(name, attrs)
	if !ok {
		return false, errors.Errorf("unknown command %q", name)
	}
	var err error
	applied := cmd(e.state, e.dispatcher(&err))
	return applied && err == nil, err
}

// CanExec reports whether the named command would apply now.
func (e *Editor) CanExec(name string, attrs model.Attrs) bool {
	cmd, ok := e.manager.Command(name, attrs)
	return ok && !e.destroyed && e.editable && cmd(e.state, nil)
}

// HandleTextInput types text over the selection, giving input rules the
// first chance to transform it.
func (e *Editor) HandleTextInput(text string) error {
	if e.destroyed {
		return ErrDestroyed
	}
	if !e.editable {
		return ErrReadOnly
	}
	sel := e.state.Selection()
	var err error
	if command.RunInputRules(e.state, sel.From(), sel.To(), text, e.manager.InputRules(), e.dispatcher(&err)) {
		return err
	}
	tr := e.state.Tr()
	if err := tr.InsertTextAtSelection(text); err != nil {
		return err
	}
	return e.Dispatch(tr)
}

// Select replaces the selection.
func (e *Editor) Select(sel state.Selection) error {
	return e.Dispatch(e.state.Tr().SetSelection(sel))
}

// SelectNode selects the node starting at pos.
func (e *Editor) SelectNode(pos int) error {
	sel, err := state.NodeAt(e.state.Doc(), pos)
	if err != nil {
		return err
	}
	return e.Select(sel)
}

// SetContent replaces the whole document with markdown text. Node views
// are rebuilt.
func (e *Editor) SetContent(text string) error {
	if e.destroyed {
		return ErrDestroyed
	}
	doc, warnings, err := e.manager.Parser().Parse(text)
	if err != nil {
		return errors.Wrap(err, "parse markdown")
	}
	st, err := state.Create(state.Config{Schema: e.manager.Schema(), Doc: doc, Plugins: e.manager.Plugins()})
	if err != nil {
		return err
	}
	release := e.notes.Hold()
	defer release()
	e.warnings = warnings
	e.state = st
	e.reconcile(nil, nil)
	e.notes.Publish(notify.DocumentChanged, st)
	if e.onChange != nil {
		e.onChange(st)
	}
	return nil
}

// Markdown serializes the current document.
func (e *Editor) Markdown() string {
	return e.manager.Serializer().Serialize(e.state.Doc())
}

// Decorations returns the heading anchor decorations of the current state.
func (e *Editor) Decorations() *decoration.Set {
	return decoration.FromState(e.state)
}

// CopyLink returns the shareable link of the heading at pos for the current
// location.
func (e *Editor) CopyLink(pos int) (string, error) {
	return command.CopyLink(e.state, pos, e.location)
}

// SetEditable switches between editing and read-only. Node views re-render
// with the new mode; a read-only editor keeps no node selected.
func (e *Editor) SetEditable(editable bool) {
	if e.destroyed || e.editable == editable {
		return
	}
	if !editable {
		for _, v := range e.views {
			if v.binding.IsSelected() {
				v.binding.DeselectNode()
			}
		}
	}
	e.editable = editable
	for _, v := range e.views {
		v.binding.Rerender()
	}
}

// SetTheme changes the theme and notifies subscribers.
func (e *Editor) SetTheme(theme any) {
	e.theme = theme
	e.notes.Publish(notify.ThemeChanged, theme)
}

// Navigate records a new location and notifies subscribers.
func (e *Editor) Navigate(location string) {
	e.location = location
	e.notes.Publish(notify.LocationChanged, location)
}

// Destroy tears down every node view. Further calls are no-ops and the
// editor refuses further work.
func (e *Editor) Destroy() {
	if e.destroyed {
		return
	}
	e.destroyed = true
	for _, v := range e.views {
		e.destroyView(v)
	}
	e.views = nil
}

func (e *Editor) Destroyed() bool { return e.destroyed }

// Theme, Editable, Attach and Detach make the editor the host of its node
// views.
func (e *Editor) Theme() any     { return e.theme }
func (e *Editor) Editable() bool { return e.editable }

func (e *Editor) Attach(c *nodeview.Container) {
	e.containers = append(e.containers, c)
}

func (e *Editor) Detach(c *nodeview.Container) {
	for i, other := range e.containers {
		if other == c {
			e.containers = append(e.containers[:i], e.containers[i+1:]...)
			return
		}
	}
}

// Views returns the live node views ordered by position.
func (e *Editor) Views() []*nodeview.Binding {
	out := make([]*nodeview.Binding, len(e.views))
	for i, v := range e.views {
		out[i] = v.binding
	}
	return out
}

// ViewAt returns the node view of the node starting at pos.
func (e *Editor) ViewAt(pos int) (*nodeview.Binding, bool) {
	for _, v := range e.views {
		if v.pos == pos {
			return v.binding, true
		}
	}
	return nil, false
}

// HandleEvent offers ev to the node view at pos and reports whether the
// view swallowed it.
func (e *Editor) HandleEvent(pos int, ev nodeview.Event) bool {
	b, ok := e.ViewAt(pos)
	return ok && b.StopEvent(ev)
}

// reconcile brings node views in line with the current state. Views are
// carried over through tr's mapping when tr was built on prevDoc; any other
// change rebuilds them.
func (e *Editor) reconcile(tr *state.Transaction, prevDoc *model.Node) {
	doc := e.state.Doc()
	if doc != prevDoc {
		mappable := tr != nil && prevDoc != nil && tr.Before() == prevDoc
		kept := e.views[:0]
		for _, v := range e.views {
			if !mappable || !e.carry(v, tr, doc) {
				e.destroyView(v)
				continue
			}
			kept = append(kept, v)
		}
		e.views = kept
		e.mountNew(doc)
	}
	e.syncSelection()
}

// carry moves v to its mapped position and updates it with the node found
// there. It reports false when the node is gone or changed type.
func (e *Editor) carry(v *view, tr *state.Transaction, doc *model.Node) bool {
	res := tr.Mapping.MapResult(v.pos, 1)
	if res.Deleted() {
		return false
	}
	node := doc.NodeAt(res.Pos)
	if node == nil || node.Type() != v.binding.Type() {
		return false
	}
	v.pos = res.Pos
	if node == v.binding.Node() {
		return true
	}
	return v.binding.Update(node)
}

func (e *Editor) mountNew(doc *model.Node) {
	bound := make(map[int]bool, len(e.views))
	for _, v := range e.views {
		bound[v.pos] = true
	}
	doc.Descendants(func(node *model.Node, pos int, _ *model.Node, _ int) bool {
		if bound[pos] {
			return false
		}
		component, ok := e.manager.Component(node.Type().Name)
		if !ok {
			return true
		}
		v := &view{pos: pos}
		v.binding = nodeview.New(component, nodeview.Options{
			Host:    e,
			Node:    node,
			GetPos:  func() int { return v.pos },
			Bus:     e.bus,
			Mounter: e.mounter,
		})
		e.views = append(e.views, v)
		return false
	})
	sort.Slice(e.views, func(i, j int) bool { return e.views[i].pos < e.views[j].pos })
}

func (e *Editor) syncSelection() {
	sel := e.state.Selection()
	for _, v := range e.views {
		selected := sel.Kind == state.NodeSelection && sel.From() == v.pos
		switch {
		case selected && !v.binding.IsSelected():
			v.binding.SelectNode()
		case !selected && v.binding.IsSelected():
			v.binding.DeselectNode()
		}
	}
}

// destroyView tears down v, logging instead of propagating a panicking
// unmount so the remaining views are still released.
func (e *Editor) destroyView(v *view) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("node view teardown failed", zap.Int("pos", v.pos), zap.Any("panic", r))
		}
	}()
	v.binding.Destroy()
}
