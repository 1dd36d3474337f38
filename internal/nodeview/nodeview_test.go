package nodeview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehtisham-afzal/outline/internal/model"
	"github.com/ehtisham-afzal/outline/internal/notify"
)

type fakeHost struct {
	theme    string
	editable bool
	attached []*Container
}

func (h *fakeHost) Theme() any          { return h.theme }
func (h *fakeHost) Editable() bool      { return h.editable }
func (h *fakeHost) Attach(c *Container) { h.attached = append(h.attached, c) }
func (h *fakeHost) Detach(c *Container) {
	for i, other := range h.attached {
		if other == c {
			h.attached = append(h.attached[:i], h.attached[i+1:]...)
			return
		}
	}
}

type panicMounter struct{}

func (panicMounter) Mount(c *Container, output any) { c.Output = output }
func (panicMounter) Unmount(*Container)             { panic("renderer gone") }

func testSchema(t *testing.T) *model.Schema {
	t.Helper()
	notSelectable := false
	s := model.NewSchema()
	for _, spec := range []model.NodeSpec{
		{Name: "doc", Content: "block+"},
		{Name: "paragraph", Content: "inline*", Group: "block"},
		{Name: "embed", Group: "block", Atom: true, Selectable: &notSelectable},
		{Name: "text", Group: "inline"},
		{Name: "image", Group: "inline", Inline: true, Draggable: true, Attrs: map[string]model.AttrSpec{
			"src": {Default: ""},
		}},
	} {
		_, err := s.Register(spec)
		require.NoError(t, err)
	}
	require.NoError(t, s.Seal())
	return s
}

func mustNode(t *testing.T, s *model.Schema, name string, attrs model.Attrs) *model.Node {
	t.Helper()
	n, err := s.Node(name, attrs)
	require.NoError(t, err)
	return n
}

func recorder(calls *[]Props) Component {
	return func(p Props) any {
		*calls = append(*calls, p)
		return p.Node.Attrs().String("src")
	}
}

func TestNewRendersIntoContainer(t *testing.T) {
	s := testSchema(t)
	host := &fakeHost{theme: "light", editable: true}
	var calls []Props
	b := New(recorder(&calls), Options{
		Host:   host,
		Node:   mustNode(t, s, "image", model.Attrs{"src": "a.png"}),
		GetPos: func() int { return 7 },
		Bus:    notify.NewBus(),
	})

	assert.Equal(t, Rendered, b.State())
	c := b.Container()
	assert.Equal(t, "span", c.Tag)
	assert.True(t, c.Inline())
	assert.Equal(t, "component-image", c.Class)
	assert.Equal(t, "a.png", c.Output)
	assert.Equal(t, []*Container{c}, host.attached)

	require.Len(t, calls, 1)
	assert.Equal(t, "light", calls[0].Theme)
	assert.False(t, calls[0].IsSelected)
	assert.True(t, calls[0].IsEditable)
	assert.Equal(t, 7, calls[0].GetPos())

	embed := New(recorder(new([]Props)), Options{Host: host, Node: mustNode(t, s, "embed", nil), GetPos: func() int { return 0 }, Bus: notify.NewBus()})
	assert.Equal(t, "div", embed.Container().Tag)
}

func TestUpdateRefusesTypeChange(t *testing.T) {
	s := testSchema(t)
	var calls []Props
	b := New(recorder(&calls), Options{Host: &fakeHost{editable: true}, Node: mustNode(t, s, "image", model.Attrs{"src": "a.png"}), GetPos: func() int { return 1 }, Bus: notify.NewBus()})

	assert.False(t, b.Update(mustNode(t, s, "embed", nil)))
	assert.Equal(t, "a.png", b.Container().Output)
	assert.Equal(t, 1, b.Renders())
	assert.Equal(t, "image", b.Node().Type().Name)

	assert.True(t, b.Update(mustNode(t, s, "image", model.Attrs{"src": "b.png"})))
	assert.Equal(t, "b.png", b.Container().Output)
	assert.Equal(t, 2, b.Renders())
}

func TestSelectionRequiresEditableHost(t *testing.T) {
	s := testSchema(t)
	host := &fakeHost{}
	var calls []Props
	b := New(recorder(&calls), Options{Host: host, Node: mustNode(t, s, "image", nil), GetPos: func() int { return 1 }, Bus: notify.NewBus()})

	b.SelectNode()
	assert.False(t, b.IsSelected())
	assert.Equal(t, 1, b.Renders())

	host.editable = true
	b.SelectNode()
	assert.True(t, b.IsSelected())
	assert.Equal(t, Selected, b.State())
	assert.True(t, calls[len(calls)-1].IsSelected)

	b.DeselectNode()
	assert.False(t, b.IsSelected())
	assert.Equal(t, Rendered, b.State())
	assert.Equal(t, 3, b.Renders())
}

func TestStopEvent(t *testing.T) {
	s := testSchema(t)
	host := &fakeHost{editable: true}
	image := New(recorder(new([]Props)), Options{Host: host, Node: mustNode(t, s, "image", nil), GetPos: func() int { return 1 }, Bus: notify.NewBus()})
	embed := New(recorder(new([]Props)), Options{Host: host, Node: mustNode(t, s, "embed", nil), GetPos: func() int { return 0 }, Bus: notify.NewBus()})

	for _, tc := range []struct {
		event        string
		image, embed bool
	}{
		{"dragstart", true, true},
		{"dragover", true, true},
		{"mousedown", true, false},
		{"drop", true, false},
		{"cut", true, false},
		{"copy", true, false},
		{"paste", true, false},
		{"keydown", false, false},
		{"click", false, false},
	} {
		assert.Equal(t, tc.image, image.StopEvent(Event{Type: tc.event}), "image %s", tc.event)
		assert.Equal(t, tc.embed, embed.StopEvent(Event{Type: tc.event}), "embed %s", tc.event)
	}
	assert.True(t, image.IgnoreMutation())
}

func TestNotificationsRerender(t *testing.T) {
	s := testSchema(t)
	bus := notify.NewBus()
	host := &fakeHost{theme: "light"}
	var calls []Props
	b := New(recorder(&calls), Options{Host: host, Node: mustNode(t, s, "image", nil), GetPos: func() int { return 1 }, Bus: bus})

	host.theme = "dark"
	bus.Publish(notify.ThemeChanged, nil)
	bus.Publish(notify.LocationChanged, nil)
	require.Len(t, calls, 3)
	assert.Equal(t, "dark", calls[1].Theme)

	b.Destroy()
	bus.Publish(notify.ThemeChanged, nil)
	assert.Len(t, calls, 3)
}

func TestDestroyReleasesEverything(t *testing.T) {
	s := testSchema(t)
	bus := notify.NewBus()
	host := &fakeHost{}
	b := New(recorder(new([]Props)), Options{Host: host, Node: mustNode(t, s, "image", nil), GetPos: func() int { return 1 }, Bus: bus})
	container := b.Container()

	b.Destroy()
	assert.Equal(t, Destroyed, b.State())
	assert.Nil(t, b.Node())
	assert.Nil(t, b.Container())
	assert.Nil(t, container.Output)
	assert.Empty(t, host.attached)
	assert.Equal(t, 0, bus.Subscribers(notify.ThemeChanged))
	assert.Equal(t, 0, bus.Subscribers(notify.LocationChanged))

	b.Destroy()
	assert.False(t, b.Update(mustNode(t, s, "image", nil)))
}

func TestDestroyReleasesSubscriptionsWhenUnmountPanics(t *testing.T) {
	s := testSchema(t)
	bus := notify.NewBus()
	host := &fakeHost{}
	b := New(recorder(new([]Props)), Options{Host: host, Node: mustNode(t, s, "image", nil), GetPos: func() int { return 1 }, Bus: bus, Mounter: panicMounter{}})

	assert.Panics(t, b.Destroy)
	assert.Equal(t, 0, bus.Subscribers(notify.ThemeChanged))
	assert.Equal(t, 0, bus.Subscribers(notify.LocationChanged))
	assert.Empty(t, host.attached)
	assert.Nil(t, b.Node())
	assert.NotPanics(t, b.Destroy)
}
