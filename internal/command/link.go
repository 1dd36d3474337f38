package command

import (
	"strings"

	"github.com/ehtisham-afzal/outline/internal/decoration"
	"github.com/ehtisham-afzal/outline/internal/state"
)

// CopyLink builds the shareable URL of the heading at pos: location without
// its fragment and with the first "/edit" segment removed, plus the
// heading's anchor. A heading without a rendered anchor is a
// *LifecycleError.
func CopyLink(st *state.EditorState, pos int, location string) (string, error) {
	var id string
	for _, d := range decoration.FromState(st).Find(pos, pos) {
		if d.Kind == decoration.Widget && d.From == pos && d.Attrs["class"] == decoration.AnchorClass {
			id = d.Attrs["id"]
			break
		}
	}
	if id == "" {
		return "", &LifecycleError{Op: "copy link", Pos: pos, Reason: "heading has no anchor"}
	}
	base, _, _ := strings.Cut(location, "#")
	base = strings.Replace(base, "/edit", "", 1)
	return base + "#" + id, nil
}
