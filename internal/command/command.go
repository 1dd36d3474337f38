// Package command turns user intents into transactions.
//
// A Command inspects an editor state and, when it applies, builds a
// transaction and hands it to dispatch. Called with a nil dispatch it only
// reports whether it would apply.
package command

import (
	"fmt"

	"github.com/ehtisham-afzal/outline/internal/model"
	"github.com/ehtisham-afzal/outline/internal/state"
)

// Dispatch receives a finished transaction.
type Dispatch func(tr *state.Transaction)

type Command func(st *state.EditorState, dispatch Dispatch) bool

// Chain runs commands in order until one applies.
func Chain(commands ...Command) Command {
	return func(st *state.EditorState, dispatch Dispatch) bool {
		for _, cmd := range commands {
			if cmd(st, dispatch) {
				return true
			}
		}
		return false
	}
}

// LifecycleError reports that rendered output no longer has the structure
// a command relies on. It is a programming error, never retried.
type LifecycleError struct {
	Op     string
	Pos    int
	Reason string
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("%s at %d: %s", e.Op, e.Pos, e.Reason)
}

// attrsMatch reports whether every attribute in want has the same value on
// node.
func attrsMatch(node *model.Node, want model.Attrs) bool {
	for k, v := range want {
		if !model.AttrsEqual(model.Attrs{k: node.Attr(k)}, model.Attrs{k: v}) {
			return false
		}
	}
	return true
}

// textblocksInSelection lists the textblocks touched by the selection with
// their positions.
func textblocksInSelection(st *state.EditorState) (nodes []*model.Node, positions []int) {
	sel := st.Selection()
	doc := st.Doc()
	if sel.Kind == state.NodeSelection {
		if node := sel.Node(doc); node != nil && node.IsTextblock() {
			return []*model.Node{node}, []int{sel.From()}
		}
	}
	doc.NodesBetween(sel.From(), sel.To(), func(node *model.Node, pos int, _ *model.Node, _ int) bool {
		if node.IsTextblock() {
			nodes = append(nodes, node)
			positions = append(positions, pos)
			return false
		}
		return true
	})
	return nodes, positions
}
