package command

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/ehtisham-afzal/outline/internal/model"
	"github.com/ehtisham-afzal/outline/internal/state"
)

var modifierOrder = []string{"Alt", "Ctrl", "Meta", "Shift"}

// NormalizeKey rewrites a key description such as "Mod-shift-1" into the
// canonical "Ctrl-Shift-1" form. Mod means Meta on mac and Ctrl elsewhere.
func NormalizeKey(key string, mac bool) (string, error) {
	if key == "" {
		return "", errors.New("empty key")
	}
	parts := strings.Split(key, "-")
	name := parts[len(parts)-1]
	if name == "" {
		// "Ctrl--" binds the minus key.
		name = "-"
		parts = parts[:len(parts)-1]
		if len(parts) > 0 {
			parts = parts[:len(parts)-1]
		}
	} else {
		parts = parts[:len(parts)-1]
	}
	if name == "Space" {
		name = " "
	}
	mods := map[string]bool{}
	for _, mod := range parts {
		switch strings.ToLower(mod) {
		case "alt", "a":
			mods["Alt"] = true
		case "ctrl", "control", "c":
			mods["Ctrl"] = true
		case "meta", "cmd", "m":
			mods["Meta"] = true
		case "shift", "s":
			mods["Shift"] = true
		case "mod":
			if mac {
				mods["Meta"] = true
			} else {
				mods["Ctrl"] = true
			}
		default:
			return "", errors.Errorf("unknown modifier %q in %q", mod, key)
		}
	}
	var b strings.Builder
	for _, mod := range modifierOrder {
		if mods[mod] {
			b.WriteString(mod)
			b.WriteByte('-')
		}
	}
	b.WriteString(name)
	return b.String(), nil
}

type binding struct {
	context string
	cmd     Command
}

// Keymap resolves key presses to commands. A binding with a context only
// applies when the selection is in a node of that type.
type Keymap struct {
	mac      bool
	bindings map[string][]binding
}

func NewKeymap(mac bool) *Keymap {
	return &Keymap{mac: mac, bindings: map[string][]binding{}}
}

// Bind adds cmd for key. An empty context binds it everywhere.
func (k *Keymap) Bind(key, context string, cmd Command) error {
	norm, err := NormalizeKey(key, k.mac)
	if err != nil {
		return err
	}
	k.bindings[norm] = append(k.bindings[norm], binding{context: context, cmd: cmd})
	return nil
}

// Keys lists the normalized keys with at least one binding.
func (k *Keymap) Keys() []string {
	keys := make([]string, 0, len(k.bindings))
	for key := range k.bindings {
		keys = append(keys, key)
	}
	return keys
}

// Resolve returns the candidate commands for key in st, most specific first:
// bindings for a selected node, then for the selection's ancestors from the
// innermost out, then context-free bindings. Within a level registration
// order is kept.
func (k *Keymap) Resolve(st *state.EditorState, key string) []Command {
	norm, err := NormalizeKey(key, k.mac)
	if err != nil {
		return nil
	}
	bound := k.bindings[norm]
	if len(bound) == 0 {
		return nil
	}
	var contexts []string
	sel := st.Selection()
	if sel.Kind == state.NodeSelection {
		if node := sel.Node(st.Doc()); node != nil {
			contexts = append(contexts, node.Type().Name)
		}
	}
	if r, err := st.Doc().Resolve(sel.From()); err == nil {
		for d := r.Depth; d >= 0; d-- {
			contexts = append(contexts, r.Node(d).Type().Name)
		}
	}
	contexts = append(contexts, "")

	var out []Command
	seen := map[string]bool{}
	for _, ctx := range contexts {
		if seen[ctx] {
			continue
		}
		seen[ctx] = true
		for _, b := range bound {
			if b.context == ctx {
				out = append(out, b.cmd)
			}
		}
	}
	return out
}

// Run runs the first command bound to key that applies.
func (k *Keymap) Run(st *state.EditorState, key string, dispatch Dispatch) bool {
	return Chain(k.Resolve(st, key)...)(st, dispatch)
}

// HeadingShortcuts binds Ctrl-Shift-1 and up to the heading levels, toggling
// back to a paragraph.
func HeadingShortcuts(k *Keymap, heading, paragraph *model.NodeType, levels int) error {
	for level := 1; level <= levels; level++ {
		key := "Ctrl-Shift-" + string(rune('0'+level))
		if err := k.Bind(key, "", ToggleBlockType(heading, paragraph, model.Attrs{"level": level})); err != nil {
			return err
		}
	}
	return nil
}
