package decoration

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/ehtisham-afzal/outline/internal/model"
	"github.com/ehtisham-afzal/outline/internal/state"
)

const (
	// PluginKey is the state key of the anchor decoration set.
	PluginKey = "anchors"
	// AnchorClass is the class attribute of anchor widgets.
	AnchorClass = "heading-name"

	removedPunc = "!\"#$%&'.()*+,/:;<=>?@[]\\^_`{|}~"
)

// Anchor is the identifier computed for one heading.
type Anchor struct {
	ID    string `json:"id"`
	Pos   int    `json:"pos"`
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Slugify turns heading text into an identifier: diacritics folded,
// lowercased, punctuation dropped, whitespace and dashes collapsed into
// single dashes. Text with nothing left yields the empty slug.
func Slugify(text string) string {
	fold := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, text)
	if err != nil {
		folded = text
	}
	var b strings.Builder
	pendingDash := false
	body := 0
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsSpace(r) || r == '-':
			pendingDash = body > 0
		case strings.ContainsRune(removedPunc, r), unicode.IsControl(r):
		default:
			if pendingDash {
				b.WriteByte('-')
				pendingDash = false
			}
			b.WriteRune(r)
			body++
		}
	}
	return b.String()
}

// HeadingAnchors walks doc in document order and assigns every node of type
// heading a document-unique identifier. The first heading with a given slug
// gets the bare slug, the N-th repeat gets "slug-N". If that identifier is
// already taken by an earlier heading the suffix keeps counting up.
func HeadingAnchors(doc *model.Node, heading *model.NodeType) []Anchor {
	var anchors []Anchor
	seen := map[string]int{}
	used := map[string]bool{}
	doc.Descendants(func(node *model.Node, pos int, _ *model.Node, _ int) bool {
		if node.Type() != heading {
			return !node.InlineContent()
		}
		text := node.TextContent()
		slug := Slugify(text)
		n := seen[slug]
		id := slug
		if n > 0 {
			id = slug + "-" + strconv.Itoa(n)
		}
		for used[id] {
			n++
			id = slug + "-" + strconv.Itoa(n)
		}
		seen[slug] = n + 1
		used[id] = true
		anchors = append(anchors, Anchor{ID: id, Pos: pos, Level: node.Attrs().Int("level"), Text: text})
		return false
	})
	return anchors
}

// Anchors computes the anchor widget set for doc: one widget per heading,
// placed directly before the heading node, keyed by its identifier.
func Anchors(doc *model.Node, heading *model.NodeType) *Set {
	anchors := HeadingAnchors(doc, heading)
	decos := make([]Decoration, 0, len(anchors))
	for _, a := range anchors {
		decos = append(decos, NewWidget(a.Pos, a.ID, -1, map[string]string{"id": a.ID, "class": AnchorClass}))
	}
	return NewSet(decos)
}

// Plugin keeps the anchor set in editor state. The set is recomputed only
// when a transaction changed the document; otherwise the previous set is
// carried over as is.
func Plugin(heading *model.NodeType) *state.Plugin {
	return &state.Plugin{
		Key: PluginKey,
		Init: func(st *state.EditorState) any {
			return Anchors(st.Doc(), heading)
		},
		Apply: func(tr *state.Transaction, value any, _, next *state.EditorState) any {
			if !tr.DocChanged() {
				return value
			}
			return Anchors(next.Doc(), heading)
		},
	}
}

// FromState returns the anchor set of st, or an empty set when the plugin
// is not installed.
func FromState(st *state.EditorState) *Set {
	if set, ok := st.PluginState(PluginKey).(*Set); ok {
		return set
	}
	return EmptySet()
}
