package search

import (
	"strings"

	"github.com/ehtisham-afzal/outline/internal/decoration"
	"github.com/ehtisham-afzal/outline/internal/model"
)

// Sections splits the top level of doc at its headings. Each section holds
// the text of the blocks between its heading and the next one; blocks before
// the first heading belong to no section.
func Sections(documentID, title string, doc *model.Node, heading *model.NodeType) []SectionRecord {
	anchors := decoration.HeadingAnchors(doc, heading)
	byPos := make(map[int]decoration.Anchor, len(anchors))
	for _, a := range anchors {
		byPos[a.Pos] = a
	}

	var sections []SectionRecord
	var body []string
	flush := func() {
		if len(sections) > 0 {
			sections[len(sections)-1].Body = strings.Join(body, "\n")
		}
		body = body[:0]
	}
	doc.ForEach(func(child *model.Node, offset, _ int) {
		if a, ok := byPos[offset]; ok {
			flush()
			sections = append(sections, SectionRecord{
				ID:         documentID + "_" + a.ID,
				DocumentID: documentID,
				Title:      title,
				Anchor:     a.ID,
				Heading:    a.Text,
				Level:      a.Level,
			})
			return
		}
		if text := strings.TrimSpace(child.TextContent()); text != "" {
			body = append(body, text)
		}
	})
	flush()
	return sections
}
