package nodes

import (
	"strconv"

	"github.com/ehtisham-afzal/outline/internal/markdown"
	"github.com/ehtisham-afzal/outline/internal/model"
)

type BulletList struct{}

func (BulletList) Name() string { return "bullet_list" }

func (BulletList) NodeSpec() model.NodeSpec {
	return model.NodeSpec{Name: "bullet_list", Content: "list_item+", Group: "block"}
}

func (BulletList) ToMarkdown(st *markdown.SerializerState, node, _ *model.Node, _ int) {
	st.RenderList(node, "  ", func(int) string { return "- " })
}

func (BulletList) ParseMarkdown() map[string]markdown.ParseSpec {
	return map[string]markdown.ParseSpec{"bullet_list": {Block: "bullet_list"}}
}

// OrderedList numbers its items from the order attribute.
type OrderedList struct{}

func (OrderedList) Name() string { return "ordered_list" }

func (OrderedList) NodeSpec() model.NodeSpec {
	return model.NodeSpec{
		Name:    "ordered_list",
		Content: "list_item+",
		Group:   "block",
		Attrs: map[string]model.AttrSpec{
			"order": {Default: 1, Validate: model.IntRange(0, 999999999)},
		},
	}
}

func (OrderedList) ToMarkdown(st *markdown.SerializerState, node, _ *model.Node, _ int) {
	start := node.Attrs().Int("order")
	width := len(strconv.Itoa(start + node.ChildCount() - 1))
	st.RenderList(node, markdown.Repeat(" ", width+2), func(i int) string {
		n := strconv.Itoa(start + i)
		return markdown.Repeat(" ", width-len(n)) + n + ". "
	})
}

func (OrderedList) ParseMarkdown() map[string]markdown.ParseSpec {
	return map[string]markdown.ParseSpec{
		"ordered_list": {Block: "ordered_list", GetAttrs: func(tok markdown.Token) model.Attrs {
			order, err := strconv.Atoi(tok.Attr("start"))
			if err != nil {
				order = 1
			}
			return model.Attrs{"order": order}
		}},
	}
}

type ListItem struct{}

func (ListItem) Name() string { return "list_item" }

func (ListItem) NodeSpec() model.NodeSpec {
	return model.NodeSpec{Name: "list_item", Content: "paragraph block*", Defining: true}
}

func (ListItem) ToMarkdown(st *markdown.SerializerState, node, _ *model.Node, _ int) {
	st.RenderContent(node)
}

func (ListItem) ParseMarkdown() map[string]markdown.ParseSpec {
	return map[string]markdown.ParseSpec{"list_item": {Block: "list_item"}}
}
