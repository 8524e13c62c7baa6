package tree

import (
	"time"

	"github.com/mattsolo1/grove-tasks/pkg/models"
	"github.com/mattsolo1/grove-tasks/pkg/taggroup"
)

// ItemType categorizes the different kinds of items in the task tree.
type ItemType string

const (
	TypeTask  ItemType = "task"
	TypeGroup ItemType = "group" // A virtual tag group
)

// Item represents a single node of a rendered task forest.
type Item struct {
	ID      string
	Path    string
	Title   string
	Tags    []string
	ModTime time.Time
	Type    ItemType

	// Hierarchy
	Parent   *Item
	Children []*Item
}

type buildFrame struct {
	node   *models.TreeNode
	parent *Item
}

// FromForest converts wire trees into items with parent links.
func FromForest(forest []*models.TreeNode) []*Item {
	var roots []*Item
	stack := make([]buildFrame, 0, len(forest))
	for i := len(forest) - 1; i >= 0; i-- {
		if forest[i] != nil {
			stack = append(stack, buildFrame{node: forest[i]})
		}
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		rec := f.node.Record()
		item := &Item{
			ID:     rec.UUID,
			Path:   rec.Path,
			Title:  rec.DisplayTitle(),
			Tags:   rec.Tags(),
			Type:   TypeTask,
			Parent: f.parent,
		}
		if rec.MimeType == taggroup.MimeType {
			item.Type = TypeGroup
			item.Tags = nil
		}
		if t, err := time.Parse(time.RFC3339Nano, rec.MTime); err == nil {
			item.ModTime = t
		}

		if f.parent == nil {
			roots = append(roots, item)
		} else {
			f.parent.Children = append(f.parent.Children, item)
		}
		for i := len(f.node.Children) - 1; i >= 0; i-- {
			if c := f.node.Children[i]; c != nil {
				stack = append(stack, buildFrame{node: c, parent: item})
			}
		}
	}
	return roots
}

// Depth is the number of ancestors of the item.
func (it *Item) Depth() int {
	d := 0
	for p := it.Parent; p != nil; p = p.Parent {
		d++
	}
	return d
}
