package tree

import (
	"fmt"
	"io"
	"strings"
)

// Line is one row of a rendered tree.
type Line struct {
	Item   *Item
	Prefix string
}

type lineFrame struct {
	item   *Item
	indent string
	last   bool
	root   bool
}

// Lines flattens items in display order with box-drawing prefixes.
func Lines(items []*Item) []Line {
	var out []Line
	stack := make([]lineFrame, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		stack = append(stack, lineFrame{item: items[i], root: true})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var prefix, childIndent string
		switch {
		case f.root:
			prefix, childIndent = "", ""
		case f.last:
			prefix, childIndent = f.indent+"└ ", f.indent+"  "
		default:
			prefix, childIndent = f.indent+"├ ", f.indent+"│ "
		}
		out = append(out, Line{Item: f.item, Prefix: prefix})

		kids := f.item.Children
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, lineFrame{item: kids[i], indent: childIndent, last: i == len(kids)-1})
		}
	}
	return out
}

// Options controls Render output.
type Options struct {
	ShowIDs  bool
	ShowTags bool
}

// Render writes items as an indented tree, one node per line.
func Render(w io.Writer, items []*Item, opts Options) error {
	for _, l := range Lines(items) {
		var sb strings.Builder
		sb.WriteString(l.Prefix)
		if l.Item.Type == TypeGroup {
			fmt.Fprintf(&sb, "[%s] (%d)", l.Item.Title, len(l.Item.Children))
		} else {
			sb.WriteString(l.Item.Title)
		}
		if opts.ShowTags && len(l.Item.Tags) > 0 {
			sb.WriteString("  #" + strings.Join(l.Item.Tags, " #"))
		}
		if opts.ShowIDs && l.Item.Type == TypeTask {
			sb.WriteString("  " + l.Item.ID)
		}
		sb.WriteString("\n")
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}
