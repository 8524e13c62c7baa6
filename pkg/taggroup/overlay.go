// Package taggroup derives a grouped view of a task forest: root tasks
// without children are collected under virtual nodes keyed by their first tag.
package taggroup

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/mattsolo1/grove-tasks/pkg/forest"
	"github.com/mattsolo1/grove-tasks/pkg/models"
)

// ErrVirtualNode is returned when a mutation targets a tag group.
var ErrVirtualNode = errors.New("tag groups are virtual and cannot be modified")

// Source is the part of the forest store the overlay reads.
type Source interface {
	Subscribe(fn func(forest.View)) func()
	Node(id string) (models.NodeRecord, bool)
	ChildrenOf(id string) []models.NodeRecord
	ParentOf(id string) string
}

// Bucket is one tag group of the overlay.
type Bucket struct {
	Tag     string
	Members []string
	MTime   string
}

// Overlay keeps the grouping tables current with its source. Tables are
// rebuilt inside the store's change notification, so readers never observe
// a forest change without the matching regrouping.
type Overlay struct {
	src         Source
	unsubscribe func()

	mu       sync.RWMutex
	collator *collate.Collator
	parents  []string
	groups   map[string]*Bucket
	tags     []string
	leafTag  map[string]string
	forest   []*models.TreeNode
}

// New builds an overlay over src and keeps it in sync until Close.
func New(src Source) *Overlay {
	o := &Overlay{
		src:      src,
		collator: collate.New(language.Und, collate.IgnoreCase),
	}
	o.unsubscribe = src.Subscribe(o.recompute)
	return o
}

// Close stops tracking the source.
func (o *Overlay) Close() {
	if o.unsubscribe != nil {
		o.unsubscribe()
		o.unsubscribe = nil
	}
}

// KeyFor returns the grouping key of a record: the first element of its
// tags array when that is a non-empty scalar, otherwise Untagged.
func KeyFor(rec models.NodeRecord) string {
	tag, ok := models.FirstTag(rec.Metadata)
	if !ok || tag == "" {
		return Untagged
	}
	return tag
}

func (o *Overlay) recompute(v forest.View) {
	var parents []string
	groups := make(map[string]*Bucket)
	leafTag := make(map[string]string)

	for _, id := range v.RootIDs() {
		if v.HasChildren(id) {
			parents = append(parents, id)
			continue
		}
		rec, ok := v.Node(id)
		if !ok {
			continue
		}
		key := KeyFor(rec)
		g, ok := groups[key]
		if !ok {
			g = &Bucket{Tag: key}
			groups[key] = g
		}
		g.Members = append(g.Members, id)
		g.MTime = newer(g.MTime, rec.MTime)
		leafTag[id] = key
	}

	tags := make([]string, 0, len(groups))
	for k := range groups {
		tags = append(tags, k)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	sort.Slice(tags, func(i, j int) bool { return o.lessLocked(tags[i], tags[j]) })
	o.parents = parents
	o.groups = groups
	o.tags = tags
	o.leafTag = leafTag
	o.forest = buildForest(v, parents, groups, tags)
}

// buildForest assembles the grouped forest from the same view the tables
// were computed from.
func buildForest(v forest.View, parents []string, groups map[string]*Bucket, tags []string) []*models.TreeNode {
	out := make([]*models.TreeNode, 0, len(parents)+len(tags))
	for _, id := range parents {
		if tree := subtree(v, id); tree != nil {
			out = append(out, tree)
		}
	}
	for _, t := range tags {
		g := groups[t]
		node := groupRecord(*g).TreeNode(nil)
		for _, id := range g.Members {
			if rec, ok := v.Node(id); ok {
				node.Children = append(node.Children, rec.TreeNode(nil))
			}
		}
		out = append(out, node)
	}
	return out
}

func subtree(v forest.View, id string) *models.TreeNode {
	rec, ok := v.Node(id)
	if !ok {
		return nil
	}
	root := rec.TreeNode(nil)
	stack := []*models.TreeNode{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range v.ChildIDs(n.UUID) {
			crec, ok := v.Node(c)
			if !ok {
				continue
			}
			child := crec.TreeNode(nil)
			n.Children = append(n.Children, child)
			stack = append(stack, child)
		}
	}
	return root
}

func cloneForest(nodes []*models.TreeNode) []*models.TreeNode {
	out := make([]*models.TreeNode, len(nodes))
	type frame struct{ src, dst *models.TreeNode }
	var stack []frame
	for i, n := range nodes {
		cp := *n
		out[i] = &cp
		stack = append(stack, frame{n, &cp})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.src.Children == nil {
			continue
		}
		f.dst.Children = make([]*models.TreeNode, len(f.src.Children))
		for i, c := range f.src.Children {
			cp := *c
			f.dst.Children[i] = &cp
			stack = append(stack, frame{c, &cp})
		}
	}
	return out
}

func (o *Overlay) lessLocked(a, b string) bool {
	if a == Untagged || b == Untagged {
		return b == Untagged && a != Untagged
	}
	if c := o.collator.CompareString(a, b); c != 0 {
		return c < 0
	}
	return a < b
}

// newer picks the later of two RFC3339 timestamps. Unparseable values lose.
func newer(a, b string) string {
	if a == "" {
		return b
	}
	ta, errA := time.Parse(time.RFC3339Nano, a)
	tb, errB := time.Parse(time.RFC3339Nano, b)
	switch {
	case errB != nil:
		return a
	case errA != nil:
		return b
	case tb.After(ta):
		return b
	default:
		return a
	}
}

// SortedTags returns the group keys in display order, Untagged last.
func (o *Overlay) SortedTags() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]string{}, o.tags...)
}

// ParentNodeIDs returns the root tasks that have children, in root order.
func (o *Overlay) ParentNodeIDs() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]string{}, o.parents...)
}

// Groups returns a copy of every group in display order.
func (o *Overlay) Groups() []Bucket {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]Bucket, 0, len(o.tags))
	for _, t := range o.tags {
		g := o.groups[t]
		out = append(out, Bucket{Tag: g.Tag, Members: append([]string{}, g.Members...), MTime: g.MTime})
	}
	return out
}

func (o *Overlay) group(tag string) (Bucket, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	g, ok := o.groups[tag]
	if !ok {
		return Bucket{}, false
	}
	return Bucket{Tag: g.Tag, Members: append([]string{}, g.Members...), MTime: g.MTime}, true
}

func groupRecord(g Bucket) models.NodeRecord {
	return models.NodeRecord{
		UUID:     Group(g.Tag).String(),
		Path:     PathRoot + g.Tag,
		Size:     0,
		MimeType: MimeType,
		Metadata: map[string]any{"tag_group": g.Tag},
		Title:    models.StringPtr(g.Tag),
		MTime:    g.MTime,
	}
}

// Forest returns the grouped forest: real parent trees first, then one
// synthetic node per tag holding that tag's leaves. The result is a copy of
// the forest built at the last store change.
func (o *Overlay) Forest() []*models.TreeNode {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return cloneForest(o.forest)
}

// Node resolves ref against the group tables or the store.
func (o *Overlay) Node(ref Ref) (models.NodeRecord, bool) {
	if ref.IsGroup() {
		g, ok := o.group(ref.Tag())
		if !ok {
			return models.NodeRecord{}, false
		}
		return groupRecord(g), true
	}
	return o.src.Node(ref.ID())
}

// ChildrenOf returns the members of a group or the real children of a task.
func (o *Overlay) ChildrenOf(ref Ref) []models.NodeRecord {
	if !ref.IsGroup() {
		return o.src.ChildrenOf(ref.ID())
	}
	g, ok := o.group(ref.Tag())
	if !ok {
		return nil
	}
	out := make([]models.NodeRecord, 0, len(g.Members))
	for _, id := range g.Members {
		if rec, ok := o.src.Node(id); ok {
			out = append(out, rec)
		}
	}
	return out
}

// ParentOf returns the parent of ref in the grouped forest. Groups and root
// tasks with children have none; root leaves report their group.
func (o *Overlay) ParentOf(ref Ref) (Ref, bool) {
	if ref.IsGroup() {
		return Ref{}, false
	}
	if realParent := o.src.ParentOf(ref.ID()); realParent != "" {
		return Real(realParent), true
	}
	o.mu.RLock()
	tag, ok := o.leafTag[ref.ID()]
	o.mu.RUnlock()
	if !ok {
		return Ref{}, false
	}
	return Group(tag), true
}

// Mutable returns ErrVirtualNode for group refs.
func Mutable(ref Ref) error {
	if ref.IsGroup() {
		return fmt.Errorf("%s: %w", ref, ErrVirtualNode)
	}
	return nil
}
