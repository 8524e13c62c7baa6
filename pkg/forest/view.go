package forest

import "github.com/mattsolo1/grove-tasks/pkg/models"

// View is read access to the forest handed to subscribers. It does not lock
// and is only valid for the duration of the callback that received it.
type View struct {
	s *Store
}

// Node returns the record for id.
func (v View) Node(id string) (models.NodeRecord, bool) {
	rec, ok := v.s.nodes[id]
	return rec, ok
}

// ChildIDs returns a copy of the child list of id.
func (v View) ChildIDs(id string) []string {
	return append([]string{}, v.s.children[id]...)
}

// HasChildren reports whether id has at least one child.
func (v View) HasChildren(id string) bool {
	return len(v.s.children[id]) > 0
}

// ParentOf returns the parent of id, or "" for roots and unknown ids.
func (v View) ParentOf(id string) string {
	return v.s.parents[id]
}

// RootIDs returns a copy of the root list.
func (v View) RootIDs() []string {
	return append([]string{}, v.s.roots...)
}

// Len is the number of nodes.
func (v View) Len() int {
	return len(v.s.nodes)
}
