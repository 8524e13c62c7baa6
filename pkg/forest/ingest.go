package forest

import (
	"github.com/mattsolo1/grove-tasks/pkg/models"
)

// IngestReplace discards the current forest and rebuilds it from trees. The
// result depends only on trees: ingesting the same input twice yields
// identical maps and root order.
func (s *Store) IngestReplace(trees []*models.TreeNode, etag string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := newState()
	for _, root := range trees {
		if root == nil {
			continue
		}
		if !contains(next.roots, root.UUID) {
			next.roots = append(next.roots, root.UUID)
		}
		ingestTree(&next, root, "", nil)
	}

	s.state = next
	s.lastETag = etag
	s.loaded = true
	if _, ok := s.nodes[s.selectedID]; !ok {
		s.selectedID = ""
	}
	s.notifyLocked()
}

// IngestMerge overlays trees onto the current forest. Incoming roots are
// appended to the root list; nodes absent from trees are left as they are.
// An untouched node whose path is claimed by an incoming node is dropped
// together with its untouched descendants, since the server no longer holds
// it at that path. An empty etag keeps the current one.
func (s *Store) IngestMerge(trees []*models.TreeNode, etag string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.clone()
	m := &mergeLog{
		prevChildren: make(map[string][]string),
		touched:      make(map[string]bool),
	}
	for _, root := range trees {
		if root == nil {
			continue
		}
		ingestTree(&next, root, "", m)
		if !contains(next.roots, root.UUID) {
			next.roots = append(next.roots, root.UUID)
		}
	}

	// Children that were attached to an overlaid node, are missing from the
	// incoming list and were not re-homed elsewhere stay where they were.
	for id, kids := range m.prevChildren {
		for _, k := range kids {
			if next.parents[k] == id && !contains(next.children[id], k) {
				next.children[id] = append(next.children[id], k)
			}
		}
	}

	for _, owner := range m.displaced {
		if m.touched[owner] {
			continue
		}
		if _, ok := next.nodes[owner]; !ok {
			continue
		}
		dropped := dropSubtree(&next, owner, m.touched)
		s.logger.WithField("node", owner).WithField("dropped", len(dropped)).
			Warn("merge reassigned path; dropping stale node")
	}

	s.state = next
	if etag != "" {
		s.lastETag = etag
	}
	s.loaded = true
	if _, ok := s.nodes[s.selectedID]; !ok {
		s.selectedID = ""
	}
	s.notifyLocked()
}

// mergeLog collects what a merge touched.
type mergeLog struct {
	prevChildren map[string][]string
	touched      map[string]bool
	displaced    []string // previous owners of paths taken by incoming nodes
}

// dropSubtree removes id and its descendants that are not in keep. It
// returns the removed ids.
func dropSubtree(st *state, id string, keep map[string]bool) []string {
	if p := st.parents[id]; p == "" {
		st.roots = removeID(st.roots, id)
	} else {
		st.children[p] = removeID(st.children[p], id)
	}

	var removed []string
	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range st.children[cur] {
			if !keep[c] {
				stack = append(stack, c)
			}
		}
		if rec, ok := st.nodes[cur]; ok && st.paths[rec.Path] == cur {
			delete(st.paths, rec.Path)
		}
		delete(st.nodes, cur)
		delete(st.children, cur)
		delete(st.parents, cur)
		removed = append(removed, cur)
	}
	return removed
}

type ingestFrame struct {
	node   *models.TreeNode
	parent string
}

// ingestTree writes root and its descendants into st in pre-order. When m is
// non-nil the ingestion is a merge: nodes that already exist are detached
// from their previous parent if it changed, their stale path entry is
// dropped, and their previous child list is recorded.
func ingestTree(st *state, root *models.TreeNode, parent string, m *mergeLog) {
	stack := []ingestFrame{{node: root, parent: parent}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := f.node
		id := n.UUID

		if prev, exists := st.nodes[id]; exists && m != nil {
			if oldParent := st.parents[id]; oldParent != f.parent {
				if oldParent == "" {
					st.roots = removeID(st.roots, id)
				} else {
					st.children[oldParent] = removeID(st.children[oldParent], id)
				}
			}
			if prev.Path != n.Path && st.paths[prev.Path] == id {
				delete(st.paths, prev.Path)
			}
			if _, recorded := m.prevChildren[id]; !recorded {
				m.prevChildren[id] = append([]string{}, st.children[id]...)
			}
		}
		if m != nil {
			m.touched[id] = true
			if owner, ok := st.paths[n.Path]; ok && owner != id {
				m.displaced = append(m.displaced, owner)
			}
		}

		st.nodes[id] = n.Record()
		st.parents[id] = f.parent
		st.paths[n.Path] = id

		kids := make([]string, 0, len(n.Children))
		for _, c := range n.Children {
			if c != nil {
				kids = append(kids, c.UUID)
			}
		}
		st.children[id] = kids

		for i := len(n.Children) - 1; i >= 0; i-- {
			if c := n.Children[i]; c != nil {
				stack = append(stack, ingestFrame{node: c, parent: id})
			}
		}
	}
}
