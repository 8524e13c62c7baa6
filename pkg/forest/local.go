package forest

import (
	"fmt"

	"github.com/mattsolo1/grove-tasks/pkg/models"
)

// AddNodeLocal inserts rec under parent ("" for a root) at index. A negative
// index appends; larger indices are clamped. An empty rec.Path is filled in
// from the path layout.
func (s *Store) AddNodeLocal(parent string, rec models.NodeRecord, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := rec.UUID
	if id == "" {
		return fmt.Errorf("add node: empty id: %w", ErrNodeNotFound)
	}
	if _, ok := s.nodes[id]; ok {
		return fmt.Errorf("add node %s: %w", id, ErrDuplicateNode)
	}
	if parent != "" {
		if _, ok := s.nodes[parent]; !ok {
			return fmt.Errorf("add node %s: parent %s: %w", id, parent, ErrNodeNotFound)
		}
	}
	if rec.Path == "" {
		rec.Path = s.codec.Build(id, parent, s.parentLookupLocked())
	}
	if owner, ok := s.paths[rec.Path]; ok {
		return fmt.Errorf("add node %s: %q belongs to %s: %w", id, rec.Path, owner, ErrPathConflict)
	}

	s.nodes[id] = rec
	s.paths[rec.Path] = id
	s.children[id] = []string{}
	s.parents[id] = parent
	if parent == "" {
		s.roots = insertAt(s.roots, id, index)
	} else {
		s.children[parent] = insertAt(s.children[parent], id, index)
	}

	s.notifyLocked()
	return nil
}

// ReplaceNodeLocal overwrites the record of an existing node. The path must
// not change; use a move for that.
func (s *Store) ReplaceNodeLocal(rec models.NodeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.nodes[rec.UUID]
	if !ok {
		return fmt.Errorf("replace node %s: %w", rec.UUID, ErrNodeNotFound)
	}
	if prev.Path != rec.Path {
		return fmt.Errorf("replace node %s: new path %q, stored %q: %w", rec.UUID, rec.Path, prev.Path, ErrPathMismatch)
	}

	s.nodes[rec.UUID] = rec
	s.notifyLocked()
	return nil
}

// DeleteLeafLocal removes a node without children. Callers delete a subtree
// leaf first.
func (s *Store) DeleteLeafLocal(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("delete node %s: %w", id, ErrNodeNotFound)
	}
	if len(s.children[id]) > 0 {
		return fmt.Errorf("delete node %s: %w", id, ErrHasChildren)
	}

	s.detachLocked(id)
	if s.paths[rec.Path] == id {
		delete(s.paths, rec.Path)
	}
	delete(s.nodes, id)
	delete(s.parents, id)
	delete(s.children, id)
	if s.selectedID == id {
		s.selectedID = ""
	}

	s.notifyLocked()
	return nil
}

// MoveNodeLocal re-parents id under newParent ("" for the root list) at
// index and regenerates the path of id and of every descendant.
func (s *Store) MoveNodeLocal(id, newParent string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkMoveLocked(id, newParent); err != nil {
		return err
	}

	s.detachLocked(id)
	s.parents[id] = newParent
	if newParent == "" {
		s.roots = insertAt(s.roots, id, index)
	} else {
		s.children[newParent] = insertAt(s.children[newParent], id, index)
	}
	s.reindexPathsLocked(id)

	s.notifyLocked()
	return nil
}

// checkMoveLocked validates a move before anything is changed.
func (s *Store) checkMoveLocked(id, newParent string) error {
	if _, ok := s.nodes[id]; !ok {
		return fmt.Errorf("move node %s: %w", id, ErrNodeNotFound)
	}
	if newParent == "" {
		return nil
	}
	if _, ok := s.nodes[newParent]; !ok {
		return fmt.Errorf("move node %s: parent %s: %w", id, newParent, ErrNodeNotFound)
	}
	if newParent == id || s.isDescendantLocked(newParent, id) {
		return fmt.Errorf("move node %s under %s: %w", id, newParent, ErrCyclicMove)
	}
	return nil
}

// detachLocked removes id from its parent's child list or from the roots.
func (s *Store) detachLocked(id string) {
	if p := s.parents[id]; p == "" {
		s.roots = removeID(s.roots, id)
	} else {
		s.children[p] = removeID(s.children[p], id)
	}
}

// reindexPathsLocked rebuilds the path of root and its descendants from their
// current parent chains.
func (s *Store) reindexPathsLocked(root string) {
	lookup := s.parentLookupLocked()
	for _, id := range append([]string{root}, s.descendantsLocked(root)...) {
		rec, ok := s.nodes[id]
		if !ok {
			continue
		}
		next := s.codec.Build(id, s.parents[id], lookup)
		if next == rec.Path {
			continue
		}
		if s.paths[rec.Path] == id {
			delete(s.paths, rec.Path)
		}
		rec.Path = next
		s.nodes[id] = rec
		s.paths[next] = id
	}
}
