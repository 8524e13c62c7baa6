package forest

import (
	"context"
	"fmt"
)

// MoveFailure records a rename that the server rejected.
type MoveFailure struct {
	ID      string
	OldPath string
	NewPath string
	Err     error
}

// MoveResult describes what a server-side subtree move achieved. A move with
// failures is partial: the server holds some descendants at their old paths
// until a later move or a refresh reconciles them.
type MoveResult struct {
	Moved   []string
	Failed  []MoveFailure
	Skipped []string // descendants of failed nodes, never attempted
}

// Partial reports whether any rename in the subtree failed.
func (r MoveResult) Partial() bool {
	return len(r.Failed) > 0 || len(r.Skipped) > 0
}

type renameFrame struct {
	id     string
	oldDir string
	newDir string
}

// MoveSubtreeOnServer renames id from its path under oldParent to its path
// under newParent, then renames every descendant, parent before children and
// one request at a time. Failure to rename id itself aborts with an error.
// A failing descendant is recorded in the result and its own subtree is
// skipped; its siblings still move.
func (s *Store) MoveSubtreeOnServer(ctx context.Context, id, oldParent, newParent string) (MoveResult, error) {
	var result MoveResult
	if s.transport == nil {
		return result, ErrNoTransport
	}

	s.mu.RLock()
	lookup := s.parentLookupLocked()
	oldPath := s.codec.Build(id, oldParent, lookup)
	newPath := s.codec.Build(id, newParent, lookup)
	children := make(map[string][]string)
	for _, nid := range append([]string{id}, s.descendantsLocked(id)...) {
		children[nid] = append([]string{}, s.children[nid]...)
	}
	s.mu.RUnlock()

	if oldPath == newPath {
		return result, nil
	}

	log := s.logger.WithField("task", id)
	if err := s.transport.RenamePath(ctx, oldPath, newPath); err != nil {
		return result, fmt.Errorf("rename %s to %s: %w", oldPath, newPath, err)
	}
	result.Moved = append(result.Moved, id)
	log.WithField("from", oldPath).WithField("to", newPath).Debug("renamed task")

	oldDir, newDir := s.codec.DirOf(oldPath), s.codec.DirOf(newPath)
	var stack []renameFrame
	for i := len(children[id]) - 1; i >= 0; i-- {
		stack = append(stack, renameFrame{id: children[id][i], oldDir: oldDir, newDir: newDir})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		from := s.codec.ChildPath(f.oldDir, f.id)
		to := s.codec.ChildPath(f.newDir, f.id)
		if err := s.transport.RenamePath(ctx, from, to); err != nil {
			log.WithError(err).WithField("child", f.id).Warn("failed to move child task")
			result.Failed = append(result.Failed, MoveFailure{ID: f.id, OldPath: from, NewPath: to, Err: err})
			result.Skipped = append(result.Skipped, collect(children, f.id)...)
			continue
		}
		result.Moved = append(result.Moved, f.id)

		kids := children[f.id]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, renameFrame{id: kids[i], oldDir: s.codec.DirOf(from), newDir: s.codec.DirOf(to)})
		}
	}
	return result, nil
}

// MoveNode moves id under newParent ("" for the root list) on the server and
// locally, then refreshes to reconcile local state with what the server
// actually holds. Unknown ids and cyclic moves are rejected before any
// request is made. Moving within the same parent is a no-op.
func (s *Store) MoveNode(ctx context.Context, id, newParent string, index int) (MoveResult, error) {
	s.mu.RLock()
	err := s.checkMoveLocked(id, newParent)
	oldParent := s.parents[id]
	s.mu.RUnlock()
	if err != nil {
		return MoveResult{}, err
	}
	if oldParent == newParent {
		return MoveResult{}, nil
	}

	result, err := s.MoveSubtreeOnServer(ctx, id, oldParent, newParent)
	if err != nil {
		return result, fmt.Errorf("move %s: %w", id, err)
	}
	if result.Partial() {
		s.logger.WithField("task", id).
			WithField("failed", len(result.Failed)).
			WithField("skipped", len(result.Skipped)).
			Warn("subtree move was partial, refreshing to reconcile")
	}

	localErr := s.MoveNodeLocal(id, newParent, index)
	if _, err := s.Refresh(ctx); err != nil {
		return result, fmt.Errorf("move %s: reconcile: %w", id, err)
	}
	if localErr != nil {
		return result, fmt.Errorf("move %s: %w", id, localErr)
	}
	return result, nil
}

// collect returns the descendants of id in a captured child table.
func collect(children map[string][]string, id string) []string {
	var out []string
	stack := pushReversed(nil, children[id])
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, n)
		stack = pushReversed(stack, children[n])
	}
	return out
}
