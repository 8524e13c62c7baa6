// Package forest holds the normalized, in-memory task forest and keeps it in
// sync with the remote store.
//
// Nodes live in flat identity-keyed maps with parent, child and path indices
// on the side. Every mutation runs under the store lock and ends by notifying
// subscribers while the lock is still held, so a subscriber's derived state is
// never behind the forest it was computed from.
package forest

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-tasks/pkg/models"
	"github.com/mattsolo1/grove-tasks/pkg/taskpath"
)

// state is the normalized forest. A parent of "" marks a root.
type state struct {
	nodes    map[string]models.NodeRecord
	children map[string][]string
	parents  map[string]string
	paths    map[string]string
	roots    []string
}

func newState() state {
	return state{
		nodes:    make(map[string]models.NodeRecord),
		children: make(map[string][]string),
		parents:  make(map[string]string),
		paths:    make(map[string]string),
		roots:    []string{},
	}
}

func (st state) clone() state {
	out := state{
		nodes:    make(map[string]models.NodeRecord, len(st.nodes)),
		children: make(map[string][]string, len(st.children)),
		parents:  make(map[string]string, len(st.parents)),
		paths:    make(map[string]string, len(st.paths)),
		roots:    append([]string{}, st.roots...),
	}
	for k, v := range st.nodes {
		out.nodes[k] = v
	}
	for k, v := range st.children {
		out.children[k] = append([]string{}, v...)
	}
	for k, v := range st.parents {
		out.parents[k] = v
	}
	for k, v := range st.paths {
		out.paths[k] = v
	}
	return out
}

// Snapshot is a deep copy of the normalized maps.
type Snapshot struct {
	Nodes    map[string]models.NodeRecord
	Children map[string][]string
	Parents  map[string]string
	Paths    map[string]string
	Roots    []string
}

// Option configures a Store.
type Option func(*Store)

// WithCodec overrides the path layout.
func WithCodec(c taskpath.Codec) Option {
	return func(s *Store) { s.codec = c }
}

// WithLogger sets the logger used for best-effort failures.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

type subscriber struct {
	id int
	fn func(View)
}

// Store is the task forest of one session.
type Store struct {
	mu        sync.RWMutex
	transport Transport
	codec     taskpath.Codec
	logger    logrus.FieldLogger

	state
	lastETag   string
	loaded     bool
	loading    bool
	selectedID string

	subscribers []subscriber
	nextSubID   int
}

// New creates an empty store. transport may be nil for purely local use.
func New(transport Transport, opts ...Option) *Store {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	s := &Store{
		transport: transport,
		codec:     taskpath.Default(),
		logger:    discard,
		state:     newState(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Codec returns the path layout used by the store.
func (s *Store) Codec() taskpath.Codec {
	return s.codec
}

// Subscribe registers fn to be called after every change to the forest, and
// once immediately. fn runs with the store locked: it must read through the
// View it is given and must not call back into the Store.
func (s *Store) Subscribe(fn func(View)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subscribers = append(s.subscribers, subscriber{id: id, fn: fn})
	fn(View{s: s})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subscribers {
			if sub.id == id {
				s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) notifyLocked() {
	v := View{s: s}
	for _, sub := range s.subscribers {
		sub.fn(v)
	}
}

// ===== Accessors =====

// Node returns the record for id.
func (s *Store) Node(id string) (models.NodeRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.nodes[id]
	return rec, ok
}

// ChildrenOf returns the children of id in display order. Dangling ids are
// skipped.
func (s *Store) ChildrenOf(id string) []models.NodeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recordsLocked(s.children[id])
}

// ChildIDs returns a copy of the child list of id.
func (s *Store) ChildIDs(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.children[id]...)
}

// ParentOf returns the parent of id, or "" for roots and unknown ids.
func (s *Store) ParentOf(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.parents[id]
}

// IDByPath resolves a storage path to an id.
func (s *Store) IDByPath(path string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.paths[path]
	return id, ok
}

// RootIDs returns a copy of the root list.
func (s *Store) RootIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.roots...)
}

// Subtree rebuilds the nested tree rooted at id.
func (s *Store) Subtree(id string) (*models.TreeNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subtreeLocked(id)
}

// Forest rebuilds every root tree in root order.
func (s *Store) Forest() []*models.TreeNode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.TreeNode, 0, len(s.roots))
	for _, rid := range s.roots {
		if tree, err := s.subtreeLocked(rid); err == nil {
			out = append(out, tree)
		}
	}
	return out
}

// FlattenSubtree returns id and its descendants in pre-order.
func (s *Store) FlattenSubtree(id string) []models.NodeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.nodes[id]; !ok {
		return nil
	}
	return s.recordsLocked(append([]string{id}, s.descendantsLocked(id)...))
}

// FlattenDescendants returns the descendants of id in pre-order, without id.
func (s *Store) FlattenDescendants(id string) []models.NodeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recordsLocked(s.descendantsLocked(id))
}

// DescendantIDs returns the descendant ids of id in pre-order.
func (s *Store) DescendantIDs(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.descendantsLocked(id)
}

// AllTaskIDs returns every id, root by root, in pre-order.
func (s *Store) AllTaskIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.nodes))
	for _, rid := range s.roots {
		out = append(out, rid)
		out = append(out, s.descendantsLocked(rid)...)
	}
	return out
}

// Len is the number of nodes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// HasData reports whether the forest holds any node.
func (s *Store) HasData() bool {
	return s.Len() > 0
}

// ETag is the version token of the last ingested server snapshot.
func (s *Store) ETag() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastETag
}

// IsLoaded reports whether a server snapshot has been ingested.
func (s *Store) IsLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// IsLoading reports whether a refresh is in flight.
func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Snapshot returns a deep copy of the normalized maps.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.state.clone()
	return Snapshot{Nodes: c.nodes, Children: c.children, Parents: c.parents, Paths: c.paths, Roots: c.roots}
}

// ===== Selection =====

// Select marks id as the selected node. An empty id clears the selection.
func (s *Store) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != "" {
		if _, ok := s.nodes[id]; !ok {
			return fmt.Errorf("select %s: %w", id, ErrNodeNotFound)
		}
	}
	s.selectedID = id
	return nil
}

// SelectByPath selects the node stored at path, or clears the selection.
func (s *Store) SelectByPath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedID = s.paths[path]
}

// Selected returns the selected node.
func (s *Store) Selected() (models.NodeRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.nodes[s.selectedID]
	return rec, ok
}

// SelectedDescendantIDs returns the descendants of the selected node.
func (s *Store) SelectedDescendantIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selectedID == "" {
		return nil
	}
	return s.descendantsLocked(s.selectedID)
}

// ===== Consistency =====

// Validate checks the structural invariants of the forest.
func (s *Store) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var errs []error
	ids := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		rec := s.nodes[id]
		parent, ok := s.parents[id]
		if !ok {
			errs = append(errs, fmt.Errorf("%s: no parent entry", id))
			continue
		}
		if parent == "" {
			if !contains(s.roots, id) {
				errs = append(errs, fmt.Errorf("%s: parentless but not a root", id))
			}
		} else {
			if _, ok := s.nodes[parent]; !ok {
				errs = append(errs, fmt.Errorf("%s: parent %s: %w", id, parent, ErrNodeNotFound))
			}
			if !contains(s.children[parent], id) {
				errs = append(errs, fmt.Errorf("%s: missing from children of %s", id, parent))
			}
		}
		if s.paths[rec.Path] != id {
			errs = append(errs, fmt.Errorf("%s: path %q not indexed", id, rec.Path))
		}
		if s.hasCycleLocked(id) {
			errs = append(errs, fmt.Errorf("%s: %w", id, ErrCyclicMove))
		}
	}
	for p, kids := range s.children {
		for _, c := range kids {
			if s.parents[c] != p {
				errs = append(errs, fmt.Errorf("%s: listed under %s but parent is %q", c, p, s.parents[c]))
			}
		}
	}
	for _, r := range s.roots {
		if s.parents[r] != "" {
			errs = append(errs, fmt.Errorf("%s: root with parent %s", r, s.parents[r]))
		}
	}
	for path, id := range s.paths {
		if rec, ok := s.nodes[id]; !ok || rec.Path != path {
			errs = append(errs, fmt.Errorf("path %q: stale index entry for %s", path, id))
		}
	}
	return errors.Join(errs...)
}

// ===== Helpers (lock held) =====

func (s *Store) recordsLocked(ids []string) []models.NodeRecord {
	out := make([]models.NodeRecord, 0, len(ids))
	for _, id := range ids {
		if rec, ok := s.nodes[id]; ok {
			out = append(out, rec)
		}
	}
	return out
}

// descendantsLocked walks the subtree below root with an explicit stack and
// returns the ids in pre-order.
func (s *Store) descendantsLocked(root string) []string {
	out := []string{}
	seen := map[string]bool{root: true}
	stack := pushReversed(nil, s.children[root])
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
		stack = pushReversed(stack, s.children[id])
	}
	return out
}

func (s *Store) subtreeLocked(id string) (*models.TreeNode, error) {
	rec, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("subtree %s: %w", id, ErrNodeNotFound)
	}

	root := rec.TreeNode(nil)
	built := map[string]*models.TreeNode{id: root}
	for _, did := range s.descendantsLocked(id) {
		if r, ok := s.nodes[did]; ok {
			built[did] = r.TreeNode(nil)
		}
	}
	for nid, node := range built {
		for _, cid := range s.children[nid] {
			if child, ok := built[cid]; ok {
				node.Children = append(node.Children, child)
			}
		}
	}
	return root, nil
}

func (s *Store) isDescendantLocked(candidate, of string) bool {
	for cur, seen := s.parents[candidate], map[string]bool{}; cur != "" && !seen[cur]; cur = s.parents[cur] {
		if cur == of {
			return true
		}
		seen[cur] = true
	}
	return false
}

func (s *Store) hasCycleLocked(id string) bool {
	seen := map[string]bool{id: true}
	for cur := s.parents[id]; cur != ""; cur = s.parents[cur] {
		if seen[cur] {
			return true
		}
		seen[cur] = true
	}
	return false
}

func (s *Store) parentLookupLocked() taskpath.ParentFunc {
	return func(id string) (string, bool) {
		p, ok := s.parents[id]
		return p, ok && p != ""
	}
}

func pushReversed(stack, ids []string) []string {
	for i := len(ids) - 1; i >= 0; i-- {
		stack = append(stack, ids[i])
	}
	return stack
}

func contains(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func removeID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

func insertAt(ids []string, id string, index int) []string {
	pos := clampIndex(index, len(ids))
	out := make([]string, 0, len(ids)+1)
	out = append(out, ids[:pos]...)
	out = append(out, id)
	return append(out, ids[pos:]...)
}

// clampIndex maps a negative index to "append" and clamps the rest to
// [0, length].
func clampIndex(index, length int) int {
	if index < 0 || index > length {
		return length
	}
	return index
}
