package forest

import "errors"

var (
	// ErrNodeNotFound is returned when an operation references an unknown id.
	ErrNodeNotFound = errors.New("node not found")
	// ErrPathMismatch is returned when a local replace would change a path.
	// Path changes have to go through a move.
	ErrPathMismatch = errors.New("path does not match stored path")
	// ErrHasChildren is returned when deleting a node that still has children.
	ErrHasChildren = errors.New("node has children")
	// ErrCyclicMove is returned when a node would be moved under itself or
	// one of its descendants.
	ErrCyclicMove = errors.New("move would create a cycle")
	// ErrDuplicateNode is returned when adding an id that is already present.
	ErrDuplicateNode = errors.New("node already exists")
	// ErrPathConflict is returned when a path is already indexed to another id.
	ErrPathConflict = errors.New("path already in use")
	// ErrNoTransport is returned by network operations on a store built
	// without a transport.
	ErrNoTransport = errors.New("store has no transport")
)
