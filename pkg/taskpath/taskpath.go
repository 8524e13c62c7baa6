// Package taskpath maps task identifiers to storage paths and back.
//
// A root task lives at <root>/<id><ext>. A nested task lives in a directory
// per ancestor: <root>/<ancestor>/.../<parent>/<id><ext>.
package taskpath

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

const (
	DefaultRoot = ".tasks"
	DefaultExt  = ".md"

	idLength = 36
)

// ErrMalformedPath is returned when no task identifier can be read from a path.
var ErrMalformedPath = errors.New("malformed task path")

// ParentFunc reports the parent of id; ok is false for roots and unknown ids.
type ParentFunc func(id string) (parent string, ok bool)

// Codec builds and parses task storage paths.
type Codec struct {
	Root string
	Ext  string
}

// Default returns the codec matching the server's layout.
func Default() Codec {
	return Codec{Root: DefaultRoot, Ext: DefaultExt}
}

// Build returns the storage path of id when placed under parentID. An empty
// parentID places the task at the root.
func (c Codec) Build(id, parentID string, parentOf ParentFunc) string {
	if parentID == "" {
		return path.Join(c.Root, id+c.Ext)
	}

	chain := []string{parentID}
	seen := map[string]bool{parentID: true}
	cur := parentID
	for parentOf != nil {
		p, ok := parentOf(cur)
		if !ok || p == "" || seen[p] {
			break
		}
		seen[p] = true
		chain = append(chain, p)
		cur = p
	}

	segments := make([]string, 0, len(chain)+2)
	segments = append(segments, c.Root)
	for i := len(chain) - 1; i >= 0; i-- {
		segments = append(segments, chain[i])
	}
	segments = append(segments, id+c.Ext)
	return path.Join(segments...)
}

// DirOf returns the directory holding the children of the task stored at p.
func (c Codec) DirOf(p string) string {
	return strings.TrimSuffix(p, path.Ext(p))
}

// ChildPath returns the path of child id inside the directory dir.
func (c Codec) ChildPath(dir, id string) string {
	return path.Join(dir, id+c.Ext)
}

// ExtractID reads the task identifier from the trailing part of the file name.
func (c Codec) ExtractID(p string) (string, error) {
	return ExtractID(p)
}

// ExtractID takes the last path segment, strips its extension and validates
// the trailing 36 characters as a version 4 UUID.
func ExtractID(p string) (string, error) {
	base := path.Base(p)
	if base == "." || base == "/" {
		return "", fmt.Errorf("%w: %q has no file name", ErrMalformedPath, p)
	}
	stem := strings.TrimSuffix(base, path.Ext(base))
	if len(stem) < idLength {
		return "", fmt.Errorf("%w: %q is too short to hold an id", ErrMalformedPath, p)
	}
	candidate := stem[len(stem)-idLength:]

	id, err := uuid.Parse(candidate)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrMalformedPath, p, err)
	}
	if id.Version() != 4 || id.Variant() != uuid.RFC4122 {
		return "", fmt.Errorf("%w: %q is not a version 4 uuid", ErrMalformedPath, candidate)
	}
	return strings.ToLower(candidate), nil
}
