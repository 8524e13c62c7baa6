package models

import (
	"github.com/mitchellh/mapstructure"
)

// TreeNode is the server's wire representation of a task file and its
// nested children.
type TreeNode struct {
	UUID     string      `json:"uuid"`
	Name     *string     `json:"name,omitempty"`
	Path     string      `json:"path"`
	Size     int64       `json:"size"`
	MimeType string      `json:"mime_type"`
	Metadata any         `json:"metadata,omitempty"` // Arbitrary JSON; inspected for "tags"
	Title    *string     `json:"title,omitempty"`
	MTime    string      `json:"mtime"` // RFC3339
	Children []*TreeNode `json:"children,omitempty"`
}

// NodeRecord is the flat, normalized form of a TreeNode held by the forest
// store. It never carries children; hierarchy lives in the store's indices.
type NodeRecord struct {
	UUID     string  `json:"uuid"`
	Name     *string `json:"name,omitempty"`
	Path     string  `json:"path"`
	Size     int64   `json:"size"`
	MimeType string  `json:"mime_type"`
	Metadata any     `json:"metadata,omitempty"`
	Title    *string `json:"title,omitempty"`
	MTime    string  `json:"mtime"`
}

// Record strips the children off a wire node.
func (n *TreeNode) Record() NodeRecord {
	return NodeRecord{
		UUID:     n.UUID,
		Name:     n.Name,
		Path:     n.Path,
		Size:     n.Size,
		MimeType: n.MimeType,
		Metadata: n.Metadata,
		Title:    n.Title,
		MTime:    n.MTime,
	}
}

// TreeNode converts the record back to wire shape with the given children.
func (r NodeRecord) TreeNode(children []*TreeNode) *TreeNode {
	return &TreeNode{
		UUID:     r.UUID,
		Name:     r.Name,
		Path:     r.Path,
		Size:     r.Size,
		MimeType: r.MimeType,
		Metadata: r.Metadata,
		Title:    r.Title,
		MTime:    r.MTime,
		Children: children,
	}
}

// DisplayTitle returns the title, falling back to the name and then the uuid.
func (r NodeRecord) DisplayTitle() string {
	if r.Title != nil && *r.Title != "" {
		return *r.Title
	}
	if r.Name != nil && *r.Name != "" {
		return *r.Name
	}
	return r.UUID
}

// Tags returns the "tags" array from the record's metadata.
func (r NodeRecord) Tags() []string {
	return MetadataTags(r.Metadata)
}

// MetadataTags returns the "tags" array of an arbitrary metadata value.
// Scalar elements are stringified one by one; nested arrays, objects and
// nulls are dropped without affecting their neighbours. Metadata that is not
// an object, or whose tags entry is not an array, yields nil.
func MetadataTags(metadata any) []string {
	raw, ok := rawTags(metadata)
	if !ok {
		return nil
	}
	tags := make([]string, 0, len(raw))
	for _, elem := range raw {
		if tag, ok := tagString(elem); ok {
			tags = append(tags, tag)
		}
	}
	return tags
}

// FirstTag returns the first element of the "tags" array when it is a
// scalar. Later elements are never consulted.
func FirstTag(metadata any) (string, bool) {
	raw, ok := rawTags(metadata)
	if !ok || len(raw) == 0 {
		return "", false
	}
	return tagString(raw[0])
}

func rawTags(metadata any) ([]any, bool) {
	m, ok := metadata.(map[string]any)
	if !ok {
		return nil, false
	}
	switch v := m["tags"].(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, t := range v {
			out[i] = t
		}
		return out, true
	}
	return nil, false
}

func tagString(elem any) (string, bool) {
	switch elem.(type) {
	case nil, []any, map[string]any:
		return "", false
	}
	var tag string
	if err := mapstructure.WeakDecode(elem, &tag); err != nil {
		return "", false
	}
	return tag, true
}

// StringPtr is a convenience for optional string fields.
func StringPtr(s string) *string {
	return &s
}
