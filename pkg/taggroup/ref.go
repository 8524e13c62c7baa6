package taggroup

import "strings"

const (
	// GroupPrefix marks the string form of a tag group id.
	GroupPrefix = "tag-group-"
	// Untagged collects root leaves without a usable first tag.
	Untagged = "Untagged"
	// MimeType is reported by synthetic group nodes.
	MimeType = "application/x-tag-group"
	// PathRoot is the pseudo directory group nodes live under.
	PathRoot = ".tags/"
)

// Ref addresses either a real task or a virtual tag group.
type Ref struct {
	value string
	group bool
}

// Real refers to the task with the given id.
func Real(id string) Ref {
	return Ref{value: id}
}

// Group refers to the tag group for tag.
func Group(tag string) Ref {
	return Ref{value: tag, group: true}
}

// ParseRef decodes the string form used by callers that only deal in ids.
func ParseRef(s string) Ref {
	if tag, ok := strings.CutPrefix(s, GroupPrefix); ok {
		return Group(tag)
	}
	return Real(s)
}

// IsGroup reports whether r is a tag group.
func (r Ref) IsGroup() bool { return r.group }

// ID is the task id of a real ref, or "" for a group.
func (r Ref) ID() string {
	if r.group {
		return ""
	}
	return r.value
}

// Tag is the tag of a group ref, or "" for a real task.
func (r Ref) Tag() string {
	if !r.group {
		return ""
	}
	return r.value
}

// String returns the wire id: the task id, or GroupPrefix + tag.
func (r Ref) String() string {
	if r.group {
		return GroupPrefix + r.value
	}
	return r.value
}
