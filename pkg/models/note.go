package models

// NoteMetadata is the subset of a note's frontmatter returned by the note
// listing endpoint.
type NoteMetadata struct {
	Tags []string       `json:"tags,omitempty"`
	Task *NoteTaskBlock `json:"task,omitempty"`
}

// NoteTaskBlock is present when the note is itself a task file.
type NoteTaskBlock struct {
	Status struct {
		Kind string `json:"kind"`
	} `json:"status"`
}

// ListEntry is one element of the note listing.
type ListEntry struct {
	Path     string       `json:"path"`
	Metadata NoteMetadata `json:"metadata"`
}

// HasTag reports whether the note carries the given tag.
func (e ListEntry) HasTag(tag string) bool {
	for _, t := range e.Metadata.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// IsDoneTask reports whether the note is a task whose status is done.
func (e ListEntry) IsDoneTask() bool {
	return e.Metadata.Task != nil && e.Metadata.Task.Status.Kind == "done"
}
