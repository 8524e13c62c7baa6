// Package task models a single task file: its status state machine and its
// frontmatter serialization.
package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattsolo1/grove-tasks/pkg/frontmatter"
)

// Task is the parsed content of one task file.
type Task struct {
	UUID           string
	Title          string
	Tags           []string
	Status         Status
	Progress       int
	Importance     int
	Urgency        int
	StartAt        string
	DueBy          string
	Deadline       string
	ScheduledDates []string
	Note           string
}

// New returns a todo task with the default importance and urgency.
func New(id, title string) *Task {
	return &Task{
		UUID:           id,
		Title:          title,
		Tags:           []string{},
		Status:         Todo{},
		Importance:     3,
		Urgency:        3,
		ScheduledDates: []string{},
	}
}

// document is the on-disk frontmatter layout; field order is the key order.
type document struct {
	Task block    `yaml:"task"`
	Tags []string `yaml:"tags"`
}

type block struct {
	Status         statusField `yaml:"status"`
	Progress       int         `yaml:"progress"`
	Importance     int         `yaml:"importance"`
	Urgency        int         `yaml:"urgency"`
	StartAt        string      `yaml:"start_at,omitempty"`
	DueBy          string      `yaml:"due_by,omitempty"`
	Deadline       string      `yaml:"deadline,omitempty"`
	ScheduledDates []string    `yaml:"scheduled_dates"`
}

// Render serializes t as task file content.
func Render(t *Task) (string, error) {
	doc := document{
		Task: block{
			Status:         statusField{Status: t.Status},
			Progress:       t.Progress,
			Importance:     t.Importance,
			Urgency:        t.Urgency,
			StartAt:        t.StartAt,
			DueBy:          t.DueBy,
			Deadline:       t.Deadline,
			ScheduledDates: nonNil(t.ScheduledDates),
		},
		Tags: nonNil(t.Tags),
	}

	fm, err := frontmatter.Build(doc)
	if err != nil {
		return "", fmt.Errorf("render task %s: %w", t.UUID, err)
	}

	var sb strings.Builder
	sb.WriteString(fm)
	if t.Title != "" {
		sb.WriteString("\n# ")
		sb.WriteString(t.Title)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(t.Note)
	return sb.String(), nil
}

// Parse reads task file content. id is supplied by the caller, usually
// extracted from the file's path.
func Parse(id, content string) (*Task, error) {
	var doc document
	body, found, err := frontmatter.Parse(content, &doc)
	if err != nil {
		return nil, fmt.Errorf("parse task %s: %w", id, err)
	}
	if !found {
		return nil, fmt.Errorf("parse task %s: missing frontmatter", id)
	}

	title, rest := frontmatter.ExtractHeading(body)
	if title == "" {
		rest = strings.TrimPrefix(body, "\n")
	}

	status := doc.Task.Status.Status
	if status == nil {
		status = Todo{}
	}

	return &Task{
		UUID:           id,
		Title:          title,
		Tags:           nonNil(doc.Tags),
		Status:         status,
		Progress:       doc.Task.Progress,
		Importance:     doc.Task.Importance,
		Urgency:        doc.Task.Urgency,
		StartAt:        doc.Task.StartAt,
		DueBy:          doc.Task.DueBy,
		Deadline:       doc.Task.Deadline,
		ScheduledDates: nonNil(doc.Task.ScheduledDates),
		Note:           rest,
	}, nil
}

// ApplyStatus moves t to next if the transition table allows it. Completion
// and cancellation timestamps left empty are stamped with now, and finishing
// a task sets its progress to 100.
func ApplyStatus(t *Task, next Status, now time.Time) error {
	if next == nil {
		return fmt.Errorf("%w: nil status", ErrUnknownKind)
	}
	if t.Status == nil {
		t.Status = Todo{}
	}
	if !CanTransition(t.Status, next.Kind()) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, t.Status.Kind(), next.Kind())
	}

	switch v := next.(type) {
	case Done:
		if v.CompletedAt == "" {
			v.CompletedAt = frontmatter.FormatTimestamp(now)
		}
		next = v
		t.Progress = 100
	case Canceled:
		if v.CanceledAt == "" {
			v.CanceledAt = frontmatter.FormatTimestamp(now)
		}
		next = v
	}
	t.Status = next
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
