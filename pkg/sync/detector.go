package sync

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mattsolo1/grove-tasks/pkg/task"
)

// IssueType classifies a detected marker.
type IssueType string

const (
	TypeTodo   IssueType = "todo"
	TypeFixme  IssueType = "fixme"
	TypeBug    IssueType = "bug"
	TypeAction IssueType = "action"
	TypeNote   IssueType = "note"
)

// Priority of a detected issue.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// AutoCreatedTag marks tasks created by the scanner.
const AutoCreatedTag = "auto-created"

// Issue is an actionable item found in a note.
type Issue struct {
	Title      string
	Content    string
	SourceFile string
	Line       int
	Priority   Priority
	Tags       []string
	Type       IssueType
}

// Pattern recognises one kind of marker on a single line. The first
// submatch is the title text.
type Pattern struct {
	Regex    *regexp.Regexp
	Type     IssueType
	Priority Priority
	Title    func(text string) string
}

func prefixed(prefix, fallback string) func(string) string {
	return func(text string) string {
		if text == "" {
			text = fallback
		}
		return prefix + text
	}
}

// Patterns are tried in order; every pattern scans the whole note.
var Patterns = []Pattern{
	{
		Regex:    regexp.MustCompile(`(?i)^\s*(?:[-*+]|\d+\.)\s*\[ \]\s*(.*)$`),
		Type:     TypeTodo,
		Priority: PriorityMedium,
		Title:    prefixed("", "Untitled Task"),
	},
	{
		Regex:    regexp.MustCompile(`(?i)(?:TODO|@todo):\s*(.*)$`),
		Type:     TypeTodo,
		Priority: PriorityMedium,
		Title:    prefixed("", "TODO Item"),
	},
	{
		Regex:    regexp.MustCompile(`(?i)(?:FIXME|@fixme):\s*(.*)$`),
		Type:     TypeFixme,
		Priority: PriorityHigh,
		Title:    prefixed("Fix: ", "Issue"),
	},
	{
		Regex:    regexp.MustCompile(`(?i)(?:BUG|@bug):\s*(.*)$`),
		Type:     TypeBug,
		Priority: PriorityHigh,
		Title:    prefixed("Bug: ", "Issue"),
	},
	{
		Regex:    regexp.MustCompile(`(?i)(?:ACTION|@action):\s*(.*)$`),
		Type:     TypeAction,
		Priority: PriorityMedium,
		Title:    prefixed("Action: ", "Item"),
	},
	{
		Regex:    regexp.MustCompile(`(?i)(?:NOTE|@note):\s*(?:follow-?up|review|check)\s*(.*)$`),
		Type:     TypeNote,
		Priority: PriorityLow,
		Title:    prefixed("Follow-up: ", "Item"),
	},
}

// Detect scans content for markers. Results are ordered by pattern, then by
// line. The content of an issue is the indented block directly below it.
func Detect(content, sourceFile string) []Issue {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")

	var issues []Issue
	for _, p := range Patterns {
		for i, line := range lines {
			m := p.Regex.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			title := p.Title(strings.TrimSpace(m[1]))
			if len(title) < 3 {
				continue
			}
			body := continuation(lines[i+1:])

			tags := []string{string(p.Type)}
			lower := strings.ToLower(body)
			if strings.Contains(lower, "urgent") {
				tags = append(tags, "urgent")
			}
			if strings.Contains(lower, "important") {
				tags = append(tags, "important")
			}

			issues = append(issues, Issue{
				Title:      title,
				Content:    body,
				SourceFile: sourceFile,
				Line:       i + 1,
				Priority:   p.Priority,
				Tags:       tags,
				Type:       p.Type,
			})
		}
	}
	return issues
}

// continuation collects the indented, non-blank lines that follow a marker.
func continuation(lines []string) string {
	var out []string
	for _, l := range lines {
		if strings.TrimSpace(l) == "" || (!strings.HasPrefix(l, " ") && !strings.HasPrefix(l, "\t")) {
			break
		}
		out = append(out, strings.TrimSpace(l))
	}
	return strings.Join(out, "\n")
}

// GroupByFile buckets issues by source file.
func GroupByFile(issues []Issue) map[string][]Issue {
	out := make(map[string][]Issue)
	for _, is := range issues {
		out[is.SourceFile] = append(out[is.SourceFile], is)
	}
	return out
}

func scores(p Priority) (importance, urgency int) {
	switch p {
	case PriorityHigh:
		return 5, 5
	case PriorityLow:
		return 2, 2
	default:
		return 3, 3
	}
}

// ToTask converts an issue into a new todo task with the given id.
func ToTask(is Issue, id string) *task.Task {
	t := task.New(id, is.Title)
	t.Importance, t.Urgency = scores(is.Priority)
	t.Tags = append(append([]string{}, is.Tags...), AutoCreatedTag)
	t.Status = task.Todo{}

	origin := fmt.Sprintf("*Auto-created from %s:%d*", is.SourceFile, is.Line)
	if is.Content != "" {
		t.Note = is.Content + "\n\n---\n" + origin
	} else {
		t.Note = origin
	}
	return t
}
