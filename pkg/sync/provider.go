package sync

import (
	"context"

	"github.com/mattsolo1/grove-tasks/pkg/api"
	"github.com/mattsolo1/grove-tasks/pkg/models"
)

// NoteSource is the remote note storage the scanner reads from and writes
// new task files to. *api.Client implements it.
type NoteSource interface {
	ListNotes(ctx context.Context) ([]models.ListEntry, error)
	GetFile(ctx context.Context, path, etag string) (api.File, error)
	SaveFile(ctx context.Context, path, content, message string) error
}

// CreatedTask records a task file written by a scan.
type CreatedTask struct {
	UUID  string
	Path  string
	Title string
	From  string // source note and line
}

// Report summarizes the results of a scan.
type Report struct {
	Scanned  int
	Skipped  int
	Detected []Issue
	Created  []CreatedTask
	Failed   int
	Errors   []string // Detailed error messages
}
