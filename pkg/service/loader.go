package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/mattsolo1/grove-tasks/pkg/api"
	"github.com/mattsolo1/grove-tasks/pkg/forest"
	"github.com/mattsolo1/grove-tasks/pkg/task"
	"github.com/mattsolo1/grove-tasks/pkg/taskpath"
)

// ErrSuperseded is returned by a load that finished after a newer load was
// started on the same loader. Its result is discarded.
var ErrSuperseded = errors.New("superseded by a newer load")

// FileReader fetches raw file content.
type FileReader interface {
	GetFile(ctx context.Context, path, etag string) (api.File, error)
}

// TaskLoader reads and parses single task files. Only the most recently
// started load may deliver a result.
type TaskLoader struct {
	files   FileReader
	codec   taskpath.Codec
	current atomic.Uint64
}

// NewTaskLoader creates a loader reading through files.
func NewTaskLoader(files FileReader, codec taskpath.Codec) *TaskLoader {
	return &TaskLoader{files: files, codec: codec}
}

// Load fetches and parses the task stored at path. A missing file yields an
// error wrapping forest.ErrNodeNotFound.
func (l *TaskLoader) Load(ctx context.Context, path string) (*task.Task, error) {
	req := l.current.Add(1)

	t, err := l.load(ctx, path)
	if l.current.Load() != req {
		return nil, fmt.Errorf("load %s: %w", path, ErrSuperseded)
	}
	return t, err
}

func (l *TaskLoader) load(ctx context.Context, path string) (*task.Task, error) {
	id, err := l.codec.ExtractID(path)
	if err != nil {
		return nil, err
	}

	f, err := l.files.GetFile(ctx, path, "")
	if err != nil {
		if api.IsNotFound(err) {
			return nil, fmt.Errorf("load %s: %w", path, forest.ErrNodeNotFound)
		}
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return task.Parse(id, string(f.Content))
}
