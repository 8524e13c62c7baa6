package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mattsolo1/grove-tasks/pkg/forest"
	"github.com/mattsolo1/grove-tasks/pkg/frontmatter"
	"github.com/mattsolo1/grove-tasks/pkg/models"
	"github.com/mattsolo1/grove-tasks/pkg/search"
	tasksync "github.com/mattsolo1/grove-tasks/pkg/sync"
	"github.com/mattsolo1/grove-tasks/pkg/taggroup"
	"github.com/mattsolo1/grove-tasks/pkg/task"
)

// ErrAmbiguousRef is returned when an id prefix matches more than one task.
var ErrAmbiguousRef = errors.New("ambiguous task reference")

// Resolve turns a user supplied reference into a task id. It accepts a full
// id, a storage path, or a unique id prefix. Tag group ids are rejected.
func (s *Service) Resolve(ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("empty task reference: %w", forest.ErrNodeNotFound)
	}
	if err := taggroup.Mutable(taggroup.ParseRef(ref)); err != nil {
		return "", err
	}
	if _, ok := s.Store.Node(ref); ok {
		return ref, nil
	}
	if id, ok := s.Store.IDByPath(ref); ok {
		return id, nil
	}

	var matches []string
	for _, id := range s.Store.AllTaskIDs() {
		if strings.HasPrefix(id, strings.ToLower(ref)) {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%s: %w", ref, forest.ErrNodeNotFound)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%s matches %d tasks: %w", ref, len(matches), ErrAmbiguousRef)
	}
}

type createOptions struct {
	parent string
	tags   []string
	note   string
	now    func() time.Time
}

// CreateOption configures CreateTask.
type CreateOption func(*createOptions)

// UnderParent creates the task as a child of parent.
func UnderParent(parent string) CreateOption {
	return func(o *createOptions) { o.parent = parent }
}

// WithTags sets the tags of the new task.
func WithTags(tags ...string) CreateOption {
	return func(o *createOptions) { o.tags = append(o.tags, tags...) }
}

// WithNote sets the body of the new task.
func WithNote(note string) CreateOption {
	return func(o *createOptions) { o.note = note }
}

// CreateTask writes a new todo task to the server and adds it to the local
// forest.
func (s *Service) CreateTask(ctx context.Context, title string, options ...CreateOption) (*task.Task, error) {
	opts := &createOptions{now: time.Now}
	for _, opt := range options {
		opt(opts)
	}
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("create task: empty title")
	}

	parent := ""
	if opts.parent != "" {
		id, err := s.Resolve(opts.parent)
		if err != nil {
			return nil, fmt.Errorf("create task: parent: %w", err)
		}
		parent = id
	}

	t := task.New(uuid.NewString(), title)
	t.Tags = frontmatter.MergeTags(opts.tags)
	t.Note = opts.note

	content, err := task.Render(t)
	if err != nil {
		return nil, err
	}
	p := s.Store.Codec().Build(t.UUID, parent, func(id string) (string, bool) {
		if _, ok := s.Store.Node(id); !ok {
			return "", false
		}
		return s.Store.ParentOf(id), true
	})
	if err := s.Remote.SaveFile(ctx, p, content, "Create task "+title); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	tags := make([]any, len(t.Tags))
	for i, tag := range t.Tags {
		tags[i] = tag
	}
	rec := models.NodeRecord{
		UUID:     t.UUID,
		Path:     p,
		Size:     int64(len(content)),
		MimeType: "text/markdown",
		Metadata: map[string]any{"tags": tags},
		Title:    models.StringPtr(title),
		MTime:    frontmatter.FormatTimestamp(opts.now()),
	}
	if err := s.Store.AddNodeLocal(parent, rec, -1); err != nil {
		return t, fmt.Errorf("create task: saved but not added locally: %w", err)
	}
	if err := s.persist(); err != nil {
		s.logger.WithError(err).Warn("failed to update local cache")
	}
	s.logger.WithField("task", t.UUID).WithField("path", p).Info("created task")
	return t, nil
}

// DeleteTask removes a task file. With recursive set the whole subtree is
// removed, deepest tasks first; otherwise a task with children is rejected
// before any request is made.
func (s *Service) DeleteTask(ctx context.Context, ref string, recursive bool) ([]string, error) {
	id, err := s.Resolve(ref)
	if err != nil {
		return nil, err
	}

	order := []string{id}
	if desc := s.Store.DescendantIDs(id); len(desc) > 0 {
		if !recursive {
			return nil, fmt.Errorf("delete %s: %w", id, forest.ErrHasChildren)
		}
		order = append(order, desc...)
	}

	deleted, err := s.deleteFiles(ctx, order)
	if len(deleted) > 0 {
		if perr := s.persist(); perr != nil {
			s.logger.WithError(perr).Warn("failed to update local cache")
		}
	}
	return deleted, err
}

// deleteFiles removes the tasks in order from last to first, stopping at the
// first failure.
func (s *Service) deleteFiles(ctx context.Context, order []string) ([]string, error) {
	var deleted []string
	for i := len(order) - 1; i >= 0; i-- {
		rec, ok := s.Store.Node(order[i])
		if !ok {
			continue
		}
		if err := s.Remote.DeleteFile(ctx, rec.Path); err != nil {
			return deleted, fmt.Errorf("delete %s: %w", rec.Path, err)
		}
		if err := s.Store.DeleteLeafLocal(rec.UUID); err != nil {
			return deleted, err
		}
		deleted = append(deleted, rec.UUID)
	}
	return deleted, nil
}

// MoveTask re-parents a task and its subtree. An empty parent moves it to
// the root list.
func (s *Service) MoveTask(ctx context.Context, ref, parentRef string, index int) (forest.MoveResult, error) {
	id, err := s.Resolve(ref)
	if err != nil {
		return forest.MoveResult{}, err
	}
	parent := ""
	if parentRef != "" {
		if parent, err = s.Resolve(parentRef); err != nil {
			return forest.MoveResult{}, fmt.Errorf("move target: %w", err)
		}
	}

	res, err := s.Store.MoveNode(ctx, id, parent, index)
	if err != nil {
		return res, err
	}
	if err := s.persist(); err != nil {
		s.logger.WithError(err).Warn("failed to update local cache")
	}
	return res, nil
}

// LoadTask fetches and parses the file of a task.
func (s *Service) LoadTask(ctx context.Context, ref string) (*task.Task, error) {
	id, err := s.Resolve(ref)
	if err != nil {
		return nil, err
	}
	rec, _ := s.Store.Node(id)
	return s.Loader.Load(ctx, rec.Path)
}

// SetStatus moves a task to a new status kind and saves it. Switching to a
// different kind starts from that kind's default fields.
func (s *Service) SetStatus(ctx context.Context, ref string, kind task.Kind, now time.Time) (*task.Task, error) {
	id, err := s.Resolve(ref)
	if err != nil {
		return nil, err
	}
	rec, _ := s.Store.Node(id)

	t, err := s.Loader.Load(ctx, rec.Path)
	if err != nil {
		return nil, err
	}

	next := t.Status
	if next == nil || next.Kind() != kind {
		if next, err = task.MakeDefault(kind); err != nil {
			return nil, err
		}
	}
	if err := task.ApplyStatus(t, next, now); err != nil {
		return nil, err
	}

	content, err := task.Render(t)
	if err != nil {
		return nil, err
	}
	msg := fmt.Sprintf("Set %s to %s", t.Title, task.Label(kind))
	if err := s.Remote.SaveFile(ctx, rec.Path, content, msg); err != nil {
		return nil, fmt.Errorf("save %s: %w", rec.Path, err)
	}
	return t, nil
}

type searchOptions struct {
	tag   string
	limit int
}

// SearchOption configures Search.
type SearchOption func(*searchOptions)

// WithTag restricts results to tasks carrying tag.
func WithTag(tag string) SearchOption {
	return func(o *searchOptions) { o.tag = tag }
}

// WithLimit caps the number of results.
func WithLimit(limit int) SearchOption {
	return func(o *searchOptions) { o.limit = limit }
}

// Search queries the local index built at the last refresh.
func (s *Service) Search(query string, options ...SearchOption) ([]search.Result, error) {
	opts := &searchOptions{limit: 50}
	for _, opt := range options {
		opt(opts)
	}

	results, err := s.Index.Search(query, &search.Options{Tag: opts.tag, Limit: opts.limit})
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	return results, nil
}

// Scan runs the note scanner. Unless preview is set, detected issues are
// written as task files and the forest is refreshed afterwards.
func (s *Service) Scan(ctx context.Context, preview bool) (*tasksync.Report, error) {
	syncer := tasksync.NewSyncer(s.Remote, s.Config.Scan,
		tasksync.WithCodec(s.Store.Codec()),
		tasksync.WithLogger(s.logger),
	)
	if preview {
		return syncer.Preview(ctx)
	}

	report, err := syncer.Scan(ctx)
	if err != nil {
		return report, err
	}
	if len(report.Created) > 0 {
		if _, err := s.Refresh(ctx); err != nil {
			return report, fmt.Errorf("refresh after scan: %w", err)
		}
	}
	return report, nil
}
