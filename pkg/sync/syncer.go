// Package sync scans notes for actionable markers (checkboxes, TODO:, FIXME:
// and similar) and turns them into task files.
package sync

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-tasks/pkg/task"
	"github.com/mattsolo1/grove-tasks/pkg/taskpath"
)

// Syncer orchestrates a scan over every note of a NoteSource.
type Syncer struct {
	src    NoteSource
	cfg    ScanConfig
	codec  taskpath.Codec
	logger logrus.FieldLogger
	newID  func() string
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithCodec sets the path layout for created task files.
func WithCodec(c taskpath.Codec) Option {
	return func(s *Syncer) { s.codec = c }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Syncer) { s.logger = l }
}

// WithIDGenerator replaces uuid.NewString for new task ids.
func WithIDGenerator(fn func() string) Option {
	return func(s *Syncer) { s.newID = fn }
}

// NewSyncer creates a new Syncer.
func NewSyncer(src NoteSource, cfg ScanConfig, opts ...Option) *Syncer {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	s := &Syncer{
		src:    src,
		cfg:    cfg,
		codec:  taskpath.Default(),
		logger: discard,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// matchesPatterns reports whether the file name of p matches any configured
// glob, ignoring case. No patterns means every file matches.
func (s *Syncer) matchesPatterns(p string) bool {
	if len(s.cfg.FilePatterns) == 0 {
		return true
	}
	base := strings.ToLower(path.Base(p))
	for _, pattern := range s.cfg.FilePatterns {
		if ok, err := path.Match(strings.ToLower(pattern), base); err == nil && ok {
			return true
		}
	}
	return false
}

func (s *Syncer) skipReason(p string, hasSkipTag, done bool) string {
	switch {
	case done && !s.cfg.IncludeCompleted:
		return "completed task"
	case !s.matchesPatterns(p):
		return "file pattern"
	case hasSkipTag:
		return "skip tag"
	case strings.HasPrefix(p, s.codec.Root+"/"):
		return "task file"
	}
	return ""
}

// detect lists notes and runs the detector on every eligible one.
func (s *Syncer) detect(ctx context.Context, report *Report) (map[string][]Issue, []string, error) {
	notes, err := s.src.ListNotes(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list notes: %w", err)
	}

	byFile := make(map[string][]Issue)
	var order []string
	for _, n := range notes {
		hasSkipTag := false
		for _, tag := range s.cfg.SkipTags {
			if n.HasTag(tag) {
				hasSkipTag = true
				break
			}
		}
		if reason := s.skipReason(n.Path, hasSkipTag, n.IsDoneTask()); reason != "" {
			s.logger.WithField("note", n.Path).WithField("reason", reason).Debug("skipping note")
			report.Skipped++
			continue
		}

		f, err := s.src.GetFile(ctx, n.Path, "")
		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("error scanning %s: %v", n.Path, err))
			continue
		}
		report.Scanned++

		issues := Detect(string(f.Content), n.Path)
		if s.cfg.MaxIssuesPerFile > 0 && len(issues) > s.cfg.MaxIssuesPerFile {
			issues = issues[:s.cfg.MaxIssuesPerFile]
		}
		if len(issues) == 0 {
			continue
		}
		byFile[n.Path] = issues
		order = append(order, n.Path)
		report.Detected = append(report.Detected, issues...)
	}
	return byFile, order, nil
}

// Preview reports what a scan would create without writing anything.
func (s *Syncer) Preview(ctx context.Context) (*Report, error) {
	report := &Report{}
	if _, _, err := s.detect(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// Scan detects issues in every eligible note and writes one task file per
// issue at the root of the task tree. A failure on one note or one task is
// recorded in the report and does not stop the scan.
func (s *Syncer) Scan(ctx context.Context) (*Report, error) {
	report := &Report{}
	byFile, order, err := s.detect(ctx, report)
	if err != nil {
		return nil, err
	}

	for _, file := range order {
		for _, is := range byFile[file] {
			if err := ctx.Err(); err != nil {
				return report, err
			}

			id := s.newID()
			t := ToTask(is, id)
			content, err := task.Render(t)
			if err != nil {
				report.Failed++
				report.Errors = append(report.Errors, fmt.Sprintf("error rendering task %q: %v", is.Title, err))
				continue
			}

			p := s.codec.Build(id, "", nil)
			if err := s.src.SaveFile(ctx, p, content, "Auto-create task from "+file); err != nil {
				report.Failed++
				report.Errors = append(report.Errors, fmt.Sprintf("error creating task from issue %q: %v", is.Title, err))
				continue
			}

			s.logger.WithField("task", id).WithField("source", file).Info("created task from note")
			report.Created = append(report.Created, CreatedTask{
				UUID:  id,
				Path:  p,
				Title: t.Title,
				From:  fmt.Sprintf("%s:%d", is.SourceFile, is.Line),
			})
		}
	}
	return report, nil
}
