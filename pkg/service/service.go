package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-tasks/pkg/api"
	"github.com/mattsolo1/grove-tasks/pkg/forest"
	"github.com/mattsolo1/grove-tasks/pkg/models"
	"github.com/mattsolo1/grove-tasks/pkg/search"
	tasksync "github.com/mattsolo1/grove-tasks/pkg/sync"
	"github.com/mattsolo1/grove-tasks/pkg/taggroup"
	"github.com/mattsolo1/grove-tasks/pkg/taskpath"
)

// Remote is everything the service needs from the notes server.
// *api.Client implements it.
type Remote interface {
	forest.Transport
	tasksync.NoteSource
	DeleteFile(ctx context.Context, path string) error
}

// Service is the core task service
type Service struct {
	Remote  Remote
	Store   *forest.Store
	Overlay *taggroup.Overlay
	Index   *search.Index
	Loader  *TaskLoader
	Config  *Config

	logger logrus.FieldLogger
}

// Config holds service configuration
type Config struct {
	ServerURL string
	Token     string
	DataDir   string
	TaskRoot  string
	TaskExt   string
	Scan      tasksync.ScanConfig
	Logger    logrus.FieldLogger
}

func (c *Config) codec() taskpath.Codec {
	codec := taskpath.Default()
	if c.TaskRoot != "" {
		codec.Root = c.TaskRoot
	}
	if c.TaskExt != "" {
		codec.Ext = c.TaskExt
	}
	return codec
}

// New creates a task service. remote may be nil, in which case an HTTP
// client for config.ServerURL is built.
func New(config *Config, remote Remote) (*Service, error) {
	logger := config.Logger
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}

	if remote == nil {
		client, err := api.New(config.ServerURL, api.WithToken(config.Token), api.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("create client: %w", err)
		}
		remote = client
	}

	if err := os.MkdirAll(config.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}
	index, err := search.NewIndex(filepath.Join(config.DataDir, "index.db"))
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}

	codec := config.codec()
	store := forest.New(remote, forest.WithCodec(codec), forest.WithLogger(logger))

	// Seed from the last snapshot so the first refresh is conditional.
	snap, ok, err := index.LoadSnapshot()
	if err != nil {
		logger.WithError(err).Warn("ignoring unreadable snapshot cache")
	} else if ok {
		store.IngestReplace(snap.Forest, snap.ETag)
	}

	return &Service{
		Remote:  remote,
		Store:   store,
		Overlay: taggroup.New(store),
		Index:   index,
		Loader:  NewTaskLoader(remote, codec),
		Config:  config,
		logger:  logger,
	}, nil
}

// Refresh pulls the forest from the server. When it changed, the snapshot
// cache and the search index are rewritten.
func (s *Service) Refresh(ctx context.Context) (forest.RefreshStatus, error) {
	status, err := s.Store.Refresh(ctx)
	if err != nil {
		return status, err
	}
	if status == forest.StatusOK {
		if err := s.persist(); err != nil {
			s.logger.WithError(err).Warn("failed to update local cache")
		}
	}
	return status, nil
}

// persist writes the current forest to the snapshot cache and search index.
func (s *Service) persist() error {
	var errs []error
	if err := s.Index.SaveSnapshot(s.Store.ETag(), s.Store.Forest()); err != nil {
		errs = append(errs, err)
	}

	ids := s.Store.AllTaskIDs()
	entries := make([]search.Entry, 0, len(ids))
	for _, id := range ids {
		if rec, ok := s.Store.Node(id); ok {
			entries = append(entries, search.EntryFromRecord(rec, s.Store.ParentOf(id)))
		}
	}
	if err := s.Index.IndexEntries(entries); err != nil {
		errs = append(errs, fmt.Errorf("index tasks: %w", err))
	}
	return errors.Join(errs...)
}

// GroupedForest returns the forest with root leaves collected under their
// tag groups.
func (s *Service) GroupedForest() []*models.TreeNode {
	return s.Overlay.Forest()
}

// Logger returns the logger the service was configured with.
func (s *Service) Logger() logrus.FieldLogger {
	return s.logger
}

// Close releases the overlay subscription and the index.
func (s *Service) Close() error {
	s.Overlay.Close()
	if s.Index != nil {
		return s.Index.Close()
	}
	return nil
}
