package forest

import (
	"context"
	"fmt"
)

// RefreshStatus reports whether a refresh changed the forest.
type RefreshStatus string

const (
	StatusOK          RefreshStatus = "ok"
	StatusNotModified RefreshStatus = "not-modified"
)

// Refresh fetches the forest conditionally on the last known etag and
// replaces local state when the server has a newer version. A call made
// while another refresh is in flight returns StatusNotModified without
// touching the network.
func (s *Store) Refresh(ctx context.Context) (RefreshStatus, error) {
	if s.transport == nil {
		return StatusNotModified, ErrNoTransport
	}

	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		s.logger.Debug("refresh already in flight, skipping")
		return StatusNotModified, nil
	}
	s.loading = true
	etag := s.lastETag
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	res, err := s.transport.FetchForest(ctx, etag)
	if err != nil {
		return StatusNotModified, fmt.Errorf("refresh task forest: %w", err)
	}
	if res.NotModified {
		s.logger.WithField("etag", etag).Debug("task forest not modified")
		return StatusNotModified, nil
	}

	s.IngestReplace(res.Forest, res.ETag)
	s.logger.WithField("etag", res.ETag).Debug("task forest replaced")
	return StatusOK, nil
}
