package forest

import (
	"context"

	"github.com/mattsolo1/grove-tasks/pkg/models"
)

// FetchResult is the outcome of a conditional forest fetch.
type FetchResult struct {
	ETag string
	// Forest is nil when NotModified is set.
	Forest      []*models.TreeNode
	NotModified bool
}

// Transport is the remote store the forest synchronizes against.
type Transport interface {
	// FetchForest fetches the full forest. A non-empty etag is sent as a
	// precondition; the server may answer "not modified".
	FetchForest(ctx context.Context, etag string) (FetchResult, error)
	// RenamePath moves a file at the storage layer.
	RenamePath(ctx context.Context, oldPath, newPath string) error
}
