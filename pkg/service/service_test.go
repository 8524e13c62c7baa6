package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/grove-tasks/pkg/api"
	"github.com/mattsolo1/grove-tasks/pkg/forest"
	"github.com/mattsolo1/grove-tasks/pkg/frontmatter"
	"github.com/mattsolo1/grove-tasks/pkg/models"
	tasksync "github.com/mattsolo1/grove-tasks/pkg/sync"
	"github.com/mattsolo1/grove-tasks/pkg/taggroup"
	"github.com/mattsolo1/grove-tasks/pkg/task"
	"github.com/mattsolo1/grove-tasks/pkg/taskpath"
)

const (
	idA = "6f1c2f7e-3b1a-4c55-9f1e-0a4f3a3b2c10"
	idB = "0b7e0b0c-56a4-4a53-8d0b-1d4c2a7f9e21"
	idC = "a3d5e7f9-1b2c-4d3e-8f4a-5b6c7d8e9f01"
)

// fakeRemote is an in-memory notes server. The task forest is derived from
// the file paths the same way the real server lays them out.
type fakeRemote struct {
	mu      sync.Mutex
	codec   taskpath.Codec
	files   map[string]string
	version int
	fetches int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{codec: taskpath.Default(), files: make(map[string]string), version: 1}
}

func (f *fakeRemote) etag() string { return fmt.Sprintf(`"v%d"`, f.version) }

func notFound(method, p string) error {
	return &api.StatusError{Method: method, Path: p, Code: 404}
}

func (f *fakeRemote) FetchForest(ctx context.Context, etag string) (forest.FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if etag == f.etag() {
		return forest.FetchResult{ETag: etag, NotModified: true}, nil
	}

	paths := make([]string, 0, len(f.files))
	for p := range f.files {
		if strings.HasPrefix(p, f.codec.Root+"/") && strings.HasSuffix(p, f.codec.Ext) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	nodes := make(map[string]*models.TreeNode)
	parents := make(map[string]string)
	var order []string
	for _, p := range paths {
		rel := strings.TrimSuffix(strings.TrimPrefix(p, f.codec.Root+"/"), f.codec.Ext)
		segs := strings.Split(rel, "/")
		id := segs[len(segs)-1]
		n := &models.TreeNode{UUID: id, Path: p, Size: int64(len(f.files[p])), MimeType: "text/markdown", MTime: "2025-01-01T00:00:00Z"}
		if t, err := task.Parse(id, f.files[p]); err == nil {
			n.Title = models.StringPtr(t.Title)
			tags := make([]any, len(t.Tags))
			for i, tag := range t.Tags {
				tags[i] = tag
			}
			n.Metadata = map[string]any{"tags": tags}
		}
		nodes[id] = n
		order = append(order, id)
		if len(segs) > 1 {
			parents[id] = segs[len(segs)-2]
		}
	}

	var roots []*models.TreeNode
	for _, id := range order {
		if p, ok := nodes[parents[id]]; ok {
			p.Children = append(p.Children, nodes[id])
		} else {
			roots = append(roots, nodes[id])
		}
	}
	return forest.FetchResult{ETag: f.etag(), Forest: roots}, nil
}

func (f *fakeRemote) RenamePath(ctx context.Context, oldPath, newPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.files[oldPath]
	if !ok {
		return notFound("PUT", newPath)
	}
	delete(f.files, oldPath)
	f.files[newPath] = content
	f.version++
	return nil
}

func (f *fakeRemote) ListNotes(ctx context.Context) ([]models.ListEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ListEntry
	for p, content := range f.files {
		var meta struct {
			Tags []string `yaml:"tags"`
		}
		_, _, _ = frontmatter.Parse(content, &meta)
		out = append(out, models.ListEntry{Path: p, Metadata: models.NoteMetadata{Tags: meta.Tags}})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (f *fakeRemote) GetFile(ctx context.Context, p, etag string) (api.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.files[p]
	if !ok {
		return api.File{}, notFound("GET", p)
	}
	return api.File{Content: []byte(content)}, nil
}

func (f *fakeRemote) SaveFile(ctx context.Context, p, content, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[p] = content
	f.version++
	return nil
}

func (f *fakeRemote) DeleteFile(ctx context.Context, p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[p]; !ok {
		return notFound("DELETE", p)
	}
	delete(f.files, p)
	f.version++
	return nil
}

func (f *fakeRemote) has(p string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[p]
	return ok
}

func (f *fakeRemote) put(t *testing.T, p, title string, tags ...string) {
	t.Helper()
	id, err := taskpath.ExtractID(p)
	require.NoError(t, err)
	tk := task.New(id, title)
	tk.Tags = tags
	content, err := task.Render(tk)
	require.NoError(t, err)
	f.files[p] = content
}

// seeded returns a remote holding A{B} and a tagged root leaf C.
func seeded(t *testing.T) *fakeRemote {
	r := newFakeRemote()
	r.put(t, ".tasks/"+idA+".md", "Plan trip")
	r.put(t, ".tasks/"+idA+"/"+idB+".md", "Book flights", "travel")
	r.put(t, ".tasks/"+idC+".md", "Water plants", "home")
	return r
}

func newService(t *testing.T, remote Remote, dataDir string) *Service {
	t.Helper()
	svc, err := New(&Config{DataDir: dataDir, Scan: tasksync.DefaultScanConfig()}, remote)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestRefreshPersistsSnapshotAndIndex(t *testing.T) {
	ctx := context.Background()
	remote := seeded(t)
	dataDir := t.TempDir()
	svc := newService(t, remote, dataDir)

	status, err := svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, forest.StatusOK, status)
	assert.Equal(t, 3, svc.Store.Len())
	assert.Equal(t, idA, svc.Store.ParentOf(idB))

	results, err := svc.Search("flights")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, idB, results[0].UUID)

	results, err = svc.Search("", WithTag("home"))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, idC, results[0].UUID)

	status, err = svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, forest.StatusNotModified, status)

	// A second session starts from the cached snapshot and revalidates it.
	again := newService(t, remote, dataDir)
	assert.True(t, again.Store.IsLoaded())
	assert.Equal(t, 3, again.Store.Len())
	status, err = again.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, forest.StatusNotModified, status)
	assert.Equal(t, 3, remote.fetches)
}

func TestGroupedForest(t *testing.T) {
	svc := newService(t, seeded(t), t.TempDir())
	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	got := svc.GroupedForest()
	require.Len(t, got, 2)
	assert.Equal(t, idA, got[0].UUID)
	assert.Equal(t, "tag-group-home", got[1].UUID)
	require.Len(t, got[1].Children, 1)
	assert.Equal(t, idC, got[1].Children[0].UUID)
}

func TestResolve(t *testing.T) {
	svc := newService(t, seeded(t), t.TempDir())
	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	tests := []struct {
		name    string
		ref     string
		want    string
		wantErr error
	}{
		{name: "full id", ref: idB, want: idB},
		{name: "path", ref: ".tasks/" + idC + ".md", want: idC},
		{name: "prefix", ref: "6f1c", want: idA},
		{name: "upper case prefix", ref: "A3D5", want: idC},
		{name: "unknown", ref: "ffff", wantErr: forest.ErrNodeNotFound},
		{name: "empty", ref: "", wantErr: forest.ErrNodeNotFound},
		{name: "tag group", ref: "tag-group-home", wantErr: taggroup.ErrVirtualNode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Resolve(tt.ref)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	require.NoError(t, svc.Store.AddNodeLocal("", models.NodeRecord{UUID: "6f1c0000-0000-4000-8000-000000000000"}, -1))
	_, err = svc.Resolve("6f1c")
	assert.True(t, errors.Is(err, ErrAmbiguousRef))
}

func TestCreateMoveAndDelete(t *testing.T) {
	ctx := context.Background()
	remote := seeded(t)
	svc := newService(t, remote, t.TempDir())
	_, err := svc.Refresh(ctx)
	require.NoError(t, err)

	created, err := svc.CreateTask(ctx, "Renew passport", UnderParent(idA), WithTags("travel", "travel", "admin"))
	require.NoError(t, err)
	assert.Equal(t, []string{"travel", "admin"}, created.Tags)

	createdPath := ".tasks/" + idA + "/" + created.UUID + ".md"
	assert.True(t, remote.has(createdPath))
	rec, ok := svc.Store.Node(created.UUID)
	require.True(t, ok)
	assert.Equal(t, createdPath, rec.Path)
	assert.Equal(t, []string{idB, created.UUID}, svc.Store.ChildIDs(idA))

	_, err = svc.CreateTask(ctx, "  ")
	assert.Error(t, err)
	_, err = svc.CreateTask(ctx, "Orphan", UnderParent("tag-group-home"))
	assert.True(t, errors.Is(err, taggroup.ErrVirtualNode))

	// Move A (and both children) under C.
	res, err := svc.MoveTask(ctx, idA, idC, -1)
	require.NoError(t, err)
	assert.False(t, res.Partial())
	assert.Len(t, res.Moved, 3)
	assert.True(t, remote.has(".tasks/"+idC+"/"+idA+"/"+idB+".md"))
	assert.False(t, remote.has(".tasks/"+idA+".md"))
	assert.Equal(t, idC, svc.Store.ParentOf(idA))
	rec, _ = svc.Store.Node(idB)
	assert.Equal(t, ".tasks/"+idC+"/"+idA+"/"+idB+".md", rec.Path)
	require.NoError(t, svc.Store.Validate())

	_, err = svc.MoveTask(ctx, idC, idB, -1)
	assert.True(t, errors.Is(err, forest.ErrCyclicMove))

	_, err = svc.DeleteTask(ctx, idA, false)
	assert.True(t, errors.Is(err, forest.ErrHasChildren))
	assert.True(t, remote.has(".tasks/"+idC+"/"+idA+".md"))

	deleted, err := svc.DeleteTask(ctx, idA, true)
	require.NoError(t, err)
	assert.Len(t, deleted, 3)
	assert.Equal(t, idA, deleted[len(deleted)-1], "parent goes last")
	assert.Equal(t, 1, svc.Store.Len())
	assert.False(t, remote.has(".tasks/"+idC+"/"+idA+"/"+idB+".md"))
}

func TestCreateAndDeleteUpdateLocalCache(t *testing.T) {
	ctx := context.Background()
	remote := seeded(t)
	dataDir := t.TempDir()
	svc := newService(t, remote, dataDir)
	_, err := svc.Refresh(ctx)
	require.NoError(t, err)

	created, err := svc.CreateTask(ctx, "Renew passport", WithTags("admin"))
	require.NoError(t, err)

	results, err := svc.Search("passport")
	require.NoError(t, err)
	require.Len(t, results, 1, "index updated without a refresh")
	assert.Equal(t, created.UUID, results[0].UUID)

	snap, ok, err := svc.Index.LoadSnapshot()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, snap.Forest, 3)

	_, err = svc.DeleteTask(ctx, created.UUID, false)
	require.NoError(t, err)
	results, err = svc.Search("passport")
	require.NoError(t, err)
	assert.Empty(t, results)

	// A fresh session sees the same forest as the cache.
	again := newService(t, remote, dataDir)
	assert.Equal(t, 3, again.Store.Len())
	_, ok = again.Store.Node(created.UUID)
	assert.False(t, ok)
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()
	remote := seeded(t)
	svc := newService(t, remote, t.TempDir())
	_, err := svc.Refresh(ctx)
	require.NoError(t, err)

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tk, err := svc.SetStatus(ctx, idC, task.KindInProgress, now)
	require.NoError(t, err)
	assert.Equal(t, task.KindInProgress, tk.Status.Kind())

	tk, err = svc.SetStatus(ctx, idC, task.KindDone, now)
	require.NoError(t, err)
	assert.Equal(t, 100, tk.Progress)

	loaded, err := svc.LoadTask(ctx, idC)
	require.NoError(t, err)
	done, ok := loaded.Status.(task.Done)
	require.True(t, ok)
	assert.Equal(t, "2025-03-01T12:00:00Z", done.CompletedAt)
	assert.Equal(t, "Water plants", loaded.Title)
	assert.Equal(t, []string{"home"}, loaded.Tags)

	_, err = svc.SetStatus(ctx, idC, task.KindTodo, now)
	assert.True(t, errors.Is(err, task.ErrIllegalTransition))
}

func TestScanCreatesTasksAndRefreshes(t *testing.T) {
	ctx := context.Background()
	remote := seeded(t)
	remote.files["journal/monday.md"] = "# Monday\n\nTODO: renew insurance\n"
	svc := newService(t, remote, t.TempDir())
	_, err := svc.Refresh(ctx)
	require.NoError(t, err)

	preview, err := svc.Scan(ctx, true)
	require.NoError(t, err)
	require.Len(t, preview.Detected, 1)
	assert.Empty(t, preview.Created)
	assert.Equal(t, 3, svc.Store.Len())

	report, err := svc.Scan(ctx, false)
	require.NoError(t, err)
	require.Len(t, report.Created, 1)

	rec, ok := svc.Store.Node(report.Created[0].UUID)
	require.True(t, ok, "refresh after scan picks up the new task")
	assert.Equal(t, "renew insurance", rec.DisplayTitle())

	// The created task carries the auto-created tag and is not rescanned.
	again, err := svc.Scan(ctx, true)
	require.NoError(t, err)
	assert.Len(t, again.Detected, 1, "only the journal note yields an issue")
	assert.Equal(t, path.Join(".tasks", report.Created[0].UUID+".md"), report.Created[0].Path)
}

type blockingReader struct {
	release map[string]chan struct{}
	started chan string
}

func (b *blockingReader) GetFile(ctx context.Context, p, etag string) (api.File, error) {
	b.started <- p
	if ch, ok := b.release[p]; ok {
		<-ch
	}
	tk := task.New(strings.TrimSuffix(path.Base(p), ".md"), "T "+p)
	content, _ := task.Render(tk)
	return api.File{Content: []byte(content)}, nil
}

func TestTaskLoaderDiscardsStaleResults(t *testing.T) {
	slow := ".tasks/" + idA + ".md"
	fast := ".tasks/" + idB + ".md"
	reader := &blockingReader{
		release: map[string]chan struct{}{slow: make(chan struct{})},
		started: make(chan string, 2),
	}
	loader := NewTaskLoader(reader, taskpath.Default())

	type result struct {
		t   *task.Task
		err error
	}
	first := make(chan result, 1)
	go func() {
		tk, err := loader.Load(context.Background(), slow)
		first <- result{tk, err}
	}()
	<-reader.started

	tk, err := loader.Load(context.Background(), fast)
	require.NoError(t, err)
	assert.Equal(t, idB, tk.UUID)

	close(reader.release[slow])
	got := <-first
	assert.Nil(t, got.t)
	assert.True(t, errors.Is(got.err, ErrSuperseded))
}

func TestTaskLoaderErrors(t *testing.T) {
	loader := NewTaskLoader(newFakeRemote(), taskpath.Default())

	_, err := loader.Load(context.Background(), ".tasks/not-a-uuid.md")
	assert.True(t, errors.Is(err, taskpath.ErrMalformedPath))

	_, err = loader.Load(context.Background(), ".tasks/"+idA+".md")
	assert.True(t, errors.Is(err, forest.ErrNodeNotFound))
}
