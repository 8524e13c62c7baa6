package taggroup

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/grove-tasks/pkg/forest"
	"github.com/mattsolo1/grove-tasks/pkg/models"
)

func leaf(id, path, mtime string, tags ...any) *models.TreeNode {
	n := &models.TreeNode{
		UUID:     id,
		Path:     path,
		MimeType: "text/markdown",
		Title:    models.StringPtr("Task " + id),
		MTime:    mtime,
	}
	if tags != nil {
		n.Metadata = map[string]any{"tags": tags}
	} else {
		n.Metadata = map[string]any{"tags": []any{}}
	}
	return n
}

func TestOverlayGroupsRootLeaves(t *testing.T) {
	a := leaf("A", ".tasks/A.md", "2025-01-01T00:00:00Z", "x")
	a.Children = []*models.TreeNode{
		leaf("A1", ".tasks/A/A1.md", "2025-01-01T00:00:00Z"),
		leaf("A2", ".tasks/A/A2.md", "2025-01-01T00:00:00Z"),
	}
	b := leaf("B", ".tasks/B.md", "2025-01-02T00:00:00Z", "x")
	c := leaf("C", ".tasks/C.md", "2025-01-03T00:00:00Z")

	s := forest.New(nil)
	s.IngestReplace([]*models.TreeNode{a, b, c}, "v1")
	o := New(s)
	defer o.Close()

	got := o.Forest()
	require.Len(t, got, 3)
	assert.Equal(t, "A", got[0].UUID)
	assert.Len(t, got[0].Children, 2)

	x := got[1]
	assert.Equal(t, "tag-group-x", x.UUID)
	assert.Equal(t, ".tags/x", x.Path)
	assert.Equal(t, MimeType, x.MimeType)
	assert.Equal(t, int64(0), x.Size)
	assert.Equal(t, map[string]any{"tag_group": "x"}, x.Metadata)
	require.Len(t, x.Children, 1)
	assert.Equal(t, "B", x.Children[0].UUID)

	untagged := got[2]
	assert.Equal(t, "tag-group-Untagged", untagged.UUID)
	require.Len(t, untagged.Children, 1)
	assert.Equal(t, "C", untagged.Children[0].UUID)

	assert.Equal(t, []string{"A"}, o.ParentNodeIDs())
	assert.Equal(t, []string{"x", "Untagged"}, o.SortedTags())
}

func TestOverlaySortsTagsIgnoringCase(t *testing.T) {
	s := forest.New(nil)
	s.IngestReplace([]*models.TreeNode{
		leaf("1", ".tasks/1.md", "", "beta"),
		leaf("2", ".tasks/2.md", ""),
		leaf("3", ".tasks/3.md", "", "alpha"),
		leaf("4", ".tasks/4.md", "", "Alpha"),
		leaf("5", ".tasks/5.md", "", "Zeta"),
		leaf("6", ".tasks/6.md", "", ""),
	}, "v1")
	o := New(s)

	assert.Equal(t, []string{"Alpha", "alpha", "beta", "Zeta", "Untagged"}, o.SortedTags())

	groups := o.Groups()
	last := groups[len(groups)-1]
	assert.Equal(t, Untagged, last.Tag)
	assert.Equal(t, []string{"2", "6"}, last.Members, "members keep root order")
}

func TestOverlayTracksStoreChanges(t *testing.T) {
	s := forest.New(nil)
	s.IngestReplace([]*models.TreeNode{
		leaf("A", ".tasks/A.md", "", "work"),
		leaf("B", ".tasks/B.md", "", "home"),
	}, "v1")
	o := New(s)

	ref, ok := o.ParentOf(Real("A"))
	require.True(t, ok)
	assert.Equal(t, Group("work"), ref)

	// Giving A a child lifts it out of its group.
	require.NoError(t, s.AddNodeLocal("A", models.NodeRecord{UUID: "C"}, -1))
	assert.Equal(t, []string{"A"}, o.ParentNodeIDs())
	assert.Equal(t, []string{"home"}, o.SortedTags())

	_, ok = o.ParentOf(Real("A"))
	assert.False(t, ok)
	ref, ok = o.ParentOf(Real("C"))
	require.True(t, ok)
	assert.Equal(t, Real("A"), ref)

	_, ok = o.Node(Group("work"))
	assert.False(t, ok)

	o.Close()
	require.NoError(t, s.DeleteLeafLocal("C"))
	assert.Equal(t, []string{"A"}, o.ParentNodeIDs(), "closed overlay stops tracking")
}

func TestOverlayKeysOnFirstTagElementOnly(t *testing.T) {
	mixed := leaf("A", ".tasks/A.md", "", "x", map[string]any{"k": 1})
	nested := leaf("B", ".tasks/B.md", "", "x", []any{"y"})
	scalar := leaf("C", ".tasks/C.md", "")
	scalar.Metadata = map[string]any{"tags": "x"}
	objectFirst := leaf("D", ".tasks/D.md", "", map[string]any{"k": 1}, "x")

	s := forest.New(nil)
	s.IngestReplace([]*models.TreeNode{mixed, nested, scalar, objectFirst}, "v1")
	o := New(s)
	defer o.Close()

	groups := o.Groups()
	require.Len(t, groups, 2)
	assert.Equal(t, Bucket{Tag: "x", Members: []string{"A", "B"}}, groups[0])
	assert.Equal(t, Bucket{Tag: Untagged, Members: []string{"C", "D"}}, groups[1])
}

func TestOverlayForestIsConsistentUnderConcurrentChanges(t *testing.T) {
	s := forest.New(nil)
	s.IngestReplace([]*models.TreeNode{
		leaf("A", ".tasks/A.md", "", "work"),
		leaf("B", ".tasks/B.md", "", "home"),
	}, "v1")
	o := New(s)
	defer o.Close()

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if err := s.AddNodeLocal("A", models.NodeRecord{UUID: "C"}, -1); err != nil {
				t.Error(err)
				return
			}
			if err := s.DeleteLeafLocal("C"); err != nil {
				t.Error(err)
				return
			}
		}
		close(done)
	}()

	// A shows up exactly once: as a parent tree with C, or as a work member.
	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
		}
		seen := 0
		for _, n := range o.Forest() {
			if n.UUID == "A" {
				seen++
				assert.Len(t, n.Children, 1)
			}
			for _, c := range n.Children {
				if c.UUID == "A" {
					seen++
					assert.Equal(t, "tag-group-work", n.UUID)
				}
			}
		}
		assert.Equal(t, 1, seen)
	}
	wg.Wait()
}

func TestOverlayForestReturnsCopies(t *testing.T) {
	s := forest.New(nil)
	s.IngestReplace([]*models.TreeNode{leaf("A", ".tasks/A.md", "", "work")}, "v1")
	o := New(s)
	defer o.Close()

	first := o.Forest()
	first[0].Children[0].UUID = "changed"
	first[0].Children = nil

	second := o.Forest()
	require.Len(t, second[0].Children, 1)
	assert.Equal(t, "A", second[0].Children[0].UUID)
}

func TestOverlayNodeAndChildren(t *testing.T) {
	s := forest.New(nil)
	s.IngestReplace([]*models.TreeNode{
		leaf("A", ".tasks/A.md", "2025-03-01T10:00:00Z", "x"),
		leaf("B", ".tasks/B.md", "2025-03-02T10:00:00Z", "x"),
	}, "v1")
	o := New(s)

	rec, ok := o.Node(ParseRef("tag-group-x"))
	require.True(t, ok)
	assert.Equal(t, "tag-group-x", rec.UUID)
	assert.Equal(t, "x", rec.DisplayTitle())
	assert.Equal(t, "2025-03-02T10:00:00Z", rec.MTime)

	kids := o.ChildrenOf(Group("x"))
	require.Len(t, kids, 2)
	assert.Equal(t, "A", kids[0].UUID)
	assert.Equal(t, "B", kids[1].UUID)
	assert.Nil(t, o.ChildrenOf(Group("nope")))

	rec, ok = o.Node(Real("B"))
	require.True(t, ok)
	assert.Equal(t, "B", rec.UUID)
	assert.Empty(t, o.ChildrenOf(Real("B")))

	_, ok = o.ParentOf(Group("x"))
	assert.False(t, ok)
}

func TestParseRef(t *testing.T) {
	tests := []struct {
		in      string
		isGroup bool
		id      string
		tag     string
	}{
		{in: "tag-group-work", isGroup: true, tag: "work"},
		{in: "tag-group-", isGroup: true, tag: ""},
		{in: "6f1c2f7e-3b1a-4c55-9f1e-0a4f3a3b2c10", id: "6f1c2f7e-3b1a-4c55-9f1e-0a4f3a3b2c10"},
		{in: "tag-groupie", id: "tag-groupie"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			ref := ParseRef(tt.in)
			assert.Equal(t, tt.isGroup, ref.IsGroup())
			assert.Equal(t, tt.id, ref.ID())
			assert.Equal(t, tt.tag, ref.Tag())
			assert.Equal(t, tt.in, ref.String())
		})
	}
}

func TestMutable(t *testing.T) {
	assert.NoError(t, Mutable(Real("A")))
	err := Mutable(Group("x"))
	assert.True(t, errors.Is(err, ErrVirtualNode))
}

func TestNewer(t *testing.T) {
	assert.Equal(t, "2025-01-02T00:00:00Z", newer("2025-01-01T00:00:00Z", "2025-01-02T00:00:00Z"))
	assert.Equal(t, "2025-01-02T00:00:00Z", newer("2025-01-02T00:00:00Z", "2025-01-01T00:00:00Z"))
	assert.Equal(t, "2025-01-01T00:00:00Z", newer("", "2025-01-01T00:00:00Z"))
	assert.Equal(t, "2025-01-01T00:00:00Z", newer("2025-01-01T00:00:00Z", "garbage"))
}
