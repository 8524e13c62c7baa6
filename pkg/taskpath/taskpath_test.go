package taskpath

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	idA = "6f1c2f7e-3b1a-4c55-9f1e-0a4f3a3b2c10"
	idB = "0b7e0b0c-56a4-4a53-8d0b-1d4c2a7f9e21"
	idC = "a3d5e7f9-1b2c-4d3e-8f4a-5b6c7d8e9f01"
	idD = "c0ffee00-1234-4abc-9def-0123456789ab"
)

func parents(m map[string]string) ParentFunc {
	return func(id string) (string, bool) {
		p, ok := m[id]
		return p, ok && p != ""
	}
}

func TestBuild(t *testing.T) {
	c := Default()
	lookup := parents(map[string]string{idB: idA, idC: idB})

	tests := []struct {
		name   string
		id     string
		parent string
		want   string
	}{
		{"root", idA, "", ".tasks/" + idA + ".md"},
		{"child of root", idB, idA, ".tasks/" + idA + "/" + idB + ".md"},
		{"grandchild", idC, idB, ".tasks/" + idA + "/" + idB + "/" + idC + ".md"},
		{"great-grandchild", idD, idC, ".tasks/" + idA + "/" + idB + "/" + idC + "/" + idD + ".md"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Build(tt.id, tt.parent, lookup))
		})
	}
}

func TestBuildStopsOnLoopingChain(t *testing.T) {
	c := Default()
	lookup := parents(map[string]string{idA: idB, idB: idA})

	got := c.Build(idC, idA, lookup)
	assert.Equal(t, ".tasks/"+idB+"/"+idA+"/"+idC+".md", got)
}

func TestRoundTrip(t *testing.T) {
	c := Default()
	lookup := parents(map[string]string{idB: idA, idC: idB})

	for _, parent := range []string{"", idA, idB, idC} {
		for i := 0; i < 5; i++ {
			id := uuid.New().String()
			got, err := c.ExtractID(c.Build(id, parent, lookup))
			require.NoError(t, err)
			assert.Equal(t, id, got)
		}
	}
}

func TestExtractID(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{"plain", ".tasks/" + idA + ".md", idA, false},
		{"slug prefix", ".tasks/write-report-" + idA + ".md", idA, false},
		{"no extension", ".tasks/" + idA, idA, false},
		{"uppercase is normalized", ".tasks/6F1C2F7E-3B1A-4C55-9F1E-0A4F3A3B2C10.md", idA, false},
		{"too short", ".tasks/abc.md", "", true},
		{"not a uuid", ".tasks/zzzzzzzz-zzzz-zzzz-zzzz-zzzzzzzzzzzz.md", "", true},
		{"version 1 uuid", ".tasks/6f1c2f7e-3b1a-1c55-9f1e-0a4f3a3b2c10.md", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractID(tt.path)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrMalformedPath))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDirOfAndChildPath(t *testing.T) {
	c := Default()
	p := c.Build(idB, idA, nil)

	dir := c.DirOf(p)
	assert.Equal(t, ".tasks/"+idA+"/"+idB, dir)
	assert.Equal(t, c.Build(idC, idB, parents(map[string]string{idB: idA})), c.ChildPath(dir, idC))
}
