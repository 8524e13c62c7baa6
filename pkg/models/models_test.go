package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataTags(t *testing.T) {
	tests := []struct {
		name     string
		metadata any
		want     []string
	}{
		{"nil metadata", nil, nil},
		{"not an object", []any{"x"}, nil},
		{"no tags key", map[string]any{"other": 1}, nil},
		{"string tags", map[string]any{"tags": []any{"work", "home"}}, []string{"work", "home"}},
		{"numeric tag is stringified", map[string]any{"tags": []any{float64(42)}}, []string{"42"}},
		{"object element is dropped", map[string]any{"tags": []any{"x", map[string]any{"k": 1}}}, []string{"x"}},
		{"nested array is dropped", map[string]any{"tags": []any{"x", []any{"y"}, "z"}}, []string{"x", "z"}},
		{"null element is dropped", map[string]any{"tags": []any{nil, "x"}}, []string{"x"}},
		{"scalar tags value", map[string]any{"tags": "x"}, nil},
		{"object tags value", map[string]any{"tags": map[string]any{"x": true}}, nil},
		{"typed string slice", map[string]any{"tags": []string{"a", "b"}}, []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MetadataTags(tt.metadata))
		})
	}

	assert.Empty(t, MetadataTags(map[string]any{"tags": []any{}}))
}

func TestFirstTag(t *testing.T) {
	tests := []struct {
		name     string
		metadata any
		want     string
		wantOK   bool
	}{
		{"plain", map[string]any{"tags": []any{"x", "y"}}, "x", true},
		{"later object ignored", map[string]any{"tags": []any{"x", map[string]any{"k": 1}}}, "x", true},
		{"later array ignored", map[string]any{"tags": []any{"x", []any{"y"}}}, "x", true},
		{"object first", map[string]any{"tags": []any{map[string]any{"k": 1}, "y"}}, "", false},
		{"null first", map[string]any{"tags": []any{nil, "y"}}, "", false},
		{"scalar tags value", map[string]any{"tags": "x"}, "", false},
		{"empty", map[string]any{"tags": []any{}}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FirstTag(tt.metadata)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTreeNodeJSON(t *testing.T) {
	raw := `{
		"uuid": "6f1c2f7e-3b1a-4c55-9f1e-0a4f3a3b2c10",
		"path": ".tasks/6f1c2f7e-3b1a-4c55-9f1e-0a4f3a3b2c10.md",
		"size": 120,
		"mime_type": "text/markdown",
		"metadata": {"tags": ["work"]},
		"title": "Write report",
		"mtime": "2025-01-11T10:00:00Z",
		"children": [{
			"uuid": "0b7e0b0c-56a4-4a53-8d0b-1d4c2a7f9e21",
			"path": ".tasks/6f1c2f7e-3b1a-4c55-9f1e-0a4f3a3b2c10/0b7e0b0c-56a4-4a53-8d0b-1d4c2a7f9e21.md",
			"size": 10,
			"mime_type": "text/markdown",
			"mtime": "2025-01-11T10:00:00Z"
		}]
	}`

	var node TreeNode
	require.NoError(t, json.Unmarshal([]byte(raw), &node))

	assert.Equal(t, "Write report", node.Record().DisplayTitle())
	assert.Nil(t, node.Name)
	assert.Equal(t, []string{"work"}, node.Record().Tags())
	require.Len(t, node.Children, 1)
	assert.Nil(t, node.Children[0].Metadata)
	assert.Equal(t, node.Children[0].UUID, node.Children[0].Record().DisplayTitle())
}

func TestListEntry(t *testing.T) {
	var entry ListEntry
	require.NoError(t, json.Unmarshal([]byte(`{"path":"a.md","metadata":{"tags":["auto-created"],"task":{"status":{"kind":"done"}}}}`), &entry))

	assert.True(t, entry.HasTag("auto-created"))
	assert.False(t, entry.HasTag("work"))
	assert.True(t, entry.IsDoneTask())
}
