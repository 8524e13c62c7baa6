package frontmatter

import (
	"reflect"
	"testing"
	"time"
)

type sample struct {
	Title string   `yaml:"title"`
	Tags  []string `yaml:"tags"`
}

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantFM    sample
		wantBody  string
		wantFound bool
		wantErr   bool
	}{
		{
			name: "valid frontmatter",
			content: `---
title: Test Note
tags: [test, example]
---

# Test Content

This is the body.`,
			wantFM:    sample{Title: "Test Note", Tags: []string{"test", "example"}},
			wantBody:  "\n# Test Content\n\nThis is the body.",
			wantFound: true,
		},
		{
			name:     "no frontmatter",
			content:  "# Just a title\n\nSome content.",
			wantBody: "# Just a title\n\nSome content.",
		},
		{
			name: "invalid yaml",
			content: `---
title: [invalid
---

Body`,
			wantBody: `---
title: [invalid
---

Body`,
			wantFound: true,
			wantErr:   true,
		},
		{
			name:      "windows line endings",
			content:   "---\r\ntitle: CRLF\r\n---\r\nBody",
			wantFM:    sample{Title: "CRLF"},
			wantBody:  "Body",
			wantFound: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got sample
			body, found, err := Parse(tt.content, &got)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if found != tt.wantFound {
				t.Errorf("Parse() found = %v, want %v", found, tt.wantFound)
			}
			if tt.wantErr {
				return
			}
			if !reflect.DeepEqual(got, tt.wantFM) {
				t.Errorf("Parse() gotFM = %+v, want %+v", got, tt.wantFM)
			}
			if body != tt.wantBody {
				t.Errorf("Parse() gotBody = %q, want %q", body, tt.wantBody)
			}
		})
	}
}

func TestBuild(t *testing.T) {
	type nested struct {
		Inner struct {
			Kind string `yaml:"kind"`
		} `yaml:"inner"`
		Tags []string `yaml:"tags"`
	}
	var v nested
	v.Inner.Kind = "todo"
	v.Tags = []string{"a"}

	got, err := Build(v)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	want := "---\ninner:\n    kind: todo\ntags:\n    - a\n---\n"
	if got != want {
		t.Errorf("Build() = %q, want %q", got, want)
	}
}

func TestExtractHeading(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantTitle string
		wantRest  string
	}{
		{"heading and note", "\n# Title\n\nThe note", "Title", "The note"},
		{"heading only", "\n# Title\n", "Title", ""},
		{"no heading", "\nJust text", "", "\nJust text"},
		{"second level is not a title", "## Sub\ntext", "", "## Sub\ntext"},
		{"multi paragraph note", "# T\n\na\n\nb", "T", "a\n\nb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, rest := ExtractHeading(tt.body)
			if title != tt.wantTitle {
				t.Errorf("ExtractHeading() title = %q, want %q", title, tt.wantTitle)
			}
			if rest != tt.wantRest {
				t.Errorf("ExtractHeading() rest = %q, want %q", rest, tt.wantRest)
			}
		})
	}
}

func TestTimestamps(t *testing.T) {
	ts := time.Date(2025, 1, 11, 10, 0, 0, 0, time.UTC)
	formatted := FormatTimestamp(ts)
	if formatted != "2025-01-11T10:00:00Z" {
		t.Errorf("FormatTimestamp() = %q", formatted)
	}

	parsed, err := ParseTimestamp(formatted)
	if err != nil || !parsed.Equal(ts) {
		t.Errorf("ParseTimestamp() = %v, %v", parsed, err)
	}

	if _, err := ParseTimestamp("2025-01-11"); err != nil {
		t.Errorf("ParseTimestamp() date-only error = %v", err)
	}
	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Error("ParseTimestamp() expected error for garbage input")
	}
}

func TestMergeTags(t *testing.T) {
	got := MergeTags([]string{"todo", "urgent"}, []string{"urgent", "", "auto-created"})
	want := []string{"todo", "urgent", "auto-created"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MergeTags() = %v, want %v", got, want)
	}
}
