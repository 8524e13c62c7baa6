package frontmatter

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var frontmatterPattern = regexp.MustCompile(`(?s)^---\n(.*?)\n---\n(.*)`)

// Indent is the YAML indentation used for task files.
const Indent = 4

// Split separates the YAML frontmatter block from the body. ok is false when
// the content has no frontmatter, in which case body is the whole content.
func Split(content string) (fm string, body string, ok bool) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	matches := frontmatterPattern.FindStringSubmatch(content)
	if len(matches) != 3 {
		return "", content, false
	}
	return matches[1], matches[2], true
}

// Parse decodes the frontmatter of content into out and returns the body.
// Content without frontmatter leaves out untouched.
func Parse(content string, out any) (string, bool, error) {
	fm, body, ok := Split(content)
	if !ok {
		return body, false, nil
	}
	if err := yaml.Unmarshal([]byte(fm), out); err != nil {
		return content, true, fmt.Errorf("failed to parse frontmatter: %w", err)
	}
	return body, true, nil
}

// Build renders v as a delimited YAML frontmatter block, including the
// closing delimiter and its newline.
func Build(v any) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(Indent)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("failed to encode frontmatter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to encode frontmatter: %w", err)
	}
	return "---\n" + buf.String() + "---\n", nil
}

// ExtractHeading pulls the first level-one heading off the top of body.
// Leading blank lines are skipped; a body that does not start with "# "
// returns an empty title and the body unchanged. The rest has the single
// blank line that separates heading and text removed.
func ExtractHeading(body string) (title string, rest string) {
	trimmed := strings.TrimLeft(body, "\n")
	if !strings.HasPrefix(trimmed, "# ") {
		return "", body
	}

	line, remainder, _ := strings.Cut(trimmed, "\n")
	title = strings.TrimSpace(strings.TrimPrefix(line, "# "))
	return title, strings.TrimPrefix(remainder, "\n")
}

// FormatTimestamp formats a time for status fields such as completed_at.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseTimestamp parses a status timestamp. Date-only values are accepted.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// MergeTags combines multiple tag sources and removes duplicates
func MergeTags(sources ...[]string) []string {
	seen := make(map[string]bool)
	result := []string{}

	for _, tags := range sources {
		for _, tag := range tags {
			if tag != "" && !seen[tag] {
				seen[tag] = true
				result = append(result, tag)
			}
		}
	}

	return result
}
