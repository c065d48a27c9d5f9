// Package parser turns a Markdown study note into the fields of a study record.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	mdLinkRe   = regexp.MustCompile(`\[[^\]]*\]\((https?://[^)\s]+)\)`)
	bareLinkRe = regexp.MustCompile(`https?://[^\s)>\]]+`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([\p{L}][\p{L}0-9_/-]*)`)
)

// Note holds the study-record fields found in a Markdown file.
type Note struct {
	Frontmatter map[string]any
	Title       string
	// Description is the body with the title heading removed.
	Description    string
	Link           string
	LearningType   string
	LearningTypeID *int64
	ReviewStatus   string
	Tags           []string
}

// Parse extracts frontmatter, title, link, tags and description from raw Markdown bytes.
// Recognized frontmatter keys: title, link, learning_type, learning_type_id,
// review_status, tags.
func Parse(data []byte) (*Note, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	title, rest := deriveTitle(fm, body)
	n := &Note{
		Frontmatter:  fm,
		Title:        title,
		Description:  strings.TrimSpace(rest),
		Link:         deriveLink(fm, body),
		LearningType: stringField(fm, "learning_type"),
		ReviewStatus: stringField(fm, "review_status"),
		Tags:         extractTags(body, fm),
	}
	if raw, ok := fm["learning_type_id"]; ok {
		id, err := toInt64(raw)
		if err != nil {
			return nil, fmt.Errorf("parser: learning_type_id: %w", err)
		}
		n.LearningTypeID = &id
	}
	return n, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no frontmatter is found the entire content is body.
func splitFrontmatter(data []byte) (map[string]any, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		// No closing delimiter; treat everything as body.
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		// Invalid YAML: the whole file is body.
		return nil, string(data), nil
	}

	return fm, body, nil
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise the first non-empty line. The returned body has the
// heading line used as title removed.
func deriveTitle(fm map[string]any, body string) (string, string) {
	lines := strings.Split(body, "\n")
	if s := stringField(fm, "title"); s != "" {
		for i, line := range lines {
			if h, ok := heading(line); ok && h == s {
				return s, strings.Join(append(lines[:i:i], lines[i+1:]...), "\n")
			}
		}
		return s, body
	}
	for i, line := range lines {
		if h, ok := heading(line); ok {
			return h, strings.Join(append(lines[:i:i], lines[i+1:]...), "\n")
		}
	}
	for _, line := range lines {
		if t := strings.TrimSpace(line); t != "" {
			return t, body
		}
	}
	return "", body
}

func heading(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "# ") {
		return strings.TrimSpace(trimmed[2:]), true
	}
	return "", false
}

// deriveLink returns the frontmatter "link", else the first Markdown link
// target, else the first bare URL in the body.
func deriveLink(fm map[string]any, body string) string {
	if s := stringField(fm, "link"); s != "" {
		return s
	}
	if m := mdLinkRe.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	return bareLinkRe.FindString(body)
}

// extractTags collects #tags from body and from frontmatter "tags" field.
func extractTags(body string, fm map[string]any) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; !dup {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}

	switch v := fm["tags"].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			add(s)
		}
	}

	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

func stringField(fm map[string]any, key string) string {
	switch v := fm[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case int, int64, float64:
		return fmt.Sprint(v)
	}
	return ""
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(n), 10, 64)
	}
	return 0, fmt.Errorf("unsupported value %v", v)
}
