// Package content fetches SKILL.md files and splits them into frontmatter and body.
package content

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is a parsed content file. Name and Description are nil when the
// frontmatter is absent or does not carry the field.
type Document struct {
	Name           *string
	Description    *string
	Body           string
	HasFrontmatter bool
}

// ParseDocument splits a leading ----delimited YAML block from the markdown body.
// A file without frontmatter is all body; a frontmatter block that is not valid YAML
// falls back to a line scanner that understands plain and block-scalar values.
func ParseDocument(text string) Document {
	text = strings.TrimPrefix(strings.ReplaceAll(text, "\r\n", "\n"), "\ufeff")

	block, body, ok := splitFrontmatter(text)
	if !ok {
		return Document{Body: text}
	}

	doc := Document{Body: body, HasFrontmatter: true}
	fields := parseYAML(block)
	if fields == nil {
		fields = scanFields(block)
	}
	doc.Name = nonEmpty(fields["name"])
	doc.Description = nonEmpty(fields["description"])
	return doc
}

// IsMalformedDescription reports whether a stored description is a bare block-scalar
// indicator, the leftover of a parser that did not follow "description: |".
func IsMalformedDescription(desc *string) bool {
	if desc == nil {
		return false
	}
	d := strings.TrimSpace(*desc)
	return d == "|" || d == ">"
}

func splitFrontmatter(text string) (block, body string, ok bool) {
	if !strings.HasPrefix(text, "---\n") {
		return "", "", false
	}
	rest := text[len("---\n"):]

	// The closing fence may be the very first line of rest (empty frontmatter).
	var end int
	switch {
	case strings.HasPrefix(rest, "---"):
		end = 0
	default:
		idx := strings.Index(rest, "\n---")
		if idx < 0 {
			return "", "", false
		}
		end = idx + 1
	}

	block = rest[:end]
	after := rest[end+3:]
	if nl := strings.IndexByte(after, '\n'); nl >= 0 {
		// Skip the remainder of the fence line, e.g. "---  ".
		if strings.TrimSpace(after[:nl]) == "" {
			after = after[nl+1:]
		}
	} else if strings.TrimSpace(after) == "" {
		after = ""
	}
	return block, strings.TrimSpace(after), true
}

func parseYAML(block string) map[string]string {
	var raw map[string]any
	if err := yaml.Unmarshal([]byte(block), &raw); err != nil {
		return nil
	}
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
		case string:
			fields[k] = val
		case int, int64, float64, bool:
			fields[k] = fmt.Sprint(val)
		}
	}
	return fields
}

// scanFields reads top-level "key: value" lines. Block scalars ("|", ">", with
// chomping indicators) collect the following indented lines.
func scanFields(block string) map[string]string {
	fields := make(map[string]string)
	lines := strings.Split(block, "\n")

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if line == "" || line[0] == ' ' || line[0] == '\t' || line[0] == '#' {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if style := blockStyle(value); style != 0 {
			var parts []string
			for i+1 < len(lines) && (lines[i+1] == "" || isIndented(lines[i+1])) {
				i++
				parts = append(parts, strings.TrimSpace(lines[i]))
			}
			sep := "\n"
			if style == '>' {
				sep = " "
			}
			fields[key] = strings.TrimSpace(strings.Join(parts, sep))
			continue
		}
		fields[key] = unquote(value)
	}
	return fields
}

func blockStyle(v string) byte {
	if v == "" {
		return 0
	}
	switch strings.TrimRight(v, "+-0123456789") {
	case "|":
		return '|'
	case ">":
		return '>'
	}
	return 0
}

func isIndented(line string) bool {
	return strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")
}

func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
