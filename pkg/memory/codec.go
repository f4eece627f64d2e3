package memory

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// frontMatter is the YAML header of a memory document: every Memory field
// except the text body.
type frontMatter struct {
	ID          string    `yaml:"id"`
	Category    string    `yaml:"category"`
	Subcategory string    `yaml:"subcategory"`
	Name        string    `yaml:"name"`
	Metadata    Metadata  `yaml:"metadata"`
	CreatedAt   time.Time `yaml:"created_at"`
	UpdatedAt   time.Time `yaml:"updated_at"`
}

// EncodeMarkdown serializes a memory as YAML front matter followed by the
// text body and, when tags are present, a trailing hashtag line. Tags with
// inner spaces become underscore-joined hashtags.
func EncodeMarkdown(m *Memory) (string, error) {
	fm := frontMatter{
		ID:          m.ID,
		Category:    m.Category,
		Subcategory: m.Subcategory,
		Name:        m.Name,
		Metadata:    m.Metadata,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}

	header, err := yaml.Marshal(&fm)
	if err != nil {
		return "", fmt.Errorf("failed to marshal front matter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(header)
	b.WriteString("---\n\n")
	b.WriteString(m.Content.Text)

	if len(m.Metadata.Tags) > 0 {
		b.WriteString("\n\n")
		b.WriteString(renderHashtags(m.Metadata.Tags))
	}

	return b.String(), nil
}

// DecodeMarkdown parses a memory document. The first paragraph of the body is
// the main text; all later paragraphs are scanned for hashtags. The decoded
// tag set is the union of front-matter tags and body hashtags.
func DecodeMarkdown(doc string) (*Memory, error) {
	parts := strings.SplitN(doc, "---", 3)
	if len(parts) < 3 {
		return nil, ErrInvalidFormat
	}

	var fm frontMatter
	if err := yaml.Unmarshal([]byte(parts[1]), &fm); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	body := strings.TrimSpace(parts[2])
	paragraphs := strings.Split(body, "\n\n")
	text := paragraphs[0]
	trailer := strings.TrimSpace(strings.Join(paragraphs[1:], " "))

	m := &Memory{
		ID:          fm.ID,
		Category:    fm.Category,
		Subcategory: fm.Subcategory,
		Name:        fm.Name,
		Content:     Content{Text: text, Hashtags: trailer},
		Metadata:    fm.Metadata,
		CreatedAt:   fm.CreatedAt,
		UpdatedAt:   fm.UpdatedAt,
	}

	if trailer != "" {
		m.Metadata.Tags = mergeTags(fm.Metadata.Tags, parseHashtags(trailer))
	}

	return m, nil
}

func renderHashtags(tags []string) string {
	rendered := make([]string, 0, len(tags))
	for _, tag := range tags {
		rendered = append(rendered, "#"+strings.ReplaceAll(tag, " ", "_"))
	}
	return strings.Join(rendered, " ")
}

func parseHashtags(trailer string) []string {
	var tags []string
	for _, token := range strings.Fields(trailer) {
		if !strings.HasPrefix(token, "#") {
			continue
		}
		tag := strings.ReplaceAll(strings.TrimPrefix(token, "#"), "_", " ")
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// mergeTags unions two tag lists, dropping duplicates while keeping first-seen
// order.
func mergeTags(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var merged []string
	for _, tag := range append(append([]string{}, a...), b...) {
		if seen[tag] {
			continue
		}
		seen[tag] = true
		merged = append(merged, tag)
	}
	return merged
}
