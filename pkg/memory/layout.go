package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Taxonomy is the fixed category/subcategory tree memories are filed under.
// The directory layout mirrors it exactly.
var Taxonomy = map[string][]string{
	"profiles":    {"basic", "work", "development", "relationships"},
	"preferences": {"hobbies", "interests"},
	"resources": {
		"books", "movies", "music", "videos", "images", "apps", "devices",
		"courses", "articles", "communities", "channels", "documents", "notepad",
	},
	"events":      {"personal", "professional"},
	"locations":   {"places", "favorites"},
	"environment": {"current"},
}

// Layout resolves memory file locations under a base directory and maintains
// the taxonomy directory tree.
type Layout struct {
	baseDir string
}

// NewLayout creates a layout rooted at baseDir.
func NewLayout(baseDir string) (*Layout, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	return &Layout{baseDir: baseDir}, nil
}

// BaseDir returns the layout root.
func (l *Layout) BaseDir() string { return l.baseDir }

// IndexPath returns the location of the append-only index log.
func (l *Layout) IndexPath() string {
	return filepath.Join(l.baseDir, "index.jsonl")
}

// ValidateTaxonomy rejects category/subcategory pairs outside the fixed tree.
func (l *Layout) ValidateTaxonomy(category, subcategory string) error {
	subs, ok := Taxonomy[category]
	if !ok {
		return fmt.Errorf("unknown category: %q", category)
	}
	for _, s := range subs {
		if s == subcategory {
			return nil
		}
	}
	return fmt.Errorf("unknown subcategory %q for category %q", subcategory, category)
}

// EnsureDirectories creates the full taxonomy tree. It is idempotent and only
// fails when the filesystem is unwritable.
func (l *Layout) EnsureDirectories() error {
	for category, subs := range Taxonomy {
		for _, sub := range subs {
			dir := filepath.Join(l.baseDir, Slugify(category), Slugify(sub))
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}
	return nil
}

// EnsureDirectory creates the directory for one category/subcategory pair.
func (l *Layout) EnsureDirectory(category, subcategory string) (string, error) {
	dir := filepath.Join(l.baseDir, Slugify(category), Slugify(subcategory))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return dir, nil
}

// Dirs lists every taxonomy directory, used to seed the file watcher.
func (l *Layout) Dirs() []string {
	dirs := []string{l.baseDir}
	for category, subs := range Taxonomy {
		dirs = append(dirs, filepath.Join(l.baseDir, Slugify(category)))
		for _, sub := range subs {
			dirs = append(dirs, filepath.Join(l.baseDir, Slugify(category), Slugify(sub)))
		}
	}
	return dirs
}

// FilePath computes the deterministic markdown location for a memory.
func (l *Layout) FilePath(m *Memory) string {
	return filepath.Join(
		l.baseDir,
		Slugify(m.Category),
		Slugify(m.Subcategory),
		Slugify(m.Name)+".md",
	)
}

// ValidatePath guards against traversal when resolving a relative memory path.
func (l *Layout) ValidatePath(rel string) error {
	if rel == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if filepath.IsAbs(rel) {
		return fmt.Errorf("path must be relative, got absolute path: %s", rel)
	}
	clean := filepath.Clean(rel)
	if clean != rel {
		return fmt.Errorf("path contains invalid components: %s", rel)
	}
	if strings.HasPrefix(clean, "..") {
		return fmt.Errorf("path cannot reference parent directories: %s", rel)
	}
	return nil
}
