package memory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLayout(t *testing.T) {
	_, err := NewLayout("")
	assert.Error(t, err)

	l, err := NewLayout("/tmp/memories")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/memories", l.BaseDir())
	assert.Equal(t, filepath.Join("/tmp/memories", "index.jsonl"), l.IndexPath())
}

func TestValidateTaxonomy(t *testing.T) {
	l, err := NewLayout(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, l.ValidateTaxonomy("profiles", "work"))
	assert.NoError(t, l.ValidateTaxonomy("resources", "notepad"))
	assert.NoError(t, l.ValidateTaxonomy("environment", "current"))

	assert.Error(t, l.ValidateTaxonomy("secrets", "work"))
	assert.Error(t, l.ValidateTaxonomy("profiles", "gaming"))
	assert.Error(t, l.ValidateTaxonomy("", ""))
}

func TestEnsureDirectoriesIdempotent(t *testing.T) {
	base := t.TempDir()
	l, err := NewLayout(base)
	require.NoError(t, err)

	require.NoError(t, l.EnsureDirectories())
	require.NoError(t, l.EnsureDirectories())

	for category, subs := range Taxonomy {
		for _, sub := range subs {
			dir := filepath.Join(base, Slugify(category), Slugify(sub))
			info, err := os.Stat(dir)
			require.NoError(t, err, "missing %s", dir)
			assert.True(t, info.IsDir())
		}
	}
}

func TestFilePath(t *testing.T) {
	base := t.TempDir()
	l, err := NewLayout(base)
	require.NoError(t, err)

	m := &Memory{
		Category:    "preferences",
		Subcategory: "hobbies",
		Name:        "Rock Climbing",
	}
	assert.Equal(t,
		filepath.Join(base, "preferences", "hobbies", "rock-climbing.md"),
		l.FilePath(m),
	)
}

func TestDirsCoversTaxonomy(t *testing.T) {
	l, err := NewLayout(t.TempDir())
	require.NoError(t, err)

	dirs := l.Dirs()
	want := 1 + len(Taxonomy) // base plus one per category
	for _, subs := range Taxonomy {
		want += len(subs)
	}
	assert.Len(t, dirs, want)
	assert.Equal(t, l.BaseDir(), dirs[0])
}

func TestValidatePath(t *testing.T) {
	l, err := NewLayout(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, l.ValidatePath("profiles/basic/me.md"))

	assert.Error(t, l.ValidatePath(""))
	assert.Error(t, l.ValidatePath("/etc/passwd"))
	assert.Error(t, l.ValidatePath("../outside.md"))
	assert.Error(t, l.ValidatePath("profiles/../../outside.md"))
}
