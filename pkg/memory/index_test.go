package memory

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	return NewIndex(filepath.Join(t.TempDir(), "index.jsonl"), zerolog.Nop())
}

func indexRecord(id, name string) *Memory {
	now := time.Now().UTC().Truncate(time.Second)
	return &Memory{
		ID:          id,
		Category:    "preferences",
		Subcategory: "hobbies",
		Name:        name,
		Content:     Content{Text: "text for " + name},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestIndexAppendAndFind(t *testing.T) {
	ix := newTestIndex(t)

	require.NoError(t, ix.Append(indexRecord("id-1", "first")))
	require.NoError(t, ix.Append(indexRecord("id-2", "second")))

	m, err := ix.Find("id-2")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "second", m.Name)

	missing, err := ix.Find("id-404")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestIndexAllPreservesOrder(t *testing.T) {
	ix := newTestIndex(t)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, ix.Append(indexRecord(id, id)))
	}

	all, err := ix.All()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "b", all[1].ID)
	assert.Equal(t, "c", all[2].ID)
}

func TestIndexRewriteReplacing(t *testing.T) {
	ix := newTestIndex(t)
	require.NoError(t, ix.Append(indexRecord("a", "first")))
	require.NoError(t, ix.Append(indexRecord("b", "second")))
	require.NoError(t, ix.Append(indexRecord("c", "third")))

	updated := indexRecord("b", "second revised")
	found, err := ix.RewriteReplacing("b", updated)
	require.NoError(t, err)
	assert.True(t, found)

	all, err := ix.All()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{all[0].ID, all[1].ID, all[2].ID})
	assert.Equal(t, "second revised", all[1].Name)
}

func TestIndexRewriteRemoving(t *testing.T) {
	ix := newTestIndex(t)
	require.NoError(t, ix.Append(indexRecord("a", "first")))
	require.NoError(t, ix.Append(indexRecord("b", "second")))

	found, err := ix.RewriteReplacing("a", nil)
	require.NoError(t, err)
	assert.True(t, found)

	all, err := ix.All()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "b", all[0].ID)
}

func TestIndexRewriteUnknownIDLeavesFileUntouched(t *testing.T) {
	ix := newTestIndex(t)
	require.NoError(t, ix.Append(indexRecord("a", "first")))

	before, err := os.ReadFile(ix.Path())
	require.NoError(t, err)

	found, err := ix.RewriteReplacing("nope", nil)
	require.NoError(t, err)
	assert.False(t, found)

	after, err := os.ReadFile(ix.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestIndexRewriteMissingFile(t *testing.T) {
	ix := newTestIndex(t)

	found, err := ix.RewriteReplacing("a", nil)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIndexPreservesUnparsableLines(t *testing.T) {
	ix := newTestIndex(t)
	require.NoError(t, ix.Append(indexRecord("a", "first")))

	// Simulate a corrupt line written by something else.
	f, err := os.OpenFile(ix.Path(), os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, ix.Append(indexRecord("b", "second")))

	// Scan skips the corrupt line.
	all, err := ix.All()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// Rewrite keeps it verbatim.
	_, err = ix.RewriteReplacing("a", indexRecord("a", "revised"))
	require.NoError(t, err)

	data, err := os.ReadFile(ix.Path())
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "{not json"))
}
