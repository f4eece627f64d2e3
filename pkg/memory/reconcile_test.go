package memory

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileRegistersUntrackedFile(t *testing.T) {
	s, embedder, vectors := newTestService(t)
	ctx := context.Background()

	// A memory document dropped into the tree outside the service.
	m := sampleMemory()
	doc, err := EncodeMarkdown(m)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.Layout().FilePath(m), []byte(doc), 0644))

	before := embedder.callCount()
	report, err := s.Reconcile(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{m.ID}, report.Added)
	assert.Empty(t, report.Updated)
	assert.Empty(t, report.Removed)
	assert.Equal(t, before+1, embedder.callCount())
	assert.True(t, vectors.has(m.ID))

	got, err := s.GetMemory(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, m.Content.Text, got.Content.Text)
}

func TestReconcileRepairsEditedFile(t *testing.T) {
	s, embedder, _ := newTestService(t)
	ctx := context.Background()

	created, result, err := s.CreateMemory(ctx, testDraft("Chess", "Plays chess online."))
	require.NoError(t, err)

	// Edit the file behind the service's back.
	edited := *created
	edited.Content.Text = "Plays chess at a local club now."
	doc, err := EncodeMarkdown(&edited)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(result.Path, []byte(doc), 0644))

	before := embedder.callCount()
	report, err := s.Reconcile(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{created.ID}, report.Updated)
	assert.Equal(t, before+1, embedder.callCount())

	rec, err := s.Index().Find(created.ID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Plays chess at a local club now.", rec.Content.Text)
}

func TestReconcileDoesNotReEmbedUnchangedText(t *testing.T) {
	s, embedder, _ := newTestService(t)
	ctx := context.Background()

	created, result, err := s.CreateMemory(ctx, testDraft("Chess", "Plays chess online."))
	require.NoError(t, err)

	// Rename without touching the text.
	edited := *created
	edited.Name = "Chess habit"
	doc, err := EncodeMarkdown(&edited)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.Layout().FilePath(&edited), []byte(doc), 0644))
	require.NoError(t, os.Remove(result.Path))

	before := embedder.callCount()
	report, err := s.Reconcile(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{created.ID}, report.Updated)
	assert.Equal(t, before, embedder.callCount())
}

func TestReconcileDropsOrphanedIndexEntry(t *testing.T) {
	s, _, vectors := newTestService(t)
	ctx := context.Background()

	created, result, err := s.CreateMemory(ctx, testDraft("Doomed", "File will vanish."))
	require.NoError(t, err)
	require.NoError(t, os.Remove(result.Path))

	report, err := s.Reconcile(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{created.ID}, report.Removed)
	assert.False(t, vectors.has(created.ID))

	rec, err := s.Index().Find(created.ID)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestReconcileSkipsUnparsableFiles(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()

	dir, err := s.Layout().EnsureDirectory("preferences", "hobbies")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(dir+"/garbage.md", []byte("not a memory"), 0644))

	report, err := s.Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Added)
	assert.Empty(t, report.Removed)
}

func TestReconcileClearsDirtyFlag(t *testing.T) {
	s, _, _ := newTestService(t)

	s.MarkDirty()
	_, err := s.Reconcile(context.Background())
	require.NoError(t, err)

	s.mu.RLock()
	dirty := s.dirty
	s.mu.RUnlock()
	assert.False(t, dirty)
}
