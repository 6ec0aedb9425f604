package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scaffsync/scaffsync/internal/errors"
	"github.com/scaffsync/scaffsync/internal/fingerprint"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestSnapshotCapturesExistingAndMissing(t *testing.T) {
	workspace := t.TempDir()
	store := New(filepath.Join(workspace, ".scaffsync", "backups"))

	writeFile(t, workspace, "docs/readme.md", "old content")

	prior := map[string]PriorState{
		"docs/readme.md": {HadStored: true, PriorStored: fingerprint.Bytes([]byte("old content"))},
	}
	m, err := store.Snapshot("run-1", workspace, []string{"docs/readme.md", "new-file.md"}, prior)
	require.NoError(t, err)
	require.Len(t, m.Entries, 2)

	existing, ok := m.Entry("docs/readme.md")
	require.True(t, ok)
	assert.True(t, existing.Existed)
	assert.True(t, existing.HadStored)

	data, err := store.Content("run-1", existing)
	require.NoError(t, err)
	assert.Equal(t, "old content", string(data))

	missing, ok := m.Entry("new-file.md")
	require.True(t, ok)
	assert.False(t, missing.Existed)
	assert.Empty(t, missing.ContentFile)
}

func TestSnapshotManifestPersisted(t *testing.T) {
	workspace := t.TempDir()
	store := New(filepath.Join(workspace, "backups"))
	writeFile(t, workspace, "a.md", "a")

	_, err := store.Snapshot("run-1", workspace, []string{"a.md"}, nil)
	require.NoError(t, err)

	// A fresh Store sees the persisted manifest.
	reloaded, err := New(filepath.Join(workspace, "backups")).Load("run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", reloaded.RunID)
	assert.False(t, reloaded.Sealed)
	require.Len(t, reloaded.Entries, 1)
}

func TestSnapshotDeduplicatesPaths(t *testing.T) {
	workspace := t.TempDir()
	store := New(filepath.Join(workspace, "backups"))
	writeFile(t, workspace, "a.md", "a")

	m, err := store.Snapshot("run-1", workspace, []string{"a.md", "a.md"}, nil)
	require.NoError(t, err)
	assert.Len(t, m.Entries, 1)
}

func TestSealIsIdempotent(t *testing.T) {
	workspace := t.TempDir()
	store := New(filepath.Join(workspace, "backups"))

	_, err := store.Snapshot("run-1", workspace, []string{"ghost.md"}, nil)
	require.NoError(t, err)

	require.NoError(t, store.Seal("run-1"))
	require.NoError(t, store.Seal("run-1"))

	m, err := store.Load("run-1")
	require.NoError(t, err)
	assert.True(t, m.Sealed)
}

func TestSnapshotRefusesSealedRun(t *testing.T) {
	workspace := t.TempDir()
	store := New(filepath.Join(workspace, "backups"))
	writeFile(t, workspace, "a.md", "a")

	_, err := store.Snapshot("run-1", workspace, []string{"a.md"}, nil)
	require.NoError(t, err)
	require.NoError(t, store.Seal("run-1"))

	_, err = store.Snapshot("run-1", workspace, []string{"a.md"}, nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSnapshotSealed, errors.GetCode(err))
}

func TestLoadMissingSnapshot(t *testing.T) {
	store := New(t.TempDir())
	_, err := store.Load("no-such-run")
	require.Error(t, err)
}

func TestPruneKeepsMinimumAndRecent(t *testing.T) {
	workspace := t.TempDir()
	dir := filepath.Join(workspace, "backups")
	store := New(dir)

	// Three snapshots, lexically oldest first.
	for _, id := range []string{"20260101-000000", "20260201-000000", "20260301-000000"} {
		_, err := store.Snapshot(id, workspace, nil, nil)
		require.NoError(t, err)
	}

	// Age the oldest two manifests past the retention window.
	for _, id := range []string{"20260101-000000", "20260201-000000"} {
		m, err := store.Load(id)
		require.NoError(t, err)
		m.CreatedAt = time.Now().UTC().Add(-90 * 24 * time.Hour)
		require.NoError(t, store.writeManifest(filepath.Join(dir, id), m))
	}

	require.NoError(t, store.Prune(30*24*time.Hour, 2))

	_, err := store.Load("20260101-000000")
	assert.Error(t, err, "old snapshot beyond keep-min is pruned")
	_, err = store.Load("20260201-000000")
	assert.NoError(t, err, "keep-min retains the newest snapshots regardless of age")
	_, err = store.Load("20260301-000000")
	assert.NoError(t, err)
}
