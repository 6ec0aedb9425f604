package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForEvent(t *testing.T, w *Watcher, path string) []FileEvent {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case batch := <-w.Batches():
			for _, ev := range batch {
				if ev.Path == path {
					return batch
				}
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event on %s", path)
			return nil
		}
	}
}

func TestWatcherSeesWrites(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, Options{DebounceWindow: 50 * time.Millisecond})
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.md"), []byte("hello"), 0o644))

	batch := waitForEvent(t, w, "a.md")
	require.NotEmpty(t, batch)
}

func TestWatcherFiltersDeniedPaths(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, Options{
		DebounceWindow: 50 * time.Millisecond,
		Denied:         func(rel string) bool { return rel == "secret.env" },
	})
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(root, "secret.env"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "visible.md"), []byte("y"), 0o644))

	batch := waitForEvent(t, w, "visible.md")
	for _, ev := range batch {
		assert.NotEqual(t, "secret.env", ev.Path)
	}
}

func TestWatcherRegistersNewDirectories(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, Options{DebounceWindow: 50 * time.Millisecond})
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	sub := filepath.Join(root, "newdir")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// Give the watcher a moment to register the new directory.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "inner.md"), []byte("z"), 0o644))

	waitForEvent(t, w, "newdir/inner.md")
}
