package watch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectBatch(t *testing.T, d *Debouncer) []FileEvent {
	t.Helper()
	select {
	case batch := <-d.Output():
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for debounced batch")
		return nil
	}
}

func TestDebouncerCoalescesSamePath(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	now := time.Now()
	d.Add(FileEvent{Path: "a.md", Operation: OpCreate, Timestamp: now})
	d.Add(FileEvent{Path: "a.md", Operation: OpModify, Timestamp: now})

	batch := collectBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpCreate, batch[0].Operation, "CREATE + MODIFY = CREATE")
}

func TestDebouncerCreateDeleteCancels(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	now := time.Now()
	d.Add(FileEvent{Path: "gone.md", Operation: OpCreate, Timestamp: now})
	d.Add(FileEvent{Path: "gone.md", Operation: OpDelete, Timestamp: now})
	d.Add(FileEvent{Path: "kept.md", Operation: OpModify, Timestamp: now})

	batch := collectBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, "kept.md", batch[0].Path)
}

func TestDebouncerDeleteCreateBecomesModify(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	now := time.Now()
	d.Add(FileEvent{Path: "a.md", Operation: OpDelete, Timestamp: now})
	d.Add(FileEvent{Path: "a.md", Operation: OpCreate, Timestamp: now})

	batch := collectBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpModify, batch[0].Operation, "DELETE + CREATE = MODIFY")
}

func TestDebouncerModifyDeleteKeepsDelete(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	now := time.Now()
	d.Add(FileEvent{Path: "a.md", Operation: OpModify, Timestamp: now})
	d.Add(FileEvent{Path: "a.md", Operation: OpDelete, Timestamp: now})

	batch := collectBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpDelete, batch[0].Operation)
}

func TestDebouncerStopIsIdempotent(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	d.Stop()
	d.Stop()

	// Adds after stop are ignored.
	d.Add(FileEvent{Path: "a.md", Operation: OpCreate, Timestamp: time.Now()})

	_, open := <-d.Output()
	assert.False(t, open, "output channel closed after stop")
}
