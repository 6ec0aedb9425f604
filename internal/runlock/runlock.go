// Package runlock provides the exclusive cross-process run lock.
//
// Only one run may mutate a project at a time. The lock is an OS-level
// file lock via gofrs/flock plus an owner sidecar recording who holds it,
// so a second invocation can report the holder instead of corrupting
// state. A stale lock is never cleared implicitly; the unlock operation
// exists for that.
package runlock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/scaffsync/scaffsync/internal/errors"
)

const (
	lockName  = "run.lock"
	ownerName = "run.lock.owner"
)

// Owner identifies the process holding the lock.
type Owner struct {
	PID        int       `json:"pid"`
	Hostname   string    `json:"hostname"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Lock guards a project's data directory against concurrent runs.
type Lock struct {
	dir    string
	flock  *flock.Flock
	locked bool
}

// New creates a Lock for the given data directory (typically .scaffsync).
func New(dir string) *Lock {
	return &Lock{
		dir:   dir,
		flock: flock.New(filepath.Join(dir, lockName)),
	}
}

// Acquire attempts to take the lock without blocking. When the lock is
// held elsewhere it returns a fatal ERR_403_LOCK_HELD naming the owner.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !acquired {
		msg := "another run holds the lock"
		if owner, ok := l.ReadOwner(); ok {
			msg = fmt.Sprintf("another run holds the lock (pid %d on %s since %s)",
				owner.PID, owner.Hostname, owner.AcquiredAt.Format(time.RFC3339))
		}
		return errors.New(errors.ErrCodeLockHeld, msg, nil).
			WithSuggestion("wait for the other run to finish, or run 'scaffsync unlock' if it crashed")
	}

	l.locked = true
	if err := l.writeOwner(); err != nil {
		// The lock itself is held; a missing sidecar only degrades the
		// diagnostic another process would see.
		return nil
	}
	return nil
}

// Release drops the lock and removes the owner sidecar. Safe to call on
// an unheld lock.
func (l *Lock) Release() error {
	if !l.locked {
		return nil
	}
	_ = os.Remove(filepath.Join(l.dir, ownerName))
	if err := l.flock.Unlock(); err != nil {
		l.locked = false
		return fmt.Errorf("failed to release run lock: %w", err)
	}
	l.locked = false
	return nil
}

// ReadOwner reads the owner sidecar, if present and parseable.
func (l *Lock) ReadOwner() (Owner, bool) {
	data, err := os.ReadFile(filepath.Join(l.dir, ownerName))
	if err != nil {
		return Owner{}, false
	}
	var o Owner
	if err := json.Unmarshal(data, &o); err != nil {
		return Owner{}, false
	}
	return o, true
}

// ForceClear removes the lock file and owner sidecar regardless of holder.
// Only the explicit unlock operation calls this.
func (l *Lock) ForceClear() error {
	_ = os.Remove(filepath.Join(l.dir, ownerName))
	if err := os.Remove(filepath.Join(l.dir, lockName)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear run lock: %w", err)
	}
	return nil
}

func (l *Lock) writeOwner() error {
	hostname, _ := os.Hostname()
	data, err := json.Marshal(Owner{
		PID:        os.Getpid(),
		Hostname:   hostname,
		AcquiredAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(l.dir, ownerName), data, 0o644)
}
