// Package watch observes the workspace for changes and batches them so a
// fresh dry-run plan can be produced after the filesystem settles.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Operation is a filesystem operation type.
type Operation int

const (
	// OpCreate indicates a new file was created.
	OpCreate Operation = iota
	// OpModify indicates an existing file was modified.
	OpModify
	// OpDelete indicates a file was deleted or renamed away.
	OpDelete
)

// String implements fmt.Stringer.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one observed change, relative to the watch root.
type FileEvent struct {
	Path      string
	Operation Operation
	Timestamp time.Time
}

// Options configures the watcher.
type Options struct {
	// DebounceWindow is how long the filesystem must be quiet before a
	// batch of coalesced events is emitted. Default 500ms.
	DebounceWindow time.Duration

	// Denied filters paths out of the event stream. Typically the
	// scanner's denylist check.
	Denied func(relPath string) bool
}

// WithDefaults fills zero values.
func (o Options) WithDefaults() Options {
	if o.DebounceWindow == 0 {
		o.DebounceWindow = 500 * time.Millisecond
	}
	return o
}

// Watcher observes a workspace tree recursively via fsnotify.
type Watcher struct {
	root      string
	opts      Options
	fswatcher *fsnotify.Watcher
	debouncer *Debouncer
	errs      chan error
}

// New creates a Watcher for the tree rooted at root.
func New(root string, opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	opts = opts.WithDefaults()
	return &Watcher{
		root:      root,
		opts:      opts,
		fswatcher: fsw,
		debouncer: NewDebouncer(opts.DebounceWindow),
		errs:      make(chan error, 16),
	}, nil
}

// Start begins watching. It returns once the initial directory tree is
// registered; events flow until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return err
	}

	go w.loop(ctx)
	return nil
}

// Batches returns coalesced event batches, emitted after each quiet window.
func (w *Watcher) Batches() <-chan []FileEvent {
	return w.debouncer.Output()
}

// Errors returns non-fatal watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// Stop releases the watcher. Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.debouncer.Stop()
	return w.fswatcher.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return

		case event, ok := <-w.fswatcher.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.fswatcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || strings.HasPrefix(rel, "../") {
		return
	}
	if w.opts.Denied != nil && w.opts.Denied(rel) {
		return
	}

	// New directories must be registered to keep the watch recursive.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
			_ = w.addRecursive(event.Name)
			return
		}
	}

	var op Operation
	switch {
	case event.Op.Has(fsnotify.Create):
		op = OpCreate
	case event.Op.Has(fsnotify.Write):
		op = OpModify
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		op = OpDelete
	default:
		return
	}

	w.debouncer.Add(FileEvent{Path: rel, Operation: op, Timestamp: time.Now()})
}

// addRecursive registers dir and every directory under it. Symlinked
// directories are not followed, matching the scanner.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // vanished mid-walk
		}
		if !d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return filepath.SkipDir
		}
		rel, relErr := filepath.Rel(w.root, path)
		if relErr == nil && rel != "." {
			if w.opts.Denied != nil && w.opts.Denied(filepath.ToSlash(rel)) {
				return filepath.SkipDir
			}
		}
		if addErr := w.fswatcher.Add(path); addErr != nil {
			select {
			case w.errs <- fmt.Errorf("failed to watch %s: %w", path, addErr):
			default:
			}
		}
		return nil
	})
}
