// Package scan discovers the candidate file population for a run.
//
// A scan walks a set of declared roots relative to a base directory and
// returns relative paths, excluding denylisted patterns unconditionally.
// Symbolic links are never followed, so a scan cannot escape its roots.
package scan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/scaffsync/scaffsync/internal/errors"
)

// Options configures a scan.
type Options struct {
	// Roots are directories relative to the base, e.g. [".scaffsync", ".github"].
	// A single "." root scans the whole base.
	Roots []string

	// Denylist are path patterns excluded unconditionally, regardless of any
	// other classification rule.
	Denylist []string
}

// Scanner walks declared roots and filters against the denylist.
type Scanner struct {
	base string
	opts Options
}

// New creates a Scanner for the given base directory.
func New(base string, opts Options) *Scanner {
	if len(opts.Roots) == 0 {
		opts.Roots = []string{"."}
	}
	return &Scanner{base: base, opts: opts}
}

// Scan returns the sorted set of candidate relative paths under the declared
// roots. A missing declared root is fatal for the run: planning must never
// proceed from a partial population.
func (s *Scanner) Scan(ctx context.Context) ([]string, error) {
	absBase, err := filepath.Abs(s.base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base: %w", err)
	}

	seen := make(map[string]struct{})
	var paths []string

	for _, root := range s.opts.Roots {
		absRoot := filepath.Join(absBase, root)
		info, err := os.Stat(absRoot)
		if err != nil {
			return nil, errors.ScanError(
				fmt.Sprintf("declared root does not exist: %s", root), err)
		}
		if !info.IsDir() {
			return nil, errors.ScanError(
				fmt.Sprintf("declared root is not a directory: %s", root), nil)
		}

		err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			if walkErr != nil {
				return nil // Skip entries we can't access
			}

			relPath, err := filepath.Rel(absBase, path)
			if err != nil {
				return nil
			}
			if relPath == "." {
				return nil
			}

			if d.IsDir() {
				if s.Denied(relPath) {
					return filepath.SkipDir
				}
				return nil
			}

			// Symlinks are never followed
			if d.Type()&fs.ModeSymlink != 0 {
				return nil
			}

			if s.Denied(relPath) {
				return nil
			}

			if _, ok := seen[relPath]; !ok {
				seen[relPath] = struct{}{}
				paths = append(paths, filepath.ToSlash(relPath))
			}
			return nil
		})
		if err != nil {
			if err == ctx.Err() {
				return nil, err
			}
			return nil, errors.ScanError(fmt.Sprintf("failed to walk root %s", root), err)
		}
	}

	sort.Strings(paths)
	return paths, nil
}

// Denied reports whether relPath matches the denylist.
// Exposed so the planner can enforce denylist inviolability as a final check.
func (s *Scanner) Denied(relPath string) bool {
	baseName := filepath.Base(relPath)
	for _, pattern := range s.opts.Denylist {
		if matchDirPattern(relPath, pattern) || matchFilePattern(baseName, relPath, pattern) {
			return true
		}
	}
	return false
}
