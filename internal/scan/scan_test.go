package scan

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	stderrors "errors"

	"github.com/scaffsync/scaffsync/internal/errors"
)

// writeFiles creates a workspace tree from relative path -> content.
func writeFiles(t *testing.T, base string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(base, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestScanReturnsSortedRelativePaths(t *testing.T) {
	base := t.TempDir()
	writeFiles(t, base, map[string]string{
		"prompts/b.prompt.md": "b",
		"prompts/a.prompt.md": "a",
		"README.md":           "r",
	})

	s := New(base, Options{})
	paths, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	want := []string{"README.md", "prompts/a.prompt.md", "prompts/b.prompt.md"}
	if len(paths) != len(want) {
		t.Fatalf("got %d paths, want %d: %v", len(paths), len(want), paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %s, want %s", i, paths[i], want[i])
		}
	}
}

func TestScanMissingRootIsFatal(t *testing.T) {
	base := t.TempDir()

	s := New(base, Options{Roots: []string{"does-not-exist"}})
	_, err := s.Scan(context.Background())
	if err == nil {
		t.Fatal("expected error for missing declared root")
	}
	if !stderrors.Is(err, errors.New(errors.ErrCodeRootMissing, "", nil)) {
		t.Errorf("expected ERR_201_ROOT_MISSING, got %v", err)
	}
	if !errors.IsFatal(err) {
		t.Error("missing root must be fatal for the run")
	}
}

func TestScanDenylistUnconditional(t *testing.T) {
	base := t.TempDir()
	writeFiles(t, base, map[string]string{
		".git/config":             "git",
		".env":                    "SECRET=1",
		".env.local":              "SECRET=2",
		".scaffsync/state.db":     "state",
		".scaffsync/logs/x.log":   "log",
		"prompts/ok.prompt.md":    "ok",
		"creds/aws_credentials":   "key",
		"nested/.git/HEAD":        "ref",
		"nested/file.md":          "fine",
	})

	s := New(base, Options{Denylist: DefaultDenylist})
	paths, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	for _, p := range paths {
		if s.Denied(p) {
			t.Errorf("denylisted path leaked into scan output: %s", p)
		}
	}

	got := make(map[string]bool, len(paths))
	for _, p := range paths {
		got[p] = true
	}
	if !got["prompts/ok.prompt.md"] || !got["nested/file.md"] {
		t.Errorf("expected allowed paths in output, got %v", paths)
	}
	for _, denied := range []string{".git/config", ".env", ".env.local", ".scaffsync/state.db", "nested/.git/HEAD", "creds/aws_credentials"} {
		if got[denied] {
			t.Errorf("denied path present in output: %s", denied)
		}
	}
}

func TestScanDoesNotFollowSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink test not supported on windows")
	}

	base := t.TempDir()
	outside := t.TempDir()
	writeFiles(t, outside, map[string]string{"escaped.md": "outside"})
	writeFiles(t, base, map[string]string{"inside.md": "inside"})

	if err := os.Symlink(outside, filepath.Join(base, "link")); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(outside, "escaped.md"), filepath.Join(base, "linked.md")); err != nil {
		t.Fatal(err)
	}

	s := New(base, Options{})
	paths, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	for _, p := range paths {
		if p == "linked.md" || p == "link/escaped.md" {
			t.Errorf("symlink escaped declared roots: %s", p)
		}
	}
}

func TestScanScopedRoots(t *testing.T) {
	base := t.TempDir()
	writeFiles(t, base, map[string]string{
		".github/copilot-instructions.md": "gh",
		"src/main.go":                     "code",
	})

	s := New(base, Options{Roots: []string{".github"}})
	paths, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(paths) != 1 || paths[0] != ".github/copilot-instructions.md" {
		t.Errorf("expected only .github files, got %v", paths)
	}
}

func TestMatchPath(t *testing.T) {
	tests := []struct {
		path    string
		pattern string
		want    bool
	}{
		{"prompts/activate.prompt.md", "**/*.prompt.md", true},
		{"activate.prompt.md", "**/*.prompt.md", true},
		{"prompts/notes.md", "**/*.prompt.md", false},
		{"cache/__pycache__/x.pyc", "**/__pycache__/**", true},
		{"a/b/c.tmp", "**/*.tmp", true},
		{".scaffsync/state.db", ".scaffsync/**", true},
		{".scaffsyncish/file", ".scaffsync/**", false},
		{".env.production", ".env.*", true},
	}
	for _, tt := range tests {
		if got := MatchPath(tt.path, tt.pattern); got != tt.want {
			t.Errorf("MatchPath(%q, %q) = %v, want %v", tt.path, tt.pattern, got, tt.want)
		}
	}
}
