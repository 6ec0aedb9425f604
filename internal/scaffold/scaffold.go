// Package scaffold sets up a project for reconciliation: the data
// directory, the committed configuration file, and seed content. Init is
// idempotent and never overwrites anything that already exists.
package scaffold

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/scaffsync/scaffsync/internal/config"
)

// InitResult reports what init actually did.
type InitResult struct {
	Created []string
	Skipped []string
}

// seedFiles are written on init when absent. Existing files are left
// untouched, whatever their content.
var seedFiles = map[string]string{
	".scaffsync/prompts/.gitkeep": "",
	".scaffsync/README.md": `# scaffsync data directory

This directory holds scaffsync's project-local state: backups of files it
changed, run logs, and the canonical home for prompt files. It is safe to
commit the prompts subdirectory; everything else is machine state.
`,
}

// initDirs are created on init.
var initDirs = []string{
	".scaffsync",
	".scaffsync/prompts",
	".scaffsync/backups",
	".scaffsync/logs",
}

// upstreamCandidates are directory names probed as the template tree when
// the project does not say otherwise. Listed in preference order.
var upstreamCandidates = []string{"scaffold", "template", "templates"}

// Init prepares the project rooted at root. Re-running is safe: existing
// directories, config, and seed files are reported as skipped.
func Init(root string, log *slog.Logger) (*InitResult, error) {
	result := &InitResult{}

	for _, dir := range initDirs {
		abs := filepath.Join(root, filepath.FromSlash(dir))
		info, err := os.Stat(abs)
		if err == nil {
			if !info.IsDir() {
				return nil, fmt.Errorf("%s exists and is not a directory", dir)
			}
			result.Skipped = append(result.Skipped, dir+"/")
			continue
		}
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
		result.Created = append(result.Created, dir+"/")
	}

	configPath := filepath.Join(root, config.FileName)
	if _, err := os.Stat(configPath); err == nil {
		result.Skipped = append(result.Skipped, config.FileName)
	} else {
		if err := config.Save(config.Default(), root); err != nil {
			return nil, err
		}
		result.Created = append(result.Created, config.FileName)
	}

	detectedPath := filepath.Join(root, config.DetectedFileName)
	if _, err := os.Stat(detectedPath); err == nil {
		result.Skipped = append(result.Skipped, config.DetectedFileName)
	} else if dir := detectUpstream(root); dir != "" {
		detected := &config.Detected{Upstream: &config.UpstreamConfig{Dir: dir}}
		if err := config.SaveDetected(detected, root); err != nil {
			return nil, err
		}
		result.Created = append(result.Created, config.DetectedFileName)
	}

	for rel, content := range seedFiles {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		if _, err := os.Stat(abs); err == nil {
			result.Skipped = append(result.Skipped, rel)
			continue
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", rel, err)
		}
		result.Created = append(result.Created, rel)
	}

	log.Info("project initialized",
		"root", root,
		"created", len(result.Created),
		"skipped", len(result.Skipped))
	return result, nil
}

// detectUpstream probes for a local template tree. The default configuration
// already points at "scaffold", so only a differently named tree is worth
// recording in the overlay.
func detectUpstream(root string) string {
	for _, name := range upstreamCandidates {
		info, err := os.Stat(filepath.Join(root, name))
		if err != nil || !info.IsDir() {
			continue
		}
		if name == config.Default().Upstream.Dir {
			return ""
		}
		return name
	}
	return ""
}
