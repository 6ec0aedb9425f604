// Package config loads and persists scaffsync project configuration.
//
// Configuration is layered: built-in defaults, then the committed project
// file (.scaffsync.yaml), then the machine-generated detection overlay
// (.scaffsync.detected.yaml). The overlay is rewritten by detection and
// never hand-edited, so conflicts resolve in its favor only for fields it
// actually sets.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/scaffsync/scaffsync/internal/errors"
)

const (
	// FileName is the committed project configuration file.
	FileName = ".scaffsync.yaml"

	// DetectedFileName is the machine-generated detection overlay.
	DetectedFileName = ".scaffsync.detected.yaml"

	// DataDirName is the project-local data directory.
	DataDirName = ".scaffsync"
)

// Config is the complete scaffsync configuration for one project.
type Config struct {
	Version     int               `yaml:"version"`
	Upstream    UpstreamConfig    `yaml:"upstream"`
	Scan        ScanConfig        `yaml:"scan"`
	Canonical   CanonicalConfig   `yaml:"canonical"`
	Backup      BackupConfig      `yaml:"backup"`
	Resolutions ResolutionsConfig `yaml:"resolutions"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// UpstreamConfig points at the scaffold template tree to reconcile against.
type UpstreamConfig struct {
	// Dir is the upstream template directory, absolute or relative to the
	// project root.
	Dir string `yaml:"dir"`
}

// ScanConfig configures local population discovery.
type ScanConfig struct {
	// Roots are the directories scanned for the local population,
	// relative to the project root. Empty means the project root itself.
	Roots []string `yaml:"roots"`

	// Denylist patterns are excluded from scanning and can never be a
	// plan source or destination. Merged with the built-in denylist.
	Denylist []string `yaml:"denylist"`
}

// CanonicalConfig drives the declutter policy's placement rules.
type CanonicalConfig struct {
	// PromptPatterns match recognized framework files found outside their
	// canonical home.
	PromptPatterns []string `yaml:"prompt_patterns"`

	// PromptsRoot is the canonical directory misplaced prompts move to.
	PromptsRoot string `yaml:"prompts_root"`

	// TransientPatterns match disposable artifacts eligible for deletion.
	TransientPatterns []string `yaml:"transient_patterns"`
}

// BackupConfig controls snapshot retention.
type BackupConfig struct {
	// RetentionDays is the age beyond which snapshots are pruned.
	RetentionDays int `yaml:"retention_days"`

	// KeepMin snapshots are always retained regardless of age.
	KeepMin int `yaml:"keep_min"`
}

// ResolutionsConfig controls recorded conflict decisions.
type ResolutionsConfig struct {
	// Remember persists conflict resolutions so identical conflicts are
	// not re-asked. A changed fingerprint pair always re-opens the ask.
	Remember bool `yaml:"remember"`
}

// LoggingConfig configures the run log.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Upstream: UpstreamConfig{
			Dir: "scaffold",
		},
		Scan: ScanConfig{
			Roots: []string{"."},
		},
		Canonical: CanonicalConfig{
			PromptPatterns:    []string{"**/*.prompt.md"},
			PromptsRoot:       DataDirName + "/prompts",
			TransientPatterns: []string{"**/__pycache__/**", "**/*.pyc", "**/*.tmp", "**/.DS_Store"},
		},
		Backup: BackupConfig{
			RetentionDays: 30,
			KeepMin:       5,
		},
		Resolutions: ResolutionsConfig{
			Remember: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Load reads configuration for the project rooted at dir, applying the
// detection overlay when present. A missing project file yields defaults.
func Load(dir string) (*Config, error) {
	cfg := Default()

	if err := mergeFile(cfg, filepath.Join(dir, FileName)); err != nil {
		return nil, err
	}
	if err := mergeFile(cfg, filepath.Join(dir, DetectedFileName)); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile overlays a yaml file onto cfg. Missing files are fine; fields
// absent from the file keep their current values.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.ConfigError(fmt.Sprintf("failed to read %s", filepath.Base(path)), err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.ConfigError(fmt.Sprintf("invalid yaml in %s", filepath.Base(path)), err)
	}
	return nil
}

// Save writes cfg to the committed project file in dir. An existing file is
// backed up first, so a rewrite never silently destroys hand edits.
func Save(cfg *Config, dir string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.ConfigError("failed to marshal configuration", err)
	}
	if _, err := BackupProjectConfig(dir); err != nil {
		return errors.ConfigError("failed to back up configuration before rewrite", err)
	}
	if err := os.WriteFile(filepath.Join(dir, FileName), data, 0o644); err != nil {
		return errors.ConfigError("failed to write configuration", err)
	}
	return nil
}

// Detected is the machine-generated overlay. Only fields detection actually
// set are written, so the overlay never clobbers hand edits to fields it
// knows nothing about.
type Detected struct {
	Upstream *UpstreamConfig `yaml:"upstream,omitempty"`
}

// SaveDetected writes the detection overlay. Detection owns this file and
// rewrites it wholesale.
func SaveDetected(d *Detected, dir string) error {
	data, err := yaml.Marshal(d)
	if err != nil {
		return errors.ConfigError("failed to marshal detected configuration", err)
	}
	header := []byte("# Generated by scaffsync; do not edit by hand.\n")
	if err := os.WriteFile(filepath.Join(dir, DetectedFileName), append(header, data...), 0o644); err != nil {
		return errors.ConfigError("failed to write detected configuration", err)
	}
	return nil
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if c.Version != 1 {
		return errors.ConfigError(fmt.Sprintf("unsupported config version %d", c.Version), nil)
	}
	if c.Upstream.Dir == "" {
		return errors.ConfigError("upstream.dir must be set", nil)
	}
	if c.Backup.RetentionDays < 0 {
		return errors.ConfigError("backup.retention_days must not be negative", nil)
	}
	if c.Backup.KeepMin < 0 {
		return errors.ConfigError("backup.keep_min must not be negative", nil)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.ConfigError(fmt.Sprintf("unknown logging level %q", c.Logging.Level), nil)
	}
	return nil
}

// DataDir returns the project-local data directory under root.
func DataDir(root string) string {
	return filepath.Join(root, DataDirName)
}

// UpstreamDir resolves the upstream template directory against root.
func (c *Config) UpstreamDir(root string) string {
	if filepath.IsAbs(c.Upstream.Dir) {
		return c.Upstream.Dir
	}
	return filepath.Join(root, c.Upstream.Dir)
}

// FindProjectRoot walks up from start looking for a directory containing
// the project config file or the data directory.
func FindProjectRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", start, err)
	}

	for {
		if fileExists(filepath.Join(dir, FileName)) || dirExists(filepath.Join(dir, DataDirName)) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New(errors.ErrCodeConfigNotFound,
				fmt.Sprintf("no %s found in %s or any parent", FileName, start), nil).
				WithSuggestion("run 'scaffsync init' to set up this project")
		}
		dir = parent
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
