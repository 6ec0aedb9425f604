package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// MaxBackups is the number of config backups retained.
	MaxBackups = 3

	// BackupSuffix is the extension used for config backups.
	BackupSuffix = ".bak"
)

// BackupProjectConfig creates a timestamped backup of the project config
// file before it is rewritten. Returns the backup path, or empty string
// when there is nothing to back up.
func BackupProjectConfig(root string) (string, error) {
	configPath := filepath.Join(root, FileName)
	if !fileExists(configPath) {
		return "", nil
	}

	timestamp := time.Now().Format("20060102-150405")
	backupPath := fmt.Sprintf("%s%s.%s", configPath, BackupSuffix, timestamp)

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to read config for backup: %w", err)
	}
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write config backup: %w", err)
	}

	// Cleanup is best-effort; the backup itself succeeded.
	_ = cleanupOldBackups(root)

	return backupPath, nil
}

// ListConfigBackups returns backup files for the project config, newest
// first.
func ListConfigBackups(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list project directory: %w", err)
	}

	prefix := FileName + BackupSuffix + "."
	var backups []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), prefix) {
			backups = append(backups, filepath.Join(root, entry.Name()))
		}
	}

	// Timestamped names sort chronologically; newest first.
	sort.Sort(sort.Reverse(sort.StringSlice(backups)))
	return backups, nil
}

func cleanupOldBackups(root string) error {
	backups, err := ListConfigBackups(root)
	if err != nil {
		return err
	}
	if len(backups) <= MaxBackups {
		return nil
	}
	for _, backup := range backups[MaxBackups:] {
		if err := os.Remove(backup); err != nil {
			continue
		}
	}
	return nil
}
