package scan

import (
	"path/filepath"
	"strings"
)

// DefaultDenylist is always applied on top of the configured denylist.
// Version-control internals, environment/secret files, and the engine's own
// project-local data are never candidates for any plan, under any policy.
var DefaultDenylist = []string{
	"**/.git/**",
	"**/.hg/**",
	"**/.svn/**",
	"**/node_modules/**",
	// Engine-private state. The prompts subtree stays scannable because it
	// is the canonical destination for decluttered prompt files.
	".scaffsync/backups/**",
	".scaffsync/logs/**",
	".scaffsync/state.db",
	".scaffsync/state.db-wal",
	".scaffsync/state.db-shm",
	".scaffsync/run.lock",
	".scaffsync/run.lock.owner",
	".env",
	".env.*",
	"*.pem",
	"*.key",
	"*credentials*",
	"*secrets*",
	".netrc",
	".npmrc",
	"id_rsa",
	"id_ed25519",
}

// matchDirPattern checks if a directory path matches a pattern.
func matchDirPattern(relPath, pattern string) bool {
	// Handle **/ prefix patterns (e.g., **/.git/**)
	if strings.HasPrefix(pattern, "**/") {
		suffix := strings.TrimPrefix(pattern, "**/")
		suffix = strings.TrimSuffix(suffix, "/**")
		parts := strings.Split(relPath, string(filepath.Separator))
		for _, part := range parts {
			if part == suffix {
				return true
			}
		}
		return false
	}

	// Handle dir/** patterns: match the directory itself or anything under it
	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		return relPath == prefix || strings.HasPrefix(relPath, prefix+string(filepath.Separator))
	}

	return relPath == pattern || strings.HasPrefix(relPath, pattern+string(filepath.Separator))
}

// matchFilePattern checks if a file matches a pattern.
func matchFilePattern(baseName, relPath, pattern string) bool {
	// dir/** patterns
	if strings.HasSuffix(pattern, "/**") && !strings.HasPrefix(pattern, "**/") {
		prefix := strings.TrimSuffix(pattern, "/**")
		return strings.HasPrefix(relPath, prefix+string(filepath.Separator))
	}

	// **/ prefix patterns
	if strings.HasPrefix(pattern, "**/") {
		suffix := strings.TrimPrefix(pattern, "**/")
		if strings.HasPrefix(suffix, "*.") {
			// Extension pattern like **/*.tmp
			return strings.HasSuffix(baseName, strings.TrimPrefix(suffix, "*"))
		}
		parts := strings.Split(relPath, string(filepath.Separator))
		for _, part := range parts {
			if part == suffix {
				return true
			}
		}
		return false
	}

	// *pattern* (contains)
	if strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") && len(pattern) > 1 {
		middle := strings.TrimSuffix(strings.TrimPrefix(pattern, "*"), "*")
		return strings.Contains(strings.ToLower(baseName), strings.ToLower(middle))
	}

	// .env* style prefix patterns
	if strings.HasSuffix(pattern, "*") && strings.HasPrefix(pattern, ".") {
		return strings.HasPrefix(baseName, strings.TrimSuffix(pattern, "*"))
	}

	// *pattern (suffix match)
	if strings.HasPrefix(pattern, "*") {
		return strings.HasSuffix(baseName, strings.TrimPrefix(pattern, "*"))
	}

	// pattern* (prefix match)
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(baseName, strings.TrimSuffix(pattern, "*"))
	}

	return baseName == pattern
}

// MatchPath reports whether relPath matches pattern.
// Used by the declutter policy's canonical-location rules.
func MatchPath(relPath, pattern string) bool {
	return matchDirPattern(relPath, pattern) ||
		matchFilePattern(filepath.Base(relPath), relPath, pattern)
}
