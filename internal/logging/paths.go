package logging

import (
	"os"
	"path/filepath"
)

// logFileName is the base name of the engine log file.
const logFileName = "scaffsync.log"

// LogPath returns the log file path under the project-local data directory.
// Falls back to a temp directory when dataDir is empty (e.g. before init).
func LogPath(dataDir string) string {
	if dataDir == "" {
		return filepath.Join(os.TempDir(), ".scaffsync", "logs", logFileName)
	}
	return filepath.Join(dataDir, "logs", logFileName)
}
