// Package sqlitepath resolves the SQLite database used by chatrelay serve.
package sqlitepath

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultName is the database file created in the .chatrelay/ directory.
const DefaultName = "chatrelay.db"

// ResolveSQLitePath returns the database path to open. An explicit override
// wins, then CHATRELAY_SQLITE, then an existing database in one of the
// usual locations, then DefaultName inside configDir.
func ResolveSQLitePath(override, configDir string) string {
	if override != "" {
		return override
	}

	if envPath := strings.TrimSpace(os.Getenv("CHATRELAY_SQLITE")); envPath != "" {
		return envPath
	}

	for _, candidate := range sqliteCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return filepath.Join(configDir, DefaultName)
}

func sqliteCandidates() []string {
	candidates := []string{
		DefaultName,
		filepath.Join(".chatrelay", DefaultName),
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		candidates = append([]string{
			filepath.Join(xdgHome, "chatrelay", DefaultName),
		}, candidates...)
	}

	return candidates
}
