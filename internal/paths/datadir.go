// Package paths resolves the default data directory for a node's
// persisted identity and seen-message journal. Adapted directly from the
// teacher's internal/paths.DefaultDataDir, renamed from p2p-park's fixed
// subdirectory to meshnet's, with internal/appdata's overlapping
// executable-relative fallback dropped as a duplicate of the same
// concern.
package paths

import (
	"os"
	"path/filepath"
)

// DefaultDataDir returns a per-user directory appropriate for persisting
// node state. It prefers os.UserConfigDir and falls back to a relative
// ".meshnet" directory under the current directory.
func DefaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, "meshnet")
	}
	return ".meshnet"
}

// EnsureDir makes sure dir exists and returns the cleaned path.
func EnsureDir(dir string) (string, error) {
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}
