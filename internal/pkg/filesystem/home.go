// Package filesystem resolves the paths orca keeps its state under.
package filesystem

import (
	"os"
	"path/filepath"
	"strings"
)

// StateDirName is the directory under $HOME holding config and state.
const StateDirName = ".orca"

// UserHomeDir returns the current user's home directory.
// If the home directory cannot be determined, it returns "." as a fallback.
func UserHomeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}

// StatePath joins elem under ~/.orca.
func StatePath(elem ...string) string {
	return filepath.Join(append([]string{UserHomeDir(), StateDirName}, elem...)...)
}

// ExpandPath resolves a leading "~/" and cleans relative paths.
func ExpandPath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(UserHomeDir(), path[2:])
	}
	return filepath.Clean(path)
}
