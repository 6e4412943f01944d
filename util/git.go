package util

import (
	"os"
	"path/filepath"
)

// FindGitRoot walks up from start looking for a .git entry.
// Returns start itself if no repository root is found.
func FindGitRoot(start string) (string, error) {
	if start == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		start = cwd
	}
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	origin := dir

	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			return origin, nil
		}
		dir = parent
	}
}
