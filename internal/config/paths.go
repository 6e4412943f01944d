package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Home returns the root directory for repograph state.
// Priority: $REPOGRAPH_HOME -> $XDG_CACHE_HOME/repograph -> ~/.cache/repograph (Unix) / %LOCALAPPDATA%\repograph (Windows)
func Home() (string, error) {
	if home := os.Getenv("REPOGRAPH_HOME"); home != "" {
		return home, nil
	}

	if runtime.GOOS != "windows" {
		if xdgCache := os.Getenv("XDG_CACHE_HOME"); xdgCache != "" {
			return filepath.Join(xdgCache, "repograph"), nil
		}
	}

	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, "repograph"), nil
		}
		return filepath.Join(userHome, "AppData", "Local", "repograph"), nil
	default:
		return filepath.Join(userHome, ".cache", "repograph"), nil
	}
}

// GraphsDir returns the directory saved graph documents are written to.
func GraphsDir() (string, error) {
	home, err := Home()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "graphs"), nil
}

// DefaultStorePath returns the default SQLite database location.
func DefaultStorePath() (string, error) {
	home, err := Home()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "repograph.db"), nil
}

// EnsureDirectories creates the home and graphs directories.
func EnsureDirectories() error {
	for _, dirFunc := range []func() (string, error){Home, GraphsDir} {
		dir, err := dirFunc()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
