package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// DefaultDataDir returns the conventional data directory for the host
// platform. With no usable home directory it falls back to ./data.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "./data"
	}

	// XDG takes precedence everywhere it is set.
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "derecho")
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Derecho")
	case "windows":
		return filepath.Join(home, "AppData", "Local", "Derecho")
	default:
		if isDir("/var/lib") {
			return "/var/lib/derecho"
		}
		return filepath.Join(home, ".derecho")
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
