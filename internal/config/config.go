package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// FilePermissions is the default permission mode for regular files (read/write for owner, read for others)
	FilePermissions = 0644
	// DirPermissions is the default permission mode for directories (rwxr-xr-x)
	DirPermissions = 0755
)

var (
	// ConfigDir is the global configuration directory (~/.execbench)
	ConfigDir string

	// DatabasePath is the SQLite database file for run history
	DatabasePath string
)

// Initialize sets up the configuration directory.
// It creates ~/.execbench/ if it doesn't exist.
func Initialize() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	ConfigDir = filepath.Join(homeDir, ".execbench")
	DatabasePath = filepath.Join(ConfigDir, "execbench.db")

	if err := os.MkdirAll(ConfigDir, DirPermissions); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", ConfigDir, err)
	}

	return nil
}

// ResolveDatabasePath returns path, or the global database when path is empty
func ResolveDatabasePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	if DatabasePath == "" {
		if err := Initialize(); err != nil {
			return "", err
		}
	}
	return DatabasePath, nil
}
