package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// expandTilde expands ~ to the user's home directory
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		logger.Fatalf("Failed to get home directory: %v", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// getRecordsDir returns the session records directory.
// Records are stored in $HOME/.beatbuild/sessions/ unless overridden.
func getRecordsDir(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %v", err)
	}
	return filepath.Join(homeDir, ".beatbuild", "sessions"), nil
}

// shortID returns the first 8 characters of a session ID for display
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
