package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath expands environment variables and a leading tilde, then makes
// the path absolute. An empty path stays empty.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	path = os.ExpandEnv(path)

	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}
	return filepath.Abs(path)
}

// EnsureDir expands path and creates it as a directory when missing.
func EnsureDir(path string) (string, error) {
	expanded, err := ExpandPath(path)
	if err != nil || expanded == "" {
		return expanded, err
	}
	if info, err := os.Stat(expanded); err == nil {
		if !info.IsDir() {
			return expanded, fmt.Errorf("path %s exists but is not a directory", expanded)
		}
		return expanded, nil
	}
	return expanded, os.MkdirAll(expanded, 0o750)
}

// EnsureParent expands a file path and creates its parent directory.
func EnsureParent(path string) (string, error) {
	expanded, err := ExpandPath(path)
	if err != nil || expanded == "" {
		return expanded, err
	}
	if _, err := EnsureDir(filepath.Dir(expanded)); err != nil {
		return expanded, err
	}
	return expanded, nil
}
