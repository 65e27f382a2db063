package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome expands a leading '~' to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}

// PathExists reports whether path exists. Errors other than not-exist
// (e.g. permission denied) count as existing.
func PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}

// LooksLikeLocalPath reports whether a model reference names a file on disk
// rather than a hub-style "org/name" identifier.
func LooksLikeLocalPath(ref string) bool {
	switch {
	case ref == "":
		return false
	case filepath.IsAbs(ref), strings.HasPrefix(ref, "~"):
		return true
	case strings.HasPrefix(ref, "./"), strings.HasPrefix(ref, "../"), ref == ".", ref == "..":
		return true
	case strings.HasSuffix(strings.ToLower(ref), ".gguf"):
		return true
	}
	return false
}
