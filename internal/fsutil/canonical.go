// Package fsutil canonicalizes asset paths so the watcher and the asset
// managers agree on a single spelling for every file.
package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// Canonical returns an absolute, cleaned path. Symlinks are resolved when the
// path exists; a missing file keeps its cleaned absolute form so events for
// files that are being recreated still match.
func Canonical(pathValue string) (string, error) {
	trimmed := strings.TrimSpace(pathValue)
	if trimmed == "" {
		return "", errors.New("empty path")
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", pathValue, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return resolveParent(abs), nil
		}
		return "", fmt.Errorf("resolve %q: %w", pathValue, err)
	}
	return filepath.Clean(resolved), nil
}

// CanonicalOrClean is Canonical with the error dropped: the input is returned
// cleaned when it cannot be resolved.
func CanonicalOrClean(pathValue string) string {
	canonical, err := Canonical(pathValue)
	if err != nil {
		return filepath.Clean(pathValue)
	}
	return canonical
}

// Resolve joins a relative path onto base. Absolute paths are returned cleaned.
func Resolve(base, pathValue string) string {
	if pathValue == "" || filepath.IsAbs(pathValue) || base == "" {
		return filepath.Clean(pathValue)
	}
	return filepath.Join(base, pathValue)
}

// resolveParent resolves symlinks in the directory of a missing file, e.g.
// /tmp -> /private/tmp on macOS.
func resolveParent(abs string) string {
	dir, file := filepath.Split(abs)
	resolvedDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return filepath.Clean(abs)
	}
	return filepath.Join(resolvedDir, file)
}
