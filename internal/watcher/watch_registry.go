package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mulay/internal/asset"
	"mulay/internal/fsutil"
)

// Watch registers files or directories. Directories are watched recursively
// when Options.Recursive is set. Every path is attempted; the failures are
// returned joined, each as an *asset.Error of kind KindWatcherInitialization.
func (watcher *Watcher) Watch(paths ...string) error {
	if watcher == nil {
		return errors.New("watcher is nil")
	}
	var errs []error
	for _, path := range paths {
		if err := watcher.watchPath(path); err != nil {
			errs = append(errs, &asset.Error{
				Kind:    asset.KindWatcherInitialization,
				Path:    path,
				Message: "register watch",
				Cause:   err,
			})
		}
	}
	return errors.Join(errs...)
}

func (watcher *Watcher) watchPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("path is required")
	}
	canonical, err := fsutil.Canonical(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(canonical)
	if err != nil {
		return err
	}

	watcher.mutex.Lock()
	if watcher.closed {
		watcher.mutex.Unlock()
		return errors.New("watcher is closed")
	}
	if _, ok := watcher.roots[canonical]; ok {
		watcher.mutex.Unlock()
		return nil
	}
	needsAdd := !watcher.isPathWatchedLocked(canonical)
	if needsAdd && watcher.activeWatches >= watcher.maxWatches {
		watcher.mutex.Unlock()
		return ErrMaxWatchesExceeded
	}
	watcher.roots[canonical] = info.IsDir()
	if needsAdd {
		watcher.activeWatches++
	}
	activeCount := watcher.activeWatches
	source := watcher.watcher
	watcher.mutex.Unlock()

	if needsAdd {
		if err := source.Add(canonical); err != nil {
			watcher.dropRoot(canonical)
			watcher.logWarn("watch add failed", map[string]string{
				"path":  canonical,
				"error": err.Error(),
			})
			return err
		}
		watcher.logWatchChange("watch added", canonical, activeCount)
	}

	if info.IsDir() && watcher.recursive {
		if _, err := watcher.addRecursiveWatches(canonical); err != nil {
			_ = watcher.Unwatch(canonical)
			return err
		}
	}
	return nil
}

// Unwatch removes a path registered with Watch together with the
// subdirectories it added.
func (watcher *Watcher) Unwatch(path string) error {
	if watcher == nil {
		return nil
	}
	canonical := fsutil.CanonicalOrClean(path)

	watcher.mutex.Lock()
	isDir, ok := watcher.roots[canonical]
	if !ok {
		watcher.mutex.Unlock()
		return fmt.Errorf("path %q is not watched", path)
	}
	delete(watcher.roots, canonical)
	shouldRemove := watcher.recursiveWatches[canonical] == 0
	if shouldRemove && watcher.activeWatches > 0 {
		watcher.activeWatches--
	}
	activeCount := watcher.activeWatches
	var nested []string
	if isDir && watcher.recursive {
		for candidate := range watcher.recursiveWatches {
			if candidate != canonical && isWithinPath(canonical, candidate) {
				nested = append(nested, candidate)
			}
		}
	}
	source := watcher.watcher
	watcher.mutex.Unlock()

	watcher.removeRecursiveWatches(nested)
	if !shouldRemove || source == nil {
		return nil
	}
	if err := source.Remove(canonical); err != nil {
		watcher.logWarn("watch remove failed", map[string]string{
			"path":  canonical,
			"error": err.Error(),
		})
		return err
	}
	watcher.logWatchChange("watch removed", canonical, activeCount)
	return nil
}

// WatchedPaths returns every path currently registered with the observer.
func (watcher *Watcher) WatchedPaths() []string {
	if watcher == nil {
		return nil
	}
	watcher.mutex.Lock()
	defer watcher.mutex.Unlock()
	return watcher.watchedPathsLocked()
}

func (watcher *Watcher) watchedPathsLocked() []string {
	paths := make([]string, 0, len(watcher.roots)+len(watcher.recursiveWatches))
	for path := range watcher.roots {
		paths = append(paths, path)
	}
	for path := range watcher.recursiveWatches {
		if _, ok := watcher.roots[path]; !ok {
			paths = append(paths, path)
		}
	}
	return paths
}

func (watcher *Watcher) dropRoot(path string) {
	watcher.mutex.Lock()
	defer watcher.mutex.Unlock()
	if _, ok := watcher.roots[path]; !ok {
		return
	}
	delete(watcher.roots, path)
	if watcher.recursiveWatches[path] == 0 && watcher.activeWatches > 0 {
		watcher.activeWatches--
	}
}

func (watcher *Watcher) isPathWatchedLocked(path string) bool {
	if _, ok := watcher.roots[path]; ok {
		return true
	}
	return watcher.recursiveWatches[path] > 0
}

// recursiveRootLocked reports whether path lies under a directory root.
func (watcher *Watcher) recursiveRootLocked(path string) bool {
	if !watcher.recursive {
		return false
	}
	for root, isDir := range watcher.roots {
		if isDir && isWithinPath(root, path) {
			return true
		}
	}
	return false
}

func isWithinPath(parent, child string) bool {
	parentPath := filepath.Clean(parent)
	childPath := filepath.Clean(child)
	rel, err := filepath.Rel(parentPath, childPath)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return false
	}
	return true
}
