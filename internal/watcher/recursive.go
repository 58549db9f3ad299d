package watcher

import (
	"io/fs"
	"os"
	"path/filepath"
)

func (watcher *Watcher) addRecursiveWatches(root string) ([]string, error) {
	if watcher == nil || !watcher.recursive {
		return nil, nil
	}
	paths, err := collectRecursiveDirs(root)
	if err != nil {
		return nil, err
	}

	added := make([]string, 0, len(paths))
	for _, path := range paths {
		if err := watcher.addRecursiveWatch(path); err != nil {
			watcher.removeRecursiveWatches(added)
			return nil, err
		}
		added = append(added, path)
	}

	return added, nil
}

func collectRecursiveDirs(root string) ([]string, error) {
	dirs := []string{}
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		if path == root {
			return nil
		}
		dirs = append(dirs, path)
		return nil
	})
	return dirs, err
}

// watchCreatedDir covers a directory created under a recursive root, along
// with anything already created inside it.
func (watcher *Watcher) watchCreatedDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	watcher.mutex.Lock()
	covered := !watcher.closed && watcher.recursiveRootLocked(path) && !watcher.isPathWatchedLocked(path)
	watcher.mutex.Unlock()
	if !covered {
		return
	}

	if err := watcher.addRecursiveWatch(path); err != nil {
		return
	}
	if _, err := watcher.addRecursiveWatches(path); err != nil {
		watcher.logWarn("watch nested dirs failed", map[string]string{
			"path":  path,
			"error": err.Error(),
		})
	}
}

func (watcher *Watcher) addRecursiveWatch(path string) error {
	watcher.mutex.Lock()
	if watcher.closed {
		watcher.mutex.Unlock()
		return nil
	}
	if watcher.isPathWatchedLocked(path) {
		watcher.recursiveWatches[path]++
		watcher.mutex.Unlock()
		return nil
	}
	if watcher.activeWatches >= watcher.maxWatches {
		watcher.mutex.Unlock()
		watcher.logWarn("watch limit reached", map[string]string{"path": path})
		return ErrMaxWatchesExceeded
	}
	watcher.recursiveWatches[path] = 1
	watcher.activeWatches++
	activeCount := watcher.activeWatches
	source := watcher.watcher
	watcher.mutex.Unlock()

	if source == nil {
		watcher.dropRecursiveWatch(path)
		return nil
	}
	if err := source.Add(path); err != nil {
		watcher.dropRecursiveWatch(path)
		watcher.logWarn("watch add failed", map[string]string{
			"path":  path,
			"error": err.Error(),
		})
		return err
	}
	watcher.logWatchChange("watch added", path, activeCount)
	return nil
}

func (watcher *Watcher) removeRecursiveWatches(paths []string) {
	if watcher == nil {
		return
	}
	for _, path := range paths {
		watcher.removeRecursiveWatch(path)
	}
}

func (watcher *Watcher) removeRecursiveWatch(path string) {
	if watcher == nil {
		return
	}

	shouldRemove := false
	activeCount := 0

	watcher.mutex.Lock()
	count := watcher.recursiveWatches[path]
	if count > 1 {
		watcher.recursiveWatches[path] = count - 1
		watcher.mutex.Unlock()
		return
	}
	if count == 1 {
		delete(watcher.recursiveWatches, path)
		if _, isRoot := watcher.roots[path]; !isRoot {
			shouldRemove = true
			if watcher.activeWatches > 0 {
				watcher.activeWatches--
			}
			activeCount = watcher.activeWatches
		}
	}
	source := watcher.watcher
	watcher.mutex.Unlock()

	if shouldRemove && source != nil {
		if err := source.Remove(path); err != nil {
			watcher.logDebug("watch remove failed", map[string]string{
				"path":  path,
				"error": err.Error(),
			})
			return
		}
		watcher.logWatchChange("watch removed", path, activeCount)
	}
}

func (watcher *Watcher) dropRecursiveWatch(path string) {
	watcher.mutex.Lock()
	defer watcher.mutex.Unlock()
	count := watcher.recursiveWatches[path]
	if count > 1 {
		watcher.recursiveWatches[path] = count - 1
		return
	}
	if count == 1 {
		delete(watcher.recursiveWatches, path)
		if watcher.activeWatches > 0 {
			watcher.activeWatches--
		}
	}
}

// forgetRemovedDir drops bookkeeping for a recursive watch whose directory
// vanished; the OS observer has already released it.
func (watcher *Watcher) forgetRemovedDir(path string) {
	watcher.mutex.Lock()
	defer watcher.mutex.Unlock()
	if _, ok := watcher.recursiveWatches[path]; !ok {
		return
	}
	delete(watcher.recursiveWatches, path)
	if _, isRoot := watcher.roots[path]; !isRoot && watcher.activeWatches > 0 {
		watcher.activeWatches--
	}
}
