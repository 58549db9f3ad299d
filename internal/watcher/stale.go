package watcher

import (
	"sync/atomic"

	"mulay/internal/event"
)

// DrainStalePaths returns a copy of the buffered changed paths without
// clearing them. Repeated calls with no new writes return the same content.
func (watcher *Watcher) DrainStalePaths() []string {
	if watcher == nil {
		return nil
	}
	watcher.staleMutex.Lock()
	defer watcher.staleMutex.Unlock()
	watcher.drained = len(watcher.stale)
	watcher.drainPending = true
	if len(watcher.stale) == 0 {
		return nil
	}
	snapshot := make([]string, len(watcher.stale))
	copy(snapshot, watcher.stale)
	return snapshot
}

// ClearStalePaths removes the entries returned by the last DrainStalePaths.
// Paths appended after that drain stay buffered for the next one. Without a
// preceding drain the whole buffer is emptied.
func (watcher *Watcher) ClearStalePaths() {
	if watcher == nil {
		return
	}
	watcher.staleMutex.Lock()
	defer watcher.staleMutex.Unlock()
	if !watcher.drainPending {
		watcher.stale = nil
		return
	}
	remaining := len(watcher.stale) - watcher.drained
	if remaining <= 0 {
		watcher.stale = nil
	} else {
		rest := make([]string, remaining)
		copy(rest, watcher.stale[watcher.drained:])
		watcher.stale = rest
	}
	watcher.drained = 0
	watcher.drainPending = false
}

func (watcher *Watcher) pendingCount() int {
	watcher.staleMutex.Lock()
	defer watcher.staleMutex.Unlock()
	return len(watcher.stale)
}

func (watcher *Watcher) appendStale(path, operation string) {
	watcher.staleMutex.Lock()
	watcher.stale = append(watcher.stale, path)
	watcher.staleMutex.Unlock()

	atomic.AddUint64(&watcher.stalePaths, 1)
	watcher.registry.IncStalePath()
	watcher.logDebug("stale path recorded", map[string]string{"path": path})
	if watcher.bus != nil {
		watcher.bus.Publish(event.NewFileEvent(path, operation))
	}
}
