package watcher

import "time"

type debouncer struct {
	duration time.Duration
	entries  map[string]*time.Timer
}

func newDebouncer(duration time.Duration) *debouncer {
	return &debouncer{
		duration: duration,
		entries:  make(map[string]*time.Timer),
	}
}

// schedule arms or re-arms the timer for path and reports whether an earlier
// write was coalesced into it.
func (debouncer *debouncer) schedule(path string, flush func(string)) bool {
	if debouncer == nil {
		return false
	}
	if timer, ok := debouncer.entries[path]; ok {
		timer.Reset(debouncer.duration)
		return true
	}
	debouncer.entries[path] = time.AfterFunc(debouncer.duration, func() {
		flush(path)
	})
	return false
}

func (debouncer *debouncer) pop(path string) bool {
	if debouncer == nil {
		return false
	}
	if _, ok := debouncer.entries[path]; !ok {
		return false
	}
	delete(debouncer.entries, path)
	return true
}

func (debouncer *debouncer) stop() {
	if debouncer == nil {
		return
	}
	for _, timer := range debouncer.entries {
		timer.Stop()
	}
	debouncer.entries = nil
}
