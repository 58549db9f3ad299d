package watcher

import (
	"errors"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"mulay/internal/asset"
	"mulay/internal/logging"
)

const (
	defaultMaxWatches  = 256
	maxRestartAttempts = 3
	restartBaseDelay   = 200 * time.Millisecond
)

var ErrMaxWatchesExceeded = errors.New("max watches exceeded")

// New creates a Watcher with default options.
func New() (*Watcher, error) {
	return NewWithOptions(Options{})
}

// NewWithOptions starts the OS observer and the goroutines that feed the
// stale buffer. An observer that cannot start is reported as
// asset.KindWatcherInitialization.
func NewWithOptions(options Options) (*Watcher, error) {
	source, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &asset.Error{
			Kind:    asset.KindWatcherInitialization,
			Message: "start filesystem observer",
			Cause:   err,
		}
	}

	logger := options.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	maxWatches := options.MaxWatches
	if maxWatches <= 0 {
		maxWatches = defaultMaxWatches
	}

	instance := &Watcher{
		watcher:          source,
		roots:            make(map[string]bool),
		recursiveWatches: make(map[string]int),
		maxWatches:       maxWatches,
		recursive:        options.Recursive,
		events:           make(chan fsnotify.Event, 64),
		errors:           make(chan error, 4),
		done:             make(chan struct{}),
		logger:           logger,
		registry:         options.Registry,
		bus:              options.Events,
		errorHandler:     options.ErrorHandler,
	}
	if options.Debounce > 0 {
		instance.debouncer = newDebouncer(options.Debounce)
	}

	instance.startForwarder(source)
	go instance.run()
	return instance, nil
}

// Close shuts down the watcher and stops event processing. Buffered stale
// paths stay readable.
func (watcher *Watcher) Close() error {
	if watcher == nil {
		return nil
	}

	watcher.mutex.Lock()
	if watcher.closed {
		watcher.mutex.Unlock()
		return nil
	}
	watcher.closed = true
	if watcher.debouncer != nil {
		watcher.debouncer.stop()
		watcher.debouncer = nil
	}
	source := watcher.watcher
	watcher.mutex.Unlock()

	watcher.restartMutex.Lock()
	if watcher.restartTimer != nil {
		watcher.restartTimer.Stop()
		watcher.restartTimer = nil
	}
	watcher.restartMutex.Unlock()

	close(watcher.done)
	if source == nil {
		return nil
	}
	return source.Close()
}

func (watcher *Watcher) run() {
	for {
		select {
		case event := <-watcher.events:
			watcher.handleEvent(event)
		case err := <-watcher.errors:
			watcher.handleError(err)
		case <-watcher.done:
			return
		}
	}
}

func (watcher *Watcher) startForwarder(source *fsnotify.Watcher) {
	if source == nil {
		return
	}

	go func() {
		for {
			select {
			case event, ok := <-source.Events:
				if !ok {
					return
				}
				select {
				case watcher.events <- event:
				case <-watcher.done:
					return
				}
			case err, ok := <-source.Errors:
				if !ok {
					return
				}
				select {
				case watcher.errors <- err:
				case <-watcher.done:
					return
				}
			case <-watcher.done:
				return
			}
		}
	}()
}

// handleEvent keeps content writes only; a created directory under a
// recursive root is watched but never recorded as stale.
func (watcher *Watcher) handleEvent(event fsnotify.Event) {
	atomic.AddUint64(&watcher.eventsReceived, 1)
	watcher.registry.IncWatcherEvent()

	switch {
	case event.Has(fsnotify.Create):
		watcher.watchCreatedDir(event.Name)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		watcher.forgetRemovedDir(filepath.Clean(event.Name))
	}
	if !event.Has(fsnotify.Write) {
		return
	}

	path := filepath.Clean(event.Name)
	watcher.mutex.Lock()
	if watcher.closed {
		watcher.mutex.Unlock()
		return
	}
	if watcher.debouncer != nil {
		if coalesced := watcher.debouncer.schedule(path, watcher.flush); coalesced {
			atomic.AddUint64(&watcher.eventsCoalesced, 1)
		}
		watcher.mutex.Unlock()
		return
	}
	watcher.mutex.Unlock()

	watcher.appendStale(path, fsnotify.Write.String())
}

func (watcher *Watcher) flush(path string) {
	watcher.mutex.Lock()
	if watcher.closed || watcher.debouncer == nil {
		watcher.mutex.Unlock()
		return
	}
	ok := watcher.debouncer.pop(path)
	watcher.mutex.Unlock()
	if !ok {
		return
	}
	watcher.appendStale(path, fsnotify.Write.String())
}

func (watcher *Watcher) logWarn(message string, fields map[string]string) {
	if watcher == nil || watcher.logger == nil {
		return
	}
	watcher.logger.Warn(message, withWatcherFields(fields))
}

func (watcher *Watcher) logDebug(message string, fields map[string]string) {
	if watcher == nil || watcher.logger == nil {
		return
	}
	watcher.logger.Debug(message, withWatcherFields(fields))
}

func (watcher *Watcher) logWatchChange(message, path string, activeCount int) {
	watcher.logDebug(message, map[string]string{
		"path":           path,
		"active_watches": strconv.Itoa(activeCount),
	})
}

func withWatcherFields(fields map[string]string) map[string]string {
	merged := make(map[string]string, len(fields)+1)
	merged["mulay.category"] = "watcher"
	for key, value := range fields {
		merged[key] = value
	}
	return merged
}

// Metrics reports current watcher stats.
func (watcher *Watcher) Metrics() Metrics {
	if watcher == nil {
		return Metrics{}
	}
	watcher.mutex.Lock()
	active := watcher.activeWatches
	watcher.mutex.Unlock()
	watcher.restartMutex.Lock()
	restartAttempts := watcher.restartAttempts
	watcher.restartMutex.Unlock()
	return Metrics{
		ActiveWatches:   active,
		EventsReceived:  atomic.LoadUint64(&watcher.eventsReceived),
		StalePaths:      atomic.LoadUint64(&watcher.stalePaths),
		EventsCoalesced: atomic.LoadUint64(&watcher.eventsCoalesced),
		Errors:          atomic.LoadUint64(&watcher.errorCount),
		RestartAttempts: restartAttempts,
		Pending:         watcher.pendingCount(),
	}
}
