package watcher

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"mulay/internal/event"
	"mulay/internal/logging"
	"mulay/internal/metrics"
)

// Options controls watcher behavior.
type Options struct {
	Logger *logging.Logger
	// Debounce coalesces repeated writes to one path; zero appends every
	// write immediately.
	Debounce time.Duration
	// Recursive makes Watch on a directory cover its subdirectories,
	// including ones created later.
	Recursive    bool
	MaxWatches   int
	ErrorHandler func(error)
	Registry     *metrics.Registry
	Events       *event.Bus[event.Event]
}

// Metrics reports watcher counters.
type Metrics struct {
	ActiveWatches   int
	EventsReceived  uint64
	StalePaths      uint64
	EventsCoalesced uint64
	Errors          uint64
	RestartAttempts int
	Pending         int
}

// Watcher observes files on background goroutines and records the paths of
// content writes in a stale buffer. It never reloads anything itself.
type Watcher struct {
	watcher *fsnotify.Watcher
	mutex   sync.Mutex
	// roots maps an explicitly watched path to whether it is a directory.
	roots            map[string]bool
	recursiveWatches map[string]int
	activeWatches    int
	maxWatches       int
	recursive        bool
	debouncer        *debouncer
	events           chan fsnotify.Event
	errors           chan error
	done             chan struct{}
	closed           bool
	logger           *logging.Logger
	registry         *metrics.Registry
	bus              *event.Bus[event.Event]
	errorHandler     func(error)

	staleMutex   sync.Mutex
	stale        []string
	drained      int
	drainPending bool

	restartMutex    sync.Mutex
	restartTimer    *time.Timer
	restartAttempts int

	eventsReceived  uint64
	stalePaths      uint64
	eventsCoalesced uint64
	errorCount      uint64
}
