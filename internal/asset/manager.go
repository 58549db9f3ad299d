package asset

import (
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"mulay/internal/event"
	"mulay/internal/fsutil"
	"mulay/internal/logging"
	"mulay/internal/metrics"
)

const defaultManagerName = "assets"

type Option func(*options)

type options struct {
	name     string
	logger   *logging.Logger
	registry *metrics.Registry
	events   *event.Bus[event.Event]
}

func WithName(name string) Option {
	return func(opts *options) {
		if name != "" {
			opts.name = name
		}
	}
}

func WithLogger(logger *logging.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

func WithMetrics(registry *metrics.Registry) Option {
	return func(opts *options) {
		opts.registry = registry
	}
}

func WithEvents(bus *event.Bus[event.Event]) Option {
	return func(opts *options) {
		opts.events = bus
	}
}

// Manager caches resources of one kind by logical ID and keeps a reverse
// index from canonical source path to ID.
//
// The maps are guarded by one RWMutex; each resource has its own lock in its
// Handle. The manager lock is released before callbacks run, so a callback
// may call back into the manager.
type Manager[A Asset] struct {
	mu        sync.RWMutex
	construct Constructor[A]
	assets    map[string]*Handle[A]
	paths     map[string]string
	pathOf    map[string]string
	callbacks map[string][]func()

	name     string
	logger   *logging.Logger
	registry *metrics.Registry
	events   *event.Bus[event.Event]
}

func NewManager[A Asset](construct Constructor[A], opts ...Option) *Manager[A] {
	config := options{name: defaultManagerName}
	for _, opt := range opts {
		if opt != nil {
			opt(&config)
		}
	}
	logger := config.logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Manager[A]{
		construct: construct,
		assets:    make(map[string]*Handle[A]),
		paths:     make(map[string]string),
		pathOf:    make(map[string]string),
		callbacks: make(map[string][]func()),
		name:      config.name,
		logger: logger.With(map[string]string{
			"mulay.category": "asset",
			"manager":        config.name,
		}),
		registry: config.registry,
		events:   config.events,
	}
}

func (m *Manager[A]) Name() string {
	return m.name
}

// Load constructs the resource at path and registers it under id. Loading an
// ID that is already present destroys the previous resource and swaps the new
// one into the existing handle; if construction fails the previous entry is
// left untouched.
func (m *Manager[A]) Load(id, path string) (*Handle[A], error) {
	canonical, err := fsutil.Canonical(path)
	if err != nil {
		return nil, m.loadFailed(id, &Error{Kind: KindLoadingFailed, ID: id, Path: path, Message: "resolve path", Cause: err})
	}
	if m.construct == nil {
		return nil, m.loadFailed(id, &Error{Kind: KindLoadingFailed, ID: id, Path: canonical, Message: "manager has no constructor"})
	}

	m.mu.RLock()
	owner, owned := m.paths[canonical]
	m.mu.RUnlock()
	if owned && owner != id {
		return nil, m.loadFailed(id, pathConflict(id, owner, canonical))
	}

	resource, err := m.construct(id, canonical)
	if err != nil {
		return nil, m.loadFailed(id, withID(err, id))
	}

	m.mu.Lock()
	if owner, owned := m.paths[canonical]; owned && owner != id {
		m.mu.Unlock()
		m.discard(id, resource)
		return nil, m.loadFailed(id, pathConflict(id, owner, canonical))
	}

	existing, exists := m.assets[id]
	if !exists {
		handle := newHandle(resource)
		m.assets[id] = handle
		m.paths[canonical] = id
		m.pathOf[id] = canonical
		m.mu.Unlock()
		m.loaded(id, canonical)
		return handle, nil
	}

	previous, live, err := existing.replace(resource)
	if err != nil {
		m.mu.Unlock()
		m.discard(id, resource)
		return nil, m.loadFailed(id, withID(err, id))
	}
	if oldPath := m.pathOf[id]; oldPath != canonical && m.paths[oldPath] == id {
		delete(m.paths, oldPath)
	}
	m.paths[canonical] = id
	m.pathOf[id] = canonical
	m.mu.Unlock()

	if live {
		if err := previous.Destroy(); err != nil {
			m.logger.Warn("destroy replaced asset failed", map[string]string{
				"asset_id": id,
				"error":    err.Error(),
			})
		}
		m.registry.RecordDestroy(m.name)
	}
	m.loaded(id, canonical)
	return existing, nil
}

// Get returns the shared handle for id. It never touches the resource lock.
func (m *Manager[A]) Get(id string) (*Handle[A], bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	handle, ok := m.assets[id]
	return handle, ok
}

// Reload rebuilds the resource for id under its own lock and, on success,
// runs every callback registered for id in registration order before
// returning. An unknown id reports false with a nil error.
func (m *Manager[A]) Reload(id string) (bool, error) {
	handle, ok := m.Get(id)
	if !ok {
		return false, nil
	}

	start := time.Now()
	err := handle.with(func(resource A) error {
		return resource.Reload()
	})
	m.registry.RecordReload(m.name, time.Since(start), err)
	if err != nil {
		err = withID(err, id)
		m.logger.Warn("asset reload failed", map[string]string{
			"asset_id": id,
			"error":    err.Error(),
		})
		path, _ := m.Path(id)
		m.publish(id, path, event.TypeAssetReloadFailed, err)
		return true, err
	}

	m.mu.RLock()
	callbacks := append([]func(){}, m.callbacks[id]...)
	m.mu.RUnlock()
	for _, callback := range callbacks {
		callback()
	}
	m.registry.AddCallbacks(m.name, len(callbacks))

	m.logger.Info("asset reloaded", map[string]string{
		"asset_id":  id,
		"callbacks": strconv.Itoa(len(callbacks)),
	})
	path, _ := m.Path(id)
	m.publish(id, path, event.TypeAssetReloaded, nil)
	return true, nil
}

// Destroy releases the resource for id and removes it together with its
// reverse index entry and callbacks. Handles held elsewhere stay valid but
// report IsLoaded false. A poisoned handle is left registered.
func (m *Manager[A]) Destroy(id string) (bool, error) {
	handle, ok := m.Get(id)
	if !ok {
		return false, nil
	}

	var (
		err  error
		path string
	)
	for {
		var generation uint64
		generation, err = handle.destroy()
		if errors.Is(err, ErrLockPoisoned) {
			return true, withID(err, id)
		}

		m.mu.Lock()
		// A concurrent Load swapped a fresh resource into the handle after it
		// was destroyed; destroy that one too before unregistering.
		if m.assets[id] == handle && handle.currentGeneration() != generation {
			m.mu.Unlock()
			m.registry.RecordDestroy(m.name)
			continue
		}
		if m.assets[id] == handle {
			path = m.pathOf[id]
			delete(m.assets, id)
			delete(m.pathOf, id)
			delete(m.callbacks, id)
			if m.paths[path] == id {
				delete(m.paths, path)
			}
		}
		m.mu.Unlock()
		break
	}

	m.registry.RecordDestroy(m.name)
	m.publish(id, path, event.TypeAssetDestroyed, err)
	if err != nil {
		err = withID(err, id)
		m.logger.Warn("asset destroy failed", map[string]string{
			"asset_id": id,
			"error":    err.Error(),
		})
		return true, err
	}
	m.logger.Debug("asset destroyed", map[string]string{"asset_id": id, "path": path})
	return true, nil
}

// IsLoaded reports the resource's loaded state. found is false for an
// unknown id.
func (m *Manager[A]) IsLoaded(id string) (loaded, found bool, err error) {
	handle, ok := m.Get(id)
	if !ok {
		return false, false, nil
	}
	err = handle.with(func(resource A) error {
		loaded = resource.IsLoaded()
		return nil
	})
	if err != nil {
		return false, true, withID(err, id)
	}
	return loaded, true, nil
}

// RegisterReloadCallback appends callback to the list run after each
// successful reload of id. Callbacks for an id that is not loaded yet are kept
// and apply once it is; Destroy discards them.
func (m *Manager[A]) RegisterReloadCallback(id string, callback func()) {
	if callback == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks[id] = append(m.callbacks[id], callback)
}

// ReloadManyByPath reloads every resource whose canonical source path is in
// paths. Unknown paths are skipped and each ID is reloaded at most once, in
// first-occurrence order. The first failure stops the batch and is returned
// as a *BatchError.
func (m *Manager[A]) ReloadManyByPath(paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	canonical := make([]string, len(paths))
	for i, path := range paths {
		canonical[i] = fsutil.CanonicalOrClean(path)
	}

	ids := make([]string, len(paths))
	m.mu.RLock()
	for i, path := range canonical {
		ids[i] = m.paths[path]
	}
	m.mu.RUnlock()

	attempted := make(map[string]struct{}, len(ids))
	for i, id := range ids {
		if id == "" {
			continue
		}
		if _, done := attempted[id]; done {
			continue
		}
		attempted[id] = struct{}{}

		found, err := m.Reload(id)
		if !found || err == nil {
			continue
		}
		remaining := make([]string, 0, len(paths)-i-1)
		for j := i + 1; j < len(paths); j++ {
			if _, done := attempted[ids[j]]; done {
				continue
			}
			remaining = append(remaining, paths[j])
		}
		return &BatchError{ID: id, Path: paths[i], Err: err, Remaining: remaining}
	}
	return nil
}

// IDs returns the registered IDs in sorted order.
func (m *Manager[A]) IDs() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.assets))
	for id := range m.assets {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func (m *Manager[A]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.assets)
}

// Path returns the canonical source path recorded for id.
func (m *Manager[A]) Path(id string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	path, ok := m.pathOf[id]
	return path, ok
}

// Close destroys every registered resource and returns the joined failures.
func (m *Manager[A]) Close() error {
	var errs []error
	for _, id := range m.IDs() {
		if _, err := m.Destroy(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager[A]) loaded(id, path string) {
	m.registry.RecordLoad(m.name, nil)
	m.logger.Info("asset loaded", map[string]string{
		"asset_id": id,
		"path":     path,
	})
	m.publish(id, path, event.TypeAssetLoaded, nil)
}

func (m *Manager[A]) loadFailed(id string, err error) error {
	m.registry.RecordLoad(m.name, err)
	m.logger.Warn("asset load failed", map[string]string{
		"asset_id": id,
		"error":    err.Error(),
	})
	return err
}

// discard destroys a freshly constructed resource that could not be
// registered.
func (m *Manager[A]) discard(id string, resource A) {
	if err := resource.Destroy(); err != nil {
		m.logger.Warn("destroy unregistered asset failed", map[string]string{
			"asset_id": id,
			"error":    err.Error(),
		})
	}
}

func (m *Manager[A]) publish(id, path, eventType string, err error) {
	if m.events == nil {
		return
	}
	evt := event.NewAssetEvent(m.name, id, path, eventType)
	if err != nil {
		evt.Error = err.Error()
	}
	m.events.Publish(evt)
}

func pathConflict(id, owner, path string) error {
	return &Error{
		Kind:    KindPathConflict,
		ID:      id,
		Path:    path,
		Message: "path already loaded as " + strconv.Quote(owner),
	}
}
