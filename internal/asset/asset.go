// Package asset implements the hot-reloadable resource contract and the
// generic manager that caches resources by ID and by backing file path.
//
// Handles returned by a Manager stay valid across reloads: a reload mutates
// the resource inside the handle, it never replaces the handle.
package asset

// Asset is the capability every managed resource implements.
//
// Reload re-reads SourcePath and rebuilds the resource in place. On failure
// the previous state is kept and the error is a *Error of kind
// KindReloadingFailed, KindLoadingFailed or KindNotLoaded. Destroy releases
// native state; calling it twice is not supported.
type Asset interface {
	Reload() error
	Destroy() error
	IsLoaded() bool
	SourcePath() string
}

// Constructor reads path and builds a loaded resource identified by id.
type Constructor[A Asset] func(id, path string) (A, error)
