package asset

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

var nextRevision atomic.Int64

// fakeAsset is a text resource: content starting with "bad" fails to
// interpret. Revision plays the role of a native object name.
type fakeAsset struct {
	id        string
	path      string
	content   string
	revision  int64
	loaded    bool
	reloads   int
	destroys  int
	onReload  func()
	destroyFn func() error
}

func constructFake(id, path string) (*fakeAsset, error) {
	if filepath.Ext(path) != ".txt" {
		return nil, NewError(KindInvalidFileExtension, path, "expected .txt", nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewError(KindLoadingFailed, path, "read source", err)
	}
	if bytes.HasPrefix(data, []byte("bad")) {
		return nil, NewError(KindLoadingFailed, path, "interpret source", errors.New("bad content"))
	}
	return &fakeAsset{
		id:       id,
		path:     path,
		content:  string(data),
		revision: nextRevision.Add(1),
		loaded:   true,
	}, nil
}

func (a *fakeAsset) Reload() error {
	if !a.loaded {
		return NewError(KindNotLoaded, a.path, "", nil)
	}
	if a.onReload != nil {
		a.onReload()
	}
	data, err := os.ReadFile(a.path)
	if err != nil {
		return NewError(KindLoadingFailed, a.path, "read source", err)
	}
	if bytes.HasPrefix(data, []byte("bad")) {
		return NewError(KindReloadingFailed, a.path, "interpret source", errors.New("bad content"))
	}
	a.content = string(data)
	a.revision = nextRevision.Add(1)
	a.reloads++
	return nil
}

func (a *fakeAsset) Destroy() error {
	a.loaded = false
	a.destroys++
	if a.destroyFn != nil {
		return a.destroyFn()
	}
	return nil
}

func (a *fakeAsset) IsLoaded() bool {
	return a.loaded
}

func (a *fakeAsset) SourcePath() string {
	return a.path
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func tempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

func revisionOf(t *testing.T, handle *Handle[*fakeAsset]) int64 {
	t.Helper()
	var revision int64
	require.NoError(t, handle.Do(func(a *fakeAsset) {
		revision = a.revision
	}))
	return revision
}
