package resources

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mulay/internal/asset"
)

func TestDocumentLoadsYAMLAndJSON(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "palette.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("colors:\n  background: \"#101010\"\n  count: 3\n"), 0o644))
	jsonPath := filepath.Join(dir, "scene.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"camera": {"fov": 60}}`), 0o644))

	palette, err := NewDocument("palette", yamlPath)
	require.NoError(t, err)
	background, ok := palette.Lookup("colors", "background")
	require.True(t, ok)
	assert.Equal(t, "#101010", background)

	scene, err := NewDocument("scene", jsonPath)
	require.NoError(t, err)
	fov, ok := scene.Lookup("camera", "fov")
	require.True(t, ok)
	assert.Equal(t, 60, fov)

	_, ok = scene.Lookup("camera", "missing")
	assert.False(t, ok)

	var decoded struct {
		Colors struct {
			Count int `yaml:"count"`
		} `yaml:"colors"`
	}
	require.NoError(t, palette.Decode(&decoded))
	assert.Equal(t, 3, decoded.Colors.Count)
}

func TestDocumentReloadFailureKeepsData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "palette.yml")
	require.NoError(t, os.WriteFile(path, []byte("name: first\n"), 0o644))

	doc, err := NewDocument("palette", path)
	require.NoError(t, err)
	revision := doc.Revision()

	require.NoError(t, os.WriteFile(path, []byte("name: [unclosed\n"), 0o644))
	require.ErrorIs(t, doc.Reload(), asset.ErrReloadingFailed)
	assert.Equal(t, revision, doc.Revision())
	assert.Equal(t, "first", doc.Data()["name"])

	require.NoError(t, os.WriteFile(path, []byte("name: second\n"), 0o644))
	require.NoError(t, doc.Reload())
	assert.Equal(t, "second", doc.Data()["name"])
	assert.NotEqual(t, revision, doc.Revision())
}

func TestDocumentEmptyFileIsEmptyMapping(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	doc, err := NewDocument("empty", path)
	require.NoError(t, err)
	assert.Empty(t, doc.Data())
}

func TestNewDocumentFailures(t *testing.T) {
	dir := t.TempDir()

	_, err := NewDocument("ini", filepath.Join(dir, "a.ini"))
	assert.ErrorIs(t, err, asset.ErrInvalidFileExtension)

	path := filepath.Join(dir, "list.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- a\n- b\n"), 0o644))
	_, err = NewDocument("list", path)
	assert.ErrorIs(t, err, asset.ErrLoadingFailed)

	doc, err := NewDocument("gone", filepath.Join(dir, "gone.yaml"))
	assert.Nil(t, doc)
	assert.ErrorIs(t, err, asset.ErrLoadingFailed)
}
