package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	validVertex = `#version 330 core
layout (location = 0) in vec3 position;
void main() {
    gl_Position = vec4(position, 1.0);
}
`
	validFragment = `#version 330 core
out vec4 color;
void main() {
    color = vec4(1.0, 0.5, 0.2, 1.0);
}
`
	brokenFragment = `#version 330 core
void main() {
    color = vec4(1.0;
}
`
)

// writeProject lays out a manifest with one shader pair and a document and
// returns the manifest path.
func writeProject(t *testing.T, fragment string) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "assets", "shaders", "triangle.vert"), validVertex)
	writeFile(t, filepath.Join(dir, "assets", "shaders", "triangle.frag"), fragment)
	writeFile(t, filepath.Join(dir, "assets", "data", "palette.yaml"), "primary: red\n")

	manifest := `tick: 20ms
watch:
  roots: [assets]
  recursive: true
assets:
  - id: triangle-vert
    path: assets/shaders/triangle.vert
    kind: shader
  - id: triangle-frag
    path: assets/shaders/triangle.frag
    kind: shader
  - id: palette
    path: assets/data/palette.yaml
    kind: document
`
	path := filepath.Join(dir, "mulay.yaml")
	writeFile(t, path, manifest)
	return path
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
