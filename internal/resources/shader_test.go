package resources

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mulay/internal/asset"
)

const triangleVert = `#version 330 core
// pass-through
layout (location = 0) in vec3 position;

void main() {
    gl_Position = vec4(position, 1.0);
}
`

func TestStageFromPath(t *testing.T) {
	cases := map[string]Stage{
		"a.vert": StageVertex,
		"a.frag": StageFragment,
		"a.geom": StageGeometry,
		"a.comp": StageCompute,
		"a.tesc": StageTessControl,
		"A.TESE": StageTessEvaluation,
	}
	for path, want := range cases {
		got, err := StageFromPath(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	_, err := StageFromPath("shader")
	assert.ErrorIs(t, err, asset.ErrInvalidFileExtension)
	_, err = StageFromPath("shader.glsl")
	assert.ErrorIs(t, err, asset.ErrInvalidFileExtension)
}

func TestValidateGLSL(t *testing.T) {
	cases := []struct {
		name   string
		source string
		kind   ShaderErrorKind
		line   int
	}{
		{name: "valid", source: triangleVert},
		{name: "nul byte", source: "#version 330\n\x00", kind: MalformedSource, line: 2},
		{name: "invalid utf8", source: "#version 330\n\xff", kind: MalformedSource},
		{name: "empty", source: "  \n// only a comment\n", kind: CompilationError},
		{name: "missing version", source: "void main() {}\n", kind: CompilationError, line: 1},
		{name: "bare version", source: "#version\nvoid main() {}\n", kind: CompilationError, line: 1},
		{name: "unclosed brace", source: "#version 330\nvoid main() {\n", kind: CompilationError, line: 2},
		{name: "stray paren", source: "#version 330\nvoid main() {}\n)\n", kind: CompilationError, line: 3},
		{name: "no main", source: "#version 330\nvoid helper() {}\n", kind: CompilationError},
		{name: "main in comment", source: "#version 330\n/* void main() {} */\n", kind: CompilationError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateGLSL(tc.source)
			if tc.kind == "" {
				assert.NoError(t, err)
				return
			}
			var shaderErr *ShaderError
			require.ErrorAs(t, err, &shaderErr)
			assert.Equal(t, tc.kind, shaderErr.Kind)
			assert.Equal(t, tc.line, shaderErr.Line)
		})
	}
}

func TestShaderLoadReloadKeepsRevisionOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "triangle.vert")
	require.NoError(t, os.WriteFile(path, []byte(triangleVert), 0o644))

	shader, err := NewShader("triangle", path)
	require.NoError(t, err)
	assert.True(t, shader.IsLoaded())
	assert.Equal(t, StageVertex, shader.Stage())
	assert.Equal(t, path, shader.SourcePath())
	revision := shader.Revision()

	require.NoError(t, os.WriteFile(path, []byte("#version 330\nvoid main() {\n"), 0o644))
	err = shader.Reload()
	require.ErrorIs(t, err, asset.ErrReloadingFailed)
	var shaderErr *ShaderError
	require.ErrorAs(t, err, &shaderErr)
	assert.Equal(t, CompilationError, shaderErr.Kind)
	assert.Equal(t, revision, shader.Revision())
	assert.Equal(t, triangleVert, shader.Source())
	assert.True(t, shader.IsLoaded())

	require.NoError(t, os.WriteFile(path, []byte(triangleVert+"\n"), 0o644))
	require.NoError(t, shader.Reload())
	assert.NotEqual(t, revision, shader.Revision())

	require.NoError(t, shader.Destroy())
	assert.False(t, shader.IsLoaded())
	assert.ErrorIs(t, shader.Reload(), asset.ErrNotLoaded)
}

func TestNewShaderFailures(t *testing.T) {
	dir := t.TempDir()

	_, err := NewShader("missing", filepath.Join(dir, "missing.frag"))
	assert.ErrorIs(t, err, asset.ErrLoadingFailed)

	bad := filepath.Join(dir, "bad.frag")
	require.NoError(t, os.WriteFile(bad, []byte("void main() {}"), 0o644))
	_, err = NewShader("bad", bad)
	assert.ErrorIs(t, err, asset.ErrLoadingFailed)
	var shaderErr *ShaderError
	assert.ErrorAs(t, err, &shaderErr)

	_, err = NewShader("txt", filepath.Join(dir, "notes.txt"))
	assert.ErrorIs(t, err, asset.ErrInvalidFileExtension)
}

func TestShaderReloadMissingFileIsLoadingFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.frag")
	require.NoError(t, os.WriteFile(path, []byte(triangleVert), 0o644))
	shader, err := NewShader("a", path)
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	assert.ErrorIs(t, shader.Reload(), asset.ErrLoadingFailed)
	assert.True(t, shader.IsLoaded())
}
