// Package gfx implements GPU-backed assets on OpenGL 3.3 core. Every call
// must run on the goroutine that owns the GL context.
package gfx

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-gl/gl/v3.3-core/gl"

	"mulay/internal/asset"
	"mulay/internal/resources"
)

// Shader is a compiled GL shader object. Reload compiles a replacement and
// deletes the previous object only once the replacement compiled.
type Shader struct {
	id     string
	path   string
	stage  resources.Stage
	kind   uint32
	name   uint32
	loaded bool
}

// NewShader is an asset.Constructor for GL shaders.
func NewShader(id, path string) (*Shader, error) {
	stage, err := resources.StageFromPath(path)
	if err != nil {
		return nil, err
	}
	kind, err := glKind(stage)
	if err != nil {
		return nil, asset.NewError(asset.KindInvalidFileExtension, path, err.Error(), nil)
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, asset.NewError(asset.KindLoadingFailed, path, "read shader source", err)
	}
	name, err := compileShader(string(source), kind)
	if err != nil {
		return nil, asset.NewError(asset.KindLoadingFailed, path, "compile shader", err)
	}
	return &Shader{id: id, path: path, stage: stage, kind: kind, name: name, loaded: true}, nil
}

func (s *Shader) Reload() error {
	if !s.loaded {
		return &asset.Error{Kind: asset.KindNotLoaded, ID: s.id, Path: s.path, Message: "shader not loaded"}
	}
	source, err := os.ReadFile(s.path)
	if err != nil {
		return asset.NewError(asset.KindLoadingFailed, s.path, "read shader source", err)
	}
	name, err := compileShader(string(source), s.kind)
	if err != nil {
		return asset.NewError(asset.KindReloadingFailed, s.path, "hot-reload shader", err)
	}
	gl.DeleteShader(s.name)
	s.name = name
	return nil
}

func (s *Shader) Destroy() error {
	gl.DeleteShader(s.name)
	s.name = 0
	s.loaded = false
	return nil
}

func (s *Shader) IsLoaded() bool {
	return s.loaded
}

func (s *Shader) SourcePath() string {
	return s.path
}

// Name is the GL shader object name.
func (s *Shader) Name() uint32 {
	return s.name
}

func (s *Shader) Stage() resources.Stage {
	return s.stage
}

func glKind(stage resources.Stage) (uint32, error) {
	switch stage {
	case resources.StageVertex:
		return gl.VERTEX_SHADER, nil
	case resources.StageFragment:
		return gl.FRAGMENT_SHADER, nil
	case resources.StageGeometry:
		return gl.GEOMETRY_SHADER, nil
	default:
		return 0, fmt.Errorf("%s shaders need a newer GL context than 3.3 core", stage)
	}
}

// compileShader validates the source structurally, then hands it to the
// driver. Driver failures carry the info log as a CompilationError.
func compileShader(source string, kind uint32) (uint32, error) {
	if err := resources.ValidateGLSL(source); err != nil {
		return 0, err
	}

	shader := gl.CreateShader(kind)
	csrc, free := gl.Strs(source + "\x00")
	defer free()
	gl.ShaderSource(shader, 1, csrc, nil)
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetShaderInfoLog(shader, logLen, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, &resources.ShaderError{
			Kind:    resources.CompilationError,
			Message: strings.TrimRight(log, "\x00\n"),
		}
	}
	return shader, nil
}
