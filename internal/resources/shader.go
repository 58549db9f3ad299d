package resources

import (
	"os"
	"sync/atomic"

	"mulay/internal/asset"
)

var revisions atomic.Uint64

func nextRevision() uint64 {
	return revisions.Add(1)
}

// Shader is a validated GLSL source. Revision stands in for a driver object
// name: it changes only when a reload succeeds.
type Shader struct {
	id       string
	path     string
	stage    Stage
	source   string
	revision uint64
	loaded   bool
}

// NewShader is an asset.Constructor for shader sources.
func NewShader(id, path string) (*Shader, error) {
	stage, err := StageFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, asset.NewError(asset.KindLoadingFailed, path, "read shader source", err)
	}
	source := string(data)
	if err := ValidateGLSL(source); err != nil {
		return nil, asset.NewError(asset.KindLoadingFailed, path, "compile shader", err)
	}
	return &Shader{
		id:       id,
		path:     path,
		stage:    stage,
		source:   source,
		revision: nextRevision(),
		loaded:   true,
	}, nil
}

func (s *Shader) Reload() error {
	if !s.loaded {
		return &asset.Error{Kind: asset.KindNotLoaded, ID: s.id, Path: s.path, Message: "shader not loaded"}
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return asset.NewError(asset.KindLoadingFailed, s.path, "read shader source", err)
	}
	source := string(data)
	if err := ValidateGLSL(source); err != nil {
		return asset.NewError(asset.KindReloadingFailed, s.path, "hot-reload shader", err)
	}
	s.source = source
	s.revision = nextRevision()
	return nil
}

func (s *Shader) Destroy() error {
	s.source = ""
	s.loaded = false
	return nil
}

func (s *Shader) IsLoaded() bool {
	return s.loaded
}

func (s *Shader) SourcePath() string {
	return s.path
}

func (s *Shader) ID() string {
	return s.id
}

func (s *Shader) Stage() Stage {
	return s.stage
}

func (s *Shader) Source() string {
	return s.source
}

func (s *Shader) Revision() uint64 {
	return s.revision
}
