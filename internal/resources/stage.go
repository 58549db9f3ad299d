// Package resources holds the headless asset kinds: GLSL shader sources
// validated in pure Go and YAML/JSON documents.
package resources

import (
	"path/filepath"
	"strings"

	"mulay/internal/asset"
)

// Stage is the pipeline stage a shader source targets.
type Stage string

const (
	StageVertex         Stage = "vertex"
	StageFragment       Stage = "fragment"
	StageGeometry       Stage = "geometry"
	StageCompute        Stage = "compute"
	StageTessControl    Stage = "tess_control"
	StageTessEvaluation Stage = "tess_evaluation"
)

var stagesByExtension = map[string]Stage{
	".vert": StageVertex,
	".frag": StageFragment,
	".geom": StageGeometry,
	".comp": StageCompute,
	".tesc": StageTessControl,
	".tese": StageTessEvaluation,
}

// StageFromPath picks the stage from the file extension.
func StageFromPath(path string) (Stage, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return "", asset.NewError(asset.KindInvalidFileExtension, path, "shader source has no file extension", nil)
	}
	stage, ok := stagesByExtension[ext]
	if !ok {
		return "", asset.NewError(asset.KindInvalidFileExtension, path, "unsupported shader extension "+ext, nil)
	}
	return stage, nil
}
