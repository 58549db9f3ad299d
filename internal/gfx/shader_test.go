package gfx

import (
	"testing"

	"github.com/go-gl/gl/v3.3-core/gl"

	"mulay/internal/resources"
)

func TestGLKind(t *testing.T) {
	cases := map[resources.Stage]uint32{
		resources.StageVertex:   gl.VERTEX_SHADER,
		resources.StageFragment: gl.FRAGMENT_SHADER,
		resources.StageGeometry: gl.GEOMETRY_SHADER,
	}
	for stage, want := range cases {
		got, err := glKind(stage)
		if err != nil {
			t.Fatalf("glKind(%s): %v", stage, err)
		}
		if got != want {
			t.Fatalf("glKind(%s) = %d, want %d", stage, got, want)
		}
	}

	for _, stage := range []resources.Stage{resources.StageCompute, resources.StageTessControl, resources.StageTessEvaluation} {
		if _, err := glKind(stage); err == nil {
			t.Fatalf("expected %s to be rejected", stage)
		}
	}
}

func TestCompileShaderRejectsMalformedSourceBeforeGL(t *testing.T) {
	_, err := compileShader("#version 330\x00", gl.VERTEX_SHADER)
	shaderErr, ok := err.(*resources.ShaderError)
	if !ok || shaderErr.Kind != resources.MalformedSource {
		t.Fatalf("expected malformed source error, got %v", err)
	}
}
