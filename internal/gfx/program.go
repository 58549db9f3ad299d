package gfx

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-gl/gl/v3.3-core/gl"

	"mulay/internal/asset"
	"mulay/internal/logging"
)

// Program links shader assets into a GL program. It is rebuilt from the
// current shader objects whenever one of them reloads.
type Program struct {
	name    uint32
	shaders []*asset.Handle[*Shader]
	logger  *logging.Logger
}

// NewProgram links the shaders held by handles.
func NewProgram(logger *logging.Logger, handles ...*asset.Handle[*Shader]) (*Program, error) {
	if len(handles) == 0 {
		return nil, errors.New("program needs at least one shader")
	}
	if logger == nil {
		logger = logging.Discard()
	}
	program := &Program{
		shaders: append([]*asset.Handle[*Shader](nil), handles...),
		logger:  logger.With(map[string]string{"mulay.category": "gfx"}),
	}
	if err := program.Rebuild(); err != nil {
		return nil, err
	}
	return program, nil
}

// Attach links program against manager: a successful reload of any of ids
// relinks it. Link failures are logged and the previous program stays bound.
func Attach(manager *asset.Manager[*Shader], program *Program, ids ...string) {
	for _, id := range ids {
		manager.RegisterReloadCallback(id, func() {
			if err := program.Rebuild(); err != nil {
				program.logger.Warn("program relink failed", map[string]string{
					"asset_id": id,
					"error":    err.Error(),
				})
			}
		})
	}
}

// Rebuild relinks the program and swaps it in on success.
func (p *Program) Rebuild() error {
	names := make([]uint32, 0, len(p.shaders))
	for _, handle := range p.shaders {
		var (
			name   uint32
			loaded bool
		)
		if err := handle.Do(func(shader *Shader) {
			name, loaded = shader.Name(), shader.IsLoaded()
		}); err != nil {
			return err
		}
		if !loaded {
			return &asset.Error{Kind: asset.KindNotLoaded, Message: "program shader was destroyed"}
		}
		names = append(names, name)
	}

	linked, err := linkProgram(names)
	if err != nil {
		return err
	}
	if p.name != 0 {
		gl.DeleteProgram(p.name)
	}
	p.name = linked
	p.logger.Debug("program linked", map[string]string{"program": fmt.Sprint(linked)})
	return nil
}

// Use binds the program for drawing.
func (p *Program) Use() {
	gl.UseProgram(p.name)
}

func (p *Program) Name() uint32 {
	return p.name
}

func (p *Program) Delete() {
	if p.name != 0 {
		gl.DeleteProgram(p.name)
		p.name = 0
	}
}

func linkProgram(shaders []uint32) (uint32, error) {
	program := gl.CreateProgram()
	for _, shader := range shaders {
		gl.AttachShader(program, shader)
	}
	gl.LinkProgram(program)
	for _, shader := range shaders {
		gl.DetachShader(program, shader)
	}

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetProgramInfoLog(program, logLen, nil, gl.Str(log))
		gl.DeleteProgram(program)
		return 0, fmt.Errorf("program link error: %s", strings.TrimRight(log, "\x00\n"))
	}
	return program, nil
}
