// Command sandbox opens a window, draws a triangle with a shader program
// built from two shader assets and hot-reloads them while it runs. Saving
// either file relinks the program on the next frame.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-gl/gl/v3.3-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/jessevdk/go-flags"

	"mulay/internal/asset"
	"mulay/internal/gfx"
	"mulay/internal/hotreload"
	"mulay/internal/logging"
	"mulay/internal/watcher"
)

type Options struct {
	Vertex   string        `long:"vertex" description:"vertex shader path" default:"assets/shaders/triangle.vert"`
	Fragment string        `long:"fragment" description:"fragment shader path" default:"assets/shaders/triangle.frag"`
	Width    int           `long:"width" description:"window width" default:"640"`
	Height   int           `long:"height" description:"window height" default:"480"`
	VSync    bool          `long:"vsync" description:"wait for vertical sync"`
	Debounce time.Duration `long:"debounce" description:"coalesce writes to one file for this long"`
	LogLevel string        `long:"log-level" description:"debug|info|warning|error" default:"info"`
}

const (
	vertexID   = "vertex-shader"
	fragmentID = "fragment-shader"
)

func main() {
	opts := &Options{}
	parser := flags.NewParser(opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(1)
	}

	level, ok := logging.ParseLevel(opts.LogLevel)
	if !ok {
		level = logging.LevelInfo
	}
	logger := logging.NewLogger(logging.NewLogBuffer(logging.DefaultBufferSize), level)
	defer func() { _ = logger.Sync() }()

	if err := run(opts, logger); err != nil {
		logger.Error("sandbox stopped", map[string]string{"error": err.Error()})
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(opts *Options, logger *logging.Logger) error {
	window, err := openWindow(windowConfig{
		Width:  opts.Width,
		Height: opts.Height,
		Title:  "mulay sandbox",
		VSync:  opts.VSync,
	})
	if err != nil {
		return fmt.Errorf("open window: %w", err)
	}
	defer glfw.Terminate()
	defer window.Destroy()
	logger.Info("gl context ready", map[string]string{"version": gl.GoStr(gl.GetString(gl.VERSION))})

	shaders := asset.NewManager(gfx.NewShader, asset.WithName("shaders"), asset.WithLogger(logger))
	defer func() {
		if err := shaders.Close(); err != nil {
			logger.Warn("destroy shaders failed", map[string]string{"error": err.Error()})
		}
	}()

	vertex, err := shaders.Load(vertexID, opts.Vertex)
	if err != nil {
		return err
	}
	fragment, err := shaders.Load(fragmentID, opts.Fragment)
	if err != nil {
		return err
	}
	program, err := gfx.NewProgram(logger, vertex, fragment)
	if err != nil {
		return err
	}
	defer program.Delete()
	gfx.Attach(shaders, program, vertexID, fragmentID)

	fileWatcher, err := watcher.NewWithOptions(watcher.Options{
		Logger:   logger,
		Debounce: opts.Debounce,
	})
	if err != nil {
		return err
	}
	defer func() { _ = fileWatcher.Close() }()
	if err := fileWatcher.Watch(watchDirs(opts.Vertex, opts.Fragment)...); err != nil {
		return err
	}

	// Reloads run on this goroutine so GL calls stay on the context thread.
	coordinator := hotreload.New(fileWatcher, []hotreload.Reloader{shaders}, hotreload.WithLogger(logger))

	mesh := newTriangle()
	defer mesh.delete()

	for !window.ShouldClose() {
		if err := coordinator.Tick(); err != nil {
			logger.Warn("shader reload failed; keeping previous program", map[string]string{"error": err.Error()})
		}

		gl.ClearColor(0.14, 0.14, 0.14, 1.0)
		gl.Clear(gl.COLOR_BUFFER_BIT)
		program.Use()
		mesh.draw()

		window.SwapBuffers()
		glfw.PollEvents()
	}
	return nil
}

func watchDirs(paths ...string) []string {
	seen := map[string]struct{}{}
	var dirs []string
	for _, path := range paths {
		dir := filepath.Dir(path)
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		dirs = append(dirs, dir)
	}
	return dirs
}
