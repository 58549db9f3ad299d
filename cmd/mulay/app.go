package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mulay/internal/api"
	"mulay/internal/asset"
	"mulay/internal/config"
	"mulay/internal/event"
	"mulay/internal/hotreload"
	"mulay/internal/logging"
	"mulay/internal/metrics"
	"mulay/internal/resources"
	"mulay/internal/watcher"
)

const (
	eventHistorySize          = 256
	httpServerShutdownTimeout = 5 * time.Second
)

// app owns one manager per manifest kind plus the shared logger, metrics
// registry and event bus.
type app struct {
	cfg       config.Config
	logger    *logging.Logger
	registry  *metrics.Registry
	bus       *event.Bus[event.Event]
	shaders   *asset.Manager[*resources.Shader]
	documents *asset.Manager[*resources.Document]
}

func newLogger(level string, jsonLogs bool, output io.Writer) *logging.Logger {
	minLevel, ok := logging.ParseLevel(level)
	if !ok {
		minLevel = logging.LevelInfo
	}
	buffer := logging.NewLogBuffer(logging.DefaultBufferSize)
	if !jsonLogs {
		return logging.NewLoggerWithOutput(buffer, minLevel, output)
	}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(output), zapcore.DebugLevel)
	return logging.NewLoggerWithZap(buffer, minLevel, zap.New(core))
}

func newApp(ctx context.Context, cfg config.Config, logger *logging.Logger) *app {
	registry := &metrics.Registry{}
	bus := event.NewBus[event.Event](ctx, event.BusOptions{
		Name:        "mulay",
		HistorySize: eventHistorySize,
		Registry:    registry,
		Logger:      logger,
	})
	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		bus:      bus,
		shaders: asset.NewManager(resources.NewShader,
			asset.WithName("shaders"),
			asset.WithLogger(logger),
			asset.WithMetrics(registry),
			asset.WithEvents(bus),
		),
		documents: asset.NewManager(resources.NewDocument,
			asset.WithName("documents"),
			asset.WithLogger(logger),
			asset.WithMetrics(registry),
			asset.WithEvents(bus),
		),
	}
}

// loadAssets loads every manifest entry and returns the joined failures. A
// failed entry does not stop the others.
func (a *app) loadAssets() error {
	var errs []error
	for _, spec := range a.cfg.Assets {
		if err := a.loadAsset(spec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *app) loadAsset(spec config.AssetSpec) error {
	var err error
	switch spec.Kind {
	case config.KindShader:
		_, err = a.shaders.Load(spec.ID, spec.Path)
	case config.KindDocument:
		_, err = a.documents.Load(spec.ID, spec.Path)
	default:
		err = fmt.Errorf("asset %q: unknown kind %q", spec.ID, spec.Kind)
	}
	return err
}

func (a *app) reloaders() []hotreload.Reloader {
	return []hotreload.Reloader{a.shaders, a.documents}
}

func (a *app) sources() []api.AssetSource {
	return []api.AssetSource{a.shaders, a.documents}
}

// watchRoots returns the manifest roots, or the distinct directories of the
// loaded assets when the manifest names none.
func (a *app) watchRoots() []string {
	if len(a.cfg.Watch.Roots) > 0 {
		return a.cfg.Watch.Roots
	}
	seen := map[string]struct{}{}
	for _, spec := range a.cfg.Assets {
		seen[filepath.Dir(spec.Path)] = struct{}{}
	}
	roots := make([]string, 0, len(seen))
	for dir := range seen {
		roots = append(roots, dir)
	}
	sort.Strings(roots)
	return roots
}

// serve watches the manifest roots and runs the reload loop until ctx is
// done, then shuts every component down in order.
func (a *app) serve(ctx context.Context) error {
	fileWatcher, err := watcher.NewWithOptions(watcher.Options{
		Logger:     a.logger,
		Debounce:   a.cfg.Debounce,
		Recursive:  a.cfg.Watch.Recursive,
		MaxWatches: a.cfg.Watch.MaxWatches,
		Registry:   a.registry,
		Events:     a.bus,
		ErrorHandler: func(err error) {
			a.logger.Error("watcher gave up restarting", map[string]string{
				"mulay.category": "watcher",
				"error":          err.Error(),
			})
		},
	})
	if err != nil {
		return errors.Join(err, a.close())
	}
	// abort releases what serve owns when startup fails before the run loop.
	abort := func(err error) error {
		return errors.Join(err, fileWatcher.Close(), a.close())
	}
	shutdown := newShutdownCoordinator(a.logger)

	if err := fileWatcher.Watch(a.watchRoots()...); err != nil {
		return abort(fmt.Errorf("watch roots: %w", err))
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	var server *http.Server
	serverErr := make(chan error, 1)
	if a.cfg.Listen != "" {
		listener, err := net.Listen("tcp", a.cfg.Listen)
		if err != nil {
			return abort(fmt.Errorf("listen %s: %w", a.cfg.Listen, err))
		}
		mux := http.NewServeMux()
		api.RegisterRoutes(mux, api.Options{
			Managers: a.sources(),
			Events:   a.bus,
			Metrics:  a.registry,
			Logger:   a.logger,
		})
		server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		a.logger.Info("mulay listening", map[string]string{"addr": listener.Addr().String()})
		go func() {
			if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
				cancelRun()
			}
		}()
		shutdown.Add("http", func(ctx context.Context) error {
			return server.Shutdown(ctx)
		})
	}

	coordinator := hotreload.New(fileWatcher, a.reloaders(),
		hotreload.WithLogger(a.logger),
		hotreload.WithMetrics(a.registry),
	)
	a.logger.Info("watching assets", map[string]string{
		"assets": strconv.Itoa(len(a.cfg.Assets)),
		"roots":  strconv.Itoa(len(fileWatcher.WatchedPaths())),
		"tick":   a.cfg.Tick.String(),
	})

	runErr := coordinator.Run(runCtx, a.cfg.Tick)
	if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
		runErr = nil
	}
	select {
	case err := <-serverErr:
		runErr = errors.Join(runErr, fmt.Errorf("http server: %w", err))
	default:
	}

	shutdown.Add("watcher", func(context.Context) error {
		return fileWatcher.Close()
	})
	shutdown.Add("assets", func(context.Context) error {
		return a.close()
	})
	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpServerShutdownTimeout)
	defer cancel()
	return errors.Join(runErr, shutdown.Run(shutdownCtx))
}

// close destroys every loaded asset and closes the event bus.
func (a *app) close() error {
	err := errors.Join(a.shaders.Close(), a.documents.Close())
	a.bus.Close()
	return err
}
