// Package hotreload runs the drain, reload, clear cycle that turns changed
// paths into in-place asset reloads.
package hotreload

import (
	"context"
	"errors"
	"strconv"
	"time"

	"mulay/internal/asset"
	"mulay/internal/logging"
	"mulay/internal/metrics"
)

// StaleSource is the consumer side of a watcher's stale buffer.
type StaleSource interface {
	DrainStalePaths() []string
	ClearStalePaths()
}

// Reloader resolves changed paths to assets and reloads them; every
// *asset.Manager satisfies it.
type Reloader interface {
	ReloadManyByPath(paths []string) error
}

type Option func(*Coordinator)

func WithLogger(logger *logging.Logger) Option {
	return func(coordinator *Coordinator) {
		if logger != nil {
			coordinator.logger = logger
		}
	}
}

func WithMetrics(registry *metrics.Registry) Option {
	return func(coordinator *Coordinator) {
		coordinator.registry = registry
	}
}

// OnError is called by Run with the joined failures of each failing tick.
func OnError(handler func(error)) Option {
	return func(coordinator *Coordinator) {
		coordinator.onError = handler
	}
}

type Coordinator struct {
	source   StaleSource
	targets  []Reloader
	logger   *logging.Logger
	registry *metrics.Registry
	onError  func(error)
}

func New(source StaleSource, targets []Reloader, opts ...Option) *Coordinator {
	coordinator := &Coordinator{
		source:  source,
		targets: append([]Reloader(nil), targets...),
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(coordinator)
		}
	}
	coordinator.logger = coordinator.logger.With(map[string]string{"mulay.category": "reload"})
	return coordinator
}

// Tick drains the stale paths, offers them to every target and clears the
// drained snapshot. A target that aborts its batch is resumed with the paths
// it did not attempt, so each path is tried once per tick. The snapshot is
// cleared even when reloads fail; the next save produces a new event.
func (c *Coordinator) Tick() error {
	if c == nil || c.source == nil {
		return nil
	}
	paths := c.source.DrainStalePaths()
	if len(paths) == 0 {
		return nil
	}

	var errs []error
	for _, target := range c.targets {
		errs = append(errs, c.reloadTarget(target, paths)...)
	}
	c.source.ClearStalePaths()

	err := errors.Join(errs...)
	c.registry.RecordTick(len(paths), err)
	c.logger.Debug("reload tick", map[string]string{
		"paths":    strconv.Itoa(len(paths)),
		"failures": strconv.Itoa(len(errs)),
	})
	return err
}

func (c *Coordinator) reloadTarget(target Reloader, paths []string) []error {
	var errs []error
	for len(paths) > 0 {
		err := target.ReloadManyByPath(paths)
		if err == nil {
			return errs
		}
		errs = append(errs, err)

		var batch *asset.BatchError
		if !errors.As(err, &batch) {
			c.logger.Error("reload failed", map[string]string{"error": err.Error()})
			return errs
		}
		c.logger.Warn("asset reload failed", map[string]string{
			"asset_id": batch.ID,
			"path":     batch.Path,
			"error":    batch.Err.Error(),
		})
		paths = batch.Remaining
	}
	return errs
}

// Run ticks every interval until ctx is done. Tick failures go to the OnError
// handler and never stop the loop.
func (c *Coordinator) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("tick interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.Tick(); err != nil && c.onError != nil {
				c.onError(err)
			}
		}
	}
}
