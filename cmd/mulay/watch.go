package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// WatchCmd loads the manifest and hot-reloads its assets until SIGINT or
// SIGTERM.
// Usage: mulay watch -f mulay.yaml --listen :7777
type WatchCmd struct {
	manifestFlags
	Listen   string        `short:"l" long:"listen" description:"serve the HTTP API on this address (overrides the manifest)"`
	Tick     time.Duration `long:"tick" description:"reload tick interval (overrides the manifest)"`
	Debounce time.Duration `long:"debounce" description:"coalesce writes to one path for this long (overrides the manifest)"`
}

func (w *WatchCmd) Execute(_ []string) error {
	cfg, logger, err := w.load()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	if w.Listen != "" {
		cfg.Listen = w.Listen
	}
	if w.Tick > 0 {
		cfg.Tick = w.Tick
	}
	if w.Debounce > 0 {
		cfg.Debounce = w.Debounce
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)
	stopSignals := watchShutdownSignals(logger, cancel, signals)
	defer stopSignals()

	instance := newApp(ctx, cfg, logger)
	if err := instance.loadAssets(); err != nil {
		_ = instance.close()
		return err
	}
	return instance.serve(ctx)
}
