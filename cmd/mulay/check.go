package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// CheckCmd loads every manifest entry once, prints one line per asset and
// fails when any entry does not load.
// Usage: mulay check -f mulay.yaml
type CheckCmd struct {
	manifestFlags
	out io.Writer
}

var errCheckFailed = errors.New("check failed")

func (c *CheckCmd) Execute(_ []string) error {
	cfg, logger, err := c.load()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	out := c.out
	if out == nil {
		out = os.Stdout
	}
	instance := newApp(context.Background(), cfg, logger)
	defer func() { _ = instance.close() }()

	failed := 0
	for _, spec := range cfg.Assets {
		if err := instance.loadAsset(spec); err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %-8s %s: %v\n", spec.Kind, spec.ID, err)
			continue
		}
		fmt.Fprintf(out, "ok   %-8s %s %s\n", spec.Kind, spec.ID, spec.Path)
	}
	fmt.Fprintf(out, "%d assets, %d failed\n", len(cfg.Assets), failed)
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d assets", errCheckFailed, failed, len(cfg.Assets))
	}
	return nil
}
