package main

import (
	"fmt"
	"io"
	"os"

	"mulay/internal/config"
	"mulay/internal/logging"
)

// Options is the root command. The struct tags are interpreted by
// github.com/jessevdk/go-flags.
type Options struct {
	Watch   *WatchCmd   `command:"watch" description:"Load the manifest and hot-reload its assets until interrupted"`
	Check   *CheckCmd   `command:"check" description:"Load every asset in the manifest once and report failures"`
	Version *VersionCmd `command:"version" description:"Print build information"`
}

// Init instantiates the sub-command named by the first argument so that
// flags.Parse can populate its fields.
func (o *Options) Init(firstArg string, stdout, stderr io.Writer) {
	switch firstArg {
	case "watch":
		o.Watch = &WatchCmd{manifestFlags: manifestFlags{logOut: stderr}}
	case "check":
		o.Check = &CheckCmd{manifestFlags: manifestFlags{logOut: stderr}, out: stdout}
	case "version":
		o.Version = &VersionCmd{out: stdout}
	}
}

// manifestFlags are shared by every command that reads a manifest.
type manifestFlags struct {
	Config   string `short:"f" long:"config" description:"manifest path" default:"mulay.yaml"`
	LogLevel string `long:"log-level" description:"debug|info|warning|error (overrides the manifest)"`
	JSONLogs bool   `long:"json-logs" description:"write logs as JSON lines"`

	logOut io.Writer
}

// load reads the manifest, applies the command line log level and builds
// the logger.
func (f *manifestFlags) load() (config.Config, *logging.Logger, error) {
	cfg, err := config.Load(f.Config)
	if err != nil {
		return config.Config{}, nil, err
	}
	if f.LogLevel != "" {
		if _, ok := logging.ParseLevel(f.LogLevel); !ok {
			return config.Config{}, nil, fmt.Errorf("--log-level: unknown level %q", f.LogLevel)
		}
		cfg.LogLevel = f.LogLevel
	}
	output := f.logOut
	if output == nil {
		output = os.Stderr
	}
	return cfg, newLogger(cfg.LogLevel, f.JSONLogs, output), nil
}
