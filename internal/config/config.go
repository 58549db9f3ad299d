// Package config loads the mulay manifest: the asset list, the watch roots
// and the runtime knobs of the reload loop.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"mulay/internal/fsutil"
	"mulay/internal/logging"
)

const (
	DefaultTick       = 100 * time.Millisecond
	DefaultLogLevel   = "info"
	DefaultMaxWatches = 256

	KindShader   = "shader"
	KindDocument = "document"
)

var ErrManifestMissing = errors.New("manifest not found")

type Config struct {
	LogLevel string        `yaml:"log_level"`
	Tick     time.Duration `yaml:"tick"`
	Debounce time.Duration `yaml:"debounce"`
	Listen   string        `yaml:"listen"`
	Watch    WatchConfig   `yaml:"watch"`
	Assets   []AssetSpec   `yaml:"assets"`

	// Dir is the directory relative paths were resolved against.
	Dir string `yaml:"-"`
}

type WatchConfig struct {
	Roots      []string `yaml:"roots"`
	Recursive  bool     `yaml:"recursive"`
	MaxWatches int      `yaml:"max_watches"`
}

type AssetSpec struct {
	ID   string `yaml:"id"`
	Path string `yaml:"path"`
	Kind string `yaml:"kind"`
}

// Load reads the manifest at path, applies defaults and MULAY_* environment
// overrides, resolves relative paths against the manifest's directory and
// validates the result.
func Load(path string) (Config, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("%w: %s", ErrManifestMissing, path)
		}
		return Config{}, fmt.Errorf("read manifest: %w", err)
	}
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return Config{}, fmt.Errorf("resolve manifest dir: %w", err)
	}
	return Parse(bytes.NewReader(payload), dir, os.Getenv)
}

// Parse decodes a manifest from reader. getenv supplies overrides and may be
// nil.
func Parse(reader io.Reader, dir string, getenv func(string) string) (Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode manifest: %w", err)
	}
	cfg.Dir = dir
	cfg.applyDefaults()
	if getenv != nil {
		cfg.applyEnv(getenv)
	}
	cfg.resolvePaths()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Tick <= 0 {
		c.Tick = DefaultTick
	}
	if c.Debounce < 0 {
		c.Debounce = 0
	}
	if c.Watch.MaxWatches <= 0 {
		c.Watch.MaxWatches = DefaultMaxWatches
	}
	for i := range c.Assets {
		c.Assets[i].ID = strings.TrimSpace(c.Assets[i].ID)
		c.Assets[i].Kind = strings.ToLower(strings.TrimSpace(c.Assets[i].Kind))
	}
}

func (c *Config) applyEnv(getenv func(string) string) {
	if rawLevel := strings.TrimSpace(getenv("MULAY_LOG_LEVEL")); rawLevel != "" {
		c.LogLevel = rawLevel
	}
	if rawTick := strings.TrimSpace(getenv("MULAY_TICK")); rawTick != "" {
		if parsed, err := time.ParseDuration(rawTick); err == nil && parsed > 0 {
			c.Tick = parsed
		}
	}
	if rawDebounce := strings.TrimSpace(getenv("MULAY_DEBOUNCE")); rawDebounce != "" {
		if parsed, err := time.ParseDuration(rawDebounce); err == nil && parsed >= 0 {
			c.Debounce = parsed
		}
	}
	if rawListen := strings.TrimSpace(getenv("MULAY_LISTEN")); rawListen != "" {
		c.Listen = rawListen
	}
	if rawMax := strings.TrimSpace(getenv("MULAY_MAX_WATCHES")); rawMax != "" {
		if parsed, err := strconv.Atoi(rawMax); err == nil && parsed > 0 {
			c.Watch.MaxWatches = parsed
		}
	}
}

func (c *Config) resolvePaths() {
	for i, root := range c.Watch.Roots {
		if strings.TrimSpace(root) == "" {
			continue
		}
		c.Watch.Roots[i] = fsutil.Resolve(c.Dir, root)
	}
	for i := range c.Assets {
		if strings.TrimSpace(c.Assets[i].Path) == "" {
			continue
		}
		c.Assets[i].Path = fsutil.Resolve(c.Dir, c.Assets[i].Path)
	}
}

// Validate reports every problem in the manifest, joined.
func (c Config) Validate() error {
	var errs []error
	if _, ok := logging.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level: unknown level %q", c.LogLevel))
	}
	for i, root := range c.Watch.Roots {
		if strings.TrimSpace(root) == "" {
			errs = append(errs, fmt.Errorf("watch.roots[%d]: empty path", i))
		}
	}
	seen := make(map[string]int, len(c.Assets))
	for i, spec := range c.Assets {
		if spec.ID == "" {
			errs = append(errs, fmt.Errorf("assets[%d]: missing id", i))
		} else if first, dup := seen[spec.ID]; dup {
			errs = append(errs, fmt.Errorf("assets[%d]: duplicate id %q (first at assets[%d])", i, spec.ID, first))
		} else {
			seen[spec.ID] = i
		}
		if strings.TrimSpace(spec.Path) == "" {
			errs = append(errs, fmt.Errorf("assets[%d]: empty path", i))
		}
		switch spec.Kind {
		case KindShader, KindDocument:
		default:
			errs = append(errs, fmt.Errorf("assets[%d]: unknown kind %q", i, spec.Kind))
		}
	}
	return errors.Join(errs...)
}

// AssetsOfKind returns the asset entries of one kind in manifest order.
func (c Config) AssetsOfKind(kind string) []AssetSpec {
	var out []AssetSpec
	for _, spec := range c.Assets {
		if spec.Kind == kind {
			out = append(out, spec)
		}
	}
	return out
}
