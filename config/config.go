// Package config handles garnet.toml configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/garnet/opt"
	"github.com/chazu/garnet/runtime"
)

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "garnet.toml"

// Config represents a garnet.toml file.
type Config struct {
	Optimizer Optimizer `toml:"optimizer"`
	Cache     Cache     `toml:"cache"`
	Log       Log       `toml:"log"`

	// Dir is the directory containing the garnet.toml file (set at load time).
	Dir string `toml:"-"`
}

// Optimizer configures the pass pipeline.
type Optimizer struct {
	Passes         []string `toml:"passes"`
	MaxIterations  int      `toml:"max-iterations"`
	FoldArithmetic *bool    `toml:"fold-arithmetic"`
	InlineMaxSize  int      `toml:"inline-max-size"`
}

// Cache configures call-site caches.
type Cache struct {
	Mode            string `toml:"mode"`
	PolymorphicSize int    `toml:"polymorphic-size"`
}

// Log configures logging. Verbosity follows commonlog: 0 is errors only.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no garnet.toml exists.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	d := opt.DefaultOptions()
	if c.Optimizer.Passes == nil {
		c.Optimizer.Passes = d.Passes
	}
	if c.Optimizer.MaxIterations == 0 {
		c.Optimizer.MaxIterations = d.MaxIterations
	}
	if c.Optimizer.FoldArithmetic == nil {
		fold := d.FoldArithmetic
		c.Optimizer.FoldArithmetic = &fold
	}
	if c.Optimizer.InlineMaxSize == 0 {
		c.Optimizer.InlineMaxSize = d.InlineMaxSize
	}
	if c.Cache.Mode == "" {
		c.Cache.Mode = runtime.Monomorphic.String()
	}
	if c.Cache.PolymorphicSize == 0 {
		c.Cache.PolymorphicSize = runtime.DefaultPolymorphicSize
	}
}

// Validate reports settings that cannot be used.
func (c *Config) Validate() error {
	if _, err := runtime.ParseCacheMode(c.Cache.Mode); err != nil {
		return fmt.Errorf("[cache] %w", err)
	}
	if c.Cache.PolymorphicSize < 1 {
		return fmt.Errorf("[cache] polymorphic-size must be positive, got %d", c.Cache.PolymorphicSize)
	}
	if c.Optimizer.MaxIterations < 1 {
		return fmt.Errorf("[optimizer] max-iterations must be positive, got %d", c.Optimizer.MaxIterations)
	}
	if c.Optimizer.InlineMaxSize < 0 {
		return fmt.Errorf("[optimizer] inline-max-size must not be negative, got %d", c.Optimizer.InlineMaxSize)
	}
	return nil
}

// Load parses a garnet.toml file from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return nil, fmt.Errorf("unknown key %s in %s", undec[0], path)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &c, nil
}

// FindAndLoad walks up from startDir to find a garnet.toml file, then
// loads it. Without one it returns Default().
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

// OptimizerOptions converts the [optimizer] section.
func (c *Config) OptimizerOptions() opt.Options {
	return opt.Options{
		Passes:         c.Optimizer.Passes,
		MaxIterations:  c.Optimizer.MaxIterations,
		FoldArithmetic: *c.Optimizer.FoldArithmetic,
		InlineMaxSize:  c.Optimizer.InlineMaxSize,
	}
}

// RuntimeOptions converts the [cache] section.
func (c *Config) RuntimeOptions() ([]runtime.Option, error) {
	mode, err := runtime.ParseCacheMode(c.Cache.Mode)
	if err != nil {
		return nil, err
	}
	return []runtime.Option{runtime.WithCacheMode(mode, c.Cache.PolymorphicSize)}, nil
}
