// Package config loads the cogtiles configuration from YAML.
package config

import (
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/beetlebugorg/cogtiles/pkg/cogtiles"
)

// Config is the process configuration.
type Config struct {
	DataRoot    string   `yaml:"dataRoot" default:"./data" validate:"required"`
	Collections []string `yaml:"collections" default:"[\"bathy\",\"ortho\",\"pred\"]" validate:"min=1,dive,oneof=bathy ortho pred pred_drone pred_asv"`

	CacheCapacity int      `yaml:"cacheCapacity" default:"32" validate:"min=1"`
	TileSize      int      `yaml:"tileSize" default:"256" validate:"min=1,max=4096"`
	Marker        string   `yaml:"marker" default:"ASV"`
	Extensions    []string `yaml:"extensions" validate:"dive,startswith=."`

	// SkipFailedAssets leaves unreadable candidates out of tile requests.
	SkipFailedAssets bool `yaml:"skipFailedAssets"`
	// SkipUnreadableAssets leaves unopenable rasters out of indexes at startup.
	SkipUnreadableAssets bool `yaml:"skipUnreadableAssets"`
	// Workers opening rasters at startup. 0 uses every CPU.
	Workers int `yaml:"workers" validate:"min=0"`

	Log Log `yaml:"log"`
}

// Log configures logging.
type Log struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"text" validate:"oneof=text json"`
}

// Default returns the configuration with every default applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return cfg, nil
}

// Load reads the YAML file at path over the defaults and validates the
// result. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Kinds returns the configured collection kinds.
func (c *Config) Kinds() ([]cogtiles.Kind, error) {
	kinds := make([]cogtiles.Kind, 0, len(c.Collections))
	for _, name := range c.Collections {
		k, err := cogtiles.ParseKind(name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// Options returns the engine options described by the configuration.
func (c *Config) Options() cogtiles.Options {
	opts := cogtiles.DefaultOptions()
	opts.CacheCapacity = c.CacheCapacity
	opts.TileSize = c.TileSize
	opts.Marker = c.Marker
	opts.Extensions = c.Extensions
	opts.SkipFailedAssets = c.SkipFailedAssets
	opts.Load = cogtiles.LoadOptions{
		Workers:    c.Workers,
		SkipErrors: c.SkipUnreadableAssets,
	}
	return opts
}
