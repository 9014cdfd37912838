// Package config reads the staticflow settings from STATICFLOW_* environment
// variables.
package config

import (
	"fmt"
	"slices"

	"github.com/caarlos0/env/v8"
	"github.com/invopop/jsonschema"

	"staticflow/internal/analysis"
	"staticflow/internal/arch"
)

// Prefix is prepended to every variable name.
const Prefix = "STATICFLOW_"

// Config represents configuration for the staticflow tool
type Config struct {
	Backends  []string `env:"BACKENDS" envDefault:"xarch,branchtab" json:"backends" jsonschema:"title=Backends,description=Decoder backends tried in order"`
	CacheSize int      `env:"CACHE_SIZE" envDefault:"4096" json:"cacheSize" jsonschema:"title=Cache Size,description=Decoded instructions kept in memory (0 disables the cache),minimum=0"`
	Window    int      `env:"WINDOW" envDefault:"16" json:"window" jsonschema:"title=Window,description=Bytes handed to the decoder per address,minimum=4"`
	Arch      string   `env:"ARCH" json:"arch,omitempty" jsonschema:"title=Architecture,description=Override the architecture detected from the image"`
	Debug     bool     `env:"DEBUG" json:"debug" jsonschema:"title=Debug,description=Enable debug logging"`
	NoColor   bool     `env:"NO_COLOR" json:"noColor" jsonschema:"title=No Color,description=Disable syntax highlighting in listings"`
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	var c Config
	if err := env.ParseWithOptions(&c, env.Options{Prefix: Prefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects unknown backends and architectures and out-of-range
// sizes.
func (c *Config) Validate() error {
	if len(c.Backends) == 0 {
		return fmt.Errorf("no backends configured")
	}
	known := analysis.BackendNames()
	for _, b := range c.Backends {
		if !slices.Contains(known, b) {
			return fmt.Errorf("unknown backend %q (have %v)", b, known)
		}
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache size must not be negative, got %d", c.CacheSize)
	}
	if c.Window < 4 {
		return fmt.Errorf("window must be at least 4 bytes, got %d", c.Window)
	}
	if c.Arch != "" {
		if _, err := arch.Parse(c.Arch); err != nil {
			return err
		}
	}
	return nil
}

// Schema returns the JSON schema describing Config.
func Schema() *jsonschema.Schema {
	r := &jsonschema.Reflector{DoNotReference: true}
	return r.Reflect(&Config{})
}
