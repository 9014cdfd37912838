package config

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"staticflow/internal/arch"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(c.Backends, []string{"xarch", "branchtab"}) {
		t.Errorf("Backends = %v", c.Backends)
	}
	if c.CacheSize != 4096 || c.Window != 16 || c.Arch != "" || c.Debug {
		t.Errorf("defaults = %+v", c)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STATICFLOW_BACKENDS", "branchtab")
	t.Setenv("STATICFLOW_CACHE_SIZE", "0")
	t.Setenv("STATICFLOW_WINDOW", "8")
	t.Setenv("STATICFLOW_ARCH", "arm64")
	t.Setenv("STATICFLOW_DEBUG", "true")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := &Config{Backends: []string{"branchtab"}, CacheSize: 0, Window: 8, Arch: "arm64", Debug: true}
	if !reflect.DeepEqual(c, want) {
		t.Errorf("Load() = %+v, want %+v", c, want)
	}
}

func TestValidate(t *testing.T) {
	ok := Config{Backends: []string{"xarch"}, CacheSize: 1, Window: 16}
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no backends", func(c *Config) { c.Backends = nil }},
		{"unknown backend", func(c *Config) { c.Backends = []string{"capstone"} }},
		{"negative cache", func(c *Config) { c.CacheSize = -1 }},
		{"small window", func(c *Config) { c.Window = 2 }},
		{"unknown arch", func(c *Config) { c.Arch = "sparc" }},
	}
	if err := ok.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ok
			tt.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("Validate() succeeded")
			}
		})
	}

	c := ok
	c.Arch = "sparc"
	if err := c.Validate(); !errors.Is(err, arch.ErrUnsupported) {
		t.Errorf("Validate() = %v, want ErrUnsupported", err)
	}
}

func TestLoadRejectsBadWindow(t *testing.T) {
	t.Setenv("STATICFLOW_WINDOW", "two")
	if _, err := Load(); err == nil {
		t.Error("Load succeeded")
	}
}

func TestSchema(t *testing.T) {
	bts, err := json.Marshal(Schema())
	if err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{`"backends"`, `"cacheSize"`, `"window"`, `"noColor"`} {
		if !strings.Contains(string(bts), field) {
			t.Errorf("schema lacks %s: %s", field, bts)
		}
	}
}
