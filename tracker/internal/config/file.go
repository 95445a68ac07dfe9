// Package config handles pagetrack configuration from YAML files, and the
// tracked page list kept in SQLite.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level pagetrack configuration.
type Config struct {
	Storage   StorageConfig `yaml:"storage"`
	Fetch     FetchConfig   `yaml:"fetch"`
	NoRefresh bool          `yaml:"no_refresh"`
	Pages     []PageConfig  `yaml:"pages"`
	Sinks     []SinkConfig  `yaml:"sinks"`
}

// StorageConfig selects the key-value backend.
type StorageConfig struct {
	Driver    string `yaml:"driver"` // sqlite | memory | dir
	Path      string `yaml:"path"`   // sqlite file or dir root
	Namespace string `yaml:"namespace"`
	Scope     string `yaml:"scope"`
}

// FetchConfig controls page retrieval.
type FetchConfig struct {
	Mode      string        `yaml:"mode"` // http | browser | auto
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxBody   int64         `yaml:"max_body"`
	Text      string        `yaml:"text"` // plain | markdown | none
	GuardURLs bool          `yaml:"guard_urls"`
	Browser   BrowserConfig `yaml:"browser"`
}

// BrowserConfig controls Chrome lifecycle for browser and auto modes.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	Stealth          string        `yaml:"stealth"` // headless | headful
	ResourceBlocking []string      `yaml:"resource_blocking"`
	MemoryLimit      int64         `yaml:"memory_limit"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
	XvfbDisplay      string        `yaml:"xvfb_display"`
}

// PageConfig defines a page to track.
type PageConfig struct {
	URL string `yaml:"url"`
}

// SinkConfig defines an output backend.
type SinkConfig struct {
	Type    string `yaml:"type"` // stdout | webhook
	URL     string `yaml:"url"`  // for webhook
	Retries int    `yaml:"retries"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills zero fields.
func (c *Config) ApplyDefaults() {
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Storage.Path == "" {
		switch c.Storage.Driver {
		case "sqlite":
			c.Storage.Path = "pagetrack.db"
		case "dir":
			c.Storage.Path = "pagetrack-data"
		}
	}
	if c.Storage.Namespace == "" {
		c.Storage.Namespace = "tracker"
	}
	if c.Fetch.Mode == "" {
		c.Fetch.Mode = "http"
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = 30 * time.Second
	}
	if c.Fetch.MaxBody <= 0 {
		c.Fetch.MaxBody = 10 << 20
	}
	if c.Fetch.Text == "" {
		c.Fetch.Text = "plain"
	}
	b := &c.Fetch.Browser
	if b.Stealth == "" {
		b.Stealth = "headless"
	}
	if b.MemoryLimit <= 0 {
		b.MemoryLimit = 1 << 30
	}
	if b.RecycleInterval <= 0 {
		b.RecycleInterval = 4 * time.Hour
	}
	if b.XvfbDisplay == "" {
		b.XvfbDisplay = ":99"
	}
	for i := range c.Sinks {
		if c.Sinks[i].Type == "" {
			c.Sinks[i].Type = "stdout"
		}
		if c.Sinks[i].Retries <= 0 {
			c.Sinks[i].Retries = 3
		}
	}
}

// Validate rejects unknown enum values and incomplete sinks.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite", "memory", "dir":
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Fetch.Mode {
	case "http", "browser", "auto":
	default:
		return fmt.Errorf("config: unknown fetch mode %q", c.Fetch.Mode)
	}
	switch c.Fetch.Text {
	case "plain", "markdown", "none":
	default:
		return fmt.Errorf("config: unknown text mode %q", c.Fetch.Text)
	}
	switch c.Fetch.Browser.Stealth {
	case "headless", "headful":
	default:
		return fmt.Errorf("config: unknown stealth %q", c.Fetch.Browser.Stealth)
	}
	for i, s := range c.Sinks {
		switch s.Type {
		case "stdout":
		case "webhook":
			if s.URL == "" {
				return fmt.Errorf("config: sink %d: webhook needs url", i)
			}
		default:
			return fmt.Errorf("config: sink %d: unknown type %q", i, s.Type)
		}
	}
	for i, p := range c.Pages {
		if strings.TrimSpace(p.URL) == "" {
			return fmt.Errorf("config: page %d: empty url", i)
		}
	}
	return nil
}

// URLs returns the configured page URLs in file order.
func (c *Config) URLs() []string {
	out := make([]string, 0, len(c.Pages))
	for _, p := range c.Pages {
		out = append(out, p.URL)
	}
	return out
}
