// Package config provides configuration management for the leapcomplete CLI.
//
// Source settings reuse core.SourceConfig so that the catalog drivers and
// the CLI read the same keys.
package config

import (
	"sort"

	"github.com/leapstack-labs/leapcomplete/pkg/core"
)

// SourceConfig is an alias for the shared source configuration.
type SourceConfig = core.SourceConfig

// Config holds all CLI configuration options.
type Config struct {
	// Source is the source selected at startup.
	Source     string                  `koanf:"source"`
	Sources    map[string]SourceConfig `koanf:"sources"`
	Completion CompletionConfig        `koanf:"completion"`
	Expansion  ExpansionConfig         `koanf:"expansion"`
	LogLevel   string                  `koanf:"log_level"`
	LogFormat  string                  `koanf:"log_format"`
	Output     string                  `koanf:"output"`
	Watch      bool                    `koanf:"watch"`
	Serve      ServeConfig             `koanf:"serve"`
}

// CompletionConfig tunes suggestion lists.
type CompletionConfig struct {
	MaxSuggestions int `koanf:"max_suggestions"`
}

// ExpansionConfig tunes the expanded-table set.
type ExpansionConfig struct {
	Capacity int `koanf:"capacity"`
}

// ServeConfig holds configuration for the HTTP API.
type ServeConfig struct {
	Addr          string `koanf:"addr"`
	SessionSecret string `koanf:"session_secret"`
}

// Default configuration values
const (
	DefaultMaxSuggestions = 100
	DefaultCapacity       = 10
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	DefaultOutput         = "auto" // Auto-detect: TTY=table, non-TTY=json
	DefaultAddr           = "127.0.0.1:8766"
)

// SourceConfigs returns the configured sources keyed by source id.
func (c *Config) SourceConfigs() map[core.SourceID]SourceConfig {
	out := make(map[core.SourceID]SourceConfig, len(c.Sources))
	for id, sc := range c.Sources {
		out[core.SourceID(id)] = sc
	}
	return out
}

// SourceIDs returns the configured source ids (sorted).
func (c *Config) SourceIDs() []string {
	ids := make([]string, 0, len(c.Sources))
	for id := range c.Sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DefaultSource returns the source to select at startup: the configured
// one, or the only source when there is exactly one.
func (c *Config) DefaultSource() string {
	if c.Source != "" {
		return c.Source
	}
	if len(c.Sources) == 1 {
		return c.SourceIDs()[0]
	}
	return ""
}
