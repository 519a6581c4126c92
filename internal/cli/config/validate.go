package config

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapcomplete/pkg/catalog"
)

// OutputFormats lists the accepted values of the output key.
var OutputFormats = []string{"auto", "text", "table", "json", "yaml"}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	for _, id := range c.SourceIDs() {
		if err := ValidateSource(c.Sources[id]); err != nil {
			return fmt.Errorf("source %s: %w", id, err)
		}
	}

	if c.Source != "" {
		if _, ok := c.Sources[c.Source]; !ok {
			return fmt.Errorf("source %q is not configured\nHint: Available sources: %s", c.Source, strings.Join(c.SourceIDs(), ", "))
		}
	}

	if c.Completion.MaxSuggestions <= 0 {
		return fmt.Errorf("completion.max_suggestions must be positive, got %d", c.Completion.MaxSuggestions)
	}
	if c.Expansion.Capacity <= 0 {
		return fmt.Errorf("expansion.capacity must be positive, got %d", c.Expansion.Capacity)
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if !isOutputFormat(c.Output) {
		return fmt.Errorf("unknown output format %q (want one of %s)", c.Output, strings.Join(OutputFormats, ", "))
	}
	return nil
}

// ValidateSource checks a single source configuration.
func ValidateSource(sc SourceConfig) error {
	if sc.Type == "" {
		return fmt.Errorf("source type is required")
	}
	if !catalog.IsRegistered(sc.Type) {
		return &catalog.UnknownDriverError{Type: sc.Type, Available: catalog.ListDrivers()}
	}
	if _, err := catalog.NewFilter(sc.Include, sc.Exclude); err != nil {
		return err
	}
	return nil
}

func isOutputFormat(s string) bool {
	if s == "" {
		return true
	}
	for _, f := range OutputFormats {
		if strings.EqualFold(s, f) {
			return true
		}
	}
	return false
}
