// Package config provides configuration management for the procmacro CLI.
//
// It layers the shared expander and journal settings from internal/config with
// CLI-only options such as logging and output format.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	intconfig "github.com/leapstack-labs/procmacro/internal/config"
)

// ExpanderConfig is an alias for the shared expander configuration.
type ExpanderConfig = intconfig.ExpanderConfig

// JournalConfig is an alias for the shared journal configuration.
type JournalConfig = intconfig.JournalConfig

// Default CLI values.
const (
	DefaultLogLevel = "info"
	DefaultOutput   = "auto" // Auto-detect: TTY=table, non-TTY=markdown
)

// Output formats accepted by --output.
var OutputFormats = []string{"auto", "table", "markdown", "json", "csv"}

// Config holds all CLI configuration options.
type Config struct {
	Expander     ExpanderConfig `koanf:"expander"`
	Journal      JournalConfig  `koanf:"journal"`
	MacrosDir    string         `koanf:"macros_dir"`
	LogLevel     string         `koanf:"log_level"`
	Verbose      bool           `koanf:"verbose"`
	OutputFormat string         `koanf:"output"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := c.Expander.Validate(); err != nil {
		return err
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	for _, f := range OutputFormats {
		if c.OutputFormat == f {
			return nil
		}
	}
	return fmt.Errorf("unknown output format %q (want one of %s)", c.OutputFormat, strings.Join(OutputFormats, ", "))
}

// Level returns the log level to use. Verbose forces debug.
func (c *Config) Level() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	level, err := ParseLogLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// ParseLogLevel parses debug, info, warn or error.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q: %w", s, err)
	}
	return level, nil
}
