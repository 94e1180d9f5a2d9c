// Package config provides shared configuration types for procmacro.
// This package is decoupled from CLI concerns and is used by the process pool,
// the journal and any embedding host that needs expander settings.
package config

import (
	"fmt"
	"time"
)

// ExpanderConfig describes how to launch expander processes.
type ExpanderConfig struct {
	// Path of the expander executable. Empty means no expander is available.
	Path string `koanf:"path"`
	// Args are passed to every expander process.
	Args []string `koanf:"args"`
	// EnvMarker is set to "true" in the expander's environment so macros can tell
	// they run under this host.
	EnvMarker string `koanf:"env_marker"`
	// PoolSize is the number of concurrently running expander processes.
	PoolSize int `koanf:"pool_size"`
	// Timeout bounds a single request/response round trip.
	Timeout time.Duration `koanf:"timeout"`
	// Watch restarts the pool when the expander executable changes on disk.
	Watch bool `koanf:"watch"`
}

// JournalConfig controls the expansion journal.
type JournalConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// ProjectConfig holds the configuration found in a procmacro.yaml file.
type ProjectConfig struct {
	Expander ExpanderConfig `koanf:"expander"`
	Journal  JournalConfig  `koanf:"journal"`

	// Root is the directory holding the config file, or the search start when
	// there is none.
	Root string `koanf:"-"`
}

// Validate checks the expander settings.
func (c *ExpanderConfig) Validate() error {
	if c.PoolSize < 1 {
		return fmt.Errorf("expander.pool_size must be at least 1, got %d", c.PoolSize)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("expander.timeout must be positive, got %s", c.Timeout)
	}
	if c.EnvMarker == "" {
		return fmt.Errorf("expander.env_marker is required")
	}
	return nil
}
