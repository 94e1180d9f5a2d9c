package config

import "time"

// Default configuration values.
const (
	DefaultEnvMarker   = "PROCMACRO_HOST"
	DefaultPoolSize    = 4
	DefaultTimeout     = 5 * time.Second
	DefaultJournalPath = ".procmacro/journal.db"
)

// ApplyDefaults fills unset expander fields. Non-positive pool sizes and timeouts
// count as unset.
func (c *ExpanderConfig) ApplyDefaults() {
	if c == nil {
		return
	}
	if c.EnvMarker == "" {
		c.EnvMarker = DefaultEnvMarker
	}
	if c.PoolSize <= 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

// ApplyDefaults fills unset journal fields.
func (c *JournalConfig) ApplyDefaults() {
	if c == nil {
		return
	}
	if c.Path == "" {
		c.Path = DefaultJournalPath
	}
}

// ApplyDefaults fills unset fields of the whole project config.
func (c *ProjectConfig) ApplyDefaults() {
	c.Expander.ApplyDefaults()
	c.Journal.ApplyDefaults()
}
