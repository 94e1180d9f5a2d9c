package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	intconfig "github.com/leapstack-labs/procmacro/internal/config"
)

// EnvPrefix is the prefix of environment variables read as configuration.
// A double underscore separates nesting levels: PROCMACRO_EXPANDER__POOL_SIZE sets
// expander.pool_size.
const EnvPrefix = "PROCMACRO_"

// loggerKey is used to store logger in context.
type loggerKey struct{}

// configKey is used to store the loaded config in context.
type configKey struct{}

// flagKeys maps CLI flag names to config keys.
var flagKeys = map[string]string{
	"expander":   "expander.path",
	"pool-size":  "expander.pool_size",
	"timeout":    "expander.timeout",
	"watch":      "expander.watch",
	"journal":    "journal.path",
	"no-journal": "journal.enabled",
	"macros-dir": "macros_dir",
	"log-level":  "log_level",
	"verbose":    "verbose",
	"output":     "output",
}

// Package-level config file tracking
var configFileUsed string

func defaults() map[string]any {
	return map[string]any{
		"expander.path":       "",
		"expander.env_marker": intconfig.DefaultEnvMarker,
		"expander.pool_size":  intconfig.DefaultPoolSize,
		"expander.timeout":    intconfig.DefaultTimeout.String(),
		"expander.watch":      false,
		"journal.enabled":     true,
		"journal.path":        intconfig.DefaultJournalPath,
		"macros_dir":          "macros",
		"log_level":           DefaultLogLevel,
		"verbose":             false,
		"output":              DefaultOutput,
	}
}

// inferProjectRoot determines the project root.
// Priority:
//  1. Directory of an explicit config file
//  2. Search upward from CWD for procmacro.yaml
//  3. Current working directory
func inferProjectRoot(cfgFile string) string {
	if cfgFile != "" {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			return filepath.Dir(abs)
		}
	}

	cwd, err := os.Getwd()
	if err != nil || cwd == "" {
		return "."
	}
	if root := intconfig.FindProjectRoot(cwd); root != "" {
		return root
	}
	return cwd
}

// LoadConfig loads configuration from defaults, the config file, environment
// variables and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	configFileUsed = ""

	projectRoot := inferProjectRoot(cfgFile)

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if cfgFile == "" {
		cfgFile = intconfig.FindConfigFile(projectRoot)
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
		configFileUsed = cfgFile
	}

	// 3. Environment variables
	// Transform: PROCMACRO_EXPANDER__POOL_SIZE -> expander.pool_size
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags that were explicitly set
	var flagPaths map[string]bool
	if flags != nil {
		flagPaths = make(map[string]bool)
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			if f.Name == "no-journal" {
				disabled, _ := flags.GetBool("no-journal")
				return key, !disabled
			}
			if key == "expander.path" || key == "journal.path" || key == "macros_dir" {
				flagPaths[key] = true
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ProjectRoot = projectRoot

	// Paths given as flags are relative to CWD; all others to the project root.
	resolve := func(key, path string) string {
		if flagPaths[key] {
			if abs, err := filepath.Abs(path); err == nil {
				return abs
			}
			return path
		}
		return intconfig.ResolvePath(path, projectRoot)
	}
	cfg.Expander.Path = resolve("expander.path", cfg.Expander.Path)
	cfg.Journal.Path = resolve("journal.path", cfg.Journal.Path)
	cfg.MacrosDir = resolve("macros_dir", cfg.MacrosDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() any {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return slog.New(slog.DiscardHandler)
	}
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// ConfigKey returns the context key used for storing the loaded config.
func ConfigKey() any {
	return configKey{}
}

// GetConfig retrieves the config from the command context, or nil if none was stored.
func GetConfig(ctx context.Context) *Config {
	if ctx == nil {
		return nil
	}
	if c, ok := ctx.Value(configKey{}).(*Config); ok {
		return c
	}
	return nil
}
