package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config file names, in lookup order.
const (
	ConfigFileName    = "procmacro.yaml"
	ConfigFileNameAlt = "procmacro.yml"
)

// LoadProject loads the procmacro.yaml found in dir or the nearest parent. Relative
// paths in the file are resolved against the directory holding it. Without a config
// file it returns the defaults, rooted at dir.
//
// This is the entry point for hosts embedding the expander without the CLI; the CLI
// layers env vars and flags on top of the same file.
func LoadProject(dir string) (*ProjectConfig, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	cfg := &ProjectConfig{Root: dir}
	if root := FindProjectRoot(dir); root != "" {
		cfg.Root = root
		path := FindConfigFile(root)
		k := koanf.New(".")
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
		if err := k.Unmarshal("", cfg); err != nil {
			return nil, fmt.Errorf("unable to decode %s: %w", path, err)
		}
	}

	cfg.ApplyDefaults()
	cfg.Expander.Path = ResolvePath(cfg.Expander.Path, cfg.Root)
	cfg.Journal.Path = ResolvePath(cfg.Journal.Path, cfg.Root)
	if err := cfg.Expander.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolvePath joins a relative path onto baseDir. Empty, absolute and ":memory:"
// paths are returned unchanged.
func ResolvePath(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// FindConfigFile returns the config file in dir, or "" if there is none.
func FindConfigFile(dir string) string {
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// FindProjectRoot returns the first directory at or above startDir holding a config
// file, or "" if there is none.
func FindProjectRoot(startDir string) string {
	for dir := startDir; ; {
		if FindConfigFile(dir) != "" {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
