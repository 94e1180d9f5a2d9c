package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProject(t *testing.T) {
	root := t.TempDir()
	content := `
expander:
  path: bin/expander
  args: ["--stdio"]
  pool_size: 2
  timeout: 250ms
journal:
  enabled: true
`
	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileName), []byte(content), 0o600))
	nested := filepath.Join(root, "src", "macros")
	require.NoError(t, os.MkdirAll(nested, 0o750))

	cfg, err := LoadProject(nested)
	require.NoError(t, err)

	assert.Equal(t, root, cfg.Root)
	assert.Equal(t, filepath.Join(root, "bin", "expander"), cfg.Expander.Path, "resolved against the config directory")
	assert.Equal(t, []string{"--stdio"}, cfg.Expander.Args)
	assert.Equal(t, 2, cfg.Expander.PoolSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Expander.Timeout)
	assert.Equal(t, DefaultEnvMarker, cfg.Expander.EnvMarker, "default applied")
	assert.Equal(t, filepath.Join(root, DefaultJournalPath), cfg.Journal.Path)
	assert.True(t, cfg.Journal.Enabled)
}

func TestLoadProject_NoConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadProject(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Root)
	assert.Empty(t, cfg.Expander.Path)
	assert.Equal(t, DefaultPoolSize, cfg.Expander.PoolSize)
	assert.Equal(t, DefaultTimeout, cfg.Expander.Timeout)
}

func TestLoadProject_AltNameAndAbsolutePath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileNameAlt), []byte("expander:\n  path: /opt/x\n"), 0o600))

	cfg, err := LoadProject(dir)
	require.NoError(t, err)
	assert.Equal(t, "/opt/x", cfg.Expander.Path)
}

func TestLoadProject_NonPositiveValuesDefaulted(t *testing.T) {
	dir := t.TempDir()
	content := "expander:\n  pool_size: -3\n  timeout: -1s\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o600))

	cfg, err := LoadProject(dir)
	require.NoError(t, err)
	assert.Equal(t, DefaultPoolSize, cfg.Expander.PoolSize)
	assert.Equal(t, DefaultTimeout, cfg.Expander.Timeout)
}

func TestLoadProject_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("expander: [unclosed\n"), 0o600))

	_, err := LoadProject(dir)
	assert.ErrorContains(t, err, ConfigFileName)
}

func TestResolvePath(t *testing.T) {
	assert.Equal(t, "", ResolvePath("", "/base"))
	assert.Equal(t, ":memory:", ResolvePath(":memory:", "/base"))
	assert.Equal(t, "/abs/j.db", ResolvePath("/abs/j.db", "/base"))
	assert.Equal(t, filepath.Join("/base", "rel", "j.db"), ResolvePath("rel/j.db", "/base"))
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileName), []byte(""), 0o600))

	assert.Equal(t, root, FindProjectRoot(nested))
}

func TestExpanderConfig_Validate(t *testing.T) {
	cfg := ExpanderConfig{}
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	cfg.PoolSize = -1
	assert.Error(t, cfg.Validate())

	cfg.ApplyDefaults()
	assert.Equal(t, DefaultPoolSize, cfg.PoolSize, "negative pool size counts as unset")
	require.NoError(t, cfg.Validate())

	cfg = ExpanderConfig{PoolSize: 1, Timeout: time.Second}
	assert.Error(t, cfg.Validate(), "env marker required")
}
