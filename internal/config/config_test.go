package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sodacat-web.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "data", cfg.OutputDir)
	assert.Equal(t, 50000, cfg.SummaryThreshold)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Empty(t, cfg.SearchDB)

	assert.ErrorIs(t, cfg.Validate(), ErrInvalid, "sodaCat directory has no default")
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
sodacat_dir       = "../sodaCat"
output_dir        = "/srv/data"
summary_threshold = 1000
search_db         = "out/search.db"

log {
  level  = "debug"
  format = "json"
}
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	dir := filepath.Dir(path)
	assert.Equal(t, filepath.Join(dir, "../sodaCat"), cfg.SodacatDir)
	assert.Equal(t, "/srv/data", cfg.OutputDir)
	assert.Equal(t, 1000, cfg.SummaryThreshold)
	assert.Equal(t, filepath.Join(dir, "out/search.db"), cfg.SearchDB)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "sodacat_dir = \"/src\"\nlog {\n  level = \"warn\"\n}\n"))
	require.NoError(t, err)
	assert.Equal(t, "/src", cfg.SodacatDir)
	assert.Equal(t, "data", cfg.OutputDir)
	assert.Equal(t, 50000, cfg.SummaryThreshold)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.hcl"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "sodacat_dir = \n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "unknown_key = 1\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "summary_threshold = \"many\"\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.SodacatDir = "/src"
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := map[string]func(*Config){
		"no output":      func(c *Config) { c.OutputDir = "" },
		"zero threshold": func(c *Config) { c.SummaryThreshold = 0 },
		"bad level":      func(c *Config) { c.LogLevel = "trace" },
		"bad format":     func(c *Config) { c.LogFormat = "xml" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}
