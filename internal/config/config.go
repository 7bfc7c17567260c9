// Package config loads build settings from an optional HCL file.
package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/agentic-research/sodacat-web/internal/ingest"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

var ErrInvalid = errors.New("invalid configuration")

var (
	logLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	logFormats = map[string]bool{"text": true, "json": true}
)

// Config holds the settings of one build.
type Config struct {
	SodacatDir       string
	OutputDir        string
	SummaryThreshold int
	// SearchDB is optional; when empty no search database is written.
	SearchDB  string
	LogLevel  string
	LogFormat string
}

// hclFile is the on-disk layout. Every attribute is optional and only
// overrides the defaults when present.
type hclFile struct {
	SodacatDir       *string `hcl:"sodacat_dir,optional"`
	OutputDir        *string `hcl:"output_dir,optional"`
	SummaryThreshold *int    `hcl:"summary_threshold,optional"`
	SearchDB         *string `hcl:"search_db,optional"`
	Log              *hclLog `hcl:"log,block"`
}

type hclLog struct {
	Level  *string `hcl:"level,optional"`
	Format *string `hcl:"format,optional"`
}

func Default() *Config {
	return &Config{
		OutputDir:        "data",
		SummaryThreshold: ingest.DefaultSummaryThreshold,
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// Load decodes the file at path over the defaults. Relative directories in
// the file are taken relative to the file's own directory.
func Load(path string) (*Config, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, diags)
	}

	var raw hclFile
	if diags := gohcl.DecodeBody(f.Body, nil, &raw); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, diags)
	}

	base := filepath.Dir(path)
	cfg := Default()
	if raw.SodacatDir != nil {
		cfg.SodacatDir = relativeTo(base, *raw.SodacatDir)
	}
	if raw.OutputDir != nil {
		cfg.OutputDir = relativeTo(base, *raw.OutputDir)
	}
	if raw.SummaryThreshold != nil {
		cfg.SummaryThreshold = *raw.SummaryThreshold
	}
	if raw.SearchDB != nil {
		cfg.SearchDB = relativeTo(base, *raw.SearchDB)
	}
	if raw.Log != nil {
		if raw.Log.Level != nil {
			cfg.LogLevel = *raw.Log.Level
		}
		if raw.Log.Format != nil {
			cfg.LogFormat = *raw.Log.Format
		}
	}
	return cfg, nil
}

// Validate checks the settings a build needs.
func (c *Config) Validate() error {
	switch {
	case c.SodacatDir == "":
		return fmt.Errorf("%w: sodaCat directory is required", ErrInvalid)
	case c.OutputDir == "":
		return fmt.Errorf("%w: output directory is required", ErrInvalid)
	case c.SummaryThreshold <= 0:
		return fmt.Errorf("%w: summary threshold must be positive, got %d", ErrInvalid, c.SummaryThreshold)
	case !logLevels[c.LogLevel]:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalid, c.LogLevel)
	case !logFormats[c.LogFormat]:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalid, c.LogFormat)
	}
	return nil
}

func relativeTo(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
