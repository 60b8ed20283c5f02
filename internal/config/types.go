// Package config loads crossva settings from defaults, crossva.yaml, CROSSVA_
// environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/crossva/internal/engine"
	"github.com/leapstack-labs/crossva/internal/presets"
	"github.com/leapstack-labs/crossva/internal/table"
)

// Default configuration values.
const (
	DefaultMappingsDir = "mappings"
	DefaultStateFile   = ".crossva/state.db"
	DefaultOutput      = "auto"
)

// Output modes accepted by the output key.
var outputModes = []string{"auto", "text", "markdown", "json"}

// Config holds all crossva settings.
type Config struct {
	// Mapping is an explicit mapping table. It takes precedence over the
	// input_format/output_format preset.
	Mapping string `koanf:"mapping"`
	// InputFormat is a supported questionnaire version or "auto".
	InputFormat string `koanf:"input_format"`
	// OutputFormat is the target algorithm.
	OutputFormat string `koanf:"output_format"`
	MappingsDir  string `koanf:"mappings_dir"`
	IDColumn     string `koanf:"id_column"`

	PreserveNA   bool               `koanf:"preserve_na"`
	ResultValues table.ResultValues `koanf:"result_values"`
	NAValues     []string           `koanf:"na_values"`

	Workers          int    `koanf:"workers"`
	NormalizeStrings bool   `koanf:"normalize_strings"`
	PrerequisiteNA   string `koanf:"prerequisite_na"`
	MissingSources   string `koanf:"missing_sources"`

	SQLitePath  string `koanf:"sqlite_path"`
	SQLiteTable string `koanf:"sqlite_table"`

	StatePath string `koanf:"state_path"`
	History   bool   `koanf:"history"`

	Verbose    bool   `koanf:"verbose"`
	OutputMode string `koanf:"output"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// Validate checks enumerated values and cross-field constraints.
func (c *Config) Validate() error {
	var errs []error

	if c.InputFormat != "" && c.InputFormat != presets.AutoInput && !presets.IsInput(c.InputFormat) {
		errs = append(errs, fmt.Errorf("input_format: expected %s or one of %s, got %q",
			presets.AutoInput, strings.Join(presets.Inputs, ", "), c.InputFormat))
	}
	if c.OutputFormat != "" && !presets.IsOutput(c.OutputFormat) {
		errs = append(errs, fmt.Errorf("output_format: expected one of %s, got %q",
			strings.Join(presets.Outputs, ", "), c.OutputFormat))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers: must not be negative, got %d", c.Workers))
	}
	if err := c.EngineOptions().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.SQLitePath != "" && c.SQLiteTable == "" {
		errs = append(errs, errors.New("sqlite_table is required when sqlite_path is set"))
	}
	if !contains(outputModes, c.OutputMode) {
		errs = append(errs, fmt.Errorf("output: expected one of %s, got %q",
			strings.Join(outputModes, ", "), c.OutputMode))
	}
	if c.ResultValues.Present == c.ResultValues.Absent {
		errs = append(errs, fmt.Errorf("result_values: present and absent are both %q", c.ResultValues.Present))
	}

	return errors.Join(errs...)
}

// HasPreset reports whether the mapping comes from input_format/output_format
// rather than an explicit mapping file.
func (c *Config) HasPreset() bool {
	return c.Mapping == "" && c.OutputFormat != ""
}

// EngineOptions returns the engine options described by the config.
func (c *Config) EngineOptions() engine.Options {
	return engine.Options{
		Workers:        c.Workers,
		PrerequisiteNA: engine.PrerequisitePolicy(c.PrerequisiteNA),
		MissingSources: engine.MissingSourcePolicy(c.MissingSources),
		IDColumn:       c.IDColumn,
	}
}

// ReadOptions returns the input reading options.
func (c *Config) ReadOptions() table.ReadOptions {
	return table.ReadOptions{NAValues: c.NAValues, Normalize: c.NormalizeStrings}
}

// Format returns the output format with the configured preserve_na.
func (c *Config) Format() table.Format {
	return table.Format{Values: c.ResultValues, PreserveNA: c.PreserveNA}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
