package config

import (
	"context"
	"fmt"
	"io"
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
	"github.com/leapstack-labs/crossva/internal/table"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment variables read by LoadConfig.
// A double underscore separates nested keys: CROSSVA_RESULT_VALUES__NA.
const EnvPrefix = "CROSSVA_"

// ConfigFileNames are searched in the working directory when no file is given.
var ConfigFileNames = []string{"crossva.yaml", "crossva.yml"}

// loggerKey is used to store the logger in a context.
type loggerKey struct{}

// configKey is used to store the loaded config in a context.
type configKey struct{}

// flagKeys maps flag names to config keys. Flags not listed here are command
// arguments and never reach the config.
var flagKeys = map[string]string{
	"mapping":           "mapping",
	"input-format":      "input_format",
	"output-format":     "output_format",
	"mappings-dir":      "mappings_dir",
	"id-column":         "id_column",
	"preserve-na":       "preserve_na",
	"present":           "result_values.present",
	"absent":            "result_values.absent",
	"na-value":          "result_values.na",
	"na-values":         "na_values",
	"workers":           "workers",
	"normalize-strings": "normalize_strings",
	"prerequisite-na":   "prerequisite_na",
	"missing-sources":   "missing_sources",
	"sqlite":            "sqlite_path",
	"sqlite-table":      "sqlite_table",
	"state":             "state_path",
	"history":           "history",
	"verbose":           "verbose",
	"output":            "output",
}

// pathKeys are resolved against the project root unless absolute.
var pathKeys = []string{"mapping", "mappings_dir", "sqlite_path", "state_path"}

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
)

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
}

// defaults returns the lowest-precedence layer.
func defaults() map[string]any {
	return map[string]any{
		"input_format":          "",
		"output_format":         "",
		"mappings_dir":          DefaultMappingsDir,
		"preserve_na":           true,
		"result_values.present": table.DefaultResultValues.Present,
		"result_values.absent":  table.DefaultResultValues.Absent,
		"result_values.na":      table.DefaultResultValues.NA,
		"na_values":             table.DefaultNAValues,
		"workers":               0,
		"normalize_strings":     false,
		"prerequisite_na":       "false",
		"missing_sources":       "error",
		"sqlite_table":          table.DefaultSQLiteTable,
		"state_path":            DefaultStateFile,
		"history":               true,
		"verbose":               false,
		"output":                DefaultOutput,
	}
}

// findConfigFile returns the explicit path, or the first default config file
// present in dir.
func findConfigFile(explicit, dir string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range ConfigFileNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
//
// Relative paths from flags are taken relative to the working directory; those
// from the config file, env or defaults relative to the config file's directory.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	projectRoot := cwd

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	configFileUsed = findConfigFile(cfgFile, cwd)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
		if abs, err := filepath.Abs(configFileUsed); err == nil {
			projectRoot = filepath.Dir(abs)
		}
	}

	// 3. Environment: CROSSVA_ID_COLUMN -> id_column, CROSSVA_RESULT_VALUES__NA -> result_values.na
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// Paths given as flags are already relative to the working directory.
	flagPaths := make(map[string]string)

	// 4. Flags
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			val := posflag.FlagVal(flags, f)
			if contains(pathKeys, key) {
				if s, ok := val.(string); ok && s != "" {
					if abs, err := filepath.Abs(s); err == nil {
						flagPaths[key] = abs
					}
				}
			}
			return key, val
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// 6. Resolve relative paths
	cfg.ProjectRoot = projectRoot
	resolve := func(key string, p *string) {
		if abs, ok := flagPaths[key]; ok {
			*p = abs
			return
		}
		*p = resolvePathRelativeTo(*p, projectRoot)
	}
	resolve("mapping", &cfg.Mapping)
	resolve("mappings_dir", &cfg.MappingsDir)
	resolve("sqlite_path", &cfg.SQLitePath)
	resolve("state_path", &cfg.StatePath)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty, already absolute, or :memory:.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// NewLogger returns a text logger writing to w, at debug level when verbose.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

// WithConfig returns a copy of ctx carrying cfg.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext returns the config stored by WithConfig, or nil.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(configKey{}).(*Config)
	return cfg
}
