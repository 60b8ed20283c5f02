package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/crossva/internal/cli/output"
	"github.com/leapstack-labs/crossva/internal/config"
	"github.com/leapstack-labs/crossva/internal/plan"
	"github.com/leapstack-labs/crossva/internal/presets"
	"github.com/leapstack-labs/crossva/internal/rules"
	"github.com/leapstack-labs/crossva/internal/state"
	"github.com/leapstack-labs/crossva/internal/table"
	"github.com/leapstack-labs/crossva/pkg/core"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext builds the context from the config and logger stored by the
// root command. Commands run without the root load the config themselves.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cfg, err := getConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := config.GetLogger(cmd.Context())
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputMode))

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}, nil
}

func getConfig(cmd *cobra.Command) (*config.Config, error) {
	if cmd.Context() != nil {
		if cfg := config.FromContext(cmd.Context()); cfg != nil {
			return cfg, nil
		}
	}
	return config.LoadConfig("", cmd.Flags())
}

// openStore opens the run history database, creating its directory.
func openStore(cfg *config.Config, logger *slog.Logger) (*state.SQLiteStore, error) {
	if dir := filepath.Dir(cfg.StatePath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	store := state.NewSQLiteStore(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, fmt.Errorf("failed to open run history: %w", err)
	}
	return store, nil
}

// loadedMapping is a built rule table and where it came from.
type loadedMapping struct {
	Path        string
	Preset      *presets.Preset
	Table       *core.RuleTable
	Plan        *plan.Plan
	Diagnostics core.Diagnostics
}

// Name identifies the mapping in messages and run history.
func (m *loadedMapping) Name() string {
	if m.Preset != nil {
		return m.Preset.Input + "_to_" + m.Preset.Output
	}
	return filepath.Base(m.Path)
}

// mappingPath resolves the mapping for commands that work without input data:
// an explicit argument, then the mapping setting, then the input/output preset.
func mappingPath(cfg *config.Config, args []string) (string, *presets.Preset, error) {
	if len(args) > 0 {
		return args[0], nil, nil
	}
	if cfg.Mapping != "" {
		return cfg.Mapping, nil, nil
	}
	if cfg.OutputFormat == "" {
		return "", nil, errors.New("no mapping given: pass a mapping file, --mapping, or --input-format with --output-format")
	}
	if cfg.InputFormat == "" || cfg.InputFormat == presets.AutoInput {
		return "", nil, fmt.Errorf("input format %q needs input data; pass --input-format", presets.AutoInput)
	}
	return presetPath(cfg, cfg.InputFormat, cfg.OutputFormat)
}

func presetPath(cfg *config.Config, input, out string) (string, *presets.Preset, error) {
	p, err := presets.Lookup(input, out)
	if err != nil {
		return "", nil, err
	}
	path, err := p.MappingPath(cfg.MappingsDir)
	if err != nil {
		return "", nil, err
	}
	return path, &p, nil
}

// loadMapping reads and builds a mapping table and resolves its evaluation order.
// Diagnostics are returned even when building fails.
func loadMapping(cfg *config.Config, path string, preset *presets.Preset) (*loadedMapping, error) {
	m := &loadedMapping{Path: path, Preset: preset}

	entries, diags, err := table.ReadMappingFile(path)
	m.Diagnostics = append(m.Diagnostics, diags...)
	if err != nil {
		return m, err
	}

	tbl, diags, err := rules.Build(entries, rules.Options{NormalizeStrings: cfg.NormalizeStrings})
	m.Diagnostics = append(m.Diagnostics, diags...)
	if err != nil {
		return m, fmt.Errorf("invalid mapping %s: %w", path, err)
	}
	m.Table = tbl

	p, err := plan.Resolve(tbl)
	if err != nil {
		return m, fmt.Errorf("invalid mapping %s: %w", path, err)
	}
	m.Plan = p
	return m, nil
}
