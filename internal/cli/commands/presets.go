package commands

import (
	"fmt"
	"strconv"

	"github.com/leapstack-labs/crossva/internal/cli/output"
	"github.com/leapstack-labs/crossva/internal/presets"
	"github.com/spf13/cobra"
)

// PresetsOptions holds options for the presets command.
type PresetsOptions struct {
	All bool // Include pairs without a mapping file
}

// NewPresetsCommand creates the presets command.
func NewPresetsCommand() *cobra.Command {
	opts := &PresetsOptions{}
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "List supported input and output formats",
		Long: `List every input/output format pair and the mapping file it uses.

Mapping files are looked up in the mappings directory as
<input>_to_<output>.csv (or .yaml). InterVA4 reuses the InSilicoVA mapping.`,
		Example: `  crossva presets
  crossva presets --all --mappings-dir ./mappings`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPresets(cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.All, "all", "a", false, "Include pairs without a mapping file")

	return cmd
}

func runPresets(cmd *cobra.Command, opts *PresetsOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	r := cmdCtx.Renderer

	infos := presetInfos(cmdCtx.Cfg.MappingsDir, opts.All)
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(infos)
	}

	styles := r.Styles()
	r.Header(1, "Presets")
	if len(infos) == 0 {
		r.Muted(fmt.Sprintf("No mapping files found in %s.", cmdCtx.Cfg.MappingsDir))
		return nil
	}

	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		status := strconv.FormatBool(info.Available)
		if r.EffectiveMode() != output.ModeMarkdown {
			if info.Available {
				status = styles.StatusIcon("success")
			} else {
				status = styles.StatusIcon("skipped")
			}
		}
		rows = append(rows, []string{info.Input, info.Output, info.Mapping, status})
	}
	r.Table([]string{"Input", "Output", "Mapping", "Available"}, rows)
	return nil
}

func presetInfos(dir string, all bool) []output.PresetInfo {
	infos := []output.PresetInfo{}
	for _, in := range presets.Inputs {
		for _, o := range presets.Outputs {
			p, err := presets.Lookup(in, o)
			if err != nil {
				continue
			}
			info := output.PresetInfo{Input: in, Output: o, Mapping: p.FileStem() + ".csv"}
			if path, err := p.MappingPath(dir); err == nil {
				info.Mapping = path
				info.Available = true
			}
			if info.Available || all {
				infos = append(infos, info)
			}
		}
	}
	return infos
}
