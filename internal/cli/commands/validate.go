package commands

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/leapstack-labs/crossva/internal/cli/output"
	"github.com/leapstack-labs/crossva/pkg/core"
	"github.com/spf13/cobra"
)

// ValidateOptions holds options for the validate command.
type ValidateOptions struct {
	Level string // Lowest severity shown: error, warning, info, hint
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	opts := &ValidateOptions{}
	cmd := &cobra.Command{
		Use:   "validate [mapping]",
		Short: "Check a mapping table",
		Long: `Check a mapping table without reading any data.

Whitespace, letter case and duplicate rows are fixed in place and reported as
warnings. Malformed rules, undefined prerequisites and prerequisite cycles are
errors; the command exits non-zero when any is found.`,
		Example: `  # Validate a mapping file
  crossva validate mappings/2016WHOv151_to_InterVA5.csv

  # Validate the mapping of a preset, showing passed checks too
  crossva validate --input-format 2012WHO --output-format InterVA4 --level hint`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Level, "level", "warning", "Lowest severity shown: error, warning, info, hint")
	_ = cmd.RegisterFlagCompletionFunc("level", fixedCompletion("error", "warning", "info", "hint"))

	return cmd
}

func runValidate(cmd *cobra.Command, args []string, opts *ValidateOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	r := cmdCtx.Renderer

	level, ok := core.ParseSeverity(opts.Level)
	if !ok {
		return fmt.Errorf("invalid level %q: expected error, warning, info or hint", opts.Level)
	}

	path, preset, err := mappingPath(cmdCtx.Cfg, args)
	if err != nil {
		return err
	}
	m, loadErr := loadMapping(cmdCtx.Cfg, path, preset)

	out := output.ValidateOutput{
		Mapping:     path,
		Valid:       loadErr == nil,
		Diagnostics: m.Diagnostics.Filter(level),
	}
	if out.Diagnostics == nil {
		out.Diagnostics = core.Diagnostics{}
	}
	if m.Table != nil {
		out.Columns = m.Table.Len()
		out.Rules = m.Table.RuleCount()
	}
	for _, e := range flattenErrors(loadErr) {
		out.Errors = append(out.Errors, e.Error())
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		if err := r.JSON(out); err != nil {
			return err
		}
	default:
		renderValidation(r, out)
	}

	if loadErr != nil {
		return fmt.Errorf("mapping %s is invalid (%d errors)", path, len(out.Errors))
	}
	return nil
}

func renderValidation(r *output.Renderer, out output.ValidateOutput) {
	styles := r.Styles()
	markdown := r.EffectiveMode() == output.ModeMarkdown

	r.Header(1, "Validating "+out.Mapping)

	for _, sev := range []core.Severity{core.SeverityError, core.SeverityWarning, core.SeverityInfo, core.SeverityHint} {
		var group core.Diagnostics
		for _, d := range out.Diagnostics {
			if d.Severity == sev {
				group = append(group, d)
			}
		}
		if len(group) == 0 {
			continue
		}

		r.Header(2, output.Title(sev.String()+"s"))
		style := severityStyle(styles, sev)
		for _, d := range group {
			if markdown {
				r.Printf("- `%s` %s\n", d.Check, d.Message)
				continue
			}
			r.Printf("  %s %s %s\n", style.Render(sev.Bullet()), d.Message, styles.Muted.Render("("+d.Check+")"))
		}
		r.Println("")
	}

	if len(out.Errors) > 0 {
		r.Header(2, "Invalid Rules")
		for _, e := range out.Errors {
			if markdown {
				r.Printf("- %s\n", e)
				continue
			}
			r.Printf("  %s %s\n", styles.Error.Render(core.SeverityError.Bullet()), e)
		}
		r.Println("")
	}

	if out.Valid {
		r.Success(fmt.Sprintf("%d columns, %d rules", out.Columns, out.Rules))
	} else {
		r.StatusLine(fmt.Sprintf("%d errors", len(out.Errors)), "failed", "")
	}
}

func severityStyle(styles *output.Styles, sev core.Severity) lipgloss.Style {
	switch sev {
	case core.SeverityError:
		return styles.Error
	case core.SeverityWarning:
		return styles.Warning
	case core.SeverityInfo:
		return styles.Info
	default:
		return styles.Muted
	}
}

// flattenErrors splits joined errors into their parts. A wrapped join is
// unwrapped; any other error is kept whole.
func flattenErrors(err error) []error {
	if err == nil {
		return nil
	}
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		var out []error
		for _, e := range multi.Unwrap() {
			out = append(out, flattenErrors(e)...)
		}
		return out
	}
	if inner := errors.Unwrap(err); inner != nil {
		if _, ok := inner.(interface{ Unwrap() []error }); ok {
			return flattenErrors(inner)
		}
	}
	return []error{err}
}
