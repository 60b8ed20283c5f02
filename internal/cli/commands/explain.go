package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/crossva/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewExplainCommand creates the explain command.
func NewExplainCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain [mapping] <column>",
		Short: "Explain how an output column is computed",
		Long: `Print the rules of one output column in plain English, together with the
columns it needs and the columns that need it.

A column is true when any of its rules is true, false when at least one rule
could be checked and none was true, and missing when no rule could be checked.`,
		Example: `  crossva explain mappings/2016WHOv151_to_InterVA5.csv FEMALE
  crossva explain --input-format 2012WHO --output-format InterVA4 ABDOMINAL`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(cmd, args)
		},
	}

	return cmd
}

func runExplain(cmd *cobra.Command, args []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	r := cmdCtx.Renderer

	column := args[len(args)-1]
	path, preset, err := mappingPath(cmdCtx.Cfg, args[:len(args)-1])
	if err != nil {
		return err
	}
	m, err := loadMapping(cmdCtx.Cfg, path, preset)
	if err != nil {
		return err
	}

	out, err := explainColumn(m, column)
	if err != nil {
		return err
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	default:
		renderExplain(r, out)
		return nil
	}
}

func explainColumn(m *loadedMapping, column string) (output.ExplainOutput, error) {
	g, ok := m.Table.Group(column)
	if !ok {
		return output.ExplainOutput{}, fmt.Errorf("column %q is not produced by %s", column, m.Name())
	}

	out := output.ExplainOutput{
		Column:        g.Column,
		Documentation: g.Documentation,
		Declared:      g.Declared(),
		Rules:         make([]output.ExplainRule, 0, len(g.Rules)),
		Upstream:      m.Plan.Upstream(g.Column),
		Downstream:    m.Plan.Dependents(g.Column),
	}
	for _, rule := range g.Rules {
		out.Rules = append(out.Rules, output.ExplainRule{
			Row:          rule.Row,
			Source:       rule.Source,
			Relationship: rule.Relationship.String(),
			Condition:    rule.Condition.Raw,
			Prerequisite: rule.Prerequisite,
			Text:         rule.Describe(),
		})
	}
	return out, nil
}

func renderExplain(r *output.Renderer, out output.ExplainOutput) {
	styles := r.Styles()
	markdown := r.EffectiveMode() == output.ModeMarkdown

	r.Header(1, out.Column)
	if out.Documentation != "" {
		r.Println(out.Documentation)
		r.Println("")
	}

	if out.Declared {
		r.Println(styles.Muted.Render("No rules: this column is always missing."))
	} else {
		r.Header(2, "Rules")
		for _, rule := range out.Rules {
			if markdown {
				r.Printf("- %s (row %d)\n", rule.Text, rule.Row)
				continue
			}
			r.Printf("  %s %s\n", styles.Muted.Render(fmt.Sprintf("%4d", rule.Row)), rule.Text)
		}
	}
	r.Println("")

	if len(out.Upstream) > 0 {
		r.KeyValue("Needs", strings.Join(out.Upstream, ", "))
	}
	if len(out.Downstream) > 0 {
		r.KeyValue("Needed by", strings.Join(out.Downstream, ", "))
	}
}
