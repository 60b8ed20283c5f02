package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/crossva/internal/cli/output"
	"github.com/leapstack-labs/crossva/internal/plan"
	"github.com/spf13/cobra"
)

// NewPlanCommand creates the plan command.
func NewPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan [mapping]",
		Short: "Show the evaluation order of output columns",
		Long: `Display the prerequisite graph of a mapping table.

Columns are grouped by level: a column is computed after every column it
names as a prerequisite. Columns on the same level do not depend on each
other.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format (agent-friendly)`,
		Example: `  # Show the plan of a mapping file
  crossva plan mappings/2016WHOv151_to_InterVA5.csv

  # Show the plan of a preset as JSON
  crossva plan --input-format 2012WHO --output-format InSilicoVA -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, args)
		},
	}

	return cmd
}

func runPlan(cmd *cobra.Command, args []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	r := cmdCtx.Renderer

	path, preset, err := mappingPath(cmdCtx.Cfg, args)
	if err != nil {
		return err
	}
	m, err := loadMapping(cmdCtx.Cfg, path, preset)
	if err != nil {
		return err
	}

	out := planOutput(path, m.Plan)
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		planMarkdown(r, out)
	default:
		planText(r, out)
	}
	return nil
}

func planOutput(path string, p *plan.Plan) output.PlanOutput {
	out := output.PlanOutput{
		Mapping:      path,
		Levels:       make([]output.PlanLevel, 0, len(p.Levels())),
		TotalColumns: p.Len(),
		TotalEdges:   p.EdgeCount(),
	}
	for i, level := range p.Levels() {
		pl := output.PlanLevel{Level: i, Columns: make([]output.PlanNode, 0, len(level))}
		for _, col := range level {
			node := output.PlanNode{
				Column:    col,
				DependsOn: p.Prerequisites(col),
				UsedBy:    p.Children(col),
			}
			if g, ok := p.Table().Group(col); ok {
				node.Rules = len(g.Rules)
			}
			pl.Columns = append(pl.Columns, node)
		}
		out.Levels = append(out.Levels, pl)
	}
	return out
}

func planText(r *output.Renderer, out output.PlanOutput) {
	styles := r.Styles()

	r.Header(1, "Evaluation Plan")

	for _, level := range out.Levels {
		r.Println(styles.Header2.Render(fmt.Sprintf("Level %d:", level.Level)))
		for _, node := range level.Columns {
			r.Printf("  %s %s\n", styles.Column.Render(node.Column), styles.Muted.Render(rulesLabel(node.Rules)))
			if len(node.DependsOn) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("depends on:"), strings.Join(node.DependsOn, ", "))
			}
			if len(node.UsedBy) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("used by:"), strings.Join(node.UsedBy, ", "))
			}
		}
		r.Println("")
	}

	r.Println(styles.Muted.Render(fmt.Sprintf("Total: %d columns, %d dependencies", out.TotalColumns, out.TotalEdges)))
}

func planMarkdown(r *output.Renderer, out output.PlanOutput) {
	r.Println(output.FormatHeader(1, "Evaluation Plan"))
	r.Println("")

	for _, level := range out.Levels {
		name := fmt.Sprintf("Level %d", level.Level)
		if level.Level == 0 {
			name = "Level 0 (No Prerequisites)"
		}
		r.Println(output.FormatHeader(2, name))

		for _, node := range level.Columns {
			r.Printf("- %s %s\n", node.Column, rulesLabel(node.Rules))
			if len(node.DependsOn) > 0 {
				r.Printf("  - depends on: %s\n", strings.Join(node.DependsOn, ", "))
			}
			if len(node.UsedBy) > 0 {
				r.Printf("  - used by: %s\n", strings.Join(node.UsedBy, ", "))
			}
		}
		r.Println("")
	}

	r.Println(output.FormatHeader(2, "Summary"))
	r.Println(output.FormatKeyValue("Total Columns", fmt.Sprintf("%d", out.TotalColumns)))
	r.Println(output.FormatKeyValue("Total Dependencies", fmt.Sprintf("%d", out.TotalEdges)))
}

func rulesLabel(n int) string {
	switch n {
	case 0:
		return "(declared)"
	case 1:
		return "(1 rule)"
	default:
		return fmt.Sprintf("(%d rules)", n)
	}
}
