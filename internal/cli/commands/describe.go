package commands

import (
	"fmt"
	"strconv"

	"github.com/leapstack-labs/crossva/internal/cli/output"
	"github.com/leapstack-labs/crossva/pkg/core"
	"github.com/spf13/cobra"
)

// statExamples is how many example values each statistic lists.
const statExamples = 5

// NewDescribeCommand creates the describe command.
func NewDescribeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe [mapping]",
		Short: "Summarize a mapping table",
		Long: `Print statistics about a mapping table: how many output columns it produces,
how many source columns it reads, and which relationships, conditions and
prerequisites it uses.`,
		Example: `  crossva describe mappings/2012WHO_to_InSilicoVA.csv
  crossva describe --input-format 2016WHOv151 --output-format InterVA5 -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDescribe(cmd, args)
		},
	}
	return cmd
}

func runDescribe(cmd *cobra.Command, args []string) error {
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

	out := describeMapping(path, m.Table)
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	default:
		renderDescribe(r, out)
		return nil
	}
}

// distinct collects values in first-appearance order.
type distinct struct {
	seen   map[string]bool
	values []string
}

func (d *distinct) add(v string) {
	if v == "" || d.seen[v] {
		return
	}
	if d.seen == nil {
		d.seen = make(map[string]bool)
	}
	d.seen[v] = true
	d.values = append(d.values, v)
}

func describeMapping(path string, tbl *core.RuleTable) output.DescribeOutput {
	var columns, sources, relationships, conditions, prereqs distinct
	out := output.DescribeOutput{
		Mapping:       path,
		Relationships: make(map[string]int),
	}

	for _, g := range tbl.Groups() {
		columns.add(g.Column)
		if g.Declared() {
			out.Declared = append(out.Declared, g.Column)
		}
		for _, rule := range g.Rules {
			sources.add(rule.Source)
			relationships.add(rule.Relationship.String())
			conditions.add(rule.Condition.Raw)
			prereqs.add(rule.Prerequisite)
			out.Relationships[rule.Relationship.String()]++
		}
	}

	stat := func(field, label string, d distinct) output.StatLine {
		examples := d.values
		if len(examples) > statExamples {
			examples = examples[:statExamples]
		}
		if examples == nil {
			examples = []string{}
		}
		return output.StatLine{Field: field, Label: label, Count: len(d.values), Examples: examples}
	}
	out.Stats = []output.StatLine{
		stat("column", "new columns produced", columns),
		stat("source", "source columns required", sources),
		stat("relationship", "relationships invoked", relationships),
		stat("condition", "conditions listed", conditions),
		stat("prerequisite", "prerequisites checked", prereqs),
	}
	return out
}

func renderDescribe(r *output.Renderer, out output.DescribeOutput) {
	styles := r.Styles()

	r.Header(1, "Mapping Stats")
	for _, s := range out.Stats {
		line := fmt.Sprintf("%d %s", s.Count, s.Label)
		if len(s.Examples) > 0 {
			more := ""
			if s.Count > len(s.Examples) {
				more = ", ..."
			}
			line += " " + styles.Muted.Render(fmt.Sprintf("(%s%s)", quoteJoin(s.Examples), more))
		}
		if r.EffectiveMode() == output.ModeMarkdown {
			r.Println("- " + line)
		} else {
			r.Println("  " + line)
		}
	}
	r.Println("")

	var rows [][]string
	for _, rel := range core.Relationships() {
		if n := out.Relationships[rel.String()]; n > 0 {
			rows = append(rows, []string{rel.String(), rel.Phrase(), strconv.Itoa(n)})
		}
	}
	if len(rows) > 0 {
		r.Header(2, "Rules by Relationship")
		r.Table([]string{"Relationship", "Meaning", "Rules"}, rows)
	}

	if len(out.Declared) > 0 {
		r.Println("")
		r.Header(2, "Declared Columns")
		r.Println(styles.Muted.Render(fmt.Sprintf("%d columns are listed without rules and are always missing:", len(out.Declared))))
		r.Println(core.ReportList(out.Declared, 10))
	}
}

func quoteJoin(values []string) string {
	s := ""
	for i, v := range values {
		if i > 0 {
			s += ", "
		}
		s += strconv.Quote(v)
	}
	return s
}
