// Package plan resolves the evaluation order of a rule table's output columns.
//
// A column that names another column as a prerequisite must be computed after it.
// Resolution happens once per table; the resulting Plan is immutable and shared by
// every row of a run.
package plan

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/crossva/internal/dag"
	"github.com/leapstack-labs/crossva/pkg/core"
)

// Plan is a resolved evaluation order for a rule table.
type Plan struct {
	table  *core.RuleTable
	graph  *dag.Graph
	order  []*core.RuleGroup
	levels [][]string
}

// Resolve builds the prerequisite graph for table and orders its groups.
//
// Ties are broken by configuration order. Every undefined prerequisite is reported;
// a cycle (a column naming itself included) fails with a ConfigError listing the
// participating columns.
func Resolve(table *core.RuleTable) (*Plan, error) {
	g := dag.NewGraph()
	for _, col := range table.Columns() {
		g.AddNode(col)
	}

	var errs []error
	for _, grp := range table.Groups() {
		for _, r := range grp.Rules {
			if !r.HasPrerequisite() {
				continue
			}
			if !g.HasNode(r.Prerequisite) {
				errs = append(errs, &core.ConfigError{
					Row:    r.Row,
					Column: grp.Column,
					Field:  "Prerequisite",
					Msg:    fmt.Sprintf("undefined prerequisite %q", r.Prerequisite),
				})
				continue
			}
			if err := g.AddEdge(r.Prerequisite, grp.Column); err != nil {
				return nil, err
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return fromGraph(table, g)
}

func fromGraph(table *core.RuleTable, g *dag.Graph) (*Plan, error) {
	order, err := g.TopologicalSort()
	if err != nil {
		var cycle *dag.CycleError
		if errors.As(err, &cycle) {
			return nil, &core.ConfigError{
				Column: first(cycle.Path),
				Field:  "Prerequisite",
				Msg:    "prerequisite cycle: " + strings.Join(cycle.Path, " -> "),
			}
		}
		return nil, err
	}

	levels, err := g.ExecutionLevels()
	if err != nil {
		return nil, err
	}

	p := &Plan{
		table:  table,
		graph:  g,
		order:  make([]*core.RuleGroup, 0, len(order)),
		levels: levels,
	}
	for _, col := range order {
		grp, _ := table.Group(col)
		p.order = append(p.order, grp)
	}
	return p, nil
}

// Table returns the rule table the plan was resolved from.
func (p *Plan) Table() *core.RuleTable { return p.table }

// Order returns the groups in evaluation order.
func (p *Plan) Order() []*core.RuleGroup { return p.order }

// Columns returns the planned output columns in evaluation order.
func (p *Plan) Columns() []string {
	out := make([]string, len(p.order))
	for i, g := range p.order {
		out[i] = g.Column
	}
	return out
}

// OutputColumns returns the planned output columns in configuration order.
func (p *Plan) OutputColumns() []string {
	return p.graph.Nodes()
}

// Levels groups columns by prerequisite depth. Level 0 has no prerequisites.
func (p *Plan) Levels() [][]string { return p.levels }

// Len returns the number of planned columns.
func (p *Plan) Len() int { return len(p.order) }

// Upstream returns the columns that column transitively depends on, in configuration order.
func (p *Plan) Upstream(column string) []string {
	return p.graph.Upstream(column)
}

// Prerequisites returns the columns column directly depends on.
func (p *Plan) Prerequisites(column string) []string { return p.graph.Parents(column) }

// Children returns the columns that directly depend on column.
func (p *Plan) Children(column string) []string { return p.graph.Children(column) }

// EdgeCount returns the number of prerequisite links.
func (p *Plan) EdgeCount() int { return p.graph.EdgeCount() }

// Dependents returns the columns that transitively depend on column, in configuration order.
func (p *Plan) Dependents(column string) []string {
	return p.graph.Downstream(column)
}

// Select returns a plan restricted to the named columns and all of their prerequisites.
// Unknown names are an error.
func (p *Plan) Select(names []string) (*Plan, error) {
	var unknown []string
	for _, n := range names {
		if !p.graph.HasNode(n) {
			unknown = append(unknown, n)
		}
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown output column(s): %s", strings.Join(unknown, ", "))
	}

	keep := append(p.graph.Upstream(names...), names...)
	return fromGraph(p.table, p.graph.Subgraph(keep))
}

func first(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}
