// Package engine recodes questionnaire rows into indicator rows.
//
// An Engine is built once from a rule table. It resolves the prerequisite order up
// front, then evaluates rows independently and in parallel. It holds no mutable
// state and is safe for concurrent use.
package engine

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/leapstack-labs/crossva/internal/plan"
	"github.com/leapstack-labs/crossva/pkg/core"
)

// PrerequisitePolicy decides the outcome of a rule whose prerequisite is NA.
type PrerequisitePolicy string

// Prerequisite policies.
const (
	// PrerequisiteFalse treats any prerequisite that is not True as False.
	PrerequisiteFalse PrerequisitePolicy = "false"
	// PrerequisiteNA propagates a missing prerequisite as NA.
	PrerequisiteNA PrerequisitePolicy = "na"
)

// MissingSourcePolicy decides what happens when a rule's source column is absent
// from the input table.
type MissingSourcePolicy string

// Missing source policies.
const (
	// MissingSourcesError fails the run before any row is processed.
	MissingSourcesError MissingSourcePolicy = "error"
	// MissingSourcesNA reads every cell of an absent source as NA.
	MissingSourcesNA MissingSourcePolicy = "na"
)

// Options configures an Engine.
type Options struct {
	// Workers bounds row-level parallelism. Zero or less means GOMAXPROCS.
	Workers int
	// PrerequisiteNA defaults to PrerequisiteFalse.
	PrerequisiteNA PrerequisitePolicy
	// MissingSources defaults to MissingSourcesError.
	MissingSources MissingSourcePolicy
	// IDColumn names the input column copied to the output ID column.
	// Empty means 1-based row numbers.
	IDColumn string
	// Select restricts evaluation to these output columns and their prerequisites.
	Select []string
	// Logger is optional; nil discards logs.
	Logger *slog.Logger
}

// Validate checks the policy values.
func (o Options) Validate() error {
	switch o.PrerequisiteNA {
	case "", PrerequisiteFalse, PrerequisiteNA:
	default:
		return fmt.Errorf("invalid prerequisite policy %q (want %q or %q)", o.PrerequisiteNA, PrerequisiteFalse, PrerequisiteNA)
	}
	switch o.MissingSources {
	case "", MissingSourcesError, MissingSourcesNA:
	default:
		return fmt.Errorf("invalid missing source policy %q (want %q or %q)", o.MissingSources, MissingSourcesError, MissingSourcesNA)
	}
	return nil
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.PrerequisiteNA == "" {
		o.PrerequisiteNA = PrerequisiteFalse
	}
	if o.MissingSources == "" {
		o.MissingSources = MissingSourcesError
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Engine evaluates a resolved rule table against input rows.
type Engine struct {
	plan    *plan.Plan
	opts    Options
	logger  *slog.Logger
	sources []string
}

// New resolves the evaluation order of table and returns an Engine.
// Configuration errors (undefined prerequisites, cycles) are returned here, before
// any row is seen.
func New(table *core.RuleTable, opts Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	p, err := plan.Resolve(table)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve rule order: %w", err)
	}
	if len(opts.Select) > 0 {
		p, err = p.Select(opts.Select)
		if err != nil {
			return nil, err
		}
	}

	var sources []string
	seen := make(map[string]bool)
	for _, g := range p.Order() {
		for _, s := range g.Sources() {
			if !seen[s] {
				seen[s] = true
				sources = append(sources, s)
			}
		}
	}

	opts.Logger.Debug("engine ready",
		"columns", p.Len(),
		"rules", table.RuleCount(),
		"sources", len(sources),
		"levels", len(p.Levels()),
		"workers", opts.Workers,
	)

	return &Engine{plan: p, opts: opts, logger: opts.Logger, sources: sources}, nil
}

// Plan returns the resolved evaluation plan.
func (e *Engine) Plan() *plan.Plan { return e.plan }

// Columns returns the output columns in configuration order.
func (e *Engine) Columns() []string { return e.plan.OutputColumns() }

// Sources returns the source ids the engine reads, in first-use order.
func (e *Engine) Sources() []string { return e.sources }

// EvaluateRow computes every planned output column for one row keyed by source id.
// The returned errors are per-cell *core.TypeError values; the affected columns hold
// the value the fold produced.
func (e *Engine) EvaluateRow(row core.Row) (core.OutputRow, []error) {
	out := make(core.OutputRow, e.plan.Len())
	var errs []error
	for _, g := range e.plan.Order() {
		v, groupErrs := Apply(g, row, out, e.opts)
		out[g.Column] = v
		errs = append(errs, groupErrs...)
	}
	return out, errs
}
