package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/crossva/internal/table"
	"github.com/leapstack-labs/crossva/pkg/core"
)

// ColumnCounts tallies the values of one output column.
type ColumnCounts struct {
	True  int `json:"true"`
	False int `json:"false"`
	NA    int `json:"na"`
}

// Report summarizes one Transform call.
type Report struct {
	Rows    int `json:"rows"`
	Columns int `json:"columns"`
	// MissingSources lists source ids absent from the input that were read as NA.
	MissingSources []string `json:"missing_sources,omitempty"`
	// TypeErrors lists every non-numeric value met by a numeric rule, in row order.
	TypeErrors []*core.TypeError        `json:"-"`
	Counts     map[string]*ColumnCounts `json:"counts"`
	Duration   time.Duration            `json:"duration"`
}

// TypeErrorCount returns the number of recorded type errors.
func (r *Report) TypeErrorCount() int { return len(r.TypeErrors) }

// TypeErrorSummary groups type errors by output column and source.
// Keys are "COLUMN <- source".
func (r *Report) TypeErrorSummary() map[string]int {
	out := make(map[string]int)
	for _, te := range r.TypeErrors {
		out[te.Column+" <- "+te.Source]++
	}
	return out
}

// Transform recodes every row of in.
//
// Source columns are bound once. When a referenced source is absent the call fails
// with *core.MissingSourceColumnError before any row is processed, unless the
// engine was built with MissingSourcesNA. Rows are evaluated on a bounded worker
// pool; output rows keep input order and output columns keep configuration order.
// Cancelling ctx aborts the batch.
func (e *Engine) Transform(ctx context.Context, in *table.Input) (*table.Output, *Report, error) {
	start := time.Now()

	binding, err := table.Bind(in.Columns, e.sources)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to bind source columns: %w", err)
	}

	report := &Report{
		Rows:    in.Len(),
		Columns: e.plan.Len(),
		Counts:  make(map[string]*ColumnCounts, e.plan.Len()),
	}

	if len(binding.Missing) > 0 {
		missErr := e.missingError(binding.Missing)
		if e.opts.MissingSources != MissingSourcesNA {
			return nil, nil, missErr
		}
		e.logger.Warn("source columns missing from input, reading as NA",
			"count", len(binding.Missing), "sources", binding.Missing)
		report.MissingSources = binding.Missing
	}

	ids, err := in.IDs(e.opts.IDColumn)
	if err != nil {
		return nil, nil, err
	}

	rows := make([]core.OutputRow, in.Len())
	rowErrs := make([][]error, in.Len())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i := range in.Rows {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, errs := e.EvaluateRow(binding.Row(in.Rows[i]))
			for _, err := range errs {
				var te *core.TypeError
				if errors.As(err, &te) {
					te.Row = i + 1
				}
			}
			rows[i] = out
			rowErrs[i] = errs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("transform aborted: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("transform aborted: %w", err)
	}

	var other []error
	for _, errs := range rowErrs {
		for _, err := range errs {
			var te *core.TypeError
			if errors.As(err, &te) {
				report.TypeErrors = append(report.TypeErrors, te)
				continue
			}
			other = append(other, err)
		}
	}
	if len(other) > 0 {
		return nil, nil, errors.Join(other...)
	}

	columns := e.Columns()
	for _, col := range columns {
		report.Counts[col] = &ColumnCounts{}
	}
	for _, row := range rows {
		for _, col := range columns {
			c := report.Counts[col]
			switch row.Get(col) {
			case core.True:
				c.True++
			case core.False:
				c.False++
			default:
				c.NA++
			}
		}
	}

	e.logTypeErrors(report)

	report.Duration = time.Since(start)
	e.logger.Info("transform complete",
		"rows", report.Rows,
		"columns", report.Columns,
		"type_errors", report.TypeErrorCount(),
		"duration_ms", report.Duration.Milliseconds(),
	)

	return &table.Output{Columns: columns, IDs: ids, Rows: rows}, report, nil
}

func (e *Engine) missingError(missing []string) *core.MissingSourceColumnError {
	affected := make(map[string][]string, len(missing))
	want := make(map[string]bool, len(missing))
	for _, s := range missing {
		want[s] = true
	}
	for _, g := range e.plan.Order() {
		for _, s := range g.Sources() {
			if want[s] {
				affected[s] = append(affected[s], g.Column)
			}
		}
	}
	return &core.MissingSourceColumnError{Sources: missing, Affected: affected}
}

func (e *Engine) logTypeErrors(r *Report) {
	if len(r.TypeErrors) == 0 {
		return
	}
	summary := r.TypeErrorSummary()
	keys := make([]string, 0, len(summary))
	for k := range summary {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		e.logger.Warn("non-numeric values read as NA", "rule", k, "count", summary[k])
	}
}
