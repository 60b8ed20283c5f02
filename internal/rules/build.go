package rules

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/crossva/pkg/core"
)

// Options controls table building.
type Options struct {
	// NormalizeStrings also normalizes conditions: lower-case, whitespace to '_',
	// non-alphanumeric characters removed.
	NormalizeStrings bool
}

// fieldRef addresses one string field of a MappingEntry.
type fieldRef struct {
	name string
	get  func(*core.MappingEntry) *string
}

var (
	refColumn       = fieldRef{FieldColumn, func(e *core.MappingEntry) *string { return &e.Column }}
	refSource       = fieldRef{FieldSource, func(e *core.MappingEntry) *string { return &e.Source }}
	refRelationship = fieldRef{FieldRelationship, func(e *core.MappingEntry) *string { return &e.Relationship }}
	refCondition    = fieldRef{FieldCondition, func(e *core.MappingEntry) *string { return &e.Condition }}
	refPrerequisite = fieldRef{FieldPrerequisite, func(e *core.MappingEntry) *string { return &e.Prerequisite }}
	refDoc          = fieldRef{FieldDocumentation, func(e *core.MappingEntry) *string { return &e.Documentation }}
	refSourceDoc    = fieldRef{FieldSourceDocumentation, func(e *core.MappingEntry) *string { return &e.SourceDocumentation }}
)

// fix describes one in-place clean-up applied to a set of fields.
type fix struct {
	criteria string
	action   string
	fields   []fieldRef
	apply    func(string) string
}

// Build validates mapping entries and groups them into a RuleTable.
//
// Fixable problems are corrected in place and reported as warnings. Every
// malformed rule is reported as a *core.ConfigError; when any exist the returned
// error joins all of them and the table is nil. Prerequisite references are not
// checked here; see plan.Resolve.
func Build(entries []core.MappingEntry, opts Options) (*core.RuleTable, core.Diagnostics, error) {
	var diags core.Diagnostics

	work := make([]core.MappingEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsBlank() {
			continue
		}
		work = append(work, e)
	}

	fixes := []fix{
		{
			criteria: "leading/trailing spaces",
			action:   "Leading/trailing spaces will be removed.",
			fields:   []fieldRef{refColumn, refSource, refRelationship, refCondition, refPrerequisite, refDoc, refSourceDoc},
			apply:    TrimSpace,
		},
		{
			criteria: "whitespace",
			action:   "Whitespace will be converted to '_'.",
			fields:   whitespaceFields(opts),
			apply:    Underscore,
		},
		{
			criteria: "upper case value(s)",
			action:   "Upper case text will be made lowercase.",
			fields:   lowercaseFields(opts),
			apply:    Lower,
		},
		{
			criteria: "non-alphanumeric value(s)",
			action:   "Non-alphanumeric characters will be removed.",
			fields:   []fieldRef{refColumn, refSource, refRelationship, refCondition},
			apply:    Alnum,
		},
	}
	for _, f := range fixes {
		diags = append(diags, applyFix(work, f)...)
	}

	cleaned := work[:0]
	for _, e := range work {
		if !e.IsBlank() {
			cleaned = append(cleaned, e)
		}
	}

	work, dupDiags := dropDuplicates(cleaned)
	diags = append(diags, dupDiags...)

	var (
		groups   []*core.RuleGroup
		byColumn = make(map[string]*core.RuleGroup)
		declared []string
		errs     []error
	)
	group := func(column string) *core.RuleGroup {
		if g, ok := byColumn[column]; ok {
			return g
		}
		g := &core.RuleGroup{Column: column}
		byColumn[column] = g
		groups = append(groups, g)
		return g
	}

	for _, e := range work {
		if e.IsDeclaration() {
			g := group(e.Column)
			if g.Documentation == "" {
				g.Documentation = e.Documentation
			}
			continue
		}
		rule, err := ParseRule(e)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		g := group(rule.Column)
		if g.Documentation == "" {
			g.Documentation = rule.Documentation
		}
		g.Rules = append(g.Rules, rule)
	}

	for _, g := range groups {
		if g.Declared() {
			declared = append(declared, g.Column)
		}
	}
	if len(declared) > 0 {
		diags = append(diags, core.Diagnostic{
			Severity: core.SeverityWarning,
			Check:    "declared-columns",
			Message: fmt.Sprintf("%d new column(s) listed but not defined in mapping configuration detected. These %s will be treated as NA.",
				len(declared), core.ReportList(declared, 10)),
		})
	} else {
		diags = append(diags, passing("declared-columns", "No new column(s) listed but not defined in mapping configuration detected."))
	}

	if len(errs) > 0 {
		for _, err := range errs {
			d := core.Diagnostic{Severity: core.SeverityError, Check: "rule", Message: err.Error()}
			var ce *core.ConfigError
			if errors.As(err, &ce) && ce.Row > 0 {
				d.Rows = []int{ce.Row}
			}
			diags = append(diags, d)
		}
		return nil, diags, errors.Join(errs...)
	}

	table, err := core.NewRuleTable(groups)
	if err != nil {
		return nil, diags, &core.ConfigError{Msg: err.Error()}
	}
	return table, diags, nil
}

func whitespaceFields(opts Options) []fieldRef {
	fields := []fieldRef{refColumn, refRelationship, refPrerequisite}
	if opts.NormalizeStrings {
		fields = append(fields, refCondition)
	}
	return fields
}

func lowercaseFields(opts Options) []fieldRef {
	fields := []fieldRef{refRelationship}
	if opts.NormalizeStrings {
		fields = append(fields, refCondition)
	}
	return fields
}

// applyFix rewrites every listed field and reports one diagnostic per field.
func applyFix(entries []core.MappingEntry, f fix) core.Diagnostics {
	var diags core.Diagnostics
	for _, ref := range f.fields {
		var rows []int
		for i := range entries {
			p := ref.get(&entries[i])
			fixed := f.apply(*p)
			if fixed != *p {
				*p = fixed
				rows = append(rows, entries[i].Row)
			}
		}
		check := strings.ReplaceAll(f.criteria, " ", "-") + ":" + ref.name
		if len(rows) == 0 {
			diags = append(diags, passing(check, fmt.Sprintf("No %s in column %s detected.", f.criteria, ref.name)))
			continue
		}
		diags = append(diags, core.Diagnostic{
			Severity: core.SeverityWarning,
			Check:    check,
			Message: fmt.Sprintf("%d %s in column %s detected in row(s) %s. %s",
				len(rows), f.criteria, ref.name, reportRows(rows), f.action),
			Rows: rows,
		})
	}
	return diags
}

// dropDuplicates removes exact duplicate entries, keeping the first occurrence.
func dropDuplicates(entries []core.MappingEntry) ([]core.MappingEntry, core.Diagnostics) {
	seen := make(map[string]bool, len(entries))
	out := entries[:0]
	var rows []int
	for _, e := range entries {
		k := e.Key()
		if seen[k] {
			rows = append(rows, e.Row)
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	if len(rows) == 0 {
		return out, core.Diagnostics{passing("duplicates", "No duplicate row(s) detected.")}
	}
	return out, core.Diagnostics{{
		Severity: core.SeverityWarning,
		Check:    "duplicates",
		Message:  fmt.Sprintf("%d duplicate row(s) detected in row(s) %s. Duplicates will be dropped.", len(rows), reportRows(rows)),
		Rows:     rows,
	}}
}

func passing(check, msg string) core.Diagnostic {
	return core.Diagnostic{Severity: core.SeverityHint, Check: check, Message: msg}
}

func reportRows(rows []int) string {
	sorted := append([]int(nil), rows...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, r := range sorted {
		parts[i] = fmt.Sprintf("#%d", r)
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + ", and " + parts[len(parts)-1]
}
