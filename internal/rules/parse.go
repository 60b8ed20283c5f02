// Package rules turns raw mapping-table entries into a validated core.RuleTable.
//
// Parsing a single entry is pure; Build applies the table-level clean-up the
// mapping format allows (whitespace, case, duplicates, declared-only columns)
// and reports each fix as a diagnostic.
package rules

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/leapstack-labs/crossva/pkg/core"
)

// Mapping table field names, as they appear in the header of a mapping file.
const (
	FieldColumn              = "New Column Name"
	FieldDocumentation       = "New Column Documentation"
	FieldSource              = "Source Column ID"
	FieldSourceDocumentation = "Source Column Documentation"
	FieldRelationship        = "Relationship"
	FieldCondition           = "Condition"
	FieldPrerequisite        = "Prerequisite"
)

// betweenSeparator splits the low and high bounds of a between condition.
const betweenSeparator = " to "

// ParseRule parses one mapping entry into a Rule.
// It fails with a *core.ConfigError naming the row and the malformed field.
func ParseRule(e core.MappingEntry) (core.Rule, error) {
	fail := func(field, format string, args ...any) (core.Rule, error) {
		return core.Rule{}, &core.ConfigError{
			Row:    e.Row,
			Column: e.Column,
			Field:  field,
			Msg:    fmt.Sprintf(format, args...),
		}
	}

	if e.Column == "" {
		return fail(FieldColumn, "empty output column")
	}
	if e.Relationship == "" {
		return fail(FieldRelationship, "missing relationship")
	}
	rel, ok := core.ParseRelationship(e.Relationship)
	if !ok {
		return fail(FieldRelationship, "unrecognized relationship %q", e.Relationship)
	}
	if e.Condition == "" {
		return fail(FieldCondition, "missing condition")
	}
	if e.Source == "" {
		return fail(FieldSource, "missing source column id")
	}

	cond, err := ParseCondition(rel, e.Condition)
	if err != nil {
		return fail(FieldCondition, "%v", err)
	}

	return core.Rule{
		Row:                 e.Row,
		Column:              e.Column,
		Documentation:       e.Documentation,
		Source:              e.Source,
		SourceDocumentation: e.SourceDocumentation,
		Relationship:        rel,
		Condition:           cond,
		Prerequisite:        e.Prerequisite,
	}, nil
}

// ParseCondition pre-parses a condition operand for the given relationship.
func ParseCondition(rel core.Relationship, raw string) (core.Condition, error) {
	cond := core.Condition{Raw: raw}

	if rel == core.RelBetween {
		parts := strings.Split(raw, betweenSeparator)
		if len(parts) != 2 {
			return cond, fmt.Errorf("between condition %q must have the form \"<low> to <high>\"", raw)
		}
		low, errLow := parseNumber(parts[0])
		high, errHigh := parseNumber(parts[1])
		if errLow != nil || errHigh != nil {
			return cond, fmt.Errorf("between condition %q must have numeric bounds", raw)
		}
		if low > high {
			return cond, fmt.Errorf("between condition %q has low bound greater than high bound", raw)
		}
		cond.Low, cond.High = low, high
		return cond, nil
	}

	if n, err := parseNumber(raw); err == nil {
		cond.Numeric = true
		cond.Number = n
	}
	if rel.IsOrdering() && !cond.Numeric {
		return cond, fmt.Errorf("numerical relationship %s with non-number condition %q", rel, raw)
	}
	return cond, nil
}

func parseNumber(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	return f, nil
}
