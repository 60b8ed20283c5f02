// Package evaluate implements the comparison relationships a mapping rule can apply
// to one raw source value.
package evaluate

import (
	"strings"

	"github.com/leapstack-labs/crossva/pkg/core"
)

// Evaluate compares one source cell to a pre-parsed condition.
//
// A missing cell always yields NA. When a numeric comparison meets a non-numeric
// value the result is NA and a *core.TypeError describes the mismatch; the caller
// decides how to report it. Evaluate has no side effects.
func Evaluate(cell core.Cell, rel core.Relationship, cond core.Condition) (core.Value, error) {
	if cell.IsNA() {
		return core.NA, nil
	}

	switch rel {
	case core.RelEq, core.RelNe:
		eq, err := equal(cell, rel, cond)
		if err != nil {
			return core.NA, err
		}
		if rel == core.RelNe {
			eq = !eq
		}
		return core.FromBool(eq), nil

	case core.RelGt, core.RelGe, core.RelLt, core.RelLe:
		x, ok := cell.Number()
		if !ok {
			return core.NA, typeError(cell, rel)
		}
		return core.FromBool(compare(x, rel, cond.Number)), nil

	case core.RelBetween:
		x, ok := cell.Number()
		if !ok {
			return core.NA, typeError(cell, rel)
		}
		return core.FromBool(cond.Low <= x && x <= cond.High), nil

	case core.RelContains:
		return core.FromBool(strings.Contains(cell.Text, cond.Raw)), nil

	default:
		return core.NA, &core.ConfigError{Field: "Relationship", Msg: "unrecognized relationship " + rel.String()}
	}
}

// equal compares using the type implied by the condition: numeric when the
// condition is a number, otherwise case-sensitive text.
func equal(cell core.Cell, rel core.Relationship, cond core.Condition) (bool, error) {
	if cond.Numeric {
		x, ok := cell.Number()
		if !ok {
			return false, typeError(cell, rel)
		}
		return x == cond.Number, nil
	}
	return strings.TrimSpace(cell.Text) == cond.Raw, nil
}

func compare(x float64, rel core.Relationship, y float64) bool {
	switch rel {
	case core.RelGt:
		return x > y
	case core.RelGe:
		return x >= y
	case core.RelLt:
		return x < y
	case core.RelLe:
		return x <= y
	default:
		return false
	}
}

func typeError(cell core.Cell, rel core.Relationship) error {
	return &core.TypeError{Value: cell.Text, Relationship: rel}
}
