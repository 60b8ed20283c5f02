package engine

import (
	"errors"

	"github.com/leapstack-labs/crossva/internal/evaluate"
	"github.com/leapstack-labs/crossva/pkg/core"
)

// Apply folds one rule group over a row, in file order.
//
// The accumulator starts at NA. Once it reaches True the remaining rules are
// skipped. Otherwise each rule overwrites it: with False when the rule's
// prerequisite is not True in out (NA under PrerequisiteNA when the prerequisite
// is NA), else with the rule's own evaluation. False and NA results therefore
// depend on which rule ran last.
//
// out must already hold every prerequisite of the group. Apply does not modify it.
func Apply(group *core.RuleGroup, row core.Row, out core.OutputRow, opts Options) (core.Value, []error) {
	acc := core.NA
	var errs []error

	for _, r := range group.Rules {
		if acc == core.True {
			break
		}

		if r.HasPrerequisite() {
			pre := out.Get(r.Prerequisite)
			if pre != core.True {
				if pre == core.NA && opts.PrerequisiteNA == PrerequisiteNA {
					acc = core.NA
				} else {
					acc = core.False
				}
				continue
			}
		}

		v, err := evaluate.Evaluate(row.Get(r.Source), r.Relationship, r.Condition)
		if err != nil {
			var te *core.TypeError
			if errors.As(err, &te) {
				te.Column = group.Column
				te.Source = r.Source
			}
			errs = append(errs, err)
		}
		acc = v
	}
	return acc, errs
}
