package table

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/crossva/pkg/core"
)

// Binding maps mapping source ids to input column names.
type Binding struct {
	// Columns maps each bound source id to its input column.
	Columns map[string]string
	// Missing lists source ids with no matching input column, in the order requested.
	Missing []string
}

// Bind resolves source ids against input columns. An id binds to the column with
// exactly that name, otherwise to the single column whose name ends with it
// (e.g. "Id10004" binds "respondent-Id10004"). An id that suffix-matches more than
// one column is an error.
func Bind(columns []string, sources []string) (*Binding, error) {
	exact := make(map[string]bool, len(columns))
	for _, c := range columns {
		exact[c] = true
	}

	b := &Binding{Columns: make(map[string]string, len(sources))}
	var ambiguous []string
	for _, src := range sources {
		if exact[src] {
			b.Columns[src] = src
			continue
		}

		var matches []string
		for _, c := range columns {
			if strings.HasSuffix(c, src) {
				matches = append(matches, c)
			}
		}
		switch len(matches) {
		case 0:
			b.Missing = append(b.Missing, src)
		case 1:
			b.Columns[src] = matches[0]
		default:
			ambiguous = append(ambiguous, fmt.Sprintf("%s (%s)", src, strings.Join(matches, ", ")))
		}
	}

	if len(ambiguous) > 0 {
		sort.Strings(ambiguous)
		return nil, fmt.Errorf("source column(s) match more than one input column: %s", strings.Join(ambiguous, "; "))
	}
	return b, nil
}

// Coverage returns the share of sources that bound to an input column.
func (b *Binding) Coverage() float64 {
	total := len(b.Columns) + len(b.Missing)
	if total == 0 {
		return 0
	}
	return float64(len(b.Columns)) / float64(total)
}

// Row projects an input row onto source ids. Unbound sources read as NA.
func (b *Binding) Row(in core.Row) core.Row {
	out := make(core.Row, len(b.Columns))
	for src, col := range b.Columns {
		out[src] = in.Get(col)
	}
	return out
}
