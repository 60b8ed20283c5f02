package core

import (
	"math"
	"strconv"
	"strings"
)

// Cell is one raw input value. A Cell is either text or missing (NA).
type Cell struct {
	Text  string
	Valid bool
}

// TextCell returns a present cell holding s.
func TextCell(s string) Cell {
	return Cell{Text: s, Valid: true}
}

// MissingCell returns the NA cell.
func MissingCell() Cell {
	return Cell{}
}

// IsNA reports whether the cell is missing.
func (c Cell) IsNA() bool { return !c.Valid }

// Number parses the cell as a float. It reports false for NA, non-numeric text,
// and "NaN", which compares false against everything.
func (c Cell) Number() (float64, bool) {
	if !c.Valid {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(c.Text), 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// String returns the cell text, or "NA" for a missing cell.
func (c Cell) String() string {
	if !c.Valid {
		return "NA"
	}
	return c.Text
}

// Row maps source column identifiers to raw cells.
// A source id absent from the map reads as NA.
type Row map[string]Cell

// Get returns the cell for a source id.
func (r Row) Get(sourceID string) Cell {
	return r[sourceID]
}
