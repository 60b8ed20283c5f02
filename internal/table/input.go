package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/leapstack-labs/crossva/internal/rules"
	"github.com/leapstack-labs/crossva/pkg/core"
)

// DefaultNAValues are the raw answers read as missing: don't know, refused, blank,
// and the usual spreadsheet and dataframe export markers.
var DefaultNAValues = []string{
	"dk", "ref", "",
	"na", "n/a", "#n/a", "#na", "<na>", "nan", "-nan", "null", "none",
}

// ReadOptions controls how raw input cells become core.Cell values.
type ReadOptions struct {
	// NAValues are compared case-insensitively against the trimmed cell text.
	// Nil means DefaultNAValues.
	NAValues []string
	// Normalize rewrites cell text the way mapping conditions are normalized.
	Normalize bool
}

func (o ReadOptions) naSet() map[string]bool {
	values := o.NAValues
	if values == nil {
		values = DefaultNAValues
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[strings.ToLower(strings.TrimSpace(v))] = true
	}
	return set
}

// Input is a raw questionnaire table. Rows are keyed by input column name.
type Input struct {
	Columns []string
	Rows    []core.Row
}

// NewInput builds an input table from a header and rows of raw text.
// Every cell is kept as text; use ReadCSV for NA detection.
func NewInput(columns []string, records [][]string) *Input {
	in := &Input{Columns: columns, Rows: make([]core.Row, 0, len(records))}
	for _, rec := range records {
		row := make(core.Row, len(columns))
		for i, col := range columns {
			if i < len(rec) {
				row[col] = core.TextCell(rec[i])
			}
		}
		in.Rows = append(in.Rows, row)
	}
	return in
}

// Len returns the number of rows.
func (in *Input) Len() int { return len(in.Rows) }

// HasColumn reports whether the input has a column with exactly this name.
func (in *Input) HasColumn(name string) bool {
	for _, c := range in.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// IDs returns one identifier per row: the value of idColumn when it is set and
// present, else the 1-based row number.
func (in *Input) IDs(idColumn string) ([]string, error) {
	ids := make([]string, len(in.Rows))
	if idColumn == "" {
		for i := range ids {
			ids[i] = strconv.Itoa(i + 1)
		}
		return ids, nil
	}
	if !in.HasColumn(idColumn) {
		return nil, fmt.Errorf("id column %q not found in input", idColumn)
	}
	for i, row := range in.Rows {
		ids[i] = row.Get(idColumn).Text
	}
	return ids, nil
}

// ReadCSV reads an input table. The first record is the header.
// Short records are padded with missing cells.
func ReadCSV(r io.Reader, opts ReadOptions) (*Input, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("input table is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read input header: %w", err)
	}
	header = cleanHeader(header)

	na := opts.naSet()
	in := &Input{Columns: header}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read input row %d: %w", len(in.Rows)+1, err)
		}

		row := make(core.Row, len(header))
		for i, col := range header {
			if i >= len(rec) {
				row[col] = core.MissingCell()
				continue
			}
			row[col] = parseCell(rec[i], na, opts.Normalize)
		}
		in.Rows = append(in.Rows, row)
	}
	return in, nil
}

// ReadCSVFile reads an input table from a file.
func ReadCSVFile(path string, opts ReadOptions) (*Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	in, err := ReadCSV(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return in, nil
}

func parseCell(raw string, na map[string]bool, normalize bool) core.Cell {
	if na[strings.ToLower(strings.TrimSpace(raw))] {
		return core.MissingCell()
	}
	if normalize {
		return core.TextCell(rules.NormalizeValue(raw))
	}
	return core.TextCell(raw)
}

// cleanHeader trims header names and drops a UTF-8 byte order mark.
func cleanHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		out[i] = strings.TrimSpace(h)
	}
	return out
}
