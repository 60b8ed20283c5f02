package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/leapstack-labs/crossva/pkg/core"
)

// IDHeader is the name of the first output column.
const IDHeader = "ID"

// Output is an indicator table: one row per input row, one column per output column.
type Output struct {
	// Columns are the indicator columns in output order.
	Columns []string
	// IDs holds one identifier per row.
	IDs  []string
	Rows []core.OutputRow
}

// Len returns the number of rows.
func (o *Output) Len() int { return len(o.Rows) }

// Column returns every row's value for one output column.
func (o *Output) Column(name string) []core.Value {
	out := make([]core.Value, len(o.Rows))
	for i, r := range o.Rows {
		out[i] = r.Get(name)
	}
	return out
}

// ResultValues are the strings written for each indicator value.
type ResultValues struct {
	Present string `koanf:"present" json:"present"`
	Absent  string `koanf:"absent" json:"absent"`
	NA      string `koanf:"na" json:"na"`
}

// DefaultResultValues writes y, n and "." for true, false and missing.
var DefaultResultValues = ResultValues{Present: "y", Absent: "n", NA: "."}

// Format controls how indicator values are written.
type Format struct {
	Values ResultValues
	// PreserveNA writes missing values as Values.NA. When false they are written
	// as Values.Absent.
	PreserveNA bool
}

// DefaultFormat returns the default result values with NA preserved.
func DefaultFormat() Format {
	return Format{Values: DefaultResultValues, PreserveNA: true}
}

// Value renders one indicator value.
func (f Format) Value(v core.Value) string {
	switch v {
	case core.True:
		return f.Values.Present
	case core.False:
		return f.Values.Absent
	default:
		if f.PreserveNA {
			return f.Values.NA
		}
		return f.Values.Absent
	}
}

// Header returns the output header: the ID column then the indicator columns.
func (o *Output) Header() []string {
	return append([]string{IDHeader}, o.Columns...)
}

// Records renders the output rows, without the header.
func (o *Output) Records(f Format) [][]string {
	records := make([][]string, len(o.Rows))
	for i, row := range o.Rows {
		rec := make([]string, 0, len(o.Columns)+1)
		rec = append(rec, o.id(i))
		for _, col := range o.Columns {
			rec = append(rec, f.Value(row.Get(col)))
		}
		records[i] = rec
	}
	return records
}

func (o *Output) id(i int) string {
	if i < len(o.IDs) {
		return o.IDs[i]
	}
	return fmt.Sprint(i + 1)
}

// WriteCSV writes the output table as CSV.
func WriteCSV(w io.Writer, o *Output, f Format) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(o.Header()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := cw.WriteAll(o.Records(f)); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return nil
}

// WriteCSVFile writes the output table to a CSV file, replacing it.
func WriteCSVFile(path string, o *Output, f Format) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := WriteCSV(file, o, f); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
