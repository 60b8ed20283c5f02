package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/crossva/internal/rules"
	"github.com/leapstack-labs/crossva/pkg/core"
)

// MappingHeaders lists the expected mapping table headers in file order.
var MappingHeaders = []string{
	rules.FieldColumn,
	rules.FieldDocumentation,
	rules.FieldSource,
	rules.FieldSourceDocumentation,
	rules.FieldRelationship,
	rules.FieldCondition,
	rules.FieldPrerequisite,
}

// requiredHeaders must be present; the others are optional.
var requiredHeaders = []string{
	rules.FieldColumn,
	rules.FieldSource,
	rules.FieldRelationship,
	rules.FieldCondition,
}

// ReadMappingFile reads a mapping table, choosing the format from the extension:
// .yaml and .yml are YAML, anything else is CSV.
func ReadMappingFile(path string) ([]core.MappingEntry, core.Diagnostics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read mapping: %w", err)
	}

	var (
		entries []core.MappingEntry
		diags   core.Diagnostics
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		entries, err = ReadMappingYAML(bytes.NewReader(data))
	default:
		entries, diags, err = ReadMappingCSV(bytes.NewReader(data))
	}
	if err != nil {
		return nil, diags, fmt.Errorf("%s: %w", path, err)
	}
	return entries, diags, nil
}

// ReadMappingCSV reads a CSV mapping table. Missing required headers are an error;
// missing optional headers produce a warning and read as empty.
// Unknown headers are ignored.
func ReadMappingCSV(r io.Reader) ([]core.MappingEntry, core.Diagnostics, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("mapping table is empty")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read mapping header: %w", err)
	}
	header = cleanHeader(header)

	pos := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}

	var diags core.Diagnostics
	var missingRequired, missingOptional []string
	for _, h := range MappingHeaders {
		if _, ok := pos[h]; ok {
			continue
		}
		if contains(requiredHeaders, h) {
			missingRequired = append(missingRequired, h)
		} else {
			missingOptional = append(missingOptional, h)
		}
	}
	if len(missingRequired) > 0 {
		msg := fmt.Sprintf("required column(s) %s missing from mapping table", core.ReportList(missingRequired, 0))
		diags = append(diags, core.Diagnostic{Severity: core.SeverityError, Check: "expected-columns", Message: msg})
		return nil, diags, &core.ConfigError{Msg: msg}
	}
	if len(missingOptional) > 0 {
		diags = append(diags, core.Diagnostic{
			Severity: core.SeverityWarning,
			Check:    "expected-columns",
			Message:  fmt.Sprintf("Column(s) %s missing from mapping table; they will be read as empty.", core.ReportList(missingOptional, 0)),
		})
	} else {
		diags = append(diags, core.Diagnostic{
			Severity: core.SeverityHint,
			Check:    "expected-columns",
			Message:  fmt.Sprintf("All expected columns %s accounted for in mapping table.", core.ReportList(MappingHeaders, 0)),
		})
	}

	field := func(rec []string, name string) string {
		i, ok := pos[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	var entries []core.MappingEntry
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, diags, fmt.Errorf("failed to read mapping row %d: %w", len(entries)+1, err)
		}
		entries = append(entries, core.MappingEntry{
			Row:                 len(entries) + 1,
			Column:              field(rec, rules.FieldColumn),
			Documentation:       field(rec, rules.FieldDocumentation),
			Source:              field(rec, rules.FieldSource),
			SourceDocumentation: field(rec, rules.FieldSourceDocumentation),
			Relationship:        field(rec, rules.FieldRelationship),
			Condition:           field(rec, rules.FieldCondition),
			Prerequisite:        field(rec, rules.FieldPrerequisite),
		})
	}
	return entries, diags, nil
}

// ReadMappingYAML reads a YAML mapping table: a list of entries keyed
// column, documentation, source, source_documentation, relationship, condition
// and prerequisite.
func ReadMappingYAML(r io.Reader) ([]core.MappingEntry, error) {
	var entries []core.MappingEntry
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&entries); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("mapping table is empty")
		}
		return nil, fmt.Errorf("failed to parse mapping YAML: %w", err)
	}
	for i := range entries {
		entries[i].Row = i + 1
	}
	return entries, nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
