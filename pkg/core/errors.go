package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for errors.Is checks.
var (
	ErrConfig        = errors.New("invalid mapping configuration")
	ErrType          = errors.New("non-numeric value for numeric relationship")
	ErrMissingSource = errors.New("source column missing from input")
)

// ConfigError reports a malformed rule or rule table.
// It is detected before any row is processed and aborts the run.
type ConfigError struct {
	// Row is the 1-based mapping row, or 0 when the error concerns a whole column.
	Row int
	// Column is the output column the error belongs to.
	Column string
	// Field names the offending mapping field (e.g. "Relationship").
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	if e.Row > 0 {
		fmt.Fprintf(&b, "row %d: ", e.Row)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, "column %q: ", e.Column)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, "%s: ", e.Field)
	}
	b.WriteString(e.Msg)
	return b.String()
}

// Is lets errors.Is match ErrConfig.
func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// TypeError reports a numeric relationship applied to a non-numeric, non-missing value.
// The affected rule yields NA; the error is collected, not raised.
type TypeError struct {
	// Row is the 1-based input row, 0 when unknown.
	Row          int
	Column       string
	Source       string
	Value        string
	Relationship Relationship
}

func (e *TypeError) Error() string {
	msg := fmt.Sprintf("%s: value %q of source %q is not numeric", e.Relationship, e.Value, e.Source)
	if e.Column != "" {
		msg = fmt.Sprintf("column %q: %s", e.Column, msg)
	}
	if e.Row > 0 {
		msg = fmt.Sprintf("row %d: %s", e.Row, msg)
	}
	return msg
}

// Is lets errors.Is match ErrType.
func (e *TypeError) Is(target error) bool { return target == ErrType }

// MissingSourceColumnError reports source ids referenced by rules but absent from the input table.
type MissingSourceColumnError struct {
	Sources []string
	// Affected maps each missing source id to the output columns that read it.
	Affected map[string][]string
}

func (e *MissingSourceColumnError) Error() string {
	sources := append([]string(nil), e.Sources...)
	sort.Strings(sources)
	parts := make([]string, 0, len(sources))
	for _, s := range sources {
		if cols := e.Affected[s]; len(cols) > 0 {
			parts = append(parts, fmt.Sprintf("%s (affects %s)", s, strings.Join(cols, ", ")))
		} else {
			parts = append(parts, s)
		}
	}
	return fmt.Sprintf("%d source column(s) not found in input: %s", len(sources), strings.Join(parts, "; "))
}

// Is lets errors.Is match ErrMissingSource.
func (e *MissingSourceColumnError) Is(target error) bool { return target == ErrMissingSource }
