package core

import (
	"fmt"
	"strings"
)

// =============================================================================
// Severity
// =============================================================================

// Severity indicates the importance of a validation diagnostic.
type Severity int

// Severity levels for diagnostics.
const (
	// SeverityError indicates a problem that prevents the mapping from being used.
	SeverityError Severity = iota
	// SeverityWarning indicates a problem that was fixed in place or degrades output.
	SeverityWarning
	// SeverityInfo indicates informational feedback.
	SeverityInfo
	// SeverityHint indicates a check that passed.
	SeverityHint
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	case SeverityHint:
		return "hint"
	default:
		return "unknown"
	}
}

// Bullet returns the report marker for the severity.
func (s Severity) Bullet() string {
	switch s {
	case SeverityError:
		return "[!]"
	case SeverityWarning:
		return "[?]"
	case SeverityInfo:
		return "[i]"
	default:
		return "[X]"
	}
}

// ParseSeverity converts a string to a Severity value.
// Returns the severity and true if valid, or SeverityWarning and false if invalid.
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToLower(s) {
	case "error":
		return SeverityError, true
	case "warning":
		return SeverityWarning, true
	case "info":
		return SeverityInfo, true
	case "hint":
		return SeverityHint, true
	default:
		return SeverityWarning, false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// =============================================================================
// Diagnostic
// =============================================================================

// Diagnostic is one finding from validating a mapping table or its relation to input data.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	// Check is a short identifier of the check that produced the diagnostic.
	Check   string `json:"check"`
	Message string `json:"message"`
	// Rows lists the affected 1-based mapping rows, if any.
	Rows []int `json:"rows,omitempty"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s %s", d.Severity.Bullet(), d.Message)
}

// Diagnostics is an ordered list of findings.
type Diagnostics []Diagnostic

// Count returns the number of diagnostics with the given severity.
func (ds Diagnostics) Count(s Severity) int {
	n := 0
	for _, d := range ds {
		if d.Severity == s {
			n++
		}
	}
	return n
}

// HasErrors reports whether any diagnostic is an error.
func (ds Diagnostics) HasErrors() bool { return ds.Count(SeverityError) > 0 }

// Filter returns the diagnostics at or above the given severity (lower value is more severe).
func (ds Diagnostics) Filter(threshold Severity) Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Severity <= threshold {
			out = append(out, d)
		}
	}
	return out
}

// ReportList formats items for a message: ('A', 'B', and 'C'), truncated with "etc" past limit.
func ReportList(items []string, limit int) string {
	if len(items) == 0 {
		return ""
	}
	truncated := limit > 0 && len(items) > limit
	if truncated {
		items = items[:limit]
	}
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = "'" + it + "'"
	}
	var s string
	switch {
	case truncated:
		s = strings.Join(quoted, ", ") + ", etc"
	case len(quoted) == 1:
		s = quoted[0]
	default:
		s = strings.Join(quoted[:len(quoted)-1], ", ") + ", and " + quoted[len(quoted)-1]
	}
	return "(" + s + ")"
}
