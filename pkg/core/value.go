package core

import (
	"encoding/json"
	"fmt"
)

// Value is a tri-state indicator outcome.
// The zero value is NA so that an untouched column reads as missing.
type Value int8

// Indicator values.
const (
	NA Value = iota
	False
	True
)

// FromBool converts a boolean into a known Value.
func FromBool(b bool) Value {
	if b {
		return True
	}
	return False
}

// IsNA reports whether v is missing.
func (v Value) IsNA() bool { return v == NA }

// Bool returns the boolean value and whether it is known.
func (v Value) Bool() (value bool, known bool) {
	switch v {
	case True:
		return true, true
	case False:
		return false, true
	default:
		return false, false
	}
}

// String returns the string representation of the value.
func (v Value) String() string {
	switch v {
	case True:
		return "true"
	case False:
		return "false"
	case NA:
		return "NA"
	default:
		return fmt.Sprintf("Value(%d)", int8(v))
	}
}

// MarshalJSON encodes NA as null and known values as JSON booleans.
func (v Value) MarshalJSON() ([]byte, error) {
	b, ok := v.Bool()
	if !ok {
		return []byte("null"), nil
	}
	return json.Marshal(b)
}

// UnmarshalJSON decodes null or a JSON boolean.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = NA
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("invalid indicator value %s: %w", data, err)
	}
	*v = FromBool(b)
	return nil
}

// OutputRow maps output column names to their computed values for one input row.
type OutputRow map[string]Value

// Get returns the value for column, or NA if it has not been computed.
func (o OutputRow) Get(column string) Value {
	return o[column]
}
