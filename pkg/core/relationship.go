package core

// Relationship is the comparison a rule applies between a source value and its condition.
type Relationship int

// Supported relationships.
const (
	RelUnknown Relationship = iota
	RelEq
	RelNe
	RelGt
	RelGe
	RelLt
	RelLe
	RelBetween
	RelContains
)

var relationshipTokens = map[Relationship]string{
	RelEq:       "eq",
	RelNe:       "ne",
	RelGt:       "gt",
	RelGe:       "ge",
	RelLt:       "lt",
	RelLe:       "le",
	RelBetween:  "between",
	RelContains: "contains",
}

var relationshipPhrases = map[Relationship]string{
	RelEq:       "is equal to",
	RelNe:       "is not equal to",
	RelGt:       "is greater than",
	RelGe:       "is greater than or equal to",
	RelLt:       "is less than",
	RelLe:       "is less than or equal to",
	RelBetween:  "is between",
	RelContains: "contains",
}

// Relationships lists every supported relationship in a stable order.
func Relationships() []Relationship {
	return []Relationship{RelEq, RelNe, RelGt, RelGe, RelLt, RelLe, RelBetween, RelContains}
}

// ParseRelationship converts a mapping token such as "ge" into a Relationship.
// Returns RelUnknown and false for unrecognized tokens.
func ParseRelationship(token string) (Relationship, bool) {
	for rel, tok := range relationshipTokens {
		if tok == token {
			return rel, true
		}
	}
	return RelUnknown, false
}

// String returns the mapping token for the relationship.
func (r Relationship) String() string {
	if tok, ok := relationshipTokens[r]; ok {
		return tok
	}
	return "unknown"
}

// Phrase returns the relationship as an English phrase, e.g. "is greater than".
func (r Relationship) Phrase() string {
	if p, ok := relationshipPhrases[r]; ok {
		return p
	}
	return r.String()
}

// IsOrdering reports whether the relationship is one of gt, ge, lt, le.
func (r Relationship) IsOrdering() bool {
	switch r {
	case RelGt, RelGe, RelLt, RelLe:
		return true
	default:
		return false
	}
}

// IsNumeric reports whether the relationship always compares numbers.
func (r Relationship) IsNumeric() bool {
	return r.IsOrdering() || r == RelBetween
}

// MarshalText implements encoding.TextMarshaler.
func (r Relationship) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}
