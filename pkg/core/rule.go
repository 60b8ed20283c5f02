package core

import (
	"fmt"
	"strings"
)

// MappingEntry is one raw row of a mapping configuration table, before parsing.
type MappingEntry struct {
	// Row is the 1-based data row in the mapping file (header excluded).
	Row                 int
	Column              string `yaml:"column"`
	Documentation       string `yaml:"documentation"`
	Source              string `yaml:"source"`
	SourceDocumentation string `yaml:"source_documentation"`
	Relationship        string `yaml:"relationship"`
	Condition           string `yaml:"condition"`
	Prerequisite        string `yaml:"prerequisite"`
}

// IsBlank reports whether every field of the entry is empty.
func (e MappingEntry) IsBlank() bool {
	return e.Column == "" && e.Documentation == "" && e.Source == "" &&
		e.SourceDocumentation == "" && e.Relationship == "" && e.Condition == "" &&
		e.Prerequisite == ""
}

// IsDeclaration reports whether the entry names a column without defining any logic.
// Declared columns are produced as NA.
func (e MappingEntry) IsDeclaration() bool {
	return e.Column != "" && e.Source == "" && e.Relationship == "" && e.Condition == ""
}

// Key returns a string identifying the logical content of the entry, used for duplicate detection.
func (e MappingEntry) Key() string {
	return strings.Join([]string{
		e.Column, e.Documentation, e.Source, e.SourceDocumentation,
		e.Relationship, e.Condition, e.Prerequisite,
	}, "\x1f")
}

// Condition is a pre-parsed rule operand.
type Condition struct {
	// Raw is the condition text as written in the mapping.
	Raw string
	// Numeric is true when Raw parses as a number.
	Numeric bool
	Number  float64
	// Low and High bound a between condition (inclusive).
	Low  float64
	High float64
}

// String returns the condition text.
func (c Condition) String() string { return c.Raw }

// Rule is one parsed mapping rule.
type Rule struct {
	Row                 int
	Column              string
	Documentation       string
	Source              string
	SourceDocumentation string
	Relationship        Relationship
	Condition           Condition
	Prerequisite        string
}

// HasPrerequisite reports whether the rule is gated by another output column.
func (r Rule) HasPrerequisite() bool { return r.Prerequisite != "" }

// Describe returns an English description of the rule.
func (r Rule) Describe() string {
	s := fmt.Sprintf("%s is true where input column %s %s %s",
		r.Column, r.Source, r.Relationship.Phrase(), r.Condition.Raw)
	if r.HasPrerequisite() {
		s += fmt.Sprintf(" and %s is true", r.Prerequisite)
	}
	return s
}

// String returns a compact representation, e.g. "AC_BRL = [Id10169].lt(14)".
func (r Rule) String() string {
	return fmt.Sprintf("%s = [%s].%s(%s)", r.Column, r.Source, r.Relationship, r.Condition.Raw)
}

// RuleGroup holds every rule for one output column in file order.
// A group with no rules is a declared column whose value is always NA.
type RuleGroup struct {
	Column        string
	Documentation string
	Rules         []Rule
}

// Declared reports whether the group has no rules.
func (g *RuleGroup) Declared() bool { return len(g.Rules) == 0 }

// Prerequisites returns the distinct prerequisite columns referenced by the group, in order.
func (g *RuleGroup) Prerequisites() []string {
	var out []string
	seen := make(map[string]bool)
	for _, r := range g.Rules {
		if r.Prerequisite == "" || seen[r.Prerequisite] {
			continue
		}
		seen[r.Prerequisite] = true
		out = append(out, r.Prerequisite)
	}
	return out
}

// Sources returns the distinct source ids referenced by the group, in order.
func (g *RuleGroup) Sources() []string {
	var out []string
	seen := make(map[string]bool)
	for _, r := range g.Rules {
		if r.Source == "" || seen[r.Source] {
			continue
		}
		seen[r.Source] = true
		out = append(out, r.Source)
	}
	return out
}

// RuleTable is the immutable, ordered set of rule groups built from one mapping configuration.
type RuleTable struct {
	groups []*RuleGroup
	index  map[string]int
}

// NewRuleTable builds a table from groups in configuration order.
// Group column names must be unique.
func NewRuleTable(groups []*RuleGroup) (*RuleTable, error) {
	t := &RuleTable{
		groups: make([]*RuleGroup, 0, len(groups)),
		index:  make(map[string]int, len(groups)),
	}
	for _, g := range groups {
		if _, dup := t.index[g.Column]; dup {
			return nil, fmt.Errorf("duplicate rule group %q", g.Column)
		}
		t.index[g.Column] = len(t.groups)
		t.groups = append(t.groups, g)
	}
	return t, nil
}

// Groups returns the groups in configuration order.
func (t *RuleTable) Groups() []*RuleGroup {
	out := make([]*RuleGroup, len(t.groups))
	copy(out, t.groups)
	return out
}

// Group returns the group for an output column.
func (t *RuleTable) Group(column string) (*RuleGroup, bool) {
	i, ok := t.index[column]
	if !ok {
		return nil, false
	}
	return t.groups[i], true
}

// Position returns the configuration-order index of a column, or -1.
func (t *RuleTable) Position(column string) int {
	if i, ok := t.index[column]; ok {
		return i
	}
	return -1
}

// Columns returns the output column names in configuration order.
func (t *RuleTable) Columns() []string {
	out := make([]string, len(t.groups))
	for i, g := range t.groups {
		out[i] = g.Column
	}
	return out
}

// Len returns the number of groups.
func (t *RuleTable) Len() int { return len(t.groups) }

// RuleCount returns the total number of rules across all groups.
func (t *RuleTable) RuleCount() int {
	n := 0
	for _, g := range t.groups {
		n += len(g.Rules)
	}
	return n
}

// Sources returns every distinct source id referenced by the table, in first-use order.
func (t *RuleTable) Sources() []string {
	var out []string
	seen := make(map[string]bool)
	for _, g := range t.groups {
		for _, s := range g.Sources() {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

// Dependents returns, for each source id, the output columns whose rules read it.
func (t *RuleTable) Dependents() map[string][]string {
	out := make(map[string][]string)
	for _, g := range t.groups {
		for _, s := range g.Sources() {
			out[s] = append(out[s], g.Column)
		}
	}
	return out
}
