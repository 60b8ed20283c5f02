package output

import "github.com/leapstack-labs/crossva/pkg/core"

// TransformResult is the JSON summary of one transformed input.
type TransformResult struct {
	Input          string         `json:"input"`
	Output         string         `json:"output"`
	SQLiteTable    string         `json:"sqlite_table,omitempty"`
	Mapping        string         `json:"mapping"`
	InputFormat    string         `json:"input_format,omitempty"`
	OutputFormat   string         `json:"output_format,omitempty"`
	RunID          string         `json:"run_id,omitempty"`
	Rows           int            `json:"rows"`
	Columns        int            `json:"columns"`
	MissingSources []string       `json:"missing_sources,omitempty"`
	TypeErrors     int            `json:"type_errors"`
	TypeErrorsBy   map[string]int `json:"type_errors_by_rule,omitempty"`
	DurationMS     int64          `json:"duration_ms"`
}

// ValidateOutput is the JSON form of the validate command.
type ValidateOutput struct {
	Mapping     string            `json:"mapping"`
	Valid       bool              `json:"valid"`
	Columns     int               `json:"columns"`
	Rules       int               `json:"rules"`
	Diagnostics []core.Diagnostic `json:"diagnostics"`
	Errors      []string          `json:"errors,omitempty"`
}

// StatLine is one distinct-value statistic of a mapping.
type StatLine struct {
	Field    string   `json:"field"`
	Label    string   `json:"label"`
	Count    int      `json:"count"`
	Examples []string `json:"examples"`
}

// DescribeOutput is the JSON form of the describe command.
type DescribeOutput struct {
	Mapping       string         `json:"mapping"`
	Stats         []StatLine     `json:"stats"`
	Relationships map[string]int `json:"relationships"`
	Declared      []string       `json:"declared,omitempty"`
}

// PlanNode is one output column in the evaluation plan.
type PlanNode struct {
	Column    string   `json:"column"`
	Rules     int      `json:"rules"`
	DependsOn []string `json:"depends_on,omitempty"`
	UsedBy    []string `json:"used_by,omitempty"`
}

// PlanLevel groups columns with the same dependency depth.
type PlanLevel struct {
	Level   int        `json:"level"`
	Columns []PlanNode `json:"columns"`
}

// PlanOutput is the JSON form of the plan command.
type PlanOutput struct {
	Mapping      string      `json:"mapping"`
	Levels       []PlanLevel `json:"levels"`
	TotalColumns int         `json:"total_columns"`
	TotalEdges   int         `json:"total_edges"`
}

// ExplainRule is one rule in English.
type ExplainRule struct {
	Row          int    `json:"row"`
	Source       string `json:"source"`
	Relationship string `json:"relationship"`
	Condition    string `json:"condition"`
	Prerequisite string `json:"prerequisite,omitempty"`
	Text         string `json:"text"`
}

// ExplainOutput is the JSON form of the explain command.
type ExplainOutput struct {
	Column        string        `json:"column"`
	Documentation string        `json:"documentation,omitempty"`
	Declared      bool          `json:"declared"`
	Rules         []ExplainRule `json:"rules"`
	Upstream      []string      `json:"upstream,omitempty"`
	Downstream    []string      `json:"downstream,omitempty"`
}

// PresetInfo is one input/output pair and its mapping file.
type PresetInfo struct {
	Input     string `json:"input"`
	Output    string `json:"output"`
	Mapping   string `json:"mapping"`
	Available bool   `json:"available"`
}
