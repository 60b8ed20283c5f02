// Package core defines the shared language of the crossva system.
//
// This package contains:
//   - Tri-state indicator values (Value) and raw input cells (Cell)
//   - The rule model (Relationship, Condition, Rule, RuleGroup, RuleTable)
//   - Typed errors (ConfigError, TypeError, MissingSourceColumnError)
//   - Validation diagnostics (Severity, Diagnostic)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
