// Package table reads and writes the tabular data around the engine: questionnaire
// input tables, mapping configuration tables and indicator output tables.
//
// CSV is the interchange format for all three. Mapping tables may also be YAML, and
// output tables can be written to a SQLite database.
package table
