package table

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// DefaultSQLiteTable is the table name used when none is configured.
const DefaultSQLiteTable = "indicators"

// SQLiteSink writes output tables into a SQLite database.
// Every column is stored as TEXT holding the formatted result value.
type SQLiteSink struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens (or creates) the database at path. Use ":memory:" for an
// in-memory database.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteSink, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive across statements.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	return &SQLiteSink{db: db, logger: logger}, nil
}

// NewSQLiteSink wraps an existing connection.
func NewSQLiteSink(db *sql.DB, logger *slog.Logger) *SQLiteSink {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteSink{db: db, logger: logger}
}

// DB returns the underlying connection.
func (s *SQLiteSink) DB() *sql.DB { return s.db }

// Close closes the database connection.
func (s *SQLiteSink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Write replaces table with the contents of o in a single transaction.
func (s *SQLiteSink) Write(ctx context.Context, table string, o *Output, f Format) error {
	if table == "" {
		table = DefaultSQLiteTable
	}
	header := o.Header()

	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = quoteIdent(h) + " TEXT"
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(header)), ", ")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(cols, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}

	quoted := make([]string, len(header))
	for i, h := range header {
		quoted[i] = quoteIdent(h)
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(quoted, ", "), placeholders)
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(header))
	for _, rec := range o.Records(f) {
		for i, v := range rec {
			args[i] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	s.logger.Debug("wrote output table", "table", table, "rows", o.Len(), "columns", len(o.Columns))
	return nil
}

// ReadAll returns the header and rows of table, for inspection and tests.
func (s *SQLiteSink) ReadAll(ctx context.Context, table string) ([]string, [][]string, error) {
	if table == "" {
		table = DefaultSQLiteTable
	}
	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(table)+" ORDER BY rowid")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	header, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out [][]string
	for rows.Next() {
		vals := make([]sql.NullString, len(header))
		ptrs := make([]any, len(header))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rec := make([]string, len(vals))
		for i, v := range vals {
			rec[i] = v.String
		}
		out = append(out, rec)
	}
	return header, out, rows.Err()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
