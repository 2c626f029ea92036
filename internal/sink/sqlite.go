package sink

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/agentic-research/xml2csv/api"
)

// DefaultTable is the table SQLite writes to when none is configured.
const DefaultTable = "rows"

// SQLite writes a table into a SQLite database file, replacing any table of
// the same name. Columns are TEXT, in header order; unset cells are ''.
type SQLite struct {
	Path  string
	Table string
}

// Write implements Writer.
func (s *SQLite) Write(t *api.Table) error {
	if len(t.Header) == 0 {
		return nil
	}
	table := s.Table
	if table == "" {
		table = DefaultTable
	}

	db, err := sql.Open("sqlite", s.Path)
	if err != nil {
		return fmt.Errorf("open sqlite %s: %w", s.Path, err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec("PRAGMA synchronous = OFF"); err != nil {
		return err
	}
	if _, err := db.Exec("PRAGMA journal_mode = MEMORY"); err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if err := insertTable(tx, table, t); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func insertTable(tx *sql.Tx, table string, t *api.Table) error {
	cols := sqlColumns(t.Header)
	quoted := make([]string, len(cols))
	defs := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
		defs[i] = quoted[i] + " TEXT"
	}

	if _, err := tx.Exec("DROP TABLE IF EXISTS " + quoteIdent(table)); err != nil {
		return fmt.Errorf("drop table: %w", err)
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(defs, ", "))
	if _, err := tx.Exec(create); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(quoted, ", "), placeholders))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	args := make([]any, len(cols))
	for i, rec := range t.Records() {
		for j, v := range rec {
			args[j] = v
		}
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	return nil
}

// sqlColumns maps header names onto SQLite column names. SQLite identifiers
// are case-insensitive, so "Name" and "name" need distinct spellings.
func sqlColumns(header []string) []string {
	seen := make(map[string]bool, len(header))
	out := make([]string, len(header))
	for i, name := range header {
		candidate := name
		for n := 2; seen[strings.ToLower(candidate)]; n++ {
			candidate = fmt.Sprintf("%s_%d", name, n)
		}
		seen[strings.ToLower(candidate)] = true
		out[i] = candidate
	}
	return out
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var _ Writer = (*SQLite)(nil)
