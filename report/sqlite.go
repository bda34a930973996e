package report

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS stations (
	name  TEXT PRIMARY KEY,
	min   REAL NOT NULL,
	max   REAL NOT NULL,
	mean  REAL NOT NULL,
	count INTEGER NOT NULL
)`

// WriteSQLite replaces the stations table of the database at path with rs,
// inside one transaction.
func WriteSQLite(ctx context.Context, path string, rs []Result) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("report: open %s: %w", path, err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("report: create schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("report: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM stations`); err != nil {
		return fmt.Errorf("report: clear stations: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO stations (name, min, max, mean, count) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("report: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range rs {
		r := &rs[i]
		if _, err := stmt.ExecContext(ctx, r.Key, r.Min, r.Max, r.Mean, int64(r.Count)); err != nil {
			return fmt.Errorf("report: insert %q: %w", r.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("report: commit: %w", err)
	}
	return nil
}

// ReadSQLite loads every row of the stations table, ordered by name.
func ReadSQLite(ctx context.Context, path string) ([]Result, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("report: open %s: %w", path, err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stations`).Scan(&n); err != nil {
		return nil, fmt.Errorf("report: count stations: %w", err)
	}
	out := make([]Result, 0, n)

	rows, err := db.QueryContext(ctx, `SELECT name, min, max, mean, count FROM stations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("report: query stations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r Result
		var count int64
		if err := rows.Scan(&r.Key, &r.Min, &r.Max, &r.Mean, &count); err != nil {
			return nil, fmt.Errorf("report: scan station: %w", err)
		}
		r.Count = uint64(count)
		out = append(out, r)
	}
	return out, rows.Err()
}
