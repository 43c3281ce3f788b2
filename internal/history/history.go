// Package history records scenario runs in a sqlite database so results can
// be compared across invocations of the simsuite command.
package history

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// A Run is the recorded result of one scenario run.
type Run struct {
	ID       int64
	Suite    string
	Scenario string
	Start    time.Time
	Duration time.Duration
	ExitCode int
	Passed   bool
	Output   string
	// Diff is the comparison diff for a mismatch or the error for a run
	// that could not be compared.
	Diff string
}

type DB struct {
	mu sync.Mutex
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	suite TEXT NOT NULL,
	scenario TEXT NOT NULL,
	start INT NOT NULL,
	duration INT NOT NULL,
	exit_code INT NOT NULL,
	passed INT NOT NULL,
	output TEXT NOT NULL,
	diff TEXT NOT NULL
) STRICT;
CREATE INDEX IF NOT EXISTS runs_by_scenario ON runs (suite, scenario, start);
`

// Open opens the database at path, creating it and its directory if needed.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{
		db: db,
	}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Record stores r and sets its ID.
func (d *DB) Record(r *Run) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	res, err := d.db.Exec("INSERT INTO runs (suite, scenario, start, duration, exit_code, passed, output, diff) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		r.Suite, r.Scenario, r.Start.UnixNano(), int64(r.Duration), r.ExitCode, r.Passed, r.Output, r.Diff)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	r.ID = id
	return nil
}

// Recent returns up to limit runs, newest first. An empty suite matches all
// suites and an empty scenario all scenarios of the suite.
func (d *DB) Recent(suite, scenario string, limit int) ([]*Run, error) {
	var where []string
	var args []any
	if suite != "" {
		where = append(where, "suite = ?")
		args = append(args, suite)
	}
	if scenario != "" {
		where = append(where, "scenario = ?")
		args = append(args, scenario)
	}
	query := "SELECT id, suite, scenario, start, duration, exit_code, passed, output, diff FROM runs"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY start DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var r Run
		var start, duration int64
		if err := rows.Scan(&r.ID, &r.Suite, &r.Scenario, &start, &duration, &r.ExitCode, &r.Passed, &r.Output, &r.Diff); err != nil {
			return nil, err
		}
		r.Start = time.Unix(0, start)
		r.Duration = time.Duration(duration)
		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// Clean deletes runs started before the given time and returns how many
// were deleted.
func (d *DB) Clean(before time.Time) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	res, err := d.db.Exec("DELETE FROM runs WHERE start < ?", before.UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
