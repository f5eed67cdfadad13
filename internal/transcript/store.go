// Package transcript persists orchestration runs to SQLite so past
// goals, their call history, and outcomes can be reviewed after the
// fact.
package transcript

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mwiersma/landmeter/internal/orchestrator"
)

// Run is one persisted orchestration run. Answer and FailureReason are
// mutually exclusive.
type Run struct {
	ID            string
	Goal          string
	Answer        string
	FailureReason string
	Rounds        int
	Calls         int
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Store wraps the SQLite transcript database.
type Store struct {
	conn *sql.DB
	path string
}

// DefaultPath returns the transcript database location under the XDG
// data directory.
func DefaultPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "landmeter", "transcripts.db")
}

// Open opens (creating if needed) the transcript database at path. WAL
// mode is enabled for concurrent reads.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create transcript directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open transcript database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{conn: conn, path: path}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id             TEXT PRIMARY KEY,
		goal           TEXT NOT NULL,
		answer         TEXT NOT NULL DEFAULT '',
		failure_reason TEXT NOT NULL DEFAULT '',
		rounds         INTEGER NOT NULL,
		calls          INTEGER NOT NULL,
		started_at     TIMESTAMP NOT NULL,
		finished_at    TIMESTAMP NOT NULL
	);
	CREATE TABLE IF NOT EXISTS run_calls (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		round       INTEGER NOT NULL,
		capability  TEXT NOT NULL,
		arguments   TEXT NOT NULL DEFAULT '',
		result      TEXT NOT NULL DEFAULT '',
		error       TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_run_calls_run ON run_calls(run_id);
	`
	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("migrate transcript schema: %w", err)
	}
	return nil
}

// Record persists a finished run with its full call history.
func (s *Store) Record(run Run, history []orchestrator.Outcome) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transcript transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (id, goal, answer, failure_reason, rounds, calls, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Goal, run.Answer, run.FailureReason,
		run.Rounds, run.Calls, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	for _, o := range history {
		_, err = tx.Exec(`
			INSERT INTO run_calls (run_id, round, capability, arguments, result, error, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID, o.Round, o.Capability, string(o.Arguments), string(o.Result), o.Err,
			o.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("insert call for run %s: %w", run.ID, err)
		}
	}

	return tx.Commit()
}

// Recent returns the most recent runs, newest first.
func (s *Store) Recent(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.conn.Query(`
		SELECT id, goal, answer, failure_reason, rounds, calls, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Goal, &r.Answer, &r.FailureReason, &r.Rounds, &r.Calls, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// History returns a run's call history in issue order.
func (s *Store) History(runID string) ([]orchestrator.Outcome, error) {
	rows, err := s.conn.Query(`
		SELECT round, capability, arguments, result, error, duration_ms
		FROM run_calls WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query calls for run %s: %w", runID, err)
	}
	defer rows.Close()

	var history []orchestrator.Outcome
	for rows.Next() {
		var o orchestrator.Outcome
		var args, result string
		var durationMS int64
		if err := rows.Scan(&o.Round, &o.Capability, &args, &result, &o.Err, &durationMS); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		if args != "" {
			o.Arguments = []byte(args)
		}
		if result != "" {
			o.Result = []byte(result)
		}
		o.Duration = time.Duration(durationMS) * time.Millisecond
		history = append(history, o)
	}
	return history, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.conn.Close()
}
