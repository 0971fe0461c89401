// Package toollog keeps an audit trail of external tool invocations in an
// embedded sqlite database, queryable per job.
package toollog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"reconstruction-service/internal/toolrunner"
)

type Store struct {
	db *sql.DB
}

// Entry is one recorded invocation.
type Entry struct {
	ID        int64     `json:"id"`
	JobID     string    `json:"job_id"`
	Tool      string    `json:"tool"`
	Args      string    `json:"args"`
	ExitCode  int       `json:"exit_code"`
	Stdout    string    `json:"stdout,omitempty"`
	Stderr    string    `json:"stderr,omitempty"`
	Error     string    `json:"error,omitempty"`
	Duration  int64     `json:"duration_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// Open creates or opens the invocation log at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS invocations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			job_id TEXT NOT NULL,
			tool TEXT NOT NULL,
			args TEXT,
			exit_code INTEGER,
			stdout TEXT,
			stderr TEXT,
			error TEXT,
			duration_ms INTEGER,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_invocations_job ON invocations(job_id);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("toollog schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record implements toolrunner.Recorder.
func (s *Store) Record(ctx context.Context, inv toolrunner.Invocation, res toolrunner.Result, runErr error) error {
	errText := ""
	if runErr != nil {
		errText = runErr.Error()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invocations (job_id, tool, args, exit_code, stdout, stderr, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.JobID,
		inv.Tool,
		strings.Join(inv.Args, " "),
		res.ExitCode,
		res.Stdout,
		res.Stderr,
		errText,
		res.Duration.Milliseconds(),
	)
	return err
}

// ListByJob returns all invocations recorded for a job, oldest first.
func (s *Store) ListByJob(ctx context.Context, jobID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, tool, args, exit_code, stdout, stderr, error, duration_ms, created_at
		FROM invocations WHERE job_id = ? ORDER BY id`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.JobID, &e.Tool, &e.Args, &e.ExitCode,
			&e.Stdout, &e.Stderr, &e.Error, &e.Duration, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
