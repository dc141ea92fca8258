// Package runstore keeps a SQLite index of runs and per-instance results
// for the status commands and the dashboard. The run directory remains the
// durable record; this index is a reporting convenience and is written
// best-effort.
package runstore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hochfrequenz/swebatch/internal/domain"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed run indexing.
type Store struct {
	db *sql.DB
}

// New opens (creating if necessary) the run index at the given path.
func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Run is one indexed batch invocation.
type Run struct {
	ID         string
	Name       string
	RunDir     string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Instance is one indexed per-instance result.
type Instance struct {
	RunID      string
	InstanceID string
	State      domain.InstanceState
	ExitStatus domain.ExitStatus
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// BeginRun records the start of a batch invocation and returns its id.
func (s *Store) BeginRun(name, runDir string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO runs (id, name, run_dir, started_at) VALUES (?, ?, ?, ?)`,
		id, name, runDir, time.Now())
	if err != nil {
		return "", err
	}
	return id, nil
}

// FinishRun marks a batch invocation as finished.
func (s *Store) FinishRun(runID string) error {
	_, err := s.db.Exec(`UPDATE runs SET finished_at = ? WHERE id = ?`, time.Now(), runID)
	return err
}

// SetInstanceState upserts the state of one instance within a run.
func (s *Store) SetInstanceState(runID, instanceID string, state domain.InstanceState, exitStatus domain.ExitStatus, errMsg string) error {
	now := time.Now()
	var finished *time.Time
	switch state {
	case domain.StateRunning:
	default:
		finished = &now
	}

	_, err := s.db.Exec(`
		INSERT INTO instances (run_id, instance_id, state, exit_status, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, instance_id) DO UPDATE SET
			state = excluded.state,
			exit_status = excluded.exit_status,
			error = excluded.error,
			finished_at = excluded.finished_at
	`, runID, instanceID, string(state), string(exitStatus), errMsg, now, finished)
	return err
}

// ListRuns returns all indexed runs, most recent first.
func (s *Store) ListRuns() ([]*Run, error) {
	rows, err := s.db.Query(`
		SELECT id, name, run_dir, started_at, finished_at
		FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Name, &r.RunDir, &r.StartedAt, &finished); err != nil {
			return nil, err
		}
		if finished.Valid {
			r.FinishedAt = &finished.Time
		}
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

// LatestRun returns the most recently started run with the given name,
// or nil when none exists.
func (s *Store) LatestRun(name string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT id, name, run_dir, started_at, finished_at
		FROM runs WHERE name = ? ORDER BY started_at DESC LIMIT 1`, name)

	var r Run
	var finished sql.NullTime
	if err := row.Scan(&r.ID, &r.Name, &r.RunDir, &r.StartedAt, &finished); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if finished.Valid {
		r.FinishedAt = &finished.Time
	}
	return &r, nil
}

// ListInstances returns the per-instance results of a run in instance order.
func (s *Store) ListInstances(runID string) ([]*Instance, error) {
	rows, err := s.db.Query(`
		SELECT run_id, instance_id, state, exit_status, error, started_at, finished_at
		FROM instances WHERE run_id = ? ORDER BY started_at, instance_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Instance
	for rows.Next() {
		var in Instance
		var state, exitStatus, errMsg sql.NullString
		var finished sql.NullTime
		if err := rows.Scan(&in.RunID, &in.InstanceID, &state, &exitStatus, &errMsg, &in.StartedAt, &finished); err != nil {
			return nil, err
		}
		in.State = domain.InstanceState(state.String)
		in.ExitStatus = domain.ExitStatus(exitStatus.String)
		in.Error = errMsg.String
		if finished.Valid {
			in.FinishedAt = &finished.Time
		}
		out = append(out, &in)
	}
	return out, rows.Err()
}

// Summary counts instances of a run by state.
func (s *Store) Summary(runID string) (map[domain.InstanceState]int, error) {
	rows, err := s.db.Query(`
		SELECT state, COUNT(*) FROM instances WHERE run_id = ? GROUP BY state`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.InstanceState]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		counts[domain.InstanceState(state)] = n
	}
	return counts, rows.Err()
}
