package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/theo/internal/suite"
)

// ErrRunNotFound is returned when a run ID has no record.
var ErrRunNotFound = errors.New("run not found")

// RunSummary is one row of run history with aggregate counts.
type RunSummary struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Outcome    string     `json:"outcome"`
	Suites     int        `json:"suites"`
	Tests      int        `json:"tests"`
	Failed     int        `json:"failed"`
}

// ListRuns returns the most recent runs first. limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.started_at, r.finished_at, r.outcome,
		       (SELECT COUNT(*) FROM suites s WHERE s.run_id = r.id),
		       (SELECT COUNT(*) FROM tests t JOIN suites s ON t.suite_id = s.id
		         WHERE s.run_id = r.id),
		       (SELECT COUNT(*) FROM tests t JOIN suites s ON t.suite_id = s.id
		         WHERE s.run_id = r.id
		           AND 'ERROR' IN (t.status_setup, t.status_test, t.status_valgrind))
		FROM runs r
		ORDER BY r.started_at DESC, r.id COLLATE BINARY DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var (
			r        RunSummary
			started  int64
			finished sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.Outcome, &r.Suites, &r.Tests, &r.Failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.Unix(0, started).UTC()
		if finished.Valid {
			t := time.Unix(0, finished.Int64).UTC()
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun returns the suites recorded for runID in execution order.
func (s *Store) ReadRun(ctx context.Context, runID string) ([]*suite.Suite, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, runID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, status_setup, configuration
		FROM suites
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query suites: %w", err)
	}

	var ids []int64
	suites := []*suite.Suite{}
	for rows.Next() {
		var (
			id               int64
			path, status, cf string
		)
		if err := rows.Scan(&id, &path, &status, &cf); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan suite: %w", err)
		}
		st, err := parseStatus(status)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("suite %s: %w", path, err)
		}
		cfg, err := unmarshalConfiguration(cf)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("suite %s: %w", path, err)
		}
		ids = append(ids, id)
		suites = append(suites, &suite.Suite{Path: path, Configuration: cfg, StatusSetup: st, Tests: []*suite.Test{}})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate suites: %w", err)
	}
	rows.Close()

	// Read tests after the suite cursor is closed; the pool has one connection.
	for i, id := range ids {
		tests, err := s.readTests(ctx, id)
		if err != nil {
			return nil, err
		}
		suites[i].Tests = tests
	}
	return suites, nil
}

func (s *Store) readTests(ctx context.Context, suiteID int64) ([]*suite.Test, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, command, status_setup, status_test, status_valgrind, reason,
		       message, exit_code, valgrind_errors, duration_ns, stdout, stderr
		FROM tests
		WHERE suite_id = ?
		ORDER BY seq ASC
	`, suiteID)
	if err != nil {
		return nil, fmt.Errorf("query tests: %w", err)
	}
	defer rows.Close()

	tests := []*suite.Test{}
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tests: %w", err)
	}
	return tests, nil
}

func scanTest(rows *sql.Rows) (*suite.Test, error) {
	var (
		t                            suite.Test
		setup, run, valgrind, reason string
		durationNs                   int64
	)
	if err := rows.Scan(&t.Name, &t.Command, &setup, &run, &valgrind, &reason,
		&t.Message, &t.ExitCode, &t.ValgrindErrors, &durationNs, &t.Stdout, &t.Stderr); err != nil {
		return nil, fmt.Errorf("scan test: %w", err)
	}

	var err error
	if t.StatusSetup, err = parseStatus(setup); err != nil {
		return nil, fmt.Errorf("test %q: %w", t.Name, err)
	}
	if t.StatusTest, err = parseStatus(run); err != nil {
		return nil, fmt.Errorf("test %q: %w", t.Name, err)
	}
	if t.StatusValgrind, err = parseStatus(valgrind); err != nil {
		return nil, fmt.Errorf("test %q: %w", t.Name, err)
	}
	if t.Reason, err = parseReason(reason); err != nil {
		return nil, fmt.Errorf("test %q: %w", t.Name, err)
	}
	t.Duration = time.Duration(durationNs)
	t.Setup = []string{}
	return &t, nil
}
