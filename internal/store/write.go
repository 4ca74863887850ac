package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/theo/internal/suite"
)

// Run outcomes stored in runs.outcome.
const (
	OutcomeRunning     = "running"
	OutcomePassed      = "passed"
	OutcomeFailed      = "failed"
	OutcomeInterrupted = "interrupted"
)

// BeginRun records the start of a run. Re-beginning an existing run ID is a
// no-op.
func (s *Store) BeginRun(ctx context.Context, runID string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, outcome)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, runID, startedAt.UnixNano(), OutcomeRunning)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// WriteSuite records a finished suite and all of its tests as the seq-th
// suite of the run. The suite and its tests are written atomically.
func (s *Store) WriteSuite(ctx context.Context, runID string, seq int, st *suite.Suite) error {
	cfgJSON, err := marshalConfiguration(st.Configuration)
	if err != nil {
		return fmt.Errorf("write suite: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write suite: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO suites (run_id, seq, path, status_setup, configuration)
		VALUES (?, ?, ?, ?, ?)
	`, runID, seq, st.Path, st.StatusSetup.String(), cfgJSON)
	if err != nil {
		return fmt.Errorf("write suite: %w", err)
	}
	suiteID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("write suite: get id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tests
		(suite_id, seq, name, command, status_setup, status_test, status_valgrind,
		 reason, message, exit_code, valgrind_errors, duration_ns, stdout, stderr)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write suite: prepare: %w", err)
	}
	defer stmt.Close()

	for i, t := range st.Tests {
		_, err := stmt.ExecContext(ctx,
			suiteID,
			i,
			t.Name,
			t.Command,
			t.StatusSetup.String(),
			t.StatusTest.String(),
			t.StatusValgrind.String(),
			t.Reason.String(),
			cleanText(t.Message),
			t.ExitCode,
			t.ValgrindErrors,
			t.Duration.Nanoseconds(),
			cleanText(t.Stdout),
			cleanText(t.Stderr),
		)
		if err != nil {
			return fmt.Errorf("write test %q: %w", t.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write suite: commit: %w", err)
	}
	return nil
}

// FinishRun stamps the run's end time and outcome.
func (s *Store) FinishRun(ctx context.Context, runID string, finishedAt time.Time, outcome string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, outcome = ? WHERE id = ?
	`, finishedAt.UnixNano(), outcome, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}
