package report

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/theo/internal/event"
	"github.com/roach88/theo/internal/store"
	"github.com/roach88/theo/internal/suite"
)

// History is the part of the run-history store the recorder writes to.
type History interface {
	BeginRun(ctx context.Context, runID string, startedAt time.Time) error
	WriteSuite(ctx context.Context, runID string, seq int, s *suite.Suite) error
	FinishRun(ctx context.Context, runID string, finishedAt time.Time, outcome string) error
}

// Recorder persists every finished suite of a run.
type Recorder struct {
	ctx      context.Context
	history  History
	runID    string
	now      func() time.Time
	seq      int
	failed   bool
	handlers handlers
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithClock replaces time.Now for start and finish stamps.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.now = now
	}
}

// NewRecorder begins a run in history with an ID from gen.
func NewRecorder(ctx context.Context, history History, gen IDGenerator, opts ...RecorderOption) (*Recorder, error) {
	r := &Recorder{
		// Suites finished during an interrupt must still be written.
		ctx:     context.WithoutCancel(ctx),
		history: history,
		runID:   gen.Generate(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.handlers = handlers{
		event.SuiteFinished: r.suiteFinished,
	}

	if err := history.BeginRun(ctx, r.runID, r.now()); err != nil {
		return nil, fmt.Errorf("record run: %w", err)
	}
	return r, nil
}

// RunID returns the identifier this run is recorded under.
func (r *Recorder) RunID() string {
	return r.runID
}

func (r *Recorder) Handle(e event.Event) error {
	return r.handlers.dispatch(e)
}

func (r *Recorder) suiteFinished(e event.Event) error {
	if e.Suite.Failed() {
		r.failed = true
	}
	seq := r.seq
	r.seq++
	if err := r.history.WriteSuite(r.ctx, r.runID, seq, e.Suite); err != nil {
		return fmt.Errorf("record suite %s: %w", e.Suite.Path, err)
	}
	return nil
}

// Finish stamps the run's outcome. interrupted wins over test results;
// invalid reports suites that could not be loaded and never reached the bus.
// Call it only after the bus has been drained.
func (r *Recorder) Finish(interrupted, invalid bool) error {
	outcome := store.OutcomePassed
	switch {
	case interrupted:
		outcome = store.OutcomeInterrupted
	case r.failed || invalid:
		outcome = store.OutcomeFailed
	}
	if err := r.history.FinishRun(r.ctx, r.runID, r.now(), outcome); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}
