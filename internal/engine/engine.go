package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/theo/internal/event"
	"github.com/roach88/theo/internal/suite"
)

// DefaultShell interprets every command, setup command and leak-check wrapper.
const DefaultShell = "/bin/sh"

// Engine executes suites one at a time and publishes their lifecycle events.
//
// An Engine changes its own process environment while a test runs, so
// RunSuite must not be called concurrently.
type Engine struct {
	bus         event.Publisher
	logger      *slog.Logger
	shell       string
	valgrind    string
	artifactDir string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for engine diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithShell sets the shell used to interpret commands.
func WithShell(shell string) Option {
	return func(e *Engine) {
		e.shell = shell
	}
}

// WithValgrind sets the leak checker binary.
func WithValgrind(binary string) Option {
	return func(e *Engine) {
		e.valgrind = binary
	}
}

// WithArtifactDir sets where failing leak reports are kept.
func WithArtifactDir(dir string) Option {
	return func(e *Engine) {
		e.artifactDir = dir
	}
}

// New creates an engine that publishes to bus.
func New(bus event.Publisher, opts ...Option) *Engine {
	e := &Engine{
		bus:         bus,
		logger:      slog.Default(),
		shell:       DefaultShell,
		valgrind:    DefaultValgrind,
		artifactDir: ".",
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Report summarizes one executed suite.
type Report struct {
	Path        string
	Total       int
	Executed    int
	Failed      int
	SetupFailed bool
	Interrupted bool
}

// OK reports whether the suite setup and every test passed.
func (r Report) OK() bool {
	return !r.SetupFailed && !r.Interrupted && r.Failed == 0
}

// RunSuite executes s and returns its summary. The suite and its tests are
// updated in place. SuiteStart and SuiteFinished are always published, even
// when ctx is cancelled part way through; tests never reached stay NOTRUN.
func (e *Engine) RunSuite(ctx context.Context, s *suite.Suite) Report {
	log := e.logger.With("suite", s.Path)
	report := Report{Path: s.Path, Total: len(s.Tests)}

	e.publishSuite(event.SuiteStart, s)

	if len(s.Configuration.Setup) > 0 {
		s.StatusSetup = suite.StatusRunning
		if err := e.runCommands(ctx, s.Configuration.Setup); err != nil {
			s.StatusSetup = suite.StatusError
			log.Warn("suite setup failed", "error", err)
		} else {
			s.StatusSetup = suite.StatusPass
		}
	}
	e.publishSuite(event.SuiteSetupFinished, s)

	if s.StatusSetup == suite.StatusError {
		report.SetupFailed = true
	} else {
		for _, t := range s.Tests {
			if ctx.Err() != nil {
				report.Interrupted = true
				break
			}
			e.runInOverlay(ctx, s, t)
			report.Executed++
			if t.Failed() {
				report.Failed++
			}
		}
	}
	if ctx.Err() != nil {
		report.Interrupted = true
	}

	e.publishSuite(event.SuiteFinished, s)
	log.Debug("suite finished",
		"executed", report.Executed,
		"failed", report.Failed,
		"setup_failed", report.SetupFailed)
	return report
}

func (e *Engine) runInOverlay(ctx context.Context, s *suite.Suite, t *suite.Test) {
	ov := applyOverlay(e.logger, s.Configuration.Environment, s.Configuration.Volatile)
	defer ov.revert()
	e.runTest(ctx, t)
}

func (e *Engine) publishSuite(kind event.Kind, s *suite.Suite) {
	e.bus.Publish(event.Event{Kind: kind, Suite: s.Snapshot()})
}

func (e *Engine) publishTest(kind event.Kind, t *suite.Test) {
	e.bus.Publish(event.Event{Kind: kind, Test: t.Snapshot()})
}
