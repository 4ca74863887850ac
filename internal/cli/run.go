package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/theo/internal/engine"
	"github.com/roach88/theo/internal/event"
	"github.com/roach88/theo/internal/report"
	"github.com/roach88/theo/internal/store"
	"github.com/roach88/theo/internal/suite"
)

// Output modes for the run command.
const (
	OutputNice   = "nice"
	OutputEvents = "events"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Output    string
	Record    string
	Artifacts string
	Valgrind  string
	Sentinel  string
	Color     string // auto | always | never

	// RunIDs overrides the run ID generator for --record (for testing).
	// If nil, defaults to report.UUIDv7Generator.
	RunIDs report.IDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <paths...>",
		Short: "Run suites and report results",
		Long: `Run every test of every suite and report progress as it happens.

Each path is a suite file or a directory; a directory contributes its
non-hidden files in name order. Invalid suites are reported and skipped.

Example:
  theo run tests/
  theo run -o events --record history.db parser.c lexer.c`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuites(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", OutputNice, "reporter (nice|events)")
	cmd.Flags().StringVar(&opts.Record, "record", "", "append results to this SQLite history database")
	cmd.Flags().StringVar(&opts.Artifacts, "artifacts", ".", "directory for .valgrind reports of failing leak checks")
	cmd.Flags().StringVar(&opts.Valgrind, "valgrind", engine.DefaultValgrind, "leak checker binary")
	cmd.Flags().StringVar(&opts.Sentinel, "sentinel", suite.DefaultSentinel, "marker line delimiting embedded suites")
	cmd.Flags().StringVar(&opts.Color, "color", "auto", "color nice output (auto|always|never)")

	return cmd
}

// runOutcome accumulates what happened across all suites of a run.
type runOutcome struct {
	failed      int
	invalid     int
	interrupted bool
}

func runSuites(opts *RunOptions, paths []string, cmd *cobra.Command) error {
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	slog.SetDefault(logger)

	if opts.Output != OutputNice && opts.Output != OutputEvents {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("invalid output %q: must be %s or %s", opts.Output, OutputNice, OutputEvents))
	}
	if opts.Sentinel == "" {
		return NewExitError(ExitCommandError, "sentinel must not be empty")
	}

	files, err := DiscoverSuites(paths)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot find suites", err)
	}
	logger.Debug("discovered suites", "count", len(files))

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reporters := report.Multi{newConsoleReporter(opts, cmd.OutOrStdout())}

	var recorder *report.Recorder
	if opts.Record != "" {
		history, err := store.Open(opts.Record)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open history database", err)
		}
		defer func() {
			if closeErr := history.Close(); closeErr != nil {
				logger.Error("error closing history database", "error", closeErr)
			}
		}()

		ids := opts.RunIDs
		if ids == nil {
			ids = report.UUIDv7Generator{}
		}
		recorder, err = report.NewRecorder(ctx, history, ids)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
		logger.Debug("recording run", "db", history.Path(), "run_id", recorder.RunID())
		reporters = append(reporters, recorder)
	}

	bus := event.NewBus()
	eng := engine.New(bus,
		engine.WithLogger(logger),
		engine.WithValgrind(opts.Valgrind),
		engine.WithArtifactDir(opts.Artifacts),
	)

	var outcome runOutcome
	var g errgroup.Group
	g.Go(func() error {
		return report.Run(bus, reporters)
	})
	g.Go(func() error {
		defer bus.Publish(event.Event{Kind: event.Exit})
		outcome = executeSuites(ctx, eng, files, opts.Sentinel, cmd.ErrOrStderr(), logger)
		return nil
	})
	// Only the reporter fails; test failures are carried by outcome.
	reportErr := g.Wait()
	if reportErr != nil {
		logger.Error("reporting failed", "error", reportErr)
	}

	if recorder != nil {
		if err := recorder.Finish(outcome.interrupted, outcome.invalid > 0); err != nil {
			logger.Error("failed to finish run record", "error", err)
		}
	}

	switch {
	case outcome.interrupted:
		return NewExitError(ExitInterrupted, "interrupted")
	case outcome.failed > 0 || outcome.invalid > 0:
		return NewExitError(ExitFailure,
			fmt.Sprintf("%d suite(s) failed, %d invalid", outcome.failed, outcome.invalid))
	case reportErr != nil:
		return WrapExitError(ExitCommandError, "reporting failed", reportErr)
	}
	return nil
}

// executeSuites loads and runs each file in order. Files that fail to load
// are reported on errW and skipped.
func executeSuites(ctx context.Context, eng *engine.Engine, files []string, sentinel string, errW io.Writer, logger *slog.Logger) runOutcome {
	var outcome runOutcome
	for _, path := range files {
		if ctx.Err() != nil {
			break
		}

		s, err := suite.Load(path, sentinel)
		if err != nil {
			outcome.invalid++
			logger.Debug("skipping suite", "path", path, "error", err)
			fmt.Fprintln(errW, err)
			continue
		}

		logger.Debug("running suite", "path", path, "tests", len(s.Tests))
		result := eng.RunSuite(ctx, s)
		if result.Interrupted {
			outcome.interrupted = true
			break
		}
		if !result.OK() {
			outcome.failed++
		}
	}
	if ctx.Err() != nil {
		outcome.interrupted = true
	}
	return outcome
}

func newConsoleReporter(opts *RunOptions, w io.Writer) report.Reporter {
	if opts.Output == OutputEvents {
		return report.NewEvents(w)
	}
	var useColor bool
	switch opts.Color {
	case "always":
		useColor = true
	case "never":
		useColor = false
	default:
		useColor = report.ColorEnabled(w)
	}
	return report.NewNice(w, useColor)
}
