package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/roach88/theo/internal/store"
	"github.com/roach88/theo/internal/suite"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
	RunID    string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List runs recorded with --record",
		Long: `List recorded runs, newest first, or the tests of one run with --run.

Example:
  theo history --db history.db --limit 5
  theo history --db history.db --run 0190a4c2-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite history database (required)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs to list (0 for all)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show the tests of this run")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	// Open would create a fresh database; a typo should not.
	if _, err := os.Stat(opts.Database); errors.Is(err, fs.ErrNotExist) {
		msg := fmt.Sprintf("database not found: %s", opts.Database)
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	history, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open history database", err)
	}
	defer history.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.RunID != "" {
		return showRun(ctx, formatter, history, opts.RunID)
	}

	runs, err := history.ListRuns(ctx, opts.Limit)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read history", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs recorded")
		return nil
	}
	renderRuns(formatter, runs)
	return nil
}

func showRun(ctx context.Context, f *OutputFormatter, history *store.Store, runID string) error {
	suites, err := history.ReadRun(ctx, runID)
	if errors.Is(err, store.ErrRunNotFound) {
		_ = f.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "unknown run", err)
	}
	if err != nil {
		_ = f.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	if f.Format == "json" {
		return f.Success(suites)
	}
	renderSuites(f, runID, suites)
	return nil
}

func renderRuns(f *OutputFormatter, runs []store.RunSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(f.Writer)
	t.AppendHeader(table.Row{"RUN", "STARTED", "DURATION", "OUTCOME", "SUITES", "TESTS", "FAILED"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "DURATION", Align: text.AlignRight},
		{Name: "SUITES", Align: text.AlignRight},
		{Name: "TESTS", Align: text.AlignRight},
		{Name: "FAILED", Align: text.AlignRight},
	})

	for _, r := range runs {
		duration := "-"
		if r.FinishedAt != nil {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		t.AppendRow(table.Row{
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			duration,
			r.Outcome,
			r.Suites,
			r.Tests,
			r.Failed,
		})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

func renderSuites(f *OutputFormatter, runID string, suites []*suite.Suite) {
	t := table.NewWriter()
	t.SetOutputMirror(f.Writer)
	t.SetTitle("Run " + runID)
	t.AppendHeader(table.Row{"SUITE", "TEST", "RESULT", "LEAK CHECK", "DURATION", "MESSAGE"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "SUITE", AutoMerge: true},
		{Name: "DURATION", Align: text.AlignRight},
		{Name: "MESSAGE", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, s := range suites {
		if s.StatusSetup == suite.StatusError {
			t.AppendRow(table.Row{s.Path, "(suite setup)", suite.StatusError, suite.StatusNotRun, "", "The suite setup failed!"})
			continue
		}
		for _, tc := range s.Tests {
			t.AppendRow(table.Row{
				s.Path,
				tc.Name,
				tc.StatusTest,
				tc.StatusValgrind,
				tc.Duration.Round(time.Millisecond).String(),
				tc.Message,
			})
		}
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}
