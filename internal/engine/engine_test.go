package engine

import (
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/theo/internal/event"
	"github.com/roach88/theo/internal/suite"
)

// recorder collects published events in order.
type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) Publish(e event.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return true
}

func (r *recorder) kinds() []event.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]event.Kind, len(r.events))
	for i, e := range r.events {
		kinds[i] = e.Kind
	}
	return kinds
}

func (r *recorder) last() event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("commands run through /bin/sh")
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngine(t *testing.T, opts ...Option) (*Engine, *recorder) {
	t.Helper()
	requireShell(t)
	rec := &recorder{}
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return New(rec, opts...), rec
}

func newSuite(tests ...*suite.Test) *suite.Suite {
	return &suite.Suite{
		Path:          "suite.yaml",
		Configuration: suite.DefaultConfiguration(),
		Tests:         tests,
	}
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestRunSuite_OutputMatchIgnoresSurroundingWhitespace(t *testing.T) {
	e, _ := newEngine(t)

	tc := suite.NewTest("echo", "echo hello")
	tc.ExpectedOutput = strPtr("  hello  ")
	s := newSuite(tc)

	report := e.RunSuite(context.Background(), s)

	assert.True(t, report.OK())
	assert.Equal(t, suite.StatusPass, tc.StatusTest)
	assert.Equal(t, suite.StatusNotRun, tc.StatusSetup)
	assert.Equal(t, suite.StatusNotRun, tc.StatusValgrind)
	assert.Equal(t, suite.ReasonNone, tc.Reason)
	assert.Equal(t, "hello\n", tc.Stdout)
}

func TestRunSuite_OutputMismatch(t *testing.T) {
	e, _ := newEngine(t)

	tc := suite.NewTest("echo", "echo abcd")
	tc.ExpectedOutput = strPtr("abc")
	s := newSuite(tc)

	report := e.RunSuite(context.Background(), s)

	assert.False(t, report.OK())
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, suite.StatusError, tc.StatusTest)
	assert.Equal(t, suite.ReasonOutput, tc.Reason)
	assert.Equal(t, "Expected output 'abc' but found 'abcd'", tc.Message)
}

func TestRunSuite_ExitCodeChecks(t *testing.T) {
	e, _ := newEngine(t)

	pass := suite.NewTest("exit 3", "exit 3")
	pass.ExpectedExit = intPtr(3)
	fail := suite.NewTest("exit 0", "true")
	fail.ExpectedExit = intPtr(2)
	unchecked := suite.NewTest("unchecked", "exit 9")

	report := e.RunSuite(context.Background(), newSuite(pass, fail, unchecked))

	assert.Equal(t, 3, report.Executed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, suite.StatusPass, pass.StatusTest)
	assert.Equal(t, suite.StatusError, fail.StatusTest)
	assert.Equal(t, suite.ReasonReturn, fail.Reason)
	assert.Equal(t, "Expected return value '2' but found '0'", fail.Message)
	assert.Equal(t, suite.StatusPass, unchecked.StatusTest, "exit status is not checked without an expectation")
	assert.Equal(t, 9, unchecked.ExitCode)
}

func TestRunSuite_OutputCheckedBeforeExit(t *testing.T) {
	e, _ := newEngine(t)

	tc := suite.NewTest("both", "echo x; exit 1")
	tc.ExpectedOutput = strPtr("y")
	tc.ExpectedExit = intPtr(0)

	e.RunSuite(context.Background(), newSuite(tc))

	assert.Equal(t, suite.ReasonOutput, tc.Reason)
}

func TestRunSuite_StdinInput(t *testing.T) {
	e, _ := newEngine(t)

	withInput := suite.NewTest("cat", "cat")
	withInput.Input = strPtr("from stdin")
	withInput.ExpectedOutput = strPtr("from stdin")

	empty := suite.NewTest("empty stdin", "cat")
	empty.ExpectedOutput = strPtr("")

	report := e.RunSuite(context.Background(), newSuite(withInput, empty))

	assert.True(t, report.OK(), "%s / %s", withInput.Message, empty.Message)
}

func TestRunSuite_TimeoutKillsProcessGroup(t *testing.T) {
	e, _ := newEngine(t)

	pidFile := filepath.Join(t.TempDir(), "child.pid")
	tc := suite.NewTest("sleeper", "sleep 30 & echo $! > "+pidFile+"; wait")
	tc.Timeout = 1

	start := time.Now()
	e.RunSuite(context.Background(), newSuite(tc))
	elapsed := time.Since(start)

	assert.Equal(t, suite.StatusError, tc.StatusTest)
	assert.Equal(t, suite.ReasonTimeout, tc.Reason)
	assert.Equal(t, "Timeout of 1 seconds", tc.Message)
	assert.Less(t, elapsed, 10*time.Second)
	assert.GreaterOrEqual(t, elapsed, time.Second)

	if runtime.GOOS != "linux" {
		return
	}
	data, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	pid := strings.TrimSpace(string(data))
	_, err = strconv.Atoi(pid)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		stat, err := os.ReadFile(filepath.Join("/proc", pid, "stat"))
		if err != nil {
			return true
		}
		// A killed child not yet reaped by init shows up as a zombie.
		fields := strings.Fields(string(stat))
		return len(fields) > 2 && fields[2] == "Z"
	}, 5*time.Second, 50*time.Millisecond, "background child survived the timeout")
}

func TestRunSuite_ReadsOutputOfBackgroundedCommand(t *testing.T) {
	e, _ := newEngine(t)

	tc := suite.NewTest("late writer", "(sleep 3; echo late) & echo early")
	tc.ExpectedOutput = strPtr("early\nlate")
	tc.Timeout = 10

	report := e.RunSuite(context.Background(), newSuite(tc))

	assert.True(t, report.OK(), tc.Message)
	assert.Equal(t, suite.StatusPass, tc.StatusTest)
	assert.Equal(t, "early\nlate\n", tc.Stdout)
}

func TestRunSuite_BackgroundedCommandTimesOut(t *testing.T) {
	e, _ := newEngine(t)

	tc := suite.NewTest("lingering writer", "(sleep 30; echo late) & echo early")
	tc.Timeout = 1

	start := time.Now()
	e.RunSuite(context.Background(), newSuite(tc))

	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Equal(t, suite.StatusError, tc.StatusTest)
	assert.Equal(t, suite.ReasonTimeout, tc.Reason)
	assert.Equal(t, "early\n", tc.Stdout)
}

func TestRunSuite_BackgroundedSetupDoesNotDelayTest(t *testing.T) {
	e, _ := newEngine(t)

	tc := suite.NewTest("after daemon", "echo ok")
	tc.Setup = []string{"sleep 3 &"}
	tc.ExpectedOutput = strPtr("ok")
	s := newSuite(tc)
	s.Configuration.Setup = []string{"sleep 3 &"}

	start := time.Now()
	report := e.RunSuite(context.Background(), s)

	assert.True(t, report.OK(), tc.Message)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSeconds_Saturates(t *testing.T) {
	assert.Equal(t, 5*time.Second, seconds(5))
	assert.Positive(t, seconds(math.MaxInt))
}

func TestRunSuite_SuiteSetupFailureSkipsTests(t *testing.T) {
	e, rec := newEngine(t)

	a := suite.NewTest("a", "true")
	b := suite.NewTest("b", "true")
	s := newSuite(a, b)
	s.Configuration.Setup = []string{"true", "false", "touch should-not-exist"}

	report := e.RunSuite(context.Background(), s)

	assert.True(t, report.SetupFailed)
	assert.False(t, report.OK())
	assert.Equal(t, 0, report.Executed)
	assert.Equal(t, suite.StatusError, s.StatusSetup)
	assert.Equal(t, suite.StatusNotRun, a.StatusTest)
	assert.Equal(t, suite.StatusNotRun, b.StatusTest)
	assert.Equal(t, []event.Kind{event.SuiteStart, event.SuiteSetupFinished, event.SuiteFinished}, rec.kinds())
	assert.NoFileExists(t, "should-not-exist")
}

func TestRunSuite_SuiteSetupPasses(t *testing.T) {
	e, _ := newEngine(t)

	marker := filepath.Join(t.TempDir(), "marker")
	tc := suite.NewTest("reads marker", "cat "+marker)
	tc.ExpectedOutput = strPtr("ready")
	s := newSuite(tc)
	s.Configuration.Setup = []string{"echo ready > " + marker}

	report := e.RunSuite(context.Background(), s)

	assert.True(t, report.OK(), tc.Message)
	assert.Equal(t, suite.StatusPass, s.StatusSetup)
}

func TestRunSuite_NoSuiteSetupLeavesStatusNotRun(t *testing.T) {
	e, _ := newEngine(t)
	s := newSuite(suite.NewTest("a", "true"))

	e.RunSuite(context.Background(), s)

	assert.Equal(t, suite.StatusNotRun, s.StatusSetup)
}

func TestRunSuite_TestSetupFailureContinues(t *testing.T) {
	e, _ := newEngine(t)

	broken := suite.NewTest("broken", "true")
	broken.Setup = []string{"exit 4"}
	next := suite.NewTest("next", "true")

	report := e.RunSuite(context.Background(), newSuite(broken, next))

	assert.Equal(t, 2, report.Executed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, suite.StatusError, broken.StatusSetup)
	assert.Equal(t, suite.StatusNotRun, broken.StatusTest)
	assert.Equal(t, suite.ReasonSetup, broken.Reason)
	assert.Equal(t, "Setup failed", broken.Message)
	assert.Equal(t, suite.StatusPass, next.StatusTest)
}

func TestRunSuite_EnvironmentOverlayIsRestored(t *testing.T) {
	e, _ := newEngine(t)

	t.Setenv("THEO_KEPT", "original")
	require.NoError(t, os.Unsetenv("THEO_ADDED"))

	tc := suite.NewTest("env", `echo "$THEO_KEPT $THEO_ADDED"`)
	tc.ExpectedOutput = strPtr("overlay a=b")
	s := newSuite(tc)
	s.Configuration.Environment = []string{"THEO_KEPT=overlay", "THEO_ADDED=a=b"}

	report := e.RunSuite(context.Background(), s)

	assert.True(t, report.OK(), tc.Message)
	assert.Equal(t, "original", os.Getenv("THEO_KEPT"))
	_, present := os.LookupEnv("THEO_ADDED")
	assert.False(t, present)
}

func TestRunSuite_VolatileFilesRemoved(t *testing.T) {
	e, _ := newEngine(t)

	dir := t.TempDir()
	stale := filepath.Join(dir, "stale")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	tc := suite.NewTest("sees clean state", "test ! -e "+stale+" && echo new > "+stale)
	tc.ExpectedExit = intPtr(0)
	s := newSuite(tc)
	s.Configuration.Volatile = []string{stale, filepath.Join(dir, "never-created")}

	report := e.RunSuite(context.Background(), s)

	assert.True(t, report.OK(), tc.Message)
	assert.NoFileExists(t, stale)
}

func TestRunSuite_ExecFailure(t *testing.T) {
	e, _ := newEngine(t, WithShell(filepath.Join(t.TempDir(), "no-such-shell")))

	tc := suite.NewTest("a", "true")
	report := e.RunSuite(context.Background(), newSuite(tc))

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, suite.StatusError, tc.StatusTest)
	assert.Equal(t, suite.ReasonExec, tc.Reason)
	assert.True(t, strings.HasPrefix(tc.Message, "Failed to execute: "), tc.Message)
}

func TestRunSuite_EventOrder(t *testing.T) {
	e, rec := newEngine(t)

	s := newSuite(suite.NewTest("a", "true"), suite.NewTest("b", "false"))
	e.RunSuite(context.Background(), s)

	assert.Equal(t, []event.Kind{
		event.SuiteStart,
		event.SuiteSetupFinished,
		event.TestStart,
		event.TestFinished,
		event.TestStart,
		event.TestFinished,
		event.SuiteFinished,
	}, rec.kinds())

	finished := rec.last()
	require.NotNil(t, finished.Suite)
	require.Len(t, finished.Suite.Tests, 2)
	assert.Equal(t, suite.StatusPass, finished.Suite.Tests[1].StatusTest, "exit status unchecked")
}

func TestRunSuite_EventsCarrySnapshots(t *testing.T) {
	e, rec := newEngine(t)

	tc := suite.NewTest("a", "true")
	e.RunSuite(context.Background(), newSuite(tc))

	start := rec.events[2]
	require.Equal(t, event.TestStart, start.Kind)
	assert.Equal(t, suite.StatusNotRun, start.Test.StatusTest)
	assert.NotSame(t, tc, start.Test)

	finished := rec.events[3]
	require.Equal(t, event.TestFinished, finished.Kind)
	assert.Equal(t, suite.StatusPass, finished.Test.StatusTest)
}

func TestRunSuite_CancelledContext(t *testing.T) {
	e, rec := newEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	running := suite.NewTest("long", "sleep 30")
	after := suite.NewTest("after", "true")

	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	report := e.RunSuite(ctx, newSuite(running, after))

	assert.Less(t, time.Since(start), 10*time.Second)
	assert.True(t, report.Interrupted)
	assert.False(t, report.OK())
	assert.Equal(t, suite.ReasonInterrupted, running.Reason)
	assert.Equal(t, suite.StatusNotRun, after.StatusTest)
	assert.Equal(t, event.SuiteFinished, rec.last().Kind)
}

func TestRunSuite_CancelledDuringTestSetup(t *testing.T) {
	e, _ := newEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	tc := suite.NewTest("slow setup", "true")
	tc.Setup = []string{"sleep 30"}

	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	report := e.RunSuite(ctx, newSuite(tc))

	assert.True(t, report.Interrupted)
	assert.Equal(t, suite.StatusError, tc.StatusSetup)
	assert.Equal(t, suite.StatusNotRun, tc.StatusTest)
	assert.Equal(t, suite.ReasonInterrupted, tc.Reason)
	assert.Equal(t, "Interrupted", tc.Message)
}

func TestReport_OK(t *testing.T) {
	assert.True(t, Report{Total: 2, Executed: 2}.OK())
	assert.False(t, Report{Failed: 1}.OK())
	assert.False(t, Report{SetupFailed: true}.OK())
	assert.False(t, Report{Interrupted: true}.OK())
}
