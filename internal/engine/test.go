package engine

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/roach88/theo/internal/event"
	"github.com/roach88/theo/internal/suite"
)

// outcome is how a command run ended from the engine's point of view.
type outcome int

const (
	exited outcome = iota
	timedOut
	interrupted
	notStarted
)

// execution is one command run bounded by a deadline.
type execution struct {
	Result
	outcome outcome
	err     error
}

// runTest walks t through setup, the functional run and the optional leak
// check. TestFinished is published whichever phase t stops in.
func (e *Engine) runTest(ctx context.Context, t *suite.Test) {
	start := time.Now()
	e.publishTest(event.TestStart, t)
	defer func() {
		t.Duration = time.Since(start)
		e.publishTest(event.TestFinished, t)
	}()

	log := e.logger.With("test", t.Name)

	if len(t.Setup) > 0 {
		t.StatusSetup = suite.StatusRunning
		if err := e.runCommands(ctx, t.Setup); err != nil {
			log.Debug("test setup failed", "error", err)
			t.StatusSetup = suite.StatusError
			e.abort(t, setupFailure(ctx))
			return
		}
		t.StatusSetup = suite.StatusPass
	}

	t.StatusTest = suite.StatusRunning
	run := e.execute(ctx, t.Command, t.Input, t.Timeout)
	t.Stdout, t.Stderr, t.ExitCode = run.Stdout, run.Stderr, run.ExitCode
	if e.failedToFinish(t, run) {
		t.StatusTest = suite.StatusError
		return
	}

	if t.ExpectedOutput != nil && strings.TrimSpace(*t.ExpectedOutput) != strings.TrimSpace(t.Stdout) {
		t.StatusTest = suite.StatusError
		e.abort(t, suite.ReasonOutput)
		return
	}
	if t.ExpectedExit != nil && *t.ExpectedExit != t.ExitCode {
		t.StatusTest = suite.StatusError
		e.abort(t, suite.ReasonReturn)
		return
	}
	t.StatusTest = suite.StatusPass
	log.Debug("test passed", "exit_code", t.ExitCode)

	if t.Valgrind {
		e.leakCheck(ctx, t)
	}
}

// leakCheck reruns t under valgrind after its setup commands.
func (e *Engine) leakCheck(ctx context.Context, t *suite.Test) {
	log := e.logger.With("test", t.Name)
	t.StatusValgrind = suite.StatusRunning

	if err := e.runCommands(ctx, t.Setup); err != nil {
		log.Debug("leak check setup failed", "error", err)
		t.StatusValgrind = suite.StatusError
		e.abort(t, setupFailure(ctx))
		return
	}

	tmp, err := os.CreateTemp("", "theo-*.xml")
	if err != nil {
		t.StatusValgrind = suite.StatusError
		t.Message = fmt.Sprintf("Failed to create valgrind report: %v", err)
		return
	}
	reportPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(reportPath)

	run := e.execute(ctx, valgrindCommand(e.valgrind, reportPath, t.Command), t.Input, t.Timeout)
	if e.failedToFinish(t, run) {
		t.StatusValgrind = suite.StatusError
		return
	}

	report, err := parseValgrindReport(reportPath)
	if err != nil {
		log.Warn("unreadable valgrind report", "error", err, "stderr", run.Stderr)
		t.StatusValgrind = suite.StatusError
		t.Message = fmt.Sprintf("Valgrind report unreadable: %v", err)
		return
	}

	t.ValgrindErrors = len(report.Errors)
	if t.ValgrindErrors == 0 {
		t.StatusValgrind = suite.StatusPass
		return
	}

	t.StatusValgrind = suite.StatusError
	t.Message = suite.Diagnostic(t)
	dst, err := keepArtifact(e.artifactDir, t.Name, reportPath)
	if err != nil {
		log.Warn("failed to keep valgrind report", "error", err)
		return
	}
	log.Info("valgrind report kept", "path", dst, "errors", t.ValgrindErrors)
}

// failedToFinish records the abort for runs that never produced an exit
// status worth checking. It reports whether the phase must stop.
func (e *Engine) failedToFinish(t *suite.Test, run execution) bool {
	switch run.outcome {
	case timedOut:
		e.abort(t, suite.ReasonTimeout)
	case interrupted:
		e.abort(t, suite.ReasonInterrupted)
	case notStarted:
		t.Abort(suite.ReasonExec, fmt.Sprintf("Failed to execute: %v", run.err))
	default:
		return false
	}
	return true
}

// setupFailure is the abort reason for a failed setup command. A cancelled
// run fails its setup too, but that is an interrupt.
func setupFailure(ctx context.Context) suite.AbortReason {
	if ctx.Err() != nil {
		return suite.ReasonInterrupted
	}
	return suite.ReasonSetup
}

func (e *Engine) abort(t *suite.Test, reason suite.AbortReason) {
	t.Abort(reason, "")
	t.Message = suite.Diagnostic(t)
}

// execute runs command with a deadline of timeout seconds. On expiry or
// cancellation the process group is killed and reaped before returning.
func (e *Engine) execute(ctx context.Context, command string, input *string, timeout int) execution {
	p, err := Start(e.shell, command, input)
	if err != nil {
		return execution{outcome: notStarted, err: err, Result: Result{ExitCode: -1}}
	}

	res, ok := p.Wait(ctx, seconds(timeout))
	if ok {
		return execution{Result: res, outcome: exited}
	}

	if err := p.Kill(); err != nil {
		e.logger.Debug("kill failed", "error", err)
	}
	res = p.Await()
	if ctx.Err() != nil {
		return execution{Result: res, outcome: interrupted}
	}
	return execution{Result: res, outcome: timedOut}
}

// maxTimeout is the largest deadline a time.Duration can hold in whole
// seconds.
const maxTimeout = int64(math.MaxInt64 / time.Second)

// seconds converts a timeout in seconds to a Duration, saturating instead of
// overflowing into a negative value.
func seconds(n int) time.Duration {
	if int64(n) > maxTimeout {
		return time.Duration(maxTimeout) * time.Second
	}
	return time.Duration(n) * time.Second
}

// runCommands runs setup commands in order, discarding their output. It stops
// at the first command that cannot start, exits non-zero or is cancelled.
func (e *Engine) runCommands(ctx context.Context, commands []string) error {
	for _, command := range commands {
		p, err := startDiscarding(e.shell, command)
		if err != nil {
			return fmt.Errorf("start %q: %w", command, err)
		}
		res, ok := p.Wait(ctx, 0)
		if !ok {
			_ = p.Kill()
			p.Await()
			return fmt.Errorf("%q: %w", command, ctx.Err())
		}
		if res.ExitCode != 0 {
			return fmt.Errorf("%q exited with status %d", command, res.ExitCode)
		}
	}
	return nil
}
