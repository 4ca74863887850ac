package suite

import (
	"fmt"
	"time"
)

// DefaultTimeout is the per-test deadline in seconds when none is configured.
const DefaultTimeout = 600

// DefaultSentinel marks the start and end of an embedded suite block.
const DefaultSentinel = "!theo"

// Status is the state of one phase (suite setup, test setup, test run,
// leak check). Transitions only move forward: NotRun -> Running -> Pass|Error.
type Status int

const (
	StatusNotRun Status = iota
	StatusRunning
	StatusPass
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusNotRun:
		return "NOTRUN"
	case StatusRunning:
		return "RUNNING"
	case StatusPass:
		return "PASS"
	case StatusError:
		return "ERROR"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MarshalText renders the status by name in JSON event streams.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// AbortReason records why a test stopped before passing its functional phase.
type AbortReason int

const (
	ReasonNone AbortReason = iota
	ReasonSetup
	ReasonTimeout
	ReasonOutput
	ReasonReturn
	// ReasonExec means the shell could not be started at all.
	ReasonExec
	// ReasonInterrupted means the run was cancelled while the test executed.
	ReasonInterrupted
)

func (r AbortReason) String() string {
	switch r {
	case ReasonNone:
		return "NONE"
	case ReasonSetup:
		return "SETUP"
	case ReasonTimeout:
		return "TIMEOUT"
	case ReasonOutput:
		return "OUTPUT"
	case ReasonReturn:
		return "RETURN"
	case ReasonExec:
		return "EXEC"
	case ReasonInterrupted:
		return "INTERRUPTED"
	default:
		return fmt.Sprintf("AbortReason(%d)", int(r))
	}
}

// MarshalText renders the reason by name in JSON event streams.
func (r AbortReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Configuration is the suite-wide configuration after defaults are applied.
// Every list is non-nil once loaded.
type Configuration struct {
	Valgrind    bool     `json:"valgrind"`
	Environment []string `json:"environment"`
	Volatile    []string `json:"volatile"`
	Setup       []string `json:"setup"`
}

// DefaultConfiguration returns the engine-level defaults a suite's
// configuration is merged onto.
func DefaultConfiguration() Configuration {
	return Configuration{
		Valgrind:    false,
		Environment: []string{},
		Volatile:    []string{},
		Setup:       []string{},
	}
}

// Test is one command plus the assertions checked against it, together with
// the outcome of running it.
type Test struct {
	Name           string   `json:"name"`
	Command        string   `json:"run"`
	Setup          []string `json:"setup"`
	Input          *string  `json:"input,omitempty"`
	ExpectedOutput *string  `json:"output,omitempty"`
	ExpectedExit   *int     `json:"exit,omitempty"`
	Timeout        int      `json:"timeout"`
	Valgrind       bool     `json:"valgrind"`

	StatusSetup    Status      `json:"status_setup"`
	StatusTest     Status      `json:"status_test"`
	StatusValgrind Status      `json:"status_valgrind"`
	Reason         AbortReason `json:"reason"`
	Message        string      `json:"message,omitempty"`

	// Observed facts, filled in by the engine.
	Stdout         string        `json:"stdout,omitempty"`
	Stderr         string        `json:"stderr,omitempty"`
	ExitCode       int           `json:"exit_code"`
	ValgrindErrors int           `json:"valgrind_errors,omitempty"`
	Duration       time.Duration `json:"duration_ns"`
}

// NewTest returns a test with the test-level defaults applied.
func NewTest(name, command string) *Test {
	return &Test{
		Name:    name,
		Command: command,
		Setup:   []string{},
		Timeout: DefaultTimeout,
	}
}

// Abort records the reason a test stopped and the message shown for it.
func (t *Test) Abort(reason AbortReason, message string) {
	t.Reason = reason
	t.Message = message
}

// Failed reports whether any phase of the test ended in error.
func (t *Test) Failed() bool {
	return t.StatusSetup == StatusError ||
		t.StatusTest == StatusError ||
		t.StatusValgrind == StatusError
}

// Snapshot returns a copy that shares no mutable state with t.
func (t *Test) Snapshot() *Test {
	c := *t
	c.Setup = append([]string(nil), t.Setup...)
	if t.Input != nil {
		v := *t.Input
		c.Input = &v
	}
	if t.ExpectedOutput != nil {
		v := *t.ExpectedOutput
		c.ExpectedOutput = &v
	}
	if t.ExpectedExit != nil {
		v := *t.ExpectedExit
		c.ExpectedExit = &v
	}
	return &c
}

// Suite is one input file: an ordered batch of tests plus shared configuration.
type Suite struct {
	Path          string        `json:"path"`
	Configuration Configuration `json:"configuration"`
	Tests         []*Test       `json:"tests"`
	StatusSetup   Status        `json:"status_setup"`
}

// Snapshot returns a deep copy of the suite, safe to hand to another goroutine.
func (s *Suite) Snapshot() *Suite {
	c := *s
	c.Configuration = Configuration{
		Valgrind:    s.Configuration.Valgrind,
		Environment: append([]string(nil), s.Configuration.Environment...),
		Volatile:    append([]string(nil), s.Configuration.Volatile...),
		Setup:       append([]string(nil), s.Configuration.Setup...),
	}
	c.Tests = make([]*Test, len(s.Tests))
	for i, t := range s.Tests {
		c.Tests[i] = t.Snapshot()
	}
	return &c
}

// FailedTests returns the tests that ended in error, in file order.
func (s *Suite) FailedTests() []*Test {
	var failed []*Test
	for _, t := range s.Tests {
		if t.Failed() {
			failed = append(failed, t)
		}
	}
	return failed
}

// Failed reports whether the suite setup or any test failed.
func (s *Suite) Failed() bool {
	return s.StatusSetup == StatusError || len(s.FailedTests()) > 0
}
