// Package engine runs loaded suites and reports their progress on an event
// bus.
//
// A suite is executed strictly in order:
//
//  1. SuiteStart is published.
//  2. The suite setup commands run. Their output is discarded; the first
//     failing command marks the suite setup ERROR.
//  3. SuiteSetupFinished is published.
//  4. If the suite setup passed, every test runs in file order inside the
//     suite's environment overlay (see overlay.go).
//  5. SuiteFinished is published with the final state of every test.
//
// Each test walks through up to three phases: its own setup, the functional
// run and an optional leak check under valgrind. A phase is entered only if
// every earlier phase passed.
//
// Commands run through a shell in their own process group. When a deadline
// expires or the run is cancelled the whole group is killed, so commands that
// fork cannot outlive their test.
//
// Events carry snapshots. The engine keeps mutating its own suite and test
// values; the consumer never observes a half-written test.
package engine
