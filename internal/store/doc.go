// Package store persists theo run history in SQLite.
//
// A run is one invocation of the harness. It owns the suites executed during
// it (in execution order) and each suite owns its tests (in file order):
//
//	runs   1--* suites 1--* tests
//
// Captured stdout, stderr and messages are stored with ANSI escape sequences
// removed so history output is readable in any terminal.
//
// # Database Configuration
//
//   - WAL mode: history can be read while a run records
//   - synchronous=NORMAL
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: deleting a run cascades to its suites and tests
package store
