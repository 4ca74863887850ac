package store

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/roach88/theo/internal/suite"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSuite creates a finished suite with one passing and one failing test.
func createTestSuite(path string) *suite.Suite {
	pass := suite.NewTest("pass", "echo ok")
	pass.StatusTest = suite.StatusPass
	pass.Stdout = "ok\n"

	fail := suite.NewTest("fail", "false")
	fail.StatusTest = suite.StatusError
	fail.Abort(suite.ReasonReturn, "Expected return value '0' but found '1'")
	fail.ExitCode = 1

	cfg := suite.DefaultConfiguration()
	cfg.Environment = []string{"A=1"}
	cfg.Setup = []string{"make && make install"}

	return &suite.Suite{
		Path:          path,
		Configuration: cfg,
		StatusSetup:   suite.StatusPass,
		Tests:         []*suite.Test{pass, fail},
	}
}

// pragma returns the current value of a pragma as text.
func (s *Store) pragma(name string) (string, error) {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("read pragma %s: %w", name, err)
	}
	return value, nil
}
