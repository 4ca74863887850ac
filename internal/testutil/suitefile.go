package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteSuiteFile writes content to name under dir and returns the path.
// Leading tabs are stripped from every line so suites can be written as
// indented raw strings in tests.
func WriteSuiteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create suite dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(Dedent(content)), 0o644); err != nil {
		t.Fatalf("write suite file: %v", err)
	}
	return path
}

// Dedent removes leading tabs from every line of s.
func Dedent(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimLeft(line, "\t")
	}
	return strings.Join(lines, "\n")
}
