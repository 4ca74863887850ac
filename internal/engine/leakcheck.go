package engine

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultValgrind is the leak checker binary looked up on PATH.
const DefaultValgrind = "valgrind"

// valgrindReport is the subset of valgrind's --xml=yes output we read.
type valgrindReport struct {
	XMLName xml.Name        `xml:"valgrindoutput"`
	Errors  []valgrindError `xml:"error"`
}

type valgrindError struct {
	Kind string `xml:"kind"`
	What string `xml:"what"`
}

// parseValgrindReport reads the XML report at path.
func parseValgrindReport(path string) (*valgrindReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var report valgrindReport
	if err := xml.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &report, nil
}

// valgrindCommand wraps command so valgrind writes its XML report to
// reportPath and exits 127 when it found errors.
func valgrindCommand(binary, reportPath, command string) string {
	return fmt.Sprintf("%s --error-exitcode=127 --xml=yes --leak-check=full --xml-file=%s %s",
		binary, shellQuote(reportPath), command)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// artifactName is the file a failing leak report is kept under:
// <test-name>.valgrind, with path separators replaced.
func artifactName(testName string) string {
	name := norm.NFC.String(testName)
	name = strings.NewReplacer("/", "_", string(filepath.Separator), "_").Replace(name)
	return name + ".valgrind"
}

// keepArtifact copies the report at src into dir under the test's artifact
// name and returns the destination path.
func keepArtifact(dir, testName, src string) (string, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	dst := filepath.Join(dir, artifactName(testName))
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", err
	}
	return dst, nil
}
