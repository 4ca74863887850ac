package suite

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedBlock means an embedded block has a line without the
	// comment prefix of its opening marker.
	ErrMalformedBlock = errors.New("malformed embedded block")

	// ErrSyntax wraps YAML syntax errors.
	ErrSyntax = errors.New("invalid YAML")

	// ErrEmptyDocument means the document contains no YAML node at all.
	ErrEmptyDocument = errors.New("empty document")

	// ErrNotMapping means the document root is not a YAML mapping.
	ErrNotMapping = errors.New("document is not a mapping")

	// ErrNoTests means the root mapping has no tests key.
	ErrNoTests = errors.New("tests list is required")

	// ErrMissingField means a test entry lacks a required key.
	ErrMissingField = errors.New("missing required field")

	// ErrSchema wraps type and value violations reported by the suite schema.
	ErrSchema = errors.New("schema violation")
)

// InvalidSuiteError reports a suite file that cannot be turned into a Suite.
// The file is skipped; other files are still processed.
type InvalidSuiteError struct {
	Path string
	// Line is the 1-based line in Path, or 0 when unknown.
	Line int
	Err  error
}

func (e *InvalidSuiteError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: invalid suite: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: invalid suite: %v", e.Path, e.Err)
}

func (e *InvalidSuiteError) Unwrap() error {
	return e.Err
}

// FileError reports a suite file whose content could not be read.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: cannot read suite file: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// IsInvalidSuite returns true if err is, or wraps, an InvalidSuiteError.
func IsInvalidSuite(err error) bool {
	var ise *InvalidSuiteError
	return errors.As(err, &ise)
}

// IsNotDocument returns true if err says the content is not a suite document
// on its own (as opposed to a suite document with bad contents). Only these
// failures trigger the embedded-block fallback.
func IsNotDocument(err error) bool {
	return errors.Is(err, ErrSyntax) ||
		errors.Is(err, ErrEmptyDocument) ||
		errors.Is(err, ErrNotMapping) ||
		errors.Is(err, ErrNoTests)
}
