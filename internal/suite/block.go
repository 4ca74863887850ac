package suite

import (
	"bytes"
	"fmt"
	"strings"
)

// Block is the result of looking for an embedded suite inside a file.
type Block struct {
	// Document is the text to parse as YAML.
	Document string

	// Embedded is false when fewer than two sentinel lines were found and
	// Document is the whole file.
	Embedded bool

	// StartLine is the 1-based line of the opening marker (0 if not embedded).
	// Line N of Document is line StartLine+N of the file.
	StartLine int
}

// Extract locates the block delimited by sentinel lines in content.
//
// With fewer than two sentinel lines the whole content is returned. With two
// or more, the first and the last delimit the block; any sentinel lines in
// between are ordinary content. The text before the sentinel on the opening
// line, right-trimmed, is the prefix every interior line must start with.
// The untrimmed prefix length is cut from each line, and a line left empty
// becomes a bare newline. A line without the prefix yields an
// *InvalidSuiteError wrapping ErrMalformedBlock; the caller fills in Path.
func Extract(content []byte, sentinel string) (Block, error) {
	lines := splitLines(content)

	start, end := -1, -1
	for i, line := range lines {
		if !strings.Contains(line, sentinel) {
			continue
		}
		if start < 0 {
			start = i
		} else {
			end = i
		}
	}

	if start < 0 || end < 0 {
		return Block{Document: string(content)}, nil
	}

	raw := lines[start][:strings.Index(lines[start], sentinel)]
	cut := len(raw)
	prefix := strings.TrimRight(raw, " \t\r\n")

	var doc strings.Builder
	for i := start + 1; i < end; i++ {
		line := lines[i]
		if !strings.HasPrefix(line, prefix) {
			return Block{}, &InvalidSuiteError{
				Line: i + 1,
				Err:  fmt.Errorf("%w: line does not start with %q", ErrMalformedBlock, prefix),
			}
		}
		if len(line) <= cut {
			doc.WriteString("\n")
			continue
		}
		doc.WriteString(line[cut:])
	}

	return Block{
		Document:  doc.String(),
		Embedded:  true,
		StartLine: start + 1,
	}, nil
}

// splitLines splits content after each newline, keeping the terminators.
func splitLines(content []byte) []string {
	parts := bytes.SplitAfter(content, []byte("\n"))
	lines := make([]string, 0, len(parts))
	for _, p := range parts {
		if len(p) == 0 {
			continue
		}
		lines = append(lines, string(p))
	}
	return lines
}
