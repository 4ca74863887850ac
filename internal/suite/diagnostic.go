package suite

import (
	"fmt"
	"strings"
)

// Diagnostic returns the one-line explanation of why t failed, or "" if it
// did not. Reporters and the engine share it so messages stay identical.
func Diagnostic(t *Test) string {
	switch t.Reason {
	case ReasonOutput:
		var expected string
		if t.ExpectedOutput != nil {
			expected = *t.ExpectedOutput
		}
		return fmt.Sprintf("Expected output '%s' but found '%s'",
			strings.TrimSpace(expected), strings.TrimSpace(t.Stdout))
	case ReasonReturn:
		var expected int
		if t.ExpectedExit != nil {
			expected = *t.ExpectedExit
		}
		return fmt.Sprintf("Expected return value '%d' but found '%d'", expected, t.ExitCode)
	case ReasonSetup:
		return "Setup failed"
	case ReasonTimeout:
		return fmt.Sprintf("Timeout of %d seconds", t.Timeout)
	case ReasonExec:
		return t.Message
	case ReasonInterrupted:
		return "Interrupted"
	}

	if t.StatusValgrind == StatusError {
		if t.Message != "" {
			return t.Message
		}
		return fmt.Sprintf("Valgrind found %d errors", t.ValgrindErrors)
	}
	return ""
}
