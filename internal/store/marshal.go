package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/acarl005/stripansi"

	"github.com/roach88/theo/internal/suite"
)

// marshalConfiguration converts a suite configuration to JSON TEXT.
// HTML escaping is disabled so commands like `a && b` stay readable.
func marshalConfiguration(cfg suite.Configuration) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(cfg); err != nil {
		return "", fmt.Errorf("marshal configuration: %w", err)
	}
	// Encoder adds a trailing newline.
	return strings.TrimSpace(buf.String()), nil
}

func unmarshalConfiguration(data string) (suite.Configuration, error) {
	cfg := suite.DefaultConfiguration()
	if data == "" {
		return cfg, nil
	}
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return suite.Configuration{}, fmt.Errorf("unmarshal configuration: %w", err)
	}
	return cfg, nil
}

// cleanText removes ANSI escape sequences from captured output.
func cleanText(s string) string {
	return stripansi.Strip(s)
}

// parseStatus maps a stored status name back to suite.Status.
func parseStatus(name string) (suite.Status, error) {
	for _, st := range []suite.Status{suite.StatusNotRun, suite.StatusRunning, suite.StatusPass, suite.StatusError} {
		if st.String() == name {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", name)
}

// parseReason maps a stored abort reason name back to suite.AbortReason.
func parseReason(name string) (suite.AbortReason, error) {
	for r := suite.ReasonNone; r <= suite.ReasonInterrupted; r++ {
		if r.String() == name {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown abort reason %q", name)
}
