package cli

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns stdout, stderr and
// the exit code main would use.
func execute(t *testing.T, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), GetExitCode(err)
}

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("suites run commands through /bin/sh")
	}
}

const passingSuite = `
	tests:
	  - name: says hello
	    run: echo hello
	    output: hello
	  - name: exits cleanly
	    run: "true"
	    exit: 0
`

const failingSuite = `
	tests:
	  - name: wrong output
	    run: echo abcd
	    output: abc
	  - name: ok
	    run: "true"
`

const invalidSuite = `
	tests:
	  - name: no command
`

func requireNoError(t *testing.T, code int, stderr string) {
	t.Helper()
	require.Equal(t, ExitSuccess, code, "stderr: %s", stderr)
}
