// Command theo runs declarative command test suites.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/theo/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "theo:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
