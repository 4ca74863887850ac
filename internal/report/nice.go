package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"
	"golang.org/x/text/width"

	"github.com/roach88/theo/internal/event"
	"github.com/roach88/theo/internal/suite"
)

// nameColumns is the display width test names are padded to.
const nameColumns = 30

// Nice renders a tree per suite:
//
//	┌ Starting tests.yaml
//	├── prints hello                   PASS ----
//	├── exits 2                        FAIL ---- Expected return value '2' but found '0'
//	└ Ending tests.yaml
//
//	Failed 1 tests of 2
//
//	tests.yaml.exits 2: Expected return value '2' but found '0'
type Nice struct {
	w        io.Writer
	pass     *color.Color
	fail     *color.Color
	handlers handlers
}

// NewNice creates a tree reporter writing to w. Glyphs are colored only when
// useColor is set.
func NewNice(w io.Writer, useColor bool) *Nice {
	r := &Nice{
		w:    w,
		pass: color.New(color.FgGreen),
		fail: color.New(color.FgRed),
	}
	for _, c := range []*color.Color{r.pass, r.fail} {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	r.handlers = handlers{
		event.SuiteStart:         r.suiteStart,
		event.SuiteSetupFinished: r.suiteSetupFinished,
		event.TestFinished:       r.testFinished,
		event.SuiteFinished:      r.suiteFinished,
	}
	return r
}

// ColorEnabled reports whether w is a terminal that should get colored output.
func ColorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (r *Nice) Handle(e event.Event) error {
	return r.handlers.dispatch(e)
}

func (r *Nice) suiteStart(e event.Event) error {
	_, err := fmt.Fprintf(r.w, "┌ Starting %s", e.Suite.Path)
	return err
}

func (r *Nice) suiteSetupFinished(e event.Event) error {
	if e.Suite.StatusSetup == suite.StatusError {
		_, err := fmt.Fprintf(r.w, " %s\n", r.fail.Sprint("FAIL"))
		return err
	}
	_, err := fmt.Fprintln(r.w)
	return err
}

func (r *Nice) testFinished(e event.Event) error {
	t := e.Test
	var b strings.Builder
	b.WriteString("├── ")
	b.WriteString(padName(t.Name, nameColumns))
	b.WriteString(" ")
	b.WriteString(r.glyph(t.StatusTest))
	b.WriteString(" ")
	b.WriteString(r.glyph(t.StatusValgrind))
	if t.Failed() {
		b.WriteString(" ")
		b.WriteString(suite.Diagnostic(t))
	}
	b.WriteString("\n")
	_, err := io.WriteString(r.w, b.String())
	return err
}

func (r *Nice) suiteFinished(e event.Event) error {
	s := e.Suite
	var b strings.Builder
	fmt.Fprintf(&b, "└ Ending %s\n\n", s.Path)

	if s.StatusSetup == suite.StatusError {
		b.WriteString("The suite setup failed!\n\n")
		_, err := io.WriteString(r.w, b.String())
		return err
	}

	failed := s.FailedTests()
	if len(failed) == 0 {
		b.WriteString("All clear!\n\n")
	} else {
		fmt.Fprintf(&b, "Failed %d tests of %d\n\n", len(failed), len(s.Tests))
	}
	for _, t := range failed {
		fmt.Fprintf(&b, "%s.%s: %s\n", s.Path, t.Name, suite.Diagnostic(t))
	}
	_, err := io.WriteString(r.w, b.String())
	return err
}

func (r *Nice) glyph(s suite.Status) string {
	switch s {
	case suite.StatusPass:
		return r.pass.Sprint("PASS")
	case suite.StatusError:
		return r.fail.Sprint("FAIL")
	default:
		return "----"
	}
}

// padName right-pads name with spaces to cols display columns. Wide East
// Asian characters count as two columns. Longer names are not truncated.
func padName(name string, cols int) string {
	w := displayWidth(name)
	if w >= cols {
		return name
	}
	return name + strings.Repeat(" ", cols-w)
}

func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}
