package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/theo/internal/suite"
)

// SuiteValidation is the load result for one suite file.
type SuiteValidation struct {
	Path     string `json:"path"`
	Valid    bool   `json:"valid"`
	Embedded bool   `json:"embedded,omitempty"`
	Tests    int    `json:"tests,omitempty"`
	Code     string `json:"code,omitempty"`
	Line     int    `json:"line,omitempty"`
	Message  string `json:"message,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Suites []SuiteValidation `json:"suites"`
}

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Sentinel string
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <paths...>",
		Short: "Check suites without running them",
		Long: `Load every suite and report syntax and schema errors without running
any command. Paths are expanded the same way as for run.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Sentinel, "sentinel", suite.DefaultSentinel, "marker line delimiting embedded suites")

	return cmd
}

func runValidate(opts *ValidateOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	files, err := DiscoverSuites(paths)
	if err != nil {
		code := ErrCodeGeneric
		var discoverErr *DiscoverError
		if errors.As(err, &discoverErr) {
			code = discoverErr.Code
		}
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitCommandError, "cannot find suites", err)
	}

	result := ValidationResult{Valid: true, Suites: make([]SuiteValidation, 0, len(files))}
	for _, path := range files {
		formatter.VerboseLog("Validating %s", path)
		v := validateFile(path, opts.Sentinel)
		if !v.Valid {
			result.Valid = false
		}
		result.Suites = append(result.Suites, v)
	}

	invalid := 0
	for _, v := range result.Suites {
		if !v.Valid {
			invalid++
		}
	}

	if formatter.Format == "json" {
		if invalid > 0 {
			if err := formatter.Failure(ErrCodeInvalidSuite,
				fmt.Sprintf("%d of %d suite(s) invalid", invalid, len(files)), result); err != nil {
				return err
			}
		} else if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		printValidation(formatter, result)
	}

	if invalid > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed for %d suite(s)", invalid))
	}
	return nil
}

func validateFile(path, sentinel string) SuiteValidation {
	s, err := suite.Load(path, sentinel)
	if err == nil {
		return SuiteValidation{Path: path, Valid: true, Tests: len(s.Tests)}
	}

	v := SuiteValidation{Path: path, Message: err.Error()}
	var invalid *suite.InvalidSuiteError
	var fileErr *suite.FileError
	switch {
	case errors.As(err, &invalid):
		v.Code = ErrCodeInvalidSuite
		v.Line = invalid.Line
		v.Message = invalid.Err.Error()
	case errors.As(err, &fileErr):
		v.Code = ErrCodeUnreadable
		v.Message = fileErr.Err.Error()
	default:
		v.Code = ErrCodeGeneric
	}
	return v
}

func printValidation(f *OutputFormatter, result ValidationResult) {
	for _, v := range result.Suites {
		if v.Valid {
			fmt.Fprintf(f.Writer, "✓ %s (%d tests)\n", v.Path, v.Tests)
			continue
		}
		if v.Line > 0 {
			fmt.Fprintf(f.Writer, "✗ %s:%d\n", v.Path, v.Line)
		} else {
			fmt.Fprintf(f.Writer, "✗ %s\n", v.Path)
		}
		fmt.Fprintf(f.Writer, "  %s: %s\n", v.Code, v.Message)
	}
	if result.Valid {
		fmt.Fprintln(f.Writer, "✓ All suites valid")
	}
}
