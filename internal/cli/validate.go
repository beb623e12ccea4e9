package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rulegate/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	RuleSet  string                     `json:"rule_set,omitempty"`
	Rules    int                        `json:"rules,omitempty"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.ValidationError `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <rules-dir>",
		Short: "Validate a CUE rule-set directory",
		Long: `Validate a directory of CUE rule-set files without playing.

Performs syntax checking, schema validation and the rule-set checks
(unique ids, resolvable successors, acyclic progression, reachable
terminal). All findings are reported, not just the first.

Exit codes:
  0 - Rule set valid (warnings allowed)
  1 - Validation failed
  2 - Command error (directory not found, no CUE files)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, rulesDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	loadResult, err := LoadRuleSet(rulesDir)

	// Directory not found, no files, unloadable CUE
	if loadResult == nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputValidateError(formatter, ErrCodeGeneric, err.Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, rulesDir)

	// Compile errors (schema, missing fields) are validation failures
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return outputValidationErrors(formatter, ValidationResult{
				Errors: []compiler.ValidationError{{
					Field:   "load",
					Message: loadErr.Message,
					Code:    loadErr.Code,
					Line:    getLineFromLoadError(loadErr),
				}},
			})
		}
		return outputValidateError(formatter, ErrCodeGeneric, err.Error(), nil)
	}

	result := ValidationResult{
		RuleSet: loadResult.RuleSet.Name,
		Rules:   len(loadResult.RuleSet.Rules),
	}
	for _, f := range loadResult.Findings {
		if f.IsWarning() {
			result.Warnings = append(result.Warnings, f)
		} else {
			result.Errors = append(result.Errors, f)
		}
	}

	if len(result.Errors) > 0 {
		return outputValidationErrors(formatter, result)
	}

	result.Valid = true
	return outputValidateSuccess(formatter, result)
}

// getLineFromLoadError extracts the line number of a load error.
func getLineFromLoadError(e *LoadError) int {
	if e.Pos.IsValid() {
		return e.Pos.Line()
	}
	return 0
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Rule set %s valid (%d rules)\n", result.RuleSet, result.Rules)
	printFindings(formatter, result.Warnings)
	return nil
}

// outputValidateError outputs a single command-level error.
func outputValidateError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Load errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs every finding of a failed validation.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}
		if err := formatter.JSON(response); err != nil {
			return err
		}
		// Validation failures = exit code 1
		return failure
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	printFindings(formatter, errs)
	printFindings(formatter, result.Warnings)

	// Validation failures = exit code 1
	return failure
}

func printFindings(formatter *OutputFormatter, findings []compiler.ValidationError) {
	for _, f := range findings {
		if f.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", f.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n", f.Code, f.Field, f.Message)
	}
}
