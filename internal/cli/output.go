package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // a scenario, validation, replay or completeness check failed
	ExitCommandError = 2 // the command could not run: bad path, unknown rule set, no journal
)

// ExitError carries the process exit code alongside a command error.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError returns an ExitError with no cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError attaches an exit code and message to err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the code of the first ExitError in err's chain, or
// ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CLIResponse is the envelope every --format json command writes.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error half of a CLIResponse.
type CLIError struct {
	Code    string `json:"code"` // E0xx for command errors, E1xx/W1xx for rule-set findings
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OutputFormatter writes command results as text or as a CLIResponse.
// Diagnostics go to ErrWriter when set so they never mix into JSON on
// Writer.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

func (f *OutputFormatter) json() bool { return f.Format == "json" }

func (f *OutputFormatter) diag() io.Writer {
	if f.ErrWriter == nil {
		return f.Writer
	}
	return f.ErrWriter
}

// Success writes data. Text mode prints it with its default formatting.
func (f *OutputFormatter) Success(data any) error {
	if !f.json() {
		_, err := fmt.Fprintln(f.Writer, data)
		return err
	}
	return f.JSON(CLIResponse{Status: "ok", Data: data})
}

// Error reports a coded failure. Details are printed in text mode only
// when verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.json() {
		return f.JSON(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// JSON writes resp with two-space indentation.
func (f *OutputFormatter) JSON(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// VerboseLog prints a diagnostic line when Verbose is set.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if f.Verbose {
		fmt.Fprintf(f.diag(), format+"\n", args...)
	}
}
