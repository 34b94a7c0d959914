package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/rowkit/internal/record"
	"github.com/roach88/rowkit/internal/schema"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation failure (save vetoed, record not found, store fault)
	ExitCommandError = 2 // Command error (invalid paths, bad config, unknown model)
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter writes command results either as text or wrapped in a
// CLIResponse envelope (--format json).
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; falls back to Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError describes a failed command. Model and Field locate a record
// error; File and Line a model definition error.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Model   string `json:"model,omitempty"`
	Field   string `json:"field,omitempty"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// Result writes data as the JSON envelope, or calls text to render it.
func (f *OutputFormatter) Result(data any, text func(w io.Writer)) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	text(f.Writer)
	return nil
}

// Document writes an encoded record or collection. The JSON envelope
// embeds it as is, so the serializer's key order survives.
func (f *OutputFormatter) Document(doc []byte) error {
	return f.Result(json.RawMessage(doc), func(w io.Writer) {
		fmt.Fprintln(w, string(doc))
	})
}

// Error writes a failure. cause, when it is a record or schema error,
// adds where it happened.
func (f *OutputFormatter) Error(code, message string, cause error) error {
	cliErr := &CLIError{Code: code, Message: message}
	var recErr *record.Error
	if errors.As(cause, &recErr) {
		cliErr.Model, cliErr.Field = recErr.Model, recErr.Field
	}
	var loadErr *schema.LoadError
	if errors.As(cause, &loadErr) && loadErr.Pos.IsValid() {
		cliErr.File, cliErr.Line = loadErr.Pos.Filename(), loadErr.Pos.Line()
	}

	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "error", Error: cliErr})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && cliErr.Model != "" {
		fmt.Fprintf(f.Writer, "  model=%s field=%s\n", cliErr.Model, cliErr.Field)
	}
	return nil
}

// VerboseLog writes a diagnostic line under --verbose. It never goes to
// Writer when ErrWriter is set, so JSON output stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
