package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/rowkit/internal/record"
	"github.com/roach88/rowkit/internal/schema"
)

// ValidationError is one problem found in the model definitions.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Models int               `json:"models"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [models-dir]",
		Short: "Validate model definitions without touching the database",
		Long: `Validate the CUE model definitions.

Compiles every model, reporting all errors rather than stopping at the
first, then checks that every relation names a defined model. The
directory defaults to the configured models directory.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				rootOpts.Models = args[0]
			}
			return runValidate(rootOpts, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return fail(formatter, ErrCodeConfig, ExitCommandError, "failed to load config", err)
	}

	result, loadErrors := loadModels(cfg, schema.LoadModeCollectAll)

	// Directory not found, no files, build failure
	if result == nil {
		return failLoad(formatter, loadErrors[0])
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", result.FileCount, cfg.Models)

	var validationErrors []ValidationError
	for _, err := range loadErrors {
		validationErrors = append(validationErrors, toValidationError(err))
	}
	if len(validationErrors) == 0 {
		if err := schema.Install(record.NewRegistry(nil), result.Models, schema.Options{}); err != nil {
			validationErrors = append(validationErrors, toValidationError(err))
		}
	}

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, len(result.Models), validationErrors)
	}
	return outputValidateSuccess(formatter, len(result.Models))
}

func toValidationError(err error) ValidationError {
	var loadErr *schema.LoadError
	if !errors.As(err, &loadErr) {
		return ValidationError{Code: schema.ErrCodeGeneric, Message: err.Error()}
	}
	ve := ValidationError{Code: loadErr.Code, Message: loadErr.Message}
	if loadErr.Pos.IsValid() {
		ve.File = loadErr.Pos.Filename()
		ve.Line = loadErr.Pos.Line()
	}
	return ve
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, models int) error {
	return formatter.Result(ValidationResult{Valid: true, Models: models}, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %d model(s) valid\n", models)
	})
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, models int, errs []ValidationError) error {
	result := ValidationResult{
		Valid:  false,
		Models: models,
		Errors: errs,
	}
	_ = formatter.Result(result, func(w io.Writer) {
		fmt.Fprintf(w, "✗ Validation failed with %d error(s):\n\n", len(errs))
		for _, e := range errs {
			if e.Line > 0 {
				fmt.Fprintf(w, "  [%s] %s:%d: %s\n", e.Code, e.File, e.Line, e.Message)
			} else {
				fmt.Fprintf(w, "  [%s] %s\n", e.Code, e.Message)
			}
		}
	})

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
