package schema

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Load error codes (E001-E099), shared with the CLI.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
)

// Model definition error codes (E200-E299)
const (
	ErrCodeInvalidType     = "E201" // unknown type descriptor
	ErrCodeInvalidRelation = "E202" // malformed relation block
	ErrCodeUnknownModel    = "E203" // relation or pivot names an unknown model
	ErrCodeInvalidAuto     = "E204" // malformed auto-complete entry
	ErrCodeRegister        = "E205" // registry rejected the model
)

// CompileError represents a model definition error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadError is an error raised while loading a directory of definitions.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// First error with a position wins.
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}

// codeForField maps a CompileError field to a load error code.
func codeForField(field string) string {
	switch {
	case field == "cue":
		return ErrCodeBuildFailed
	case hasPrefix(field, "types"):
		return ErrCodeInvalidType
	case hasPrefix(field, "relations"), hasPrefix(field, "together"):
		return ErrCodeInvalidRelation
	case hasPrefix(field, "auto"), hasPrefix(field, "insert"), hasPrefix(field, "update"):
		return ErrCodeInvalidAuto
	}
	return ErrCodeGeneric
}

func hasPrefix(field, section string) bool {
	return field == section || strings.HasPrefix(field, section+".")
}
