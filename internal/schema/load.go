package schema

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/rowkit/internal/record"
)

// LoadMode controls how errors are handled during loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the models compiled from a directory.
type LoadResult struct {
	Models    []*Model
	FileCount int
}

// LoadDir loads every CUE file in dir as one instance and compiles the
// structs under its top-level "model" field.
func LoadDir(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("models directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing models directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	models, errs := compileModels(value, mode)
	slog.Debug("models loaded", "dir", dir, "files", len(cueFiles), "models", len(models), "errors", len(errs))
	return &LoadResult{Models: models, FileCount: len(cueFiles)}, errs
}

// CompileString compiles model definitions from CUE source.
func CompileString(src string) ([]*Model, error) {
	value := cuecontext.New().CompileString(src)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	models, errs := compileModels(value, LoadModeFailFast)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return models, nil
}

func compileModels(value cue.Value, mode LoadMode) ([]*Model, []error) {
	modelsVal := value.LookupPath(cue.ParsePath("model"))
	if !modelsVal.Exists() {
		return nil, []error{&LoadError{Code: ErrCodeGeneric, Message: "no models found"}}
	}
	iter, err := modelsVal.Fields()
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating models: %v", err)}}
	}

	var models []*Model
	var errs []error
	for iter.Next() {
		m, err := CompileModel(iter.Value())
		if err != nil {
			errs = append(errs, convertCompileError(err, "model."+iter.Label()))
			if mode == LoadModeFailFast {
				return models, errs
			}
			continue
		}
		models = append(models, m)
	}
	return models, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compile error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    codeForField(compileErr.Field),
			Message: fmt.Sprintf("%s: %s: %s", context, compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// Options are applied to every model at Install.
type Options struct {
	// AutoTimestamp is the timestamp mode for models that do not set one.
	AutoTimestamp string
}

// Install checks that every relation target exists and registers the
// models with reg.
func Install(reg *record.Registry, models []*Model, opts Options) error {
	known := make(map[string]bool, len(models))
	for _, mt := range reg.Models() {
		known[mt.Name] = true
	}
	for _, m := range models {
		known[m.Type.Name] = true
	}
	for _, m := range models {
		for _, ref := range m.Refs {
			if !known[ref.Model] {
				return &LoadError{
					Code:    ErrCodeUnknownModel,
					Message: fmt.Sprintf("model.%s: %s: unknown model %q", m.Type.Name, ref.Field, ref.Model),
					Pos:     ref.Pos,
				}
			}
		}
	}

	for _, m := range models {
		if m.Type.Timestamps.Mode == "" {
			m.Type.Timestamps.Mode = opts.AutoTimestamp
		}
		if err := reg.Register(m.Type); err != nil {
			return &LoadError{Code: ErrCodeRegister, Message: err.Error()}
		}
	}
	return nil
}
