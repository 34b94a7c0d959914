package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/rowkit/internal/config"
	"github.com/roach88/rowkit/internal/record"
	"github.com/roach88/rowkit/internal/schema"
	"github.com/roach88/rowkit/internal/store"
)

// Error codes for runtime failures, after the schema load codes.
const (
	ErrCodeConfig       = "E301" // config could not be loaded
	ErrCodeOpenStore    = "E302" // database could not be opened
	ErrCodeUnknownModel = "E303" // model name not defined
	ErrCodeBadInput     = "E304" // record data could not be parsed
	ErrCodeNotFound     = "E305" // no record with the given key
	ErrCodeVetoed       = "E306" // a hook vetoed the write
	ErrCodePersistence  = "E307" // the store failed during a write
	ErrCodeAttribute    = "E308" // attribute or bound attribute error
)

// app is everything a record command needs: settings, the open store and
// a registry holding the installed models.
type app struct {
	cfg     *config.Config
	store   *store.Store
	reg     *record.Registry
	metrics *prometheus.Registry
}

// loadConfig reads --config, or the defaults plus environment without one.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	var cfg *config.Config
	if opts.Config != "" {
		var err error
		if cfg, err = config.Load(opts.Config); err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
		cfg.ApplyEnv()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
	}
	if opts.Models != "" {
		cfg.Models = opts.Models
	}
	level, _ := cfg.Level()
	setupLogging(opts.level(level))
	return cfg, nil
}

// loadModels compiles the models directory. Errors carry a schema code.
func loadModels(cfg *config.Config, mode schema.LoadMode) (*schema.LoadResult, []error) {
	slog.Debug("loading models", "dir", cfg.Models)
	return schema.LoadDir(cfg.Models, mode)
}

// openApp loads config and models, opens the store and installs the models.
// The caller closes the app.
func openApp(opts *RootOptions, formatter *OutputFormatter) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, fail(formatter, ErrCodeConfig, ExitCommandError, "failed to load config", err)
	}

	result, errs := loadModels(cfg, schema.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, failLoad(formatter, errs[0])
	}

	conv, err := cfg.Converter()
	if err != nil {
		return nil, fail(formatter, ErrCodeConfig, ExitCommandError, "invalid config", err)
	}
	reg := record.NewRegistry(conv)
	if err := schema.Install(reg, result.Models, schema.Options{AutoTimestamp: cfg.AutoTimestamp}); err != nil {
		return nil, failLoad(formatter, err)
	}

	metrics := prometheus.NewRegistry()
	st, err := store.Open(cfg.Database.Driver, cfg.Database.DSN,
		store.WithFieldCacheSize(cfg.Database.FieldCacheSize),
		store.WithLocation(conv.Location),
		store.WithMetrics(store.NewMetrics(metrics)))
	if err != nil {
		return nil, fail(formatter, ErrCodeOpenStore, ExitCommandError, "failed to open database", err)
	}
	reg.Use(st.Session())

	slog.Debug("app ready", "driver", cfg.Database.Driver, "models", len(result.Models))
	return &app{cfg: cfg, store: st, reg: reg, metrics: metrics}, nil
}

func (a *app) Close() error {
	a.logMetrics()
	return a.store.Close()
}

// logMetrics reports the statement counters at debug level.
func (a *app) logMetrics() {
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	families, err := a.metrics.Gather()
	if err != nil {
		slog.Warn("failed to gather store metrics", "error", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			c := m.GetCounter()
			if c == nil {
				continue
			}
			attrs := []any{"metric", mf.GetName(), "value", c.GetValue()}
			for _, lp := range m.GetLabel() {
				attrs = append(attrs, lp.GetName(), lp.GetValue())
			}
			slog.Debug("store metric", attrs...)
		}
	}
}

// model looks up a model by name.
func (a *app) model(formatter *OutputFormatter, name string) (*record.ModelType, error) {
	mt, ok := a.reg.Model(name)
	if !ok {
		return nil, fail(formatter, ErrCodeUnknownModel, ExitCommandError, fmt.Sprintf("unknown model %q", name), nil)
	}
	return mt, nil
}

// parseKey reads a command-line primary key, as an integer when it is one.
func parseKey(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}

// fail reports an error through the formatter and returns the matching ExitError.
func fail(formatter *OutputFormatter, code string, exit int, message string, err error) error {
	msg := message
	if err != nil {
		msg = fmt.Sprintf("%s: %v", message, err)
	}
	_ = formatter.Error(code, msg, err)
	return WrapExitError(exit, message, err)
}

// failLoad reports a schema LoadError with its own code.
func failLoad(formatter *OutputFormatter, err error) error {
	var loadErr *schema.LoadError
	if errors.As(err, &loadErr) {
		_ = formatter.Error(loadErr.Code, loadErr.Error(), loadErr)
		return WrapExitError(ExitCommandError, "failed to load models", err)
	}
	return fail(formatter, schema.ErrCodeGeneric, ExitCommandError, "failed to load models", err)
}

// failRecord maps record errors to codes.
func failRecord(formatter *OutputFormatter, op string, err error) error {
	switch {
	case record.IsPersistenceFailure(err):
		return fail(formatter, ErrCodePersistence, ExitFailure, op+" failed", err)
	case record.IsAttributeNotFound(err), record.IsDuplicateBoundAttribute(err):
		return fail(formatter, ErrCodeAttribute, ExitCommandError, op+" failed", err)
	}
	return fail(formatter, schema.ErrCodeGeneric, ExitFailure, op+" failed", err)
}
