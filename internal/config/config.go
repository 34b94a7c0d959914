package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rowkit/internal/coerce"
	"github.com/roach88/rowkit/internal/store"
)

// Environment variables that override the file.
const (
	EnvDriver = "ROWKIT_DB_DRIVER"
	EnvDSN    = "ROWKIT_DB_DSN"
)

// Config is the application configuration.
type Config struct {
	Database Database `yaml:"database"`

	// Models is the directory of CUE model definitions.
	Models string `yaml:"models"`

	// DatetimeFormat is the default read format for temporal fields.
	DatetimeFormat string `yaml:"datetime_format"`

	// AutoTimestamp is the timestamp mode for models that do not set one.
	AutoTimestamp string `yaml:"auto_timestamp"`

	// Timezone names the zone dates are read and written in.
	Timezone string `yaml:"timezone"`

	LogLevel string `yaml:"log_level"`
}

// Database selects the store driver.
type Database struct {
	Driver         string `yaml:"driver"`
	DSN            string `yaml:"dsn"`
	FieldCacheSize int    `yaml:"field_cache_size"`
}

var autoTimestampModes = []string{"", "false", "true", "int", "datetime", "date", "timestamp"}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Database: Database{
			Driver:         "sqlite3",
			DSN:            "rowkit.db",
			FieldCacheSize: store.DefaultFieldCacheSize,
		},
		Models:         "models",
		DatetimeFormat: coerce.DefaultDateFormat,
		AutoTimestamp:  "false",
		Timezone:       "Local",
		LogLevel:       "info",
	}
}

// Load reads a YAML config file over the defaults, applies environment
// overrides and validates the result. Unknown keys are rejected.
// A relative models directory is resolved against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Models != "" && !filepath.IsAbs(cfg.Models) {
		cfg.Models = filepath.Join(filepath.Dir(path), cfg.Models)
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides the database settings from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvDriver); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv(EnvDSN); v != "" {
		c.Database.DSN = v
	}
}

// Validate checks the settings Load cannot check while decoding.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "pgx":
	default:
		return fmt.Errorf("database.driver: unknown driver %q (use sqlite3 or pgx)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn: required")
	}
	if c.Database.FieldCacheSize <= 0 {
		return fmt.Errorf("database.field_cache_size: must be positive, got %d", c.Database.FieldCacheSize)
	}
	if !slices.Contains(autoTimestampModes, strings.ToLower(c.AutoTimestamp)) {
		return fmt.Errorf("auto_timestamp: unknown mode %q", c.AutoTimestamp)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	if _, err := c.Level(); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	err := l.UnmarshalText([]byte(c.LogLevel))
	return l, err
}

// Location loads Timezone. "" and "Local" are the local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Converter builds the value converter the settings describe.
func (c *Config) Converter() (*coerce.Converter, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	conv := coerce.NewConverter()
	if c.DatetimeFormat != "" {
		conv.DateFormat = c.DatetimeFormat
	}
	conv.Location = loc
	return conv, nil
}
