package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rowkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: pgx
  dsn: postgres://localhost/app
  field_cache_size: 16
models: defs
datetime_format: "d/m/Y"
auto_timestamp: datetime
timezone: UTC
log_level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, Database{Driver: "pgx", DSN: "postgres://localhost/app", FieldCacheSize: 16}, cfg.Database)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "defs"), cfg.Models)
	assert.Equal(t, "datetime", cfg.AutoTimestamp)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	conv, err := cfg.Converter()
	require.NoError(t, err)
	assert.Equal(t, "d/m/Y", conv.DateFormat)
	assert.Equal(t, time.UTC, conv.Location)
}

func TestLoadKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "auto_timestamp: true\n"))
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Database, cfg.Database)
	assert.Equal(t, def.DatetimeFormat, cfg.DatetimeFormat)
	assert.Equal(t, "true", cfg.AutoTimestamp)

	empty, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, "false", empty.AutoTimestamp)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Load(writeConfig(t, "databse:\n  driver: sqlite3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv(EnvDriver, "pgx")
	t.Setenv(EnvDSN, "postgres://env/db")

	cfg, err := Load(writeConfig(t, "database:\n  driver: sqlite3\n  dsn: file.db\n"))
	require.NoError(t, err)
	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, "postgres://env/db", cfg.Database.DSN)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"empty dsn", func(c *Config) { c.Database.DSN = "" }, "database.dsn"},
		{"cache size", func(c *Config) { c.Database.FieldCacheSize = 0 }, "field_cache_size"},
		{"timestamp mode", func(c *Config) { c.AutoTimestamp = "sometimes" }, "auto_timestamp"},
		{"timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "timezone"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
	}

	require.NoError(t, Default().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
