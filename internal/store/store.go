package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/rowkit/internal/querysql"
)

// DefaultFieldCacheSize bounds how many tables' column lists are cached.
const DefaultFieldCacheSize = 128

// Store owns the database handle shared by every Session.
// Safe for concurrent use; Sessions are not.
type Store struct {
	db       *sql.DB
	driver   string
	compiler *querysql.SQLCompiler
	fields   *lru.Cache[string, []string]
	metrics  *Metrics
	loc      *time.Location
}

type options struct {
	metrics        *Metrics
	fieldCacheSize int
	loc            *time.Location
}

// Option configures Open.
type Option func(*options)

// WithMetrics records statement counts, durations and rollbacks into m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLocation sets the zone of zoneless date and time columns. Drivers
// read them as UTC; Select rebuilds the same wall clock in loc, the zone
// the values were written in.
func WithLocation(loc *time.Location) Option {
	return func(o *options) { o.loc = loc }
}

// WithFieldCacheSize bounds the table column cache.
func WithFieldCacheSize(n int) Option {
	return func(o *options) { o.fieldCacheSize = n }
}

// Open connects to a database through driver ("sqlite3" or "pgx").
//
// SQLite connections are configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//   - A single open connection, so one writer at a time
func Open(driver, dsn string, opts ...Option) (*Store, error) {
	o := options{fieldCacheSize: DefaultFieldCacheSize}
	for _, opt := range opts {
		opt(&o)
	}

	dialect, err := querysql.DialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection works
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if dialect == querysql.SQLite {
		// SQLite only supports one writer at a time, so limit connections
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	cache, err := lru.New[string, []string](o.fieldCacheSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("field cache: %w", err)
	}

	slog.Debug("store opened", "driver", driver, "dialect", dialect.String())

	return &Store{
		db:       db,
		driver:   driver,
		compiler: querysql.NewSQLCompiler(dialect),
		fields:   cache,
		metrics:  o.metrics,
		loc:      o.loc,
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer Sessions when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Driver returns the database/sql driver name.
func (s *Store) Driver() string {
	return s.driver
}

// Dialect returns the SQL dialect in use.
func (s *Store) Dialect() querysql.Dialect {
	return s.compiler.Dialect
}

// Exec runs a raw statement outside any Session.
// Intended for setup such as creating tables.
func (s *Store) Exec(ctx context.Context, query string, args ...any) error {
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

// ForgetFields drops cached column lists, for one table or, with no
// arguments, for all of them. Call after altering a table.
func (s *Store) ForgetFields(tables ...string) {
	if len(tables) == 0 {
		s.fields.Purge()
		return
	}
	for _, t := range tables {
		s.fields.Remove(t)
	}
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
