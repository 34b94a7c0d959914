package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/roach88/rowkit/internal/ordered"
	"github.com/roach88/rowkit/internal/query"
	"github.com/roach88/rowkit/internal/querysql"
)

// ErrNoTransaction is returned by Commit or Rollback with no open transaction.
var ErrNoTransaction = errors.New("no transaction in progress")

// execer is the part of *sql.DB and *sql.Tx a Session needs.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Session is one logical connection implementing query.Conn.
//
// While a transaction is open every statement runs inside it. Nested Begin
// calls open savepoints, so an inner Rollback undoes only the inner scope.
//
// Thread-safety: a Session is NOT safe for concurrent use. Create one per
// request or operation with Store.Session.
type Session struct {
	store  *Store
	tx     *sql.Tx
	depth  int
	lastID any
}

var _ query.Conn = (*Session)(nil)

// Session starts a new Session.
func (s *Store) Session() *Session {
	return &Session{store: s}
}

// InTransaction reports whether a transaction is open.
func (s *Session) InTransaction() bool {
	return s.depth > 0
}

// Begin opens a transaction, or a savepoint inside the current one.
func (s *Session) Begin(ctx context.Context) error {
	if s.depth == 0 {
		tx, err := s.store.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		s.tx = tx
		s.depth = 1
		return nil
	}

	name := savepoint(s.depth + 1)
	if _, err := s.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("begin %s: %w", name, err)
	}
	s.depth++
	return nil
}

// Commit closes the innermost scope. The outermost Commit commits the transaction.
func (s *Session) Commit(ctx context.Context) error {
	switch {
	case s.depth == 0:
		return ErrNoTransaction
	case s.depth > 1:
		name := savepoint(s.depth)
		if _, err := s.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
			return fmt.Errorf("commit %s: %w", name, err)
		}
		s.depth--
		return nil
	}

	tx := s.tx
	s.tx, s.depth = nil, 0
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback undoes the innermost scope. The outermost Rollback ends the transaction.
func (s *Session) Rollback(ctx context.Context) error {
	if s.depth == 0 {
		return ErrNoTransaction
	}
	s.store.metrics.Rollback()

	if s.depth > 1 {
		name := savepoint(s.depth)
		s.depth--
		if _, err := s.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); err != nil {
			return fmt.Errorf("rollback %s: %w", name, err)
		}
		if _, err := s.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
			return fmt.Errorf("release %s: %w", name, err)
		}
		return nil
	}

	tx := s.tx
	s.tx, s.depth = nil, 0
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// Table returns a Builder bound to table.
func (s *Session) Table(name string) query.Builder {
	return &builder{session: s, table: name}
}

// TableFields returns table's column names, cached per Store.
func (s *Session) TableFields(ctx context.Context, table string) ([]string, error) {
	if cached, ok := s.store.fields.Get(table); ok {
		return cached, nil
	}

	stmt := s.store.compiler.TableFields(table)
	rows, err := s.query(ctx, "fields", stmt)
	if err != nil {
		return nil, fmt.Errorf("table fields %s: %w", table, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("table fields %s: %w", table, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("table fields %s: %w", table, err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("table fields %s: table not found", table)
	}

	s.store.fields.Add(table, names)
	return names, nil
}

// LastInsertID returns the key generated by this Session's last insert.
// On Postgres a named sequence's current value is read; without a name,
// lastval() is. A session that has not used a sequence yet has no key.
func (s *Session) LastInsertID(ctx context.Context, sequence string) (any, error) {
	if s.store.compiler.Dialect != querysql.Postgres {
		return s.lastID, nil
	}
	if sequence == "" {
		return s.lastValue(ctx)
	}

	stmt, err := s.store.compiler.CurrentValue(sequence)
	if err != nil {
		return nil, err
	}
	return s.queryID(ctx, "currval", stmt)
}

// lastValue runs lastval() inside a savepoint when a transaction is open,
// since its "not yet defined" error would otherwise abort the transaction.
func (s *Session) lastValue(ctx context.Context) (any, error) {
	stmt, err := s.store.compiler.LastValue()
	if err != nil {
		return nil, err
	}
	if s.tx == nil {
		id, err := s.queryID(ctx, "lastval", stmt)
		if undefinedLastValue(err) {
			return nil, nil
		}
		return id, err
	}

	const name = "rowkit_lastval"
	if _, err := s.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	id, err := s.queryID(ctx, "lastval", stmt)
	if undefinedLastValue(err) {
		if _, err := s.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
		id, err = nil, nil
	}
	if err != nil {
		return nil, err
	}
	if _, err := s.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// queryID reads a single integer key.
func (s *Session) queryID(ctx context.Context, op string, stmt querysql.Statement) (any, error) {
	rows, err := s.query(ctx, op, stmt)
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	defer rows.Close()

	var id int64
	if rows.Next() {
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
		return id, rows.Err()
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return nil, nil
}

// objectNotInPrerequisiteState is the SQLSTATE of lastval() before any
// sequence was used.
const objectNotInPrerequisiteState = "55000"

// undefinedLastValue reports the error lastval() raises before any
// sequence was used in the session.
func undefinedLastValue(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == objectNotInPrerequisiteState
}

func (s *Session) conn() execer {
	if s.tx != nil {
		return s.tx
	}
	return s.store.db
}

func (s *Session) exec(ctx context.Context, op string, stmt querysql.Statement) (sql.Result, error) {
	slog.Debug("store exec", "op", op, "sql", stmt.SQL, "args", len(stmt.Args))
	start := time.Now()
	res, err := s.conn().ExecContext(ctx, stmt.SQL, stmt.Args...)
	s.store.metrics.Observe(op, err == nil, time.Since(start))
	return res, err
}

func (s *Session) query(ctx context.Context, op string, stmt querysql.Statement) (*sql.Rows, error) {
	slog.Debug("store query", "op", op, "sql", stmt.SQL, "args", len(stmt.Args))
	start := time.Now()
	rows, err := s.conn().QueryContext(ctx, stmt.SQL, stmt.Args...)
	s.store.metrics.Observe(op, err == nil, time.Since(start))
	return rows, err
}

func savepoint(depth int) string {
	return fmt.Sprintf("sp%d", depth)
}

// builder implements query.Builder over a Session.
type builder struct {
	session *Session
	table   string
	where   query.Cond
	fields  []string
	order   []string
}

func (b *builder) Where(c query.Cond) query.Builder {
	b.where = query.Conj(b.where, c)
	return b
}

func (b *builder) Fields(names ...string) query.Builder {
	b.fields = names
	return b
}

func (b *builder) Order(names ...string) query.Builder {
	b.order = names
	return b
}

func (b *builder) Insert(ctx context.Context, data map[string]any, replace bool) (int64, error) {
	stmt, err := b.session.store.compiler.Insert(b.table, query.Restrict(data, b.fields), replace)
	if err != nil {
		return 0, err
	}
	res, err := b.session.exec(ctx, "insert", stmt)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", b.table, err)
	}

	// pgx does not implement LastInsertId; Postgres keys come from sequences.
	b.session.lastID = nil
	if id, err := res.LastInsertId(); err == nil {
		b.session.lastID = id
	}
	return affected(res)
}

func (b *builder) Update(ctx context.Context, data map[string]any) (int64, error) {
	stmt, err := b.session.store.compiler.Update(b.table, query.Restrict(data, b.fields), b.where)
	if err != nil {
		return 0, err
	}
	res, err := b.session.exec(ctx, "update", stmt)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", b.table, err)
	}
	return affected(res)
}

func (b *builder) Delete(ctx context.Context) (int64, error) {
	stmt, err := b.session.store.compiler.Delete(b.table, b.where)
	if err != nil {
		return 0, err
	}
	res, err := b.session.exec(ctx, "delete", stmt)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", b.table, err)
	}
	return affected(res)
}

func (b *builder) Inc(ctx context.Context, field string, step any) (int64, error) {
	stmt, err := b.session.store.compiler.Inc(b.table, field, step, b.where)
	if err != nil {
		return 0, err
	}
	res, err := b.session.exec(ctx, "inc", stmt)
	if err != nil {
		return 0, fmt.Errorf("inc %s.%s: %w", b.table, field, err)
	}
	return affected(res)
}

func (b *builder) Select(ctx context.Context) ([]*ordered.Map, error) {
	stmt, err := b.session.store.compiler.Select(b.table, b.fields, b.where, b.order)
	if err != nil {
		return nil, err
	}
	rows, err := b.session.query(ctx, "select", stmt)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", b.table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", b.table, err)
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", b.table, err)
	}
	loc := b.session.store.loc

	var out []*ordered.Map
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("select %s: scan: %w", b.table, err)
		}
		row := ordered.New()
		for i, col := range cols {
			v := values[i]
			if t, ok := v.(time.Time); ok && loc != nil && !zoned(types[i]) {
				v = wallClock(t, loc)
			}
			row.Set(col, v)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select %s: %w", b.table, err)
	}
	return out, nil
}

// zoned reports whether a column stores an instant rather than a wall clock.
func zoned(ct *sql.ColumnType) bool {
	switch strings.ToUpper(ct.DatabaseTypeName()) {
	case "TIMESTAMPTZ", "TIMETZ":
		return true
	}
	return false
}

// wallClock keeps t's clock reading and moves it into loc.
func wallClock(t time.Time, loc *time.Location) time.Time {
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	return time.Date(y, mo, d, h, mi, s, t.Nanosecond(), loc)
}

func affected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
