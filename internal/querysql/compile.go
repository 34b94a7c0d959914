package querysql

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/rowkit/internal/ordered"
	"github.com/roach88/rowkit/internal/query"
)

// Dialect selects placeholder style and dialect-specific statements.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	switch d {
	case SQLite:
		return "sqlite"
	case Postgres:
		return "postgres"
	default:
		return "unknown"
	}
}

// DialectFor maps a database/sql driver name to its dialect.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite3", "sqlite":
		return SQLite, nil
	case "pgx", "postgres":
		return Postgres, nil
	default:
		return 0, fmt.Errorf("unsupported driver %q", driver)
	}
}

// Statement is compiled SQL plus its positional arguments.
type Statement struct {
	SQL  string
	Args []any
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLCompiler compiles record writes and reads to parameterized SQL.
//
// CRITICAL: All values are parameterized (never interpolated).
// CRITICAL: Identifiers are validated and quoted; anything that is not a
// plain identifier is rejected rather than escaped.
// Map keys are sorted so the same input always yields the same SQL.
type SQLCompiler struct {
	Dialect Dialect
}

// NewSQLCompiler creates a new SQLCompiler for dialect.
func NewSQLCompiler(dialect Dialect) *SQLCompiler {
	return &SQLCompiler{Dialect: dialect}
}

// Insert compiles an INSERT. With replace set, SQLite uses INSERT OR REPLACE;
// Postgres has no key-agnostic equivalent and returns an error.
func (c *SQLCompiler) Insert(table string, data map[string]any, replace bool) (Statement, error) {
	if err := checkIdent(table); err != nil {
		return Statement{}, err
	}
	verb := "INSERT"
	if replace {
		if c.Dialect != SQLite {
			return Statement{}, fmt.Errorf("replace insert is not supported by the %s dialect", c.Dialect)
		}
		verb = "INSERT OR REPLACE"
	}

	if len(data) == 0 {
		return Statement{SQL: fmt.Sprintf("%s INTO %s DEFAULT VALUES", verb, quote(table))}, nil
	}

	p := c.params()
	keys := sortedKeys(data)
	cols := make([]string, len(keys))
	marks := make([]string, len(keys))
	for i, k := range keys {
		if err := checkIdent(k); err != nil {
			return Statement{}, err
		}
		v, err := toParam(data[k])
		if err != nil {
			return Statement{}, fmt.Errorf("field %s: %w", k, err)
		}
		cols[i] = quote(k)
		marks[i] = p.add(v)
	}

	sql := fmt.Sprintf("%s INTO %s (%s) VALUES (%s)",
		verb,
		quote(table),
		strings.Join(cols, ", "),
		strings.Join(marks, ", "))
	return Statement{SQL: sql, Args: p.args}, nil
}

// Update compiles an UPDATE. An empty condition is rejected.
func (c *SQLCompiler) Update(table string, data map[string]any, where query.Cond) (Statement, error) {
	if err := checkIdent(table); err != nil {
		return Statement{}, err
	}
	if len(data) == 0 {
		return Statement{}, fmt.Errorf("update %s: no fields to set", table)
	}
	if query.Empty(where) {
		return Statement{}, fmt.Errorf("update %s: refusing to update without a condition", table)
	}

	p := c.params()
	keys := sortedKeys(data)
	sets := make([]string, len(keys))
	for i, k := range keys {
		if err := checkIdent(k); err != nil {
			return Statement{}, err
		}
		v, err := toParam(data[k])
		if err != nil {
			return Statement{}, fmt.Errorf("field %s: %w", k, err)
		}
		sets[i] = fmt.Sprintf("%s = %s", quote(k), p.add(v))
	}

	whereSQL, err := c.compileCond(where, p)
	if err != nil {
		return Statement{}, fmt.Errorf("compile condition: %w", err)
	}

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s", quote(table), strings.Join(sets, ", "), whereSQL)
	return Statement{SQL: sql, Args: p.args}, nil
}

// Delete compiles a DELETE. An empty condition is rejected.
func (c *SQLCompiler) Delete(table string, where query.Cond) (Statement, error) {
	if err := checkIdent(table); err != nil {
		return Statement{}, err
	}
	if query.Empty(where) {
		return Statement{}, fmt.Errorf("delete %s: refusing to delete without a condition", table)
	}

	p := c.params()
	whereSQL, err := c.compileCond(where, p)
	if err != nil {
		return Statement{}, fmt.Errorf("compile condition: %w", err)
	}
	return Statement{SQL: fmt.Sprintf("DELETE FROM %s WHERE %s", quote(table), whereSQL), Args: p.args}, nil
}

// Select compiles a SELECT. No fields means every column; no orderBy means
// storage order.
func (c *SQLCompiler) Select(table string, fields []string, where query.Cond, orderBy []string) (Statement, error) {
	if err := checkIdent(table); err != nil {
		return Statement{}, err
	}

	cols := "*"
	if len(fields) > 0 {
		quoted := make([]string, len(fields))
		for i, f := range fields {
			if err := checkIdent(f); err != nil {
				return Statement{}, err
			}
			quoted[i] = quote(f)
		}
		cols = strings.Join(quoted, ", ")
	}

	p := c.params()
	sql := fmt.Sprintf("SELECT %s FROM %s", cols, quote(table))
	if !query.Empty(where) {
		whereSQL, err := c.compileCond(where, p)
		if err != nil {
			return Statement{}, fmt.Errorf("compile condition: %w", err)
		}
		sql += " WHERE " + whereSQL
	}

	if len(orderBy) > 0 {
		parts := make([]string, len(orderBy))
		for i, f := range orderBy {
			if err := checkIdent(f); err != nil {
				return Statement{}, err
			}
			parts[i] = quote(f) + " ASC"
		}
		sql += " ORDER BY " + strings.Join(parts, ", ")
	}
	return Statement{SQL: sql, Args: p.args}, nil
}

// Inc compiles "field = field + step" for matching rows.
func (c *SQLCompiler) Inc(table, field string, step any, where query.Cond) (Statement, error) {
	if err := checkIdent(table); err != nil {
		return Statement{}, err
	}
	if err := checkIdent(field); err != nil {
		return Statement{}, err
	}
	if query.Empty(where) {
		return Statement{}, fmt.Errorf("inc %s: refusing to update without a condition", table)
	}

	p := c.params()
	set := fmt.Sprintf("%s = %s + %s", quote(field), quote(field), p.add(step))
	whereSQL, err := c.compileCond(where, p)
	if err != nil {
		return Statement{}, fmt.Errorf("compile condition: %w", err)
	}
	return Statement{SQL: fmt.Sprintf("UPDATE %s SET %s WHERE %s", quote(table), set, whereSQL), Args: p.args}, nil
}

// TableFields returns a query yielding one column name per row, in
// declaration order.
func (c *SQLCompiler) TableFields(table string) Statement {
	if c.Dialect == Postgres {
		return Statement{
			SQL: "SELECT column_name FROM information_schema.columns " +
				"WHERE table_schema = current_schema() AND table_name = $1 ORDER BY ordinal_position",
			Args: []any{table},
		}
	}
	return Statement{SQL: "SELECT name FROM pragma_table_info(?) ORDER BY cid", Args: []any{table}}
}

// CurrentValue returns the query reading a sequence's current value.
// Only Postgres has named sequences.
func (c *SQLCompiler) CurrentValue(sequence string) (Statement, error) {
	if c.Dialect != Postgres {
		return Statement{}, fmt.Errorf("sequences are not supported by the %s dialect", c.Dialect)
	}
	return Statement{SQL: "SELECT currval($1)", Args: []any{sequence}}, nil
}

// LastValue returns the query reading the value most recently produced by
// any sequence in the session. Only Postgres has it.
func (c *SQLCompiler) LastValue() (Statement, error) {
	if c.Dialect != Postgres {
		return Statement{}, fmt.Errorf("lastval is not supported by the %s dialect", c.Dialect)
	}
	return Statement{SQL: "SELECT lastval()"}, nil
}

// compileCond compiles a query.Cond to a WHERE fragment.
// CRITICAL: Values NEVER interpolated - always placeholders.
func (c *SQLCompiler) compileCond(cond query.Cond, p *params) (string, error) {
	switch v := cond.(type) {
	case nil:
		return "1 = 1", nil
	case query.Eq:
		if err := checkIdent(v.Field); err != nil {
			return "", err
		}
		if v.Value == nil {
			return quote(v.Field) + " IS NULL", nil
		}
		val, err := toParam(v.Value)
		if err != nil {
			return "", fmt.Errorf("field %s: %w", v.Field, err)
		}
		return fmt.Sprintf("%s = %s", quote(v.Field), p.add(val)), nil
	case query.In:
		if err := checkIdent(v.Field); err != nil {
			return "", err
		}
		if len(v.Values) == 0 {
			return "1 = 0", nil // Nothing is in an empty set
		}
		marks := make([]string, len(v.Values))
		for i, item := range v.Values {
			val, err := toParam(item)
			if err != nil {
				return "", fmt.Errorf("field %s: %w", v.Field, err)
			}
			marks[i] = p.add(val)
		}
		return fmt.Sprintf("%s IN (%s)", quote(v.Field), strings.Join(marks, ", ")), nil
	case query.And:
		if len(v.Conds) == 0 {
			return "1 = 1", nil // Vacuous truth
		}
		parts := make([]string, 0, len(v.Conds))
		for _, inner := range v.Conds {
			sql, err := c.compileCond(inner, p)
			if err != nil {
				return "", err
			}
			parts = append(parts, sql)
		}
		if len(parts) == 1 {
			return parts[0], nil
		}
		return "(" + strings.Join(parts, " AND ") + ")", nil
	case *query.And:
		if v == nil {
			return "1 = 1", nil
		}
		return c.compileCond(*v, p)
	default:
		return "", fmt.Errorf("unsupported condition type: %T", cond)
	}
}

type params struct {
	dialect Dialect
	args    []any
}

func (c *SQLCompiler) params() *params {
	return &params{dialect: c.Dialect}
}

// add appends v and returns its placeholder.
func (p *params) add(v any) string {
	p.args = append(p.args, v)
	if p.dialect == Postgres {
		return "$" + strconv.Itoa(len(p.args))
	}
	return "?"
}

func checkIdent(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}

func quote(name string) string {
	return `"` + name + `"`
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// toParam converts a value to something database/sql accepts.
// Lists and maps are stored as JSON text; []byte stays binary.
func toParam(v any) (any, error) {
	switch val := v.(type) {
	case nil, string, []byte, bool, time.Time,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v, nil
	case *ordered.Map:
		out, err := val.MarshalJSON()
		if err != nil {
			return nil, err
		}
		return string(out), nil
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		out, err := ordered.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(out), nil
	}
	return v, nil
}
