package query

import (
	"context"
	"slices"

	"github.com/roach88/rowkit/internal/ordered"
)

// Conn is the persistence port a record talks to.
//
// Transactions nest: Begin inside an open transaction starts an inner
// scope that Commit or Rollback closes without ending the outer one.
type Conn interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	// Table returns a fresh Builder bound to table.
	Table(name string) Builder

	// TableFields returns the live column names of table.
	TableFields(ctx context.Context, table string) ([]string, error)

	// LastInsertID returns the key generated by the most recent insert on
	// this connection, or nil when there is none. sequence names the
	// backing sequence for stores that need it.
	LastInsertID(ctx context.Context, sequence string) (any, error)
}

// Builder narrows and executes one statement against a table.
// Where and Fields return the receiver so calls chain.
type Builder interface {
	Where(c Cond) Builder

	// Fields restricts writes (and select columns) to the named fields.
	// No call, or an empty list, means unrestricted.
	Fields(names ...string) Builder

	// Order sorts Select results ascending by the named fields.
	Order(names ...string) Builder

	// Insert writes one row. With replace set, an existing row with the
	// same key is replaced. Returns the number of affected rows.
	Insert(ctx context.Context, data map[string]any, replace bool) (int64, error)

	Update(ctx context.Context, data map[string]any) (int64, error)
	Delete(ctx context.Context) (int64, error)

	// Select returns matching rows in stable order.
	Select(ctx context.Context) ([]*ordered.Map, error)

	// Inc adds step to field on matching rows.
	Inc(ctx context.Context, field string, step any) (int64, error)
}

// Restrict returns the entries of data whose key is in fields.
// An empty field list returns data unchanged.
func Restrict(data map[string]any, fields []string) map[string]any {
	if len(fields) == 0 {
		return data
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		if slices.Contains(fields, k) {
			out[k] = v
		}
	}
	return out
}
