package record

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/roach88/rowkit/internal/coerce"
	"github.com/roach88/rowkit/internal/ordered"
	"github.com/roach88/rowkit/internal/query"
)

var errInjected = errors.New("injected fault")

// fakeConn is an in-memory query.Conn that records every call and can be
// told to fail a given operation on a given table.
type fakeConn struct {
	columns map[string][]string
	rows    map[string][]*ordered.Map
	nextID  map[string]int64
	lastID  any

	snapshots []map[string][]*ordered.Map
	calls     []string
	failOn    map[string]error
	fieldHits int

	// sets holds the SET data of every update in call order.
	sets []map[string]any
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		columns: make(map[string][]string),
		rows:    make(map[string][]*ordered.Map),
		nextID:  make(map[string]int64),
		failOn:  make(map[string]error),
	}
}

// table declares a table; "id" columns auto-increment.
func (c *fakeConn) table(name string, columns ...string) *fakeConn {
	c.columns[name] = columns
	return c
}

// seed stores a row without recording a call.
func (c *fakeConn) seed(table string, data map[string]any) {
	row := ordered.New()
	for _, col := range c.columns[table] {
		row.Set(col, data[col])
	}
	if id, ok := data["id"]; ok {
		if n := coerce.ToInt(id); n > c.nextID[table] {
			c.nextID[table] = n
		}
	}
	c.rows[table] = append(c.rows[table], row)
}

func (c *fakeConn) fail(op, table string) {
	c.failOn[op+" "+table] = errInjected
}

func (c *fakeConn) record(op, table string) error {
	key := op + " " + table
	c.calls = append(c.calls, key)
	return c.failOn[key]
}

// writes counts insert, update, delete and inc calls.
func (c *fakeConn) writes() int {
	n := 0
	for _, call := range c.calls {
		for _, op := range []string{"insert ", "update ", "delete ", "inc "} {
			if len(call) > len(op) && call[:len(op)] == op {
				n++
			}
		}
	}
	return n
}

func (c *fakeConn) rowsOf(table string) []map[string]any {
	var out []map[string]any
	for _, r := range c.rows[table] {
		out = append(out, r.ToMap())
	}
	return out
}

func (c *fakeConn) Begin(context.Context) error {
	c.calls = append(c.calls, "begin")
	snap := make(map[string][]*ordered.Map, len(c.rows))
	for t, rows := range c.rows {
		cp := make([]*ordered.Map, len(rows))
		for i, r := range rows {
			cp[i] = r.Clone()
		}
		snap[t] = cp
	}
	c.snapshots = append(c.snapshots, snap)
	return nil
}

func (c *fakeConn) Commit(context.Context) error {
	c.calls = append(c.calls, "commit")
	if len(c.snapshots) == 0 {
		return errors.New("no transaction")
	}
	c.snapshots = c.snapshots[:len(c.snapshots)-1]
	return nil
}

func (c *fakeConn) Rollback(context.Context) error {
	c.calls = append(c.calls, "rollback")
	if len(c.snapshots) == 0 {
		return errors.New("no transaction")
	}
	last := len(c.snapshots) - 1
	c.rows = c.snapshots[last]
	c.snapshots = c.snapshots[:last]
	return nil
}

func (c *fakeConn) Table(name string) query.Builder {
	return &fakeBuilder{conn: c, table: name}
}

func (c *fakeConn) TableFields(_ context.Context, table string) ([]string, error) {
	c.fieldHits++
	cols, ok := c.columns[table]
	if !ok {
		return nil, fmt.Errorf("table not found: %s", table)
	}
	return cols, nil
}

func (c *fakeConn) LastInsertID(context.Context, string) (any, error) {
	return c.lastID, nil
}

type fakeBuilder struct {
	conn   *fakeConn
	table  string
	where  query.Cond
	fields []string
}

func (b *fakeBuilder) Where(cond query.Cond) query.Builder {
	b.where = query.Conj(b.where, cond)
	return b
}

func (b *fakeBuilder) Fields(names ...string) query.Builder {
	b.fields = names
	return b
}

func (b *fakeBuilder) Order(...string) query.Builder {
	return b
}

func (b *fakeBuilder) matching() []*ordered.Map {
	var out []*ordered.Map
	for _, r := range b.conn.rows[b.table] {
		if query.Matches(b.where, r.ToMap(), coerce.LooseEqual) {
			out = append(out, r)
		}
	}
	return out
}

func (b *fakeBuilder) Insert(_ context.Context, data map[string]any, replace bool) (int64, error) {
	if err := b.conn.record("insert", b.table); err != nil {
		return 0, err
	}
	cols, ok := b.conn.columns[b.table]
	if !ok {
		return 0, fmt.Errorf("no such table: %s", b.table)
	}
	data = query.Restrict(data, b.fields)

	row := ordered.New()
	for _, col := range cols {
		row.Set(col, data[col])
	}
	b.conn.lastID = nil
	if id, ok := row.Get("id"); ok {
		if id == nil || id == "" {
			b.conn.nextID[b.table]++
			id = b.conn.nextID[b.table]
			row.Set("id", id)
			b.conn.lastID = id
		} else if replace {
			kept := b.conn.rows[b.table][:0]
			for _, r := range b.conn.rows[b.table] {
				if v, _ := r.Get("id"); !coerce.LooseEqual(v, id) {
					kept = append(kept, r)
				}
			}
			b.conn.rows[b.table] = kept
		}
	}
	b.conn.rows[b.table] = append(b.conn.rows[b.table], row)
	return 1, nil
}

func (b *fakeBuilder) Update(_ context.Context, data map[string]any) (int64, error) {
	if err := b.conn.record("update", b.table); err != nil {
		return 0, err
	}
	if query.Empty(b.where) {
		return 0, errors.New("update without a condition")
	}
	data = query.Restrict(data, b.fields)
	b.conn.sets = append(b.conn.sets, maps.Clone(data))
	rows := b.matching()
	for _, r := range rows {
		for k, v := range data {
			if r.Has(k) {
				r.Set(k, v)
			}
		}
	}
	return int64(len(rows)), nil
}

func (b *fakeBuilder) Delete(context.Context) (int64, error) {
	if err := b.conn.record("delete", b.table); err != nil {
		return 0, err
	}
	if query.Empty(b.where) {
		return 0, errors.New("delete without a condition")
	}
	var kept []*ordered.Map
	var n int64
	for _, r := range b.conn.rows[b.table] {
		if query.Matches(b.where, r.ToMap(), coerce.LooseEqual) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	b.conn.rows[b.table] = kept
	return n, nil
}

func (b *fakeBuilder) Select(context.Context) ([]*ordered.Map, error) {
	if err := b.conn.record("select", b.table); err != nil {
		return nil, err
	}
	var out []*ordered.Map
	for _, r := range b.matching() {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (b *fakeBuilder) Inc(_ context.Context, field string, step any) (int64, error) {
	if err := b.conn.record("inc", b.table); err != nil {
		return 0, err
	}
	rows := b.matching()
	for _, r := range rows {
		cur, _ := r.Get(field)
		r.Set(field, addNumbers(cur, step))
	}
	return int64(len(rows)), nil
}
