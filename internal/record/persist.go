package record

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/rowkit/internal/coerce"
	"github.com/roach88/rowkit/internal/ordered"
	"github.com/roach88/rowkit/internal/query"
)

// pendingCascade is a relation write captured at save time.
type pendingCascade struct {
	cascade Cascade
	payload any
}

// Save assigns data, then inserts or updates the record depending on
// whether it exists.
//
// A non-empty cond (given together with data) marks the record as existing
// and becomes the fallback update condition. Save returns (false, nil) when
// a hook vetoes and a PERSISTENCE_FAILURE when the store faults, after the
// transaction is rolled back. A failed or vetoed write leaves the
// attributes as they were after data was assigned. On success origin is
// reset to the current attributes and after_write fires.
func (r *Record) Save(ctx context.Context, data map[string]any, cond query.Cond) (bool, error) {
	ok, err := r.checkBeforeSave(ctx, data, cond)
	if err != nil || !ok {
		return false, err
	}

	restore := r.data.Clone()
	r.captureCascades()

	if r.exists {
		ok, err = r.updateData(ctx, cond)
	} else {
		ok, err = r.insertData(ctx)
	}
	r.pending = nil
	if err != nil || !ok {
		r.data = restore
		return false, err
	}

	r.origin = r.data.Clone()
	clear(r.intercepted)
	r.fire(ctx, AfterWrite)
	return true, nil
}

func (r *Record) checkBeforeSave(ctx context.Context, data map[string]any, cond query.Cond) (bool, error) {
	if len(data) > 0 {
		for _, k := range sortedKeys(data) {
			if err := r.setAttr(k, data[k], data); err != nil {
				return false, err
			}
		}
		if !query.Empty(cond) {
			r.exists = true
			r.updateWhere = cond
		}
	}

	if err := r.autoComplete(r.mt.Auto); err != nil {
		return false, err
	}
	return r.fire(ctx, BeforeWrite), nil
}

// autoComplete applies auto-complete fields through Set.
func (r *Record) autoComplete(fields []AutoField) error {
	for _, af := range fields {
		var v any
		switch gen := af.Value.(type) {
		case nil:
			v, _ = r.data.Get(af.Name)
		case func() any:
			v = gen()
		default:
			v = af.Value
		}
		if err := r.setAttr(af.Name, v, nil); err != nil {
			return err
		}
	}
	return nil
}

// checkTimestampWrite fills unset create and update times before an insert.
func (r *Record) checkTimestampWrite() {
	ts := r.timestamps()
	if !ts.Enabled() {
		return
	}
	for _, f := range []string{ts.CreateField, ts.UpdateField} {
		if f != "" && !r.Has(f) {
			r.data.Set(f, r.autoTimestampValue(f))
		}
	}
}

// allowFields resolves the fields a write may touch.
//
// Without an explicit allow-list the table's live columns are used,
// fetched once per model type. Otherwise the allow-list plus auto-complete
// fields (and both timestamp fields when auto timestamps are on) apply.
// Disused fields are always removed.
func (r *Record) allowFields(ctx context.Context, conn query.Conn, auto []AutoField) ([]string, error) {
	var fields []string
	if explicit := r.allowList(); len(explicit) == 0 {
		cols, err := r.mt.tableFields(ctx, conn)
		if err != nil {
			return nil, err
		}
		fields = slices.Clone(cols)
	} else {
		fields = slices.Clone(explicit)
		for _, af := range auto {
			fields = append(fields, af.Name)
		}
		if ts := r.timestamps(); ts.Enabled() {
			fields = append(fields, ts.CreateField, ts.UpdateField)
		}
	}
	return slices.DeleteFunc(fields, func(f string) bool {
		return slices.Contains(r.mt.Disuse, f)
	}), nil
}

func (r *Record) insertData(ctx context.Context) (bool, error) {
	if err := r.autoComplete(r.mt.Insert); err != nil {
		return false, err
	}
	r.checkTimestampWrite()

	if !r.fire(ctx, BeforeInsert) {
		return false, nil
	}

	conn, err := r.connection()
	if err != nil {
		return false, err
	}
	allow, err := r.allowFields(ctx, conn, concatAuto(r.mt.Auto, r.mt.Insert))
	if err != nil {
		return false, newPersistenceFailure(r.mt.Name, "insert", err)
	}

	if err := conn.Begin(ctx); err != nil {
		return false, newPersistenceFailure(r.mt.Name, "insert", err)
	}

	fail := func(err error) (bool, error) {
		return false, r.rollback(ctx, conn, "insert", err)
	}

	if _, err := conn.Table(r.mt.Table).Fields(allow...).Insert(ctx, r.data.ToMap(), r.replace); err != nil {
		return fail(err)
	}

	id, err := conn.LastInsertID(ctx, r.sequenceName())
	if err != nil {
		return fail(err)
	}
	if coerce.Truthy(id) {
		for _, k := range r.mt.PK {
			if v, ok := r.data.Get(k); !ok || v == nil || v == "" {
				r.data.Set(k, id)
			}
		}
	}

	if err := r.cascadeInsert(ctx); err != nil {
		return fail(err)
	}
	if err := conn.Commit(ctx); err != nil {
		return fail(err)
	}

	r.exists = true
	slog.Debug("record inserted", "model", r.mt.Name, "table", r.mt.Table, "id", r.Key())
	r.fire(ctx, AfterInsert)
	return true, nil
}

func (r *Record) updateData(ctx context.Context, cond query.Cond) (bool, error) {
	if err := r.autoComplete(r.mt.UpdateAuto); err != nil {
		return false, err
	}
	if !r.fire(ctx, BeforeUpdate) {
		return false, nil
	}

	data := r.ChangedData()
	if data.Len() == 0 {
		if len(r.pending) == 0 {
			return true, nil
		}
		conn, err := r.connection()
		if err != nil {
			return false, err
		}
		if err := r.inTransaction(ctx, conn, "update", r.cascadeUpdate); err != nil {
			return false, err
		}
		return true, nil
	}

	ts := r.timestamps()
	if ts.Enabled() && ts.UpdateField != "" && !hasValue(data, ts.UpdateField) {
		now := r.autoTimestampValue(ts.UpdateField)
		data.Set(ts.UpdateField, now)
		r.data.Set(ts.UpdateField, now)
	}

	if query.Empty(cond) {
		cond = r.updateWhere
	}

	conn, err := r.connection()
	if err != nil {
		return false, err
	}
	allow, err := r.allowFields(ctx, conn, concatAuto(r.mt.Auto, r.mt.UpdateAuto))
	if err != nil {
		return false, newPersistenceFailure(r.mt.Name, "update", err)
	}

	// Key fields drive the condition and never appear in SET.
	var keyConds []query.Cond
	for _, k := range r.mt.PK {
		if v, ok := r.data.Get(k); ok && v != nil {
			keyConds = append(keyConds, query.Eq{Field: k, Value: v})
		}
		data.Delete(k)
	}
	if len(keyConds) > 0 {
		cond = query.Conj(keyConds...)
	}

	for _, p := range r.pending {
		for _, f := range p.cascade.Fields {
			data.Delete(f)
		}
	}

	set := query.Restrict(data.ToMap(), allow)
	err = r.inTransaction(ctx, conn, "update", func(ctx context.Context, conn query.Conn) error {
		if len(set) > 0 {
			if _, err := conn.Table(r.mt.Table).Where(cond).Fields(allow...).Update(ctx, set); err != nil {
				return err
			}
		}
		return r.cascadeUpdate(ctx, conn)
	})
	if err != nil {
		return false, err
	}

	slog.Debug("record updated", "model", r.mt.Name, "fields", sortedKeys(set), "where", query.String(cond))
	r.fire(ctx, AfterUpdate)
	return true, nil
}

// Delete removes the stored row and cascaded relations.
//
// A record that does not exist returns (false, nil) without touching the
// store, as does a before_delete veto. The row is found by primary key,
// falling back to the update condition.
func (r *Record) Delete(ctx context.Context) (bool, error) {
	if !r.exists || !r.fire(ctx, BeforeDelete) {
		return false, nil
	}

	conn, err := r.connection()
	if err != nil {
		return false, err
	}
	cond := r.where()

	err = r.inTransaction(ctx, conn, "delete", func(ctx context.Context, conn query.Conn) error {
		if _, err := conn.Table(r.mt.Table).Where(cond).Delete(ctx); err != nil {
			return err
		}
		return r.cascadeDelete(ctx, conn)
	})
	if err != nil {
		return false, err
	}

	slog.Debug("record deleted", "model", r.mt.Name, "where", query.String(cond))
	r.fire(ctx, AfterDelete)
	r.exists = false
	return true, nil
}

// Inc adds step to field in the store and in the current attributes.
func (r *Record) Inc(ctx context.Context, field string, step any) (bool, error) {
	return r.step(ctx, field, step, false)
}

// Dec subtracts step from field in the store and in the current attributes.
func (r *Record) Dec(ctx context.Context, field string, step any) (bool, error) {
	return r.step(ctx, field, step, true)
}

func (r *Record) step(ctx context.Context, field string, step any, negate bool) (bool, error) {
	cond := r.where()
	if !r.fire(ctx, BeforeUpdate) {
		return false, nil
	}
	conn, err := r.connection()
	if err != nil {
		return false, err
	}

	delta := number(step)
	if negate {
		delta = negateNumber(delta)
	}
	if _, err := conn.Table(r.mt.Table).Where(cond).Inc(ctx, field, delta); err != nil {
		return false, newPersistenceFailure(r.mt.Name, "inc", err)
	}

	cur, _ := r.data.Get(field)
	r.data.Set(field, addNumbers(cur, delta))
	r.fire(ctx, AfterUpdate)
	return true, nil
}

// where is the condition identifying the stored row: the non-nil key
// fields, else the update condition.
func (r *Record) where() query.Cond {
	var conds []query.Cond
	for _, k := range r.mt.PK {
		if v, ok := r.data.Get(k); ok && v != nil {
			conds = append(conds, query.Eq{Field: k, Value: v})
		}
	}
	if len(conds) == 0 {
		return r.updateWhere
	}
	return query.Conj(conds...)
}

func (r *Record) connection() (query.Conn, error) {
	conn := r.Conn()
	if conn == nil {
		return nil, newInvalidModel(r.mt.Name, "", "no connection configured")
	}
	return conn, nil
}

// inTransaction runs fn between Begin and Commit, rolling back on failure.
func (r *Record) inTransaction(ctx context.Context, conn query.Conn, op string, fn func(context.Context, query.Conn) error) error {
	if err := conn.Begin(ctx); err != nil {
		return newPersistenceFailure(r.mt.Name, op, err)
	}
	if err := fn(ctx, conn); err != nil {
		return r.rollback(ctx, conn, op, err)
	}
	if err := conn.Commit(ctx); err != nil {
		return r.rollback(ctx, conn, op, err)
	}
	return nil
}

func (r *Record) rollback(ctx context.Context, conn query.Conn, op string, cause error) error {
	if rbErr := conn.Rollback(ctx); rbErr != nil {
		cause = errors.Join(cause, fmt.Errorf("rollback: %w", rbErr))
	}
	slog.Warn("record rolled back", "model", r.mt.Name, "op", op, "error", cause)
	return newPersistenceFailure(r.mt.Name, op, cause)
}

func (r *Record) fire(ctx context.Context, h Hook) bool {
	if r.mt.Hooks.fire(ctx, h, r) {
		return true
	}
	slog.Debug("save vetoed", "model", r.mt.Name, "hook", string(h))
	return false
}

func hasValue(m *ordered.Map, key string) bool {
	v, ok := m.Get(key)
	return ok && v != nil
}

func concatAuto(lists ...[]AutoField) []AutoField {
	var out []AutoField
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

// number reads numeric strings as int64 or float64.
func number(v any) any {
	n := coerce.Normalize(v)
	s, ok := n.(string)
	if !ok || !coerce.IsNumeric(s) {
		return n
	}
	if f := coerce.ToFloat(s); f != float64(coerce.ToInt(s)) {
		return f
	}
	return coerce.ToInt(s)
}

func negateNumber(v any) any {
	switch n := v.(type) {
	case int64:
		return -n
	case float64:
		return -n
	}
	return v
}

// addNumbers adds delta to cur, keeping integers integral.
func addNumbers(cur, delta any) any {
	c, d := coerce.Normalize(cur), coerce.Normalize(delta)
	ci, cInt := c.(int64)
	di, dInt := d.(int64)
	if c == nil {
		cInt, ci = true, 0
	}
	if cInt && dInt {
		return ci + di
	}
	return coerce.ToFloat(c) + coerce.ToFloat(d)
}
