package record

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/rowkit/internal/coerce"
	"github.com/roach88/rowkit/internal/query"
)

// Find loads the first stored record matching cond, or nil.
func (mt *ModelType) Find(ctx context.Context, cond query.Cond) (*Record, error) {
	conn := mt.conn()
	if conn == nil {
		return nil, newInvalidModel(mt.Name, "", "no connection configured")
	}
	return mt.findWith(ctx, conn, cond)
}

// Select loads every stored record matching cond, ordered by order or by
// primary key.
func (mt *ModelType) Select(ctx context.Context, cond query.Cond, order ...string) (Collection, error) {
	conn := mt.conn()
	if conn == nil {
		return nil, newInvalidModel(mt.Name, "", "no connection configured")
	}
	return mt.selectWith(ctx, conn, cond, order...)
}

func (mt *ModelType) findWith(ctx context.Context, conn query.Conn, cond query.Cond) (*Record, error) {
	recs, err := mt.selectWith(ctx, conn, cond)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0], nil
}

func (mt *ModelType) selectWith(ctx context.Context, conn query.Conn, cond query.Cond, order ...string) (Collection, error) {
	if len(order) == 0 {
		order = mt.PK
	}
	rows, err := conn.Table(mt.Table).Where(cond).Order(order...).Select(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: select: %w", mt.Name, err)
	}
	out := make(Collection, 0, len(rows))
	for _, row := range rows {
		rec := mt.newRecord(row, true)
		rec.conn = conn
		out = append(out, rec)
	}
	return out, nil
}

// Create stores a new record built from data. A non-empty fields list
// replaces the allow-list; replace turns the insert into a replace.
// A vetoed create returns the unsaved record.
func (mt *ModelType) Create(ctx context.Context, data map[string]any, fields []string, replace bool) (*Record, error) {
	rec := mt.New(nil)
	if len(fields) > 0 {
		rec.AllowField(fields...)
	}
	rec.IsUpdate(false, nil).ReplaceOnInsert(replace)
	if _, err := rec.Save(ctx, data, nil); err != nil {
		return nil, err
	}
	return rec, nil
}

// Update writes data to the stored row identified by data's primary key,
// or by cond when the key is absent.
func (mt *ModelType) Update(ctx context.Context, data map[string]any, cond query.Cond, fields []string) (*Record, error) {
	rec := mt.New(nil)
	if len(fields) > 0 {
		rec.AllowField(fields...)
	}
	rec.IsUpdate(true, nil)
	if _, err := rec.Save(ctx, data, cond); err != nil {
		return nil, err
	}
	return rec, nil
}

// Destroy deletes every stored record matching cond through the record
// lifecycle, so hooks and cascades run. An empty cond deletes nothing.
// It returns the number of records deleted.
func (mt *ModelType) Destroy(ctx context.Context, cond query.Cond) (int, error) {
	if query.Empty(cond) {
		return 0, nil
	}
	recs, err := mt.Select(ctx, cond)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, rec := range recs {
		ok, err := rec.Delete(ctx)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// DestroyKeys deletes the records whose single primary key is in keys.
func (mt *ModelType) DestroyKeys(ctx context.Context, keys ...any) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	return mt.Destroy(ctx, query.In{Field: mt.PK[0], Values: keys})
}

// SaveAll stores items in one transaction. See Record.SaveAll.
func (mt *ModelType) SaveAll(ctx context.Context, items []map[string]any, replace bool) (Collection, error) {
	return mt.New(nil).SaveAll(ctx, items, replace)
}

// SaveAll stores items in one transaction, using r's settings as the
// template. An item is updated when r exists, or when replace is set, the
// model has a single primary key and the item carries it; otherwise it is
// created. Any failure rolls back the whole batch.
func (r *Record) SaveAll(ctx context.Context, items []map[string]any, replace bool) (Collection, error) {
	conn, err := r.connection()
	if err != nil {
		return nil, err
	}

	byKey := replace && len(r.mt.PK) == 1
	out := make(Collection, 0, len(items))

	err = r.inTransaction(ctx, conn, "save_all", func(ctx context.Context, conn query.Conn) error {
		for _, item := range items {
			rec := r.mt.New(nil).UseConn(conn)
			if r.fields != nil {
				rec.AllowField(r.fields...)
			}
			if r.exists || (byKey && item[r.mt.PK[0]] != nil) {
				rec.IsUpdate(true, nil)
			} else {
				rec.IsUpdate(false, nil).ReplaceOnInsert(r.replace)
			}
			if _, err := rec.Save(ctx, item, nil); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("records saved", "model", r.mt.Name, "count", len(out))
	return out, nil
}

func valuesEqual(a, b any) bool {
	return coerce.LooseEqual(a, b)
}
