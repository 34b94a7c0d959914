package record

import (
	"context"
	"fmt"

	"github.com/roach88/rowkit/internal/query"
)

// captureCascades collects the payload of every cascaded relation before a
// write. A cascade with Fields takes those attributes; otherwise a loaded
// relation is written back, or an attribute named after the relation is
// moved out of the record's own data.
func (r *Record) captureCascades() {
	r.pending = nil
	for _, c := range r.cascades() {
		var payload any
		switch {
		case len(c.Fields) > 0:
			m := make(map[string]any, len(c.Fields))
			for _, f := range c.Fields {
				if v, ok := r.data.Get(f); ok && v != nil {
					m[f] = v
				}
			}
			payload = m
		case r.relations.Has(c.Relation):
			payload, _ = r.relations.Get(c.Relation)
		case r.Has(c.Relation):
			payload, _ = r.data.Get(c.Relation)
			r.data.Delete(c.Relation)
		default:
			continue
		}
		r.pending = append(r.pending, pendingCascade{cascade: c, payload: payload})
	}
}

func (r *Record) relationFor(name string) (Relation, error) {
	ra, ok := r.mt.Relations[name]
	if !ok {
		return nil, newInvalidModel(r.mt.Name, name, "relation is not defined")
	}
	rel := ra(r)
	if rel == nil {
		return nil, newInvalidModel(r.mt.Name, name, "relation is not defined")
	}
	return rel, nil
}

func (r *Record) cascadeInsert(ctx context.Context) error {
	for _, p := range r.pending {
		rel, err := r.relationFor(p.cascade.Relation)
		if err != nil {
			return err
		}
		w, ok := rel.(RelationWriter)
		if !ok {
			return newInvalidModel(r.mt.Name, p.cascade.Relation, "relation does not support cascaded writes")
		}
		if err := w.SaveRelated(ctx, p.payload); err != nil {
			return fmt.Errorf("cascade %s: %w", p.cascade.Relation, err)
		}
	}
	return nil
}

// cascadeUpdate saves loaded related records, or applies a data payload to
// the related record (storing it through the relation when none exists).
func (r *Record) cascadeUpdate(ctx context.Context, conn query.Conn) error {
	for _, p := range r.pending {
		name := p.cascade.Relation
		switch v := p.payload.(type) {
		case *Record:
			if v == nil {
				continue
			}
			if _, err := v.UseConn(conn).Save(ctx, nil, nil); err != nil {
				return fmt.Errorf("cascade %s: %w", name, err)
			}
		case Collection:
			for _, rec := range v {
				if _, err := rec.UseConn(conn).Save(ctx, nil, nil); err != nil {
					return fmt.Errorf("cascade %s: %w", name, err)
				}
			}
		case map[string]any:
			related, err := r.Relation(ctx, name)
			if err != nil {
				return err
			}
			if rec, ok := related.(*Record); ok && rec != nil {
				if _, err := rec.UseConn(conn).IsUpdate(true, nil).Save(ctx, v, nil); err != nil {
					return fmt.Errorf("cascade %s: %w", name, err)
				}
				continue
			}
			rel, err := r.relationFor(name)
			if err != nil {
				return err
			}
			if w, ok := rel.(RelationWriter); ok && len(v) > 0 {
				if err := w.SaveRelated(ctx, v); err != nil {
					return fmt.Errorf("cascade %s: %w", name, err)
				}
			}
		}
	}
	return nil
}

// cascadeDelete deletes the records of every cascaded relation.
func (r *Record) cascadeDelete(ctx context.Context, conn query.Conn) error {
	for _, c := range r.cascades() {
		related, err := r.Relation(ctx, c.Relation)
		if err != nil {
			return err
		}
		switch v := related.(type) {
		case *Record:
			if v == nil {
				continue
			}
			if _, err := v.UseConn(conn).Delete(ctx); err != nil {
				return fmt.Errorf("cascade %s: %w", c.Relation, err)
			}
		case Collection:
			for _, rec := range v {
				if _, err := rec.UseConn(conn).Delete(ctx); err != nil {
					return fmt.Errorf("cascade %s: %w", c.Relation, err)
				}
			}
		}
	}
	return nil
}
