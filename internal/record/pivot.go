package record

import (
	"context"

	"github.com/roach88/rowkit/internal/query"
)

// ParentRef is a non-owning reference from a pivot record to the record
// that loaded it: the parent's model name and primary key value.
type ParentRef struct {
	Model string
	Key   any
}

// NewPivot creates a pivot record for an intermediate table. Pivot records
// never write timestamps.
func (mt *ModelType) NewPivot(data map[string]any, parent ParentRef) *Record {
	r := mt.New(data)
	r.AutoTimestamp("false")
	r.parent = &parent
	return r
}

// ParentRef returns the pivot's parent reference.
func (r *Record) ParentRef() (ParentRef, bool) {
	if r.parent == nil {
		return ParentRef{}, false
	}
	return *r.parent, true
}

// Parent loads the record a pivot belongs to through the registry.
func (r *Record) Parent(ctx context.Context) (*Record, error) {
	if r.parent == nil {
		return nil, nil
	}
	reg := r.mt.registry
	if reg == nil {
		return nil, newInvalidModel(r.mt.Name, "", "model is not registered")
	}
	pm, ok := reg.Model(r.parent.Model)
	if !ok {
		return nil, newInvalidModel(r.parent.Model, "", "parent model is not registered")
	}
	conn := r.Conn()
	if conn == nil {
		return nil, newInvalidModel(r.mt.Name, "", "no connection configured")
	}
	return pm.findWith(ctx, conn, query.Eq{Field: pm.PK[0], Value: r.parent.Key})
}
