package record

import (
	"context"
	"fmt"
	"maps"

	"github.com/roach88/rowkit/internal/query"
)

// Relation resolves the records associated with a parent record.
// Resolve returns a *Record, a Collection, or nil when nothing is related.
type Relation interface {
	Resolve(ctx context.Context) (any, error)
}

// Binding maps a parent-side key to a field of the related record.
type Binding struct {
	Key  string
	Attr string
}

// Bind returns bindings that keep each field's name.
func Bind(fields ...string) []Binding {
	out := make([]Binding, len(fields))
	for i, f := range fields {
		out[i] = Binding{Key: f, Attr: f}
	}
	return out
}

// Binder is implemented by relations whose fields are projected into the
// parent's output instead of nesting the related record.
type Binder interface {
	BoundAttributes() []Binding
}

// RelationWriter is implemented by relations that can store new related
// data on behalf of the parent. value is a map of attributes, a slice of
// such maps, a *Record or a Collection.
type RelationWriter interface {
	SaveRelated(ctx context.Context, value any) error
}

// HasOne relates the parent to at most one record whose ForeignKey holds
// the parent's LocalKey.
type HasOne struct {
	Parent     *Record
	Related    *ModelType
	ForeignKey string
	LocalKey   string
	Bindings   []Binding
}

func (h *HasOne) Resolve(ctx context.Context) (any, error) {
	key, ok := parentKey(h.Parent, h.LocalKey)
	if !ok {
		return nil, nil
	}
	return one(h.Related.findWith(ctx, h.Parent.Conn(), query.Eq{Field: h.ForeignKey, Value: key}))
}

func (h *HasOne) BoundAttributes() []Binding {
	return h.Bindings
}

func (h *HasOne) SaveRelated(ctx context.Context, value any) error {
	return saveChildren(ctx, h.Parent, h.Related, h.ForeignKey, h.LocalKey, value)
}

// HasMany relates the parent to every record whose ForeignKey holds the
// parent's LocalKey.
type HasMany struct {
	Parent     *Record
	Related    *ModelType
	ForeignKey string
	LocalKey   string
	Order      []string
}

func (h *HasMany) Resolve(ctx context.Context) (any, error) {
	key, ok := parentKey(h.Parent, h.LocalKey)
	if !ok {
		return Collection{}, nil
	}
	return h.Related.selectWith(ctx, h.Parent.Conn(), query.Eq{Field: h.ForeignKey, Value: key}, h.Order...)
}

func (h *HasMany) SaveRelated(ctx context.Context, value any) error {
	return saveChildren(ctx, h.Parent, h.Related, h.ForeignKey, h.LocalKey, value)
}

// BelongsTo relates the parent to the record whose OwnerKey equals the
// parent's ForeignKey.
type BelongsTo struct {
	Parent     *Record
	Related    *ModelType
	ForeignKey string
	OwnerKey   string
	Bindings   []Binding
}

func (b *BelongsTo) Resolve(ctx context.Context) (any, error) {
	key, ok := b.Parent.Data(b.ForeignKey)
	if !ok || key == nil {
		return nil, nil
	}
	owner := b.OwnerKey
	if owner == "" {
		owner = b.Related.PK[0]
	}
	return one(b.Related.findWith(ctx, b.Parent.Conn(), query.Eq{Field: owner, Value: key}))
}

func (b *BelongsTo) BoundAttributes() []Binding {
	return b.Bindings
}

// BelongsToMany relates records through a pivot table. Each resolved record
// carries its pivot row as the loaded relation "pivot".
type BelongsToMany struct {
	Parent  *Record
	Related *ModelType
	Pivot   *ModelType

	// ForeignKey is the pivot column holding the parent's LocalKey and
	// RelatedKey the pivot column holding the related record's OwnerKey.
	ForeignKey string
	RelatedKey string
	LocalKey   string
	OwnerKey   string
}

// PivotRelation is the relation name resolved records carry their pivot under.
const PivotRelation = "pivot"

func (b *BelongsToMany) Resolve(ctx context.Context) (any, error) {
	key, ok := parentKey(b.Parent, b.LocalKey)
	if !ok {
		return Collection{}, nil
	}
	conn := b.Parent.Conn()
	pivots, err := b.Pivot.selectWith(ctx, conn, query.Eq{Field: b.ForeignKey, Value: key})
	if err != nil {
		return nil, err
	}
	if len(pivots) == 0 {
		return Collection{}, nil
	}

	ids := make([]any, 0, len(pivots))
	for _, p := range pivots {
		id, _ := p.Data(b.RelatedKey)
		ids = append(ids, id)
		p.parent = &ParentRef{Model: b.Parent.mt.Name, Key: key}
		p.AutoTimestamp("false")
	}

	related, err := b.Related.selectWith(ctx, conn, query.In{Field: b.ownerKey(), Values: ids})
	if err != nil {
		return nil, err
	}
	for _, rec := range related {
		id, _ := rec.Data(b.ownerKey())
		for _, p := range pivots {
			if v, _ := p.Data(b.RelatedKey); valuesEqual(v, id) {
				rec.SetRelation(PivotRelation, p)
				break
			}
		}
	}
	return related, nil
}

// SaveRelated stores each related record that does not exist yet and
// links it through a new pivot row.
func (b *BelongsToMany) SaveRelated(ctx context.Context, value any) error {
	key, ok := parentKey(b.Parent, b.LocalKey)
	if !ok {
		return fmt.Errorf("%s: parent key is not set", b.Parent.mt.Name)
	}
	conn := b.Parent.Conn()
	return eachPayload(b.Related, value, func(rec *Record, data map[string]any) error {
		rec.UseConn(conn)
		if !rec.exists || len(data) > 0 {
			if _, err := rec.Save(ctx, data, nil); err != nil {
				return err
			}
		}
		id, _ := rec.Data(b.ownerKey())
		pivot := b.Pivot.NewPivot(nil, ParentRef{Model: b.Parent.mt.Name, Key: key})
		pivot.UseConn(conn)
		_, err := pivot.Save(ctx, map[string]any{b.ForeignKey: key, b.RelatedKey: id}, nil)
		return err
	})
}

func (b *BelongsToMany) ownerKey() string {
	if b.OwnerKey != "" {
		return b.OwnerKey
	}
	return b.Related.PK[0]
}

// one keeps a missing record an untyped nil.
func one(rec *Record, err error) (any, error) {
	if err != nil || rec == nil {
		return nil, err
	}
	return rec, nil
}

func parentKey(parent *Record, local string) (any, bool) {
	if local == "" {
		local = parent.mt.PK[0]
	}
	v, ok := parent.Data(local)
	return v, ok && v != nil
}

// saveChildren stores value as records of related whose foreignKey points
// at the parent.
func saveChildren(ctx context.Context, parent *Record, related *ModelType, foreignKey, localKey string, value any) error {
	key, ok := parentKey(parent, localKey)
	if !ok {
		return fmt.Errorf("%s: parent key is not set", parent.mt.Name)
	}
	conn := parent.Conn()
	return eachPayload(related, value, func(rec *Record, data map[string]any) error {
		rec.UseConn(conn)
		if data == nil {
			data = map[string]any{}
		}
		data[foreignKey] = key
		_, err := rec.Save(ctx, data, nil)
		return err
	})
}

// eachPayload normalises a relation write payload into records plus the
// data to save on each.
func eachPayload(mt *ModelType, value any, fn func(*Record, map[string]any) error) error {
	switch v := value.(type) {
	case nil:
		return nil
	case *Record:
		if v == nil {
			return nil
		}
		return fn(v, nil)
	case Collection:
		for _, rec := range v {
			if err := fn(rec, nil); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		return fn(mt.New(nil), maps.Clone(v))
	case []map[string]any:
		for _, m := range v {
			if err := fn(mt.New(nil), maps.Clone(m)); err != nil {
				return err
			}
		}
		return nil
	case []any:
		for _, item := range v {
			if err := eachPayload(mt, item, fn); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%s: unsupported relation payload %T", mt.Name, value)
}
