package record

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/rowkit/internal/ordered"
)

// Set assigns value to name through the write pipeline:
//
//  1. a field whose mutator already ran this write cycle is left alone
//  2. nil on an auto-timestamp field stores the current time
//  3. a registered mutator computes the stored value
//  4. otherwise a type descriptor converts it to its stored form
//
// Disused fields are dropped.
func (r *Record) Set(name string, value any) error {
	return r.setAttr(name, value, nil)
}

func (r *Record) setAttr(name string, value any, incoming map[string]any) error {
	if r.intercepted[name] || slices.Contains(r.mt.Disuse, name) {
		return nil
	}

	ts := r.timestamps()
	if value == nil && ts.Enabled() && ts.Governs(name) {
		r.data.Set(name, r.autoTimestampValue(name))
		return nil
	}

	if mut, ok := r.mt.Mutators[name]; ok {
		before := r.data.Clone()
		merged := r.data.ToMap()
		maps.Copy(merged, incoming)

		out, err := mut(r, value, merged)
		if err != nil {
			return fmt.Errorf("%s: set %s: %w", r.mt.Name, name, err)
		}
		r.intercepted[name] = true

		// The mutator wrote its own fields.
		if out == nil && !before.Equal(r.data) {
			return nil
		}
		r.data.Set(name, out)
		return nil
	}

	if d, ok := r.mt.descriptor(name); ok {
		out, err := r.mt.converter().ToStorage(value, d)
		if err != nil {
			return fmt.Errorf("%s: set %s: %w", r.mt.Name, name, err)
		}
		value = out
	}
	r.data.Set(name, value)
	return nil
}

// autoTimestampValue is the value written into an auto-maintained time field.
func (r *Record) autoTimestampValue(name string) any {
	conv := r.mt.converter()
	mode := r.timestamps().Mode
	if d, ok := r.mt.descriptor(name); ok {
		return conv.AutoTimestamp(&d, mode)
	}
	return conv.AutoTimestamp(nil, mode)
}

// WithAttr installs a per-record accessor for name, taking precedence over
// the model's accessor and type.
func (r *Record) WithAttr(name string, acc Accessor) *Record {
	if r.withAttr == nil {
		r.withAttr = make(map[string]Accessor)
	}
	r.withAttr[name] = acc
	return r
}

// Get reads name through the read pipeline:
//
//  1. a per-record accessor, then the model's accessor
//  2. a type descriptor converts the stored value
//  3. auto-timestamp fields are formatted with the date format
//  4. a name that is not stored resolves as a relation and is cached
//
// Reading a name that is none of these fails with ATTRIBUTE_NOT_FOUND.
func (r *Record) Get(ctx context.Context, name string) (any, error) {
	v, _, err := r.getAttr(ctx, name, nil)
	return v, err
}

// getAttr implements Get. With a non-nil item, a relation that declares
// bound attributes projects them into item instead of returning a value;
// projected reports that case.
func (r *Record) getAttr(ctx context.Context, name string, item *ordered.Map) (value any, projected bool, err error) {
	value, found := r.Data(name)

	acc, ok := r.withAttr[name]
	if !ok {
		acc, ok = r.mt.Accessors[name]
	}
	if ok {
		if !found {
			if ra, isRel := r.mt.Relations[name]; isRel {
				if value, err = resolve(ctx, ra(r)); err != nil {
					return nil, false, fmt.Errorf("%s: resolve %s: %w", r.mt.Name, name, err)
				}
			}
		}
		out, err := acc(value, r.data.ToMap())
		if err != nil {
			return nil, false, fmt.Errorf("%s: get %s: %w", r.mt.Name, name, err)
		}
		return out, false, nil
	}

	conv := r.mt.converter()
	if d, ok := r.mt.descriptor(name); ok {
		out, err := conv.FromStorage(value, d)
		if err != nil {
			return nil, false, fmt.Errorf("%s: get %s: %w", r.mt.Name, name, err)
		}
		return out, false, nil
	}

	if ts := r.timestamps(); ts.Enabled() && ts.Governs(name) {
		out, err := conv.FormatTime("", value, !ts.Formatted())
		if err != nil {
			return nil, false, fmt.Errorf("%s: get %s: %w", r.mt.Name, name, err)
		}
		return out, false, nil
	}

	if !found {
		return r.relationAttribute(ctx, name, item)
	}
	return value, false, nil
}

func (r *Record) relationAttribute(ctx context.Context, name string, item *ordered.Map) (any, bool, error) {
	ra, ok := r.mt.Relations[name]
	if !ok {
		return nil, false, newAttributeNotFound(r.mt.Name, name)
	}
	rel := ra(r)
	if rel == nil {
		return nil, false, newAttributeNotFound(r.mt.Name, name)
	}

	value, err := rel.Resolve(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("%s: resolve %s: %w", r.mt.Name, name, err)
	}

	if b, ok := rel.(Binder); ok && item != nil {
		if bindings := b.BoundAttributes(); len(bindings) > 0 {
			related, _ := value.(*Record)
			for _, bd := range bindings {
				if item.Has(bd.Key) {
					return nil, false, newDuplicateBound(r.mt.Name, bd.Key)
				}
				var v any
				if related != nil {
					if v, err = related.Get(ctx, bd.Attr); err != nil {
						return nil, false, err
					}
				}
				item.Set(bd.Key, v)
			}
			return nil, true, nil
		}
	}

	r.relations.Set(name, value)
	return value, false, nil
}

// Related returns a loaded relation without resolving it.
func (r *Record) Related(name string) (any, bool) {
	return r.relations.Get(name)
}

// Relation returns the named relation, resolving and caching it on first use.
func (r *Record) Relation(ctx context.Context, name string) (any, error) {
	if v, ok := r.relations.Get(name); ok {
		return v, nil
	}
	ra, ok := r.mt.Relations[name]
	if !ok {
		return nil, newAttributeNotFound(r.mt.Name, name)
	}
	v, err := resolve(ctx, ra(r))
	if err != nil {
		return nil, fmt.Errorf("%s: resolve %s: %w", r.mt.Name, name, err)
	}
	r.relations.Set(name, v)
	return v, nil
}

// SetRelation stores value as the loaded relation name.
func (r *Record) SetRelation(name string, value any) *Record {
	r.relations.Set(name, value)
	return r
}

// RemoveRelation forgets every loaded relation.
func (r *Record) RemoveRelation() *Record {
	r.relations = ordered.New()
	return r
}

// AppendRelationAttr copies fields of a single related record into the
// record's own attributes. A binding whose key is already set fails with
// DUPLICATE_BOUND_ATTRIBUTE. Relations that resolve to nothing or to a
// collection copy nothing.
func (r *Record) AppendRelationAttr(ctx context.Context, relation string, bindings ...Binding) error {
	v, err := r.Relation(ctx, relation)
	if err != nil {
		return err
	}
	related, ok := v.(*Record)
	if !ok || related == nil {
		return nil
	}
	for _, bd := range bindings {
		if r.Has(bd.Key) {
			return newDuplicateBound(r.mt.Name, bd.Key)
		}
		val, err := related.Get(ctx, bd.Attr)
		if err != nil {
			return err
		}
		r.data.Set(bd.Key, val)
	}
	return nil
}

func resolve(ctx context.Context, rel Relation) (any, error) {
	if rel == nil {
		return nil, nil
	}
	return rel.Resolve(ctx)
}
